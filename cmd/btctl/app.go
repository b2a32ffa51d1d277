package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"btctl/internal/battery"
	"btctl/internal/bterr"
	"btctl/internal/config"
	"btctl/internal/gatt"
	"btctl/internal/gatt/goble"
	"btctl/internal/identity"
	"btctl/internal/knowndev"
	"btctl/internal/orchestrator"
	"btctl/internal/scan"
	"btctl/internal/sysbt"
)

// app wires the long-lived components behind every subcommand. One app is
// built per command invocation; the session registry lives for its duration.
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	sys    *sysbt.Controller
	known  *knowndev.Store
	orch   *orchestrator.Orchestrator
}

// newApp builds the component graph from the global flags. The --log-level
// and --verbose flags take precedence over the config file's log_level.
func newApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	sys := sysbt.NewController(sysbt.NewPool(sysbt.NewExecRunner(), cfg.ExecWorkers), cfg, logger)
	known := knowndev.NewStore(cfg.KnownDevicesPath, logger)
	connector := goble.NewConnector(logger)
	orch := orchestrator.New(sys, connector, known, cfg, logger)

	return &app{
		cfg:    cfg,
		logger: logger,
		sys:    sys,
		known:  known,
		orch:   orch,
	}, nil
}

// close tears down every open GATT session.
func (a *app) close() {
	if err := a.orch.CloseAll(); err != nil {
		a.logger.WithError(err).Warn("Failed to close GATT sessions cleanly")
	}
}

func (a *app) scanOptions() *scan.Options {
	return &scan.Options{
		Duration: a.cfg.ScanDuration,
		MinRSSI:  a.cfg.MinRSSI,
	}
}

func (a *app) batteryReader() *battery.Reader {
	return battery.NewReader(a.sys, a.orch, a.cfg, a.logger)
}

func (a *app) access() *gatt.Access {
	return gatt.NewAccess(a.logger, a.cfg.ReadTimeout)
}

// noScan is a SightingSource that sees nothing, used when a command resolves
// devices from the paired table alone.
type noScan struct{}

func (noScan) Scan(context.Context, *scan.Options) ([]scan.Sighting, error) { return nil, nil }

// catalog builds the unified device catalog. With withScan false only the
// paired table contributes, so records carry no BLE identity. Names remembered
// in the known-devices file fill in for nameless sightings.
func (a *app) catalog(ctx context.Context, withScan bool) []identity.DeviceRecord {
	var sightings identity.SightingSource = noScan{}
	if withScan {
		sightings = scan.NewScanner(a.logger)
	}
	resolver := identity.NewResolver(a.sys, sightings, nil, a.scanOptions(), a.logger)
	return applyKnownNames(resolver.Resolve(ctx), a.known.Load())
}

// applyKnownNames replaces placeholder names with names remembered from
// earlier successful connects, keyed by any of the record's addresses.
func applyKnownNames(records []identity.DeviceRecord, known map[string]string) []identity.DeviceRecord {
	if len(known) == 0 {
		return records
	}
	byAddr := make(map[string]string, len(known))
	for addr, name := range known {
		byAddr[strings.ToLower(addr)] = name
	}

	for i, rec := range records {
		if rec.DisplayName != scan.UnknownDeviceName {
			continue
		}
		for _, addr := range []string{rec.BLEAddress, rec.SystemAddress} {
			if name, ok := byAddr[strings.ToLower(addr)]; ok && addr != "" {
				records[i].DisplayName = name
				break
			}
		}
	}
	return records
}

// findDevice resolves a user-supplied query (name or address) against the
// catalog. An address-looking query that matches nothing still yields a bare
// record, so raw addresses work for devices the catalog has never seen.
func (a *app) findDevice(ctx context.Context, query string, withScan bool) (identity.DeviceRecord, error) {
	if query == "" {
		return identity.DeviceRecord{}, &bterr.ValidationError{Field: "device", Msg: "device name or address is required"}
	}

	for _, rec := range a.catalog(ctx, withScan) {
		if matchRecord(rec, query) {
			return rec, nil
		}
	}

	if looksLikeAddress(query) {
		rec := identity.DeviceRecord{DisplayName: query}
		// Without a scan the query can only be a system address; with one,
		// an unseen address is taken as a BLE target.
		if withScan {
			rec.BLEAddress = query
		} else {
			rec.SystemAddress = query
		}
		return rec, nil
	}

	return identity.DeviceRecord{}, fmt.Errorf("device %q: %w", query, bterr.ErrNotFound)
}

// session opens (or reuses) a GATT session for the record. The orchestrator
// drops any live system link first, so the GATT surface is reachable.
func (a *app) session(ctx context.Context, rec identity.DeviceRecord) (gatt.Session, error) {
	return a.orch.EnsureGattSession(ctx, orchestrator.SessionRequest{
		TargetAddress:   rec.GattTarget(),
		SystemAddress:   rec.SystemAddress,
		Name:            rec.DisplayName,
		SystemConnected: rec.SystemConnected,
		ConnectTimeout:  a.cfg.GattConnectTimeout,
	})
}

// signalContext derives a context cancelled by Ctrl+C or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// matchRecord reports whether the query names the record, by display name or
// by any of its addresses, case-insensitively.
func matchRecord(rec identity.DeviceRecord, query string) bool {
	q := strings.ToLower(query)
	if strings.ToLower(rec.DisplayName) == q {
		return true
	}
	if rec.SystemAddress != "" && strings.ToLower(rec.SystemAddress) == q {
		return true
	}
	if rec.BLEAddress != "" && strings.ToLower(rec.BLEAddress) == q {
		return true
	}
	for _, addr := range rec.BLEAddressesAll {
		if strings.ToLower(addr) == q {
			return true
		}
	}
	return false
}

// looksLikeAddress reports whether s is plausibly a device address: hex
// digits separated by ':' or '-', at least twelve digits long. Covers both
// classic MAC addresses and the UUID-style identifiers macOS hands out.
func looksLikeAddress(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
			digits++
		case r == ':' || r == '-':
		default:
			return false
		}
	}
	return digits >= 12
}
