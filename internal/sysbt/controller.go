// Package sysbt drives the host's classic-profile Bluetooth surface through
// the blueutil and ioreg command-line utilities: paired-device enumeration,
// connect/disconnect by address, link-state polling and the host battery
// table. It never opens a GATT session.
package sysbt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"btctl/internal/config"
)

const blueutilBin = "blueutil"

// PairedDevice is one entry from the OS paired-device table.
type PairedDevice struct {
	Address   string `json:"address"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

// Controller invokes the OS Bluetooth utilities. All invocations go through
// the bounded Pool and carry an exec timeout.
type Controller struct {
	runner      Runner
	logger      *logrus.Logger
	execTimeout time.Duration
}

// NewController creates a Controller. The runner is typically a *Pool; tests
// substitute a scripted fake.
func NewController(runner Runner, cfg *config.Config, logger *logrus.Logger) *Controller {
	if logger == nil {
		logger = logrus.New()
	}
	return &Controller{
		runner:      runner,
		logger:      logger,
		execTimeout: cfg.ExecTimeout,
	}
}

func (c *Controller) run(ctx context.Context, name string, args ...string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.execTimeout)
	defer cancel()
	return c.runner.Run(runCtx, name, args...)
}

// Paired returns the OS paired-device table (address, display name,
// connection flag). The connection flag reflects state at call time and can
// go stale immediately after.
func (c *Controller) Paired(ctx context.Context) ([]PairedDevice, error) {
	out, err := c.run(ctx, blueutilBin, "--paired")
	if err != nil {
		return nil, fmt.Errorf("failed to list paired devices: %w", err)
	}

	var devices []PairedDevice
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if dev, ok := parsePairedLine(line); ok {
			devices = append(devices, dev)
		}
	}

	c.logger.WithField("count", len(devices)).Debug("Enumerated paired devices")
	return devices, nil
}

// parsePairedLine parses one blueutil --paired output line, e.g.
//
//	address: 94-db-56-aa-bb-cc, connected (master, -60 dBm), favourite, paired, name: "Buds", recent access date: ...
//
// Returns false when the line carries no address.
func parsePairedLine(line string) (PairedDevice, bool) {
	dev := PairedDevice{Name: "Unknown"}

	for _, part := range strings.Split(line, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "address:"):
			dev.Address = strings.TrimSpace(strings.TrimPrefix(part, "address:"))
		case strings.Contains(part, "name:"):
			_, value, _ := strings.Cut(part, "name:")
			dev.Name = strings.Trim(strings.TrimSpace(value), `"`)
		case strings.Contains(part, "connected") && !strings.Contains(part, "not"):
			dev.Connected = true
		}
	}

	if dev.Address == "" {
		return PairedDevice{}, false
	}
	return dev, true
}

// Connect asks the OS to establish the classic-profile link.
func (c *Controller) Connect(ctx context.Context, address string) error {
	if _, err := c.run(ctx, blueutilBin, "--connect", address); err != nil {
		return fmt.Errorf("system connect %s: %w", address, err)
	}
	c.logger.WithField("address", address).Info("System Bluetooth connected")
	return nil
}

// Disconnect asks the OS to tear the classic-profile link down. Disconnecting
// an already-disconnected address still succeeds as long as the utility
// itself exits cleanly.
func (c *Controller) Disconnect(ctx context.Context, address string) error {
	if _, err := c.run(ctx, blueutilBin, "--disconnect", address); err != nil {
		return fmt.Errorf("system disconnect %s: %w", address, err)
	}
	c.logger.WithField("address", address).Info("System Bluetooth disconnected")
	return nil
}

// IsConnected queries the OS link state for one address.
func (c *Controller) IsConnected(ctx context.Context, address string) (bool, error) {
	out, err := c.run(ctx, blueutilBin, "--is-connected", address)
	if err != nil {
		return false, fmt.Errorf("query link state %s: %w", address, err)
	}
	return strings.TrimSpace(out) == "1", nil
}

// WaitSettled polls the OS link state until it matches want or the timeout
// elapses. Where the host cannot answer the query the remaining timeout is
// spent as a plain delay, preserving the original fixed-wait behavior.
// Not reaching the wanted state is not an error: the link query surface is
// best-effort and callers proceed regardless.
func (c *Controller) WaitSettled(ctx context.Context, address string, want bool, timeout, interval time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		state, err := c.IsConnected(ctx, address)
		if err != nil {
			// Host cannot answer; fall back to the configured delay.
			c.logger.WithError(err).WithField("address", address).
				Debug("Link state not observable, waiting out the settle delay")
			return sleepCtx(ctx, time.Until(deadline))
		}
		if state == want {
			return nil
		}

		if remaining := time.Until(deadline); remaining <= 0 {
			c.logger.WithFields(logrus.Fields{
				"address": address,
				"want":    want,
			}).Warn("Link did not settle within timeout, continuing")
			return nil
		}

		if err := sleepCtx(ctx, interval); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
