// Package battery reads device battery levels. The host's own table is the
// cheap and reliable source, so it is consulted first; a GATT session is only
// opened when the host has nothing for the device.
package battery

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"btctl/internal/bterr"
	"btctl/internal/config"
	"btctl/internal/gatt"
	"btctl/internal/identity"
	"btctl/internal/orchestrator"
)

const (
	batteryServiceUUID = "180f"
	batteryLevelUUID   = "2a19"
)

// HostBattery is the host-side battery table lookup.
type HostBattery interface {
	BatteryPercent(ctx context.Context, address string) (int, error)
}

type Reader struct {
	host   HostBattery
	orch   *orchestrator.Orchestrator
	cfg    *config.Config
	logger *logrus.Logger
}

func NewReader(host HostBattery, orch *orchestrator.Orchestrator, cfg *config.Config, logger *logrus.Logger) *Reader {
	return &Reader{host: host, orch: orch, cfg: cfg, logger: logger}
}

// Level returns the battery percentage for the device. Order: host table,
// then GATT Battery Service. Either miss is expected and non-fatal; only
// when both sources come up empty does the caller see an error.
func (r *Reader) Level(ctx context.Context, rec identity.DeviceRecord) (int, error) {
	if rec.SystemAddress != "" {
		level, err := r.host.BatteryPercent(ctx, rec.SystemAddress)
		if err == nil {
			r.logger.WithFields(logrus.Fields{
				"address": rec.SystemAddress,
				"level":   level,
			}).Debug("Battery level from host table")
			return level, nil
		}
		r.logger.WithError(err).WithField("address", rec.SystemAddress).Debug("Host battery table miss, falling back to GATT")
	}

	return r.gattLevel(ctx, rec)
}

func (r *Reader) gattLevel(ctx context.Context, rec identity.DeviceRecord) (int, error) {
	sess, err := r.openSession(ctx, rec)
	if err != nil {
		return 0, err
	}
	defer r.closeSession(sess.Address())

	for _, char := range r.levelCandidates(sess) {
		level, err := readLevel(char)
		if err != nil {
			r.logger.WithError(err).WithFields(logrus.Fields{
				"address": sess.Address(),
				"handle":  char.Handle(),
			}).Debug("Battery characteristic not readable, trying next")
			continue
		}
		return level, nil
	}

	return 0, fmt.Errorf("battery level on %s: %w", sess.Address(), bterr.ErrNotFound)
}

// Levels reads every Battery Level characteristic the device exposes,
// labeled by the characteristic user description. Earbuds typically report
// left, right and case as separate characteristics.
func (r *Reader) Levels(ctx context.Context, rec identity.DeviceRecord) (map[string]int, error) {
	sess, err := r.openSession(ctx, rec)
	if err != nil {
		return nil, err
	}
	defer r.closeSession(sess.Address())

	out := make(map[string]int)
	n := 0
	for _, svc := range sess.Services() {
		for _, char := range svc.Characteristics() {
			if char.UUID() != batteryLevelUUID {
				continue
			}
			n++
			level, err := readLevel(char)
			if err != nil {
				continue
			}
			out[componentLabel(char.Description(), n)] = level
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("battery levels on %s: %w", sess.Address(), bterr.ErrNotFound)
	}
	return out, nil
}

func (r *Reader) openSession(ctx context.Context, rec identity.DeviceRecord) (gatt.Session, error) {
	sess, err := r.orch.EnsureGattSession(ctx, orchestrator.SessionRequest{
		TargetAddress:   rec.GattTarget(),
		SystemAddress:   rec.SystemAddress,
		Name:            rec.DisplayName,
		SystemConnected: rec.SystemConnected,
		ConnectTimeout:  r.cfg.BatteryConnectTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("battery fallback: %w", err)
	}
	return sess, nil
}

func (r *Reader) closeSession(address string) {
	if err := r.orch.CloseGattSession(address); err != nil {
		r.logger.WithError(err).WithField("address", address).Warn("Failed to close battery session")
	}
}

// levelCandidates orders the Battery Level characteristics: the ones inside
// the Battery Service first, then any 2a19 found elsewhere.
func (r *Reader) levelCandidates(sess gatt.Session) []gatt.Characteristic {
	var candidates []gatt.Characteristic
	seen := make(map[uint16]bool)

	if svc, ok := sess.Service(batteryServiceUUID); ok {
		for _, char := range svc.Characteristics() {
			if char.UUID() == batteryLevelUUID {
				candidates = append(candidates, char)
				seen[char.Handle()] = true
			}
		}
	}
	for _, svc := range sess.Services() {
		for _, char := range svc.Characteristics() {
			if char.UUID() == batteryLevelUUID && !seen[char.Handle()] {
				candidates = append(candidates, char)
				seen[char.Handle()] = true
			}
		}
	}
	return candidates
}

// readLevel reads one characteristic and validates the payload as a battery
// percentage.
func readLevel(char gatt.Characteristic) (int, error) {
	data, err := char.Read()
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, fmt.Errorf("empty battery payload: %w", bterr.ErrNotFound)
	}
	level := int(data[0])
	if level > 100 {
		return 0, fmt.Errorf("battery payload %d out of range: %w", level, bterr.ErrNotFound)
	}
	return level, nil
}

// componentLabel maps a characteristic user description onto a stable
// component name.
func componentLabel(description string, n int) string {
	d := strings.ToLower(description)
	switch {
	case strings.Contains(d, "left"):
		return "left"
	case strings.Contains(d, "right"):
		return "right"
	case strings.Contains(d, "case"):
		return "case"
	default:
		return fmt.Sprintf("battery-%d", n)
	}
}
