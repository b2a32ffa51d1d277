// Package scan performs timed BLE advertisement scans and reports sightings:
// the advertised address, name, and signal strength of nearby peripherals.
package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"
)

// UnknownDeviceName is the placeholder for peripherals that advertise no
// local name.
const UnknownDeviceName = "Unknown BLE Device"

// Sighting is one peripheral observed during a scan.
type Sighting struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	RSSI    int    `json:"rssi"`
}

// Advertisement is the slice of a BLE advertisement this package consumes.
type Advertisement interface {
	Addr() string
	LocalName() string
	RSSI() int
}

// ScanningDevice is a BLE radio capable of scanning for advertisements.
type ScanningDevice interface {
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
}

type bleAdvertisement struct {
	adv ble.Advertisement
}

func (a bleAdvertisement) Addr() string      { return a.adv.Addr().String() }
func (a bleAdvertisement) LocalName() string { return a.adv.LocalName() }
func (a bleAdvertisement) RSSI() int         { return a.adv.RSSI() }

type bleScanningDevice struct {
	dev ble.Device
}

func (s *bleScanningDevice) Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error {
	return s.dev.Scan(ctx, allowDup, func(adv ble.Advertisement) {
		handler(bleAdvertisement{adv: adv})
	})
}

// DeviceFactory creates the scanning radio (can be overridden in tests).
var DeviceFactory = func() (ScanningDevice, error) {
	dev, err := darwin.NewDevice()
	if err != nil {
		if strings.Contains(err.Error(), "central manager has invalid state") {
			return nil, fmt.Errorf("Bluetooth is not ready - %w", err)
		}
		return nil, err
	}
	return &bleScanningDevice{dev: dev}, nil
}

// Options configures scanning behavior.
type Options struct {
	Duration time.Duration
	// MinRSSI drops sightings weaker than this floor (dBm, negative).
	MinRSSI int
}

// DefaultOptions returns default scanning options.
func DefaultOptions() *Options {
	return &Options{
		Duration: 5 * time.Second,
		MinRSSI:  -70,
	}
}

// Scanner handles BLE advertisement discovery. Sightings are deduplicated by
// address and reported in first-seen order.
type Scanner struct {
	logger *logrus.Logger

	mu    sync.Mutex
	seen  *hashmap.Map[string, int] // address -> index into order
	order []Sighting

	events mpmc.RichOverlappedRingBuffer[Sighting]
}

// NewScanner creates a new BLE scanner.
func NewScanner(logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{
		logger: logger,
		events: mpmc.NewOverlappedRingBuffer[Sighting](128),
	}
}

// Scan runs a timed advertisement scan and returns the sightings in discovery
// order. The scan always runs for its full configured duration; reaching the
// deadline is the normal way it ends. A nameless peripheral is reported as
// "Unknown BLE Device".
func (s *Scanner) Scan(ctx context.Context, opts *Options) ([]Sighting, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	s.mu.Lock()
	s.seen = hashmap.New[string, int]()
	s.order = nil
	s.mu.Unlock()

	s.logger.WithField("duration", opts.Duration).Info("Starting BLE scan...")

	dev, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}

	scanCtx := ctx
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	err = dev.Scan(scanCtx, false, func(adv Advertisement) {
		s.handleAdvertisement(adv, opts)
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	sightings := s.Sightings()
	s.logger.WithField("device_count", len(sightings)).Info("BLE scan completed")
	return sightings, nil
}

// handleAdvertisement records a new sighting or refreshes the RSSI of a known
// one, preserving the original discovery order.
func (s *Scanner) handleAdvertisement(adv Advertisement, opts *Options) {
	if adv.RSSI() <= opts.MinRSSI {
		return
	}

	name := adv.LocalName()
	if name == "" {
		name = UnknownDeviceName
	}
	sighting := Sighting{Address: adv.Addr(), Name: name, RSSI: adv.RSSI()}

	s.mu.Lock()
	if idx, ok := s.seen.Get(sighting.Address); ok {
		s.order[idx].RSSI = sighting.RSSI
		if s.order[idx].Name == UnknownDeviceName && name != UnknownDeviceName {
			s.order[idx].Name = name
		}
		s.mu.Unlock()
		return
	}
	s.seen.Set(sighting.Address, len(s.order))
	s.order = append(s.order, sighting)
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"device":  sighting.Name,
		"address": sighting.Address,
		"rssi":    sighting.RSSI,
	}).Info("Discovered new device")

	// Overwrite-oldest: a slow consumer never blocks the scan callback.
	if _, err := s.events.EnqueueM(sighting); err != nil {
		s.logger.WithError(err).Debug("Failed to enqueue scan event")
	}
}

// Sightings returns a snapshot of the current scan results in discovery order.
func (s *Scanner) Sightings() []Sighting {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sighting(nil), s.order...)
}

// DrainEvents empties the buffered new-device events, oldest first. Used by
// watch mode to update its display incrementally.
func (s *Scanner) DrainEvents() []Sighting {
	var out []Sighting
	for !s.events.IsEmpty() {
		v, err := s.events.Dequeue()
		if err != nil {
			break
		}
		out = append(out, v)
	}
	return out
}
