package identity

import (
	"context"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/sirupsen/logrus"

	"btctl/internal/scan"
	"btctl/internal/sysbt"
)

// Matcher pairs OS paired devices with BLE sightings. The default is exact
// case-insensitive name matching; a stricter address-aware matcher can be
// substituted without touching the orchestration above it.
type Matcher interface {
	Match(paired []sysbt.PairedDevice, sightings []scan.Sighting) []DeviceRecord
}

// NameMatcher matches by exact case-insensitive display-name equality only.
// No fuzzy matching, no address-based matching: a device advertising under a
// different name than its paired name will never match. This is a deliberate
// simplification and a known source of false negatives.
type NameMatcher struct{}

// Match merges the two sources into a unified catalog:
//
//  1. index BLE sightings by lower-cased name, keeping multiple sightings of
//     one name as a list in scan discovery order;
//  2. each paired device claims the sightings under its name (one match fills
//     BLEAddress; several fill BLEAddressesAll as well);
//  3. unclaimed sightings are emitted as standalone BLE-only records.
//
// Output order is deterministic for fixed inputs: paired devices first, in
// their input order, then BLE-only records in scan order.
func (NameMatcher) Match(paired []sysbt.PairedDevice, sightings []scan.Sighting) []DeviceRecord {
	index := orderedmap.New[string, []scan.Sighting]()
	for _, s := range sightings {
		key := strings.ToLower(s.Name)
		existing, _ := index.Get(key)
		index.Set(key, append(existing, s))
	}

	claimed := make(map[string]bool, len(sightings))
	records := make([]DeviceRecord, 0, len(paired)+len(sightings))

	for _, dev := range paired {
		rec := DeviceRecord{
			SystemAddress:   dev.Address,
			DisplayName:     dev.Name,
			SystemConnected: dev.Connected,
		}

		if matches, ok := index.Get(strings.ToLower(dev.Name)); ok && len(matches) > 0 {
			rec.BLEAddress = matches[0].Address
			if len(matches) > 1 {
				rec.BLEAddressesAll = make([]string, 0, len(matches))
				for _, m := range matches {
					rec.BLEAddressesAll = append(rec.BLEAddressesAll, m.Address)
				}
			}
			for _, m := range matches {
				claimed[strings.ToLower(m.Address)] = true
			}
		}

		if rec.Valid() {
			records = append(records, rec)
		}
	}

	for _, s := range sightings {
		if claimed[strings.ToLower(s.Address)] {
			continue
		}
		rec := DeviceRecord{
			BLEAddress:  s.Address,
			DisplayName: s.Name,
		}
		if rec.Valid() {
			records = append(records, rec)
		}
	}

	return records
}

// PairedSource enumerates OS-paired classic-profile devices.
type PairedSource interface {
	Paired(ctx context.Context) ([]sysbt.PairedDevice, error)
}

// SightingSource performs a timed BLE advertisement scan.
type SightingSource interface {
	Scan(ctx context.Context, opts *scan.Options) ([]scan.Sighting, error)
}

// Resolver runs both discovery sources and merges their output through the
// configured Matcher.
type Resolver struct {
	paired   PairedSource
	ble      SightingSource
	matcher  Matcher
	scanOpts *scan.Options
	logger   *logrus.Logger
}

// NewResolver builds a Resolver. A nil matcher falls back to NameMatcher.
func NewResolver(paired PairedSource, ble SightingSource, matcher Matcher, scanOpts *scan.Options, logger *logrus.Logger) *Resolver {
	if matcher == nil {
		matcher = NameMatcher{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Resolver{
		paired:   paired,
		ble:      ble,
		matcher:  matcher,
		scanOpts: scanOpts,
		logger:   logger,
	}
}

// Resolve builds a fresh device catalog. It never fails: a source that
// errors out simply contributes nothing, yielding a shorter catalog.
func (r *Resolver) Resolve(ctx context.Context) []DeviceRecord {
	pairedDevices, err := r.paired.Paired(ctx)
	if err != nil {
		r.logger.WithError(err).Warn("Paired-device enumeration failed, continuing with BLE scan only")
		pairedDevices = nil
	}

	sightings, err := r.ble.Scan(ctx, r.scanOpts)
	if err != nil {
		r.logger.WithError(err).Warn("BLE scan failed, continuing with paired devices only")
		sightings = nil
	}

	records := r.matcher.Match(pairedDevices, sightings)

	r.logger.WithFields(logrus.Fields{
		"paired":  len(pairedDevices),
		"ble":     len(sightings),
		"catalog": len(records),
	}).Info("Device catalog resolved")

	return records
}
