package sysbt

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"btctl/internal/bterr"
)

// BatteryPercent reads the host-maintained battery table for paired
// accessories (the value shown in the OS control center). A device without an
// entry yields bterr.ErrNotFound, which drives the GATT fallback. No GATT
// session is ever opened here.
func (c *Controller) BatteryPercent(ctx context.Context, address string) (int, error) {
	out, err := c.run(ctx, "ioreg", "-r", "-c", "IOBluetoothDevice")
	if err != nil {
		return 0, fmt.Errorf("host battery query: %w", err)
	}

	percent, ok := parseBatteryTable(out, address)
	if !ok {
		return 0, fmt.Errorf("host battery for %s: %w", address, bterr.ErrNotFound)
	}

	c.logger.WithField("address", address).WithField("percent", percent).
		Debug("Host battery table hit")
	return percent, nil
}

// parseBatteryTable walks ioreg output grouped per device: an "Address" line
// opens a device block and a later "BatteryPercent" line belongs to it.
func parseBatteryTable(out, address string) (int, bool) {
	target := NormalizeAddress(address)
	current := ""

	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.Contains(line, `"Address"`):
			if _, value, found := strings.Cut(line, "="); found {
				current = NormalizeAddress(strings.Trim(strings.TrimSpace(value), `"`))
			}
		case strings.Contains(line, `"BatteryPercent"`):
			_, value, found := strings.Cut(line, "=")
			if !found {
				continue
			}
			percent, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || percent < 0 || percent > 100 {
				continue
			}
			if current == target {
				return percent, true
			}
		}
	}
	return 0, false
}

// NormalizeAddress lower-cases a classic-profile address and unifies the
// separator to colons, so blueutil's dashed form matches ioreg's.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.ReplaceAll(address, "-", ":"))
}
