// Package identity unifies the two identity spaces of a physical Bluetooth
// accessory: the classic-profile system address the OS uses for audio, and
// the BLE address the GATT transport uses for attribute access. The two are
// reconciled by display name into a single device catalog.
package identity

// DeviceRecord is one physical accessory as currently known. Records are
// built fresh on every discovery pass and never mutated afterwards; callers
// needing persistence must snapshot results themselves.
type DeviceRecord struct {
	// SystemAddress is the classic-profile address; empty for BLE-only
	// accessories.
	SystemAddress string `json:"system_address,omitempty"`

	// BLEAddress is the primary BLE address/UUID; empty when the scan saw
	// nothing under this name. Always equal to BLEAddressesAll[0] when both
	// are present.
	BLEAddress string `json:"ble_address,omitempty"`

	// BLEAddressesAll lists every BLE address matched to this name, in scan
	// discovery order. Populated only when one display name maps to multiple
	// peripherals (stereo earbuds and the like).
	BLEAddressesAll []string `json:"ble_addresses_all,omitempty"`

	// DisplayName is the human-readable name and the matching key.
	DisplayName string `json:"display_name"`

	// SystemConnected reflects the OS-reported classic link state at scan
	// time; it can go stale.
	SystemConnected bool `json:"system_connected"`
}

// Valid reports whether the record identifies the device on at least one
// transport. Records failing this must never be emitted.
func (r DeviceRecord) Valid() bool {
	return r.SystemAddress != "" || r.BLEAddress != ""
}

// GattTarget returns the address to dial a GATT session with: the BLE address
// when known, otherwise the system address as a last resort.
func (r DeviceRecord) GattTarget() string {
	if r.BLEAddress != "" {
		return r.BLEAddress
	}
	return r.SystemAddress
}
