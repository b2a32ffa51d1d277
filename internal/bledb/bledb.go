// Package bledb maps Bluetooth SIG assigned numbers to human readable names.
// The tables cover the services and characteristics that commonly show up on
// consumer accessories; unknown UUIDs simply resolve to an empty name.
package bledb

import "strings"

// Bluetooth SIG base UUID suffix. A 128-bit UUID of the form
// 0000xxxx-0000-1000-8000-00805f9b34fb is equivalent to the 16-bit value xxxx.
const sigBaseSuffix = "00001000800000805f9b34fb"

// NormalizeUUID converts a UUID string to the internal lookup format:
// lowercase, no dashes, no braces, no 0x prefix. Full 128-bit UUIDs on the
// Bluetooth SIG base are shortened to their 16-bit form.
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.TrimSpace(uuid))
	u = strings.Trim(u, "{}")
	u = strings.TrimPrefix(u, "0x")
	u = strings.ReplaceAll(u, "-", "")
	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, sigBaseSuffix) {
		return u[4:8]
	}
	return u
}

var services = map[string]string{
	"1800": "Generic Access",
	"1801": "Generic Attribute",
	"180a": "Device Information",
	"180d": "Heart Rate",
	"180f": "Battery Service",
	"1812": "Human Interface Device",
	"181c": "User Data",
	"1844": "Volume Control",
	"1845": "Volume Offset Control",
	"184e": "Audio Stream Control",
	"fe2c": "Google Fast Pair",
	"fd2d": "Xiaomi Fast Connect",
}

var characteristics = map[string]string{
	"2a00": "Device Name",
	"2a01": "Appearance",
	"2a05": "Service Changed",
	"2a19": "Battery Level",
	"2a24": "Model Number String",
	"2a25": "Serial Number String",
	"2a26": "Firmware Revision String",
	"2a27": "Hardware Revision String",
	"2a29": "Manufacturer Name String",
	"2a37": "Heart Rate Measurement",
	"2a4d": "Report",
	"2b7d": "Volume State",
}

// LookupService returns the assigned name of a service UUID, or "".
func LookupService(uuid string) string {
	return services[NormalizeUUID(uuid)]
}

// LookupCharacteristic returns the assigned name of a characteristic UUID, or "".
func LookupCharacteristic(uuid string) string {
	return characteristics[NormalizeUUID(uuid)]
}
