// Package gatt defines the attribute access layer: sessions against a BLE
// peripheral, attribute references, and read/write operations over them.
// The transport implementation lives in the goble subpackage; everything in
// this package works against the interfaces so tests can swap in fakes.
package gatt

import (
	"context"
	"time"
)

// Characteristic is a single GATT characteristic inside an open session.
type Characteristic interface {
	// UUID returns the normalized UUID (lowercase, no dashes, SIG short form).
	UUID() string
	// Handle returns the ATT value handle.
	Handle() uint16
	// Properties returns the property string, e.g. "read,notify".
	Properties() string
	// Readable reports whether the characteristic advertises the read property.
	Readable() bool
	// Description returns the Characteristic User Description (descriptor
	// 2901) when the device exposes one, "" otherwise. Best effort: any
	// transport failure also yields "".
	Description() string
	// Read fetches the current value from the device.
	Read() ([]byte, error)
	// Write pushes a value to the device. noResponse selects write-without-
	// response when the characteristic supports it.
	Write(data []byte, noResponse bool) error
}

// Service is a GATT service and its characteristics.
type Service interface {
	UUID() string
	// Name returns the Bluetooth SIG assigned name, or "".
	Name() string
	Characteristics() []Characteristic
}

// Session is an open GATT connection with a discovered profile.
type Session interface {
	// Address returns the peripheral address the session was dialed with.
	Address() string
	// Alive reports whether the underlying link is still usable.
	Alive() bool
	Services() []Service
	// Service returns the service with the given UUID (any accepted form).
	Service(uuid string) (Service, bool)
	// FindByHandle returns the characteristic with the given value handle.
	FindByHandle(handle uint16) (Characteristic, bool)
	// FindByUUID returns the first characteristic with the given UUID,
	// searching services in discovery order.
	FindByUUID(uuid string) (Characteristic, bool)
	Close() error
}

// Connector dials a peripheral and discovers its full profile.
type Connector interface {
	Connect(ctx context.Context, address string, timeout time.Duration) (Session, error)
}
