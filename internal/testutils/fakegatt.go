package testutils

import (
	"context"
	"strings"
	"sync"
	"time"

	"btctl/internal/bledb"
	"btctl/internal/bterr"
	"btctl/internal/gatt"
)

// FakeCharacteristic is a scriptable gatt.Characteristic.
type FakeCharacteristic struct {
	CharUUID   string
	CharHandle uint16
	Props      string // comma separated, e.g. "read,notify"
	Desc       string // Characteristic User Description

	Value    []byte
	ReadErr  error
	WriteErr error
	Echo     bool // writes replace Value, so reads return the last write

	mu         sync.Mutex
	reads      int
	lastWrite  []byte
	lastNoResp bool
}

func (c *FakeCharacteristic) UUID() string       { return bledb.NormalizeUUID(c.CharUUID) }
func (c *FakeCharacteristic) Handle() uint16     { return c.CharHandle }
func (c *FakeCharacteristic) Properties() string { return c.Props }

func (c *FakeCharacteristic) Readable() bool {
	return strings.Contains(c.Props, "read")
}

func (c *FakeCharacteristic) Description() string { return c.Desc }

func (c *FakeCharacteristic) Read() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	if c.ReadErr != nil {
		return nil, c.ReadErr
	}
	return c.Value, nil
}

func (c *FakeCharacteristic) Write(data []byte, noResponse bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.WriteErr != nil {
		return c.WriteErr
	}
	c.lastWrite = append([]byte(nil), data...)
	c.lastNoResp = noResponse
	if c.Echo {
		c.Value = append([]byte(nil), data...)
	}
	return nil
}

func (c *FakeCharacteristic) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

func (c *FakeCharacteristic) LastWrite() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastWrite, c.lastNoResp
}

// FakeService groups fake characteristics under a service UUID.
type FakeService struct {
	SvcUUID string
	Chars   []*FakeCharacteristic
}

func (s *FakeService) UUID() string { return bledb.NormalizeUUID(s.SvcUUID) }
func (s *FakeService) Name() string { return bledb.LookupService(s.SvcUUID) }

func (s *FakeService) Characteristics() []gatt.Characteristic {
	out := make([]gatt.Characteristic, len(s.Chars))
	for i, c := range s.Chars {
		out[i] = c
	}
	return out
}

// FakeSession is an in-memory gatt.Session.
type FakeSession struct {
	Addr string
	Svcs []*FakeService

	mu     sync.Mutex
	closed bool
}

func NewFakeSession(address string, services ...*FakeService) *FakeSession {
	return &FakeSession{Addr: address, Svcs: services}
}

func (s *FakeSession) Address() string { return s.Addr }

func (s *FakeSession) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *FakeSession) Services() []gatt.Service {
	out := make([]gatt.Service, len(s.Svcs))
	for i, svc := range s.Svcs {
		out[i] = svc
	}
	return out
}

func (s *FakeSession) Service(uuid string) (gatt.Service, bool) {
	want := bledb.NormalizeUUID(uuid)
	for _, svc := range s.Svcs {
		if svc.UUID() == want {
			return svc, true
		}
	}
	return nil, false
}

func (s *FakeSession) FindByHandle(handle uint16) (gatt.Characteristic, bool) {
	for _, svc := range s.Svcs {
		for _, c := range svc.Chars {
			if c.CharHandle == handle {
				return c, true
			}
		}
	}
	return nil, false
}

func (s *FakeSession) FindByUUID(uuid string) (gatt.Characteristic, bool) {
	want := bledb.NormalizeUUID(uuid)
	for _, svc := range s.Svcs {
		for _, c := range svc.Chars {
			if c.UUID() == want {
				return c, true
			}
		}
	}
	return nil, false
}

func (s *FakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// FakeConnector hands out scripted sessions by address.
type FakeConnector struct {
	Sessions map[string]*FakeSession
	Err      error

	mu       sync.Mutex
	connects []string
}

func (c *FakeConnector) Connect(_ context.Context, address string, _ time.Duration) (gatt.Session, error) {
	c.mu.Lock()
	c.connects = append(c.connects, address)
	c.mu.Unlock()

	if c.Err != nil {
		return nil, c.Err
	}
	sess, ok := c.Sessions[address]
	if !ok {
		return nil, bterr.ErrTimeout
	}
	// Sessions come back fresh on every dial.
	sess.mu.Lock()
	sess.closed = false
	sess.mu.Unlock()
	return sess, nil
}

// Connects returns every address dialed, in order.
func (c *FakeConnector) Connects() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.connects...)
}
