// Package goble implements the gatt interfaces on top of go-ble with the
// darwin (CoreBluetooth) transport.
package goble

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
	"github.com/sirupsen/logrus"

	"btctl/internal/bledb"
	"btctl/internal/bterr"
	"btctl/internal/gatt"
)

// DeviceFactory creates ble.Device instances (can be overridden in tests).
var DeviceFactory = func() (ble.Device, error) {
	dev, err := darwin.NewDevice()
	if err != nil {
		if strings.Contains(err.Error(), "central manager has invalid state") {
			if strings.Contains(err.Error(), "have=4") { // StatePoweredOff
				return nil, fmt.Errorf("Bluetooth is turned off - please enable Bluetooth and retry")
			}
			return nil, fmt.Errorf("Bluetooth is not ready - %w", err)
		}
		return nil, err
	}
	return dev, nil
}

// Connector dials peripherals through the default BLE device.
type Connector struct {
	logger *logrus.Logger

	mu  sync.Mutex
	dev ble.Device
}

func NewConnector(logger *logrus.Logger) *Connector {
	return &Connector{logger: logger}
}

// Connect dials the address, discovers the full profile and returns an open
// session. The timeout bounds both the dial and the discovery.
func (c *Connector) Connect(ctx context.Context, address string, timeout time.Duration) (gatt.Session, error) {
	if strings.TrimSpace(address) == "" {
		return nil, &bterr.ValidationError{Field: "address", Msg: "device address is not set"}
	}

	if err := c.ensureDevice(); err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c.logger.WithField("address", address).Info("Connecting to BLE device...")

	client, err := ble.Dial(connCtx, ble.NewAddr(address))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to device with address %q: %w", address, normalizeError(err))
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		client.CancelConnection()
		return nil, fmt.Errorf("failed to discover profile: %w", normalizeError(err))
	}

	sess := &session{
		address:  address,
		client:   client,
		logger:   c.logger,
		byHandle: make(map[uint16]*characteristic),
	}
	for _, bleSvc := range profile.Services {
		svc := &service{
			uuid: bledb.NormalizeUUID(bleSvc.UUID.String()),
			name: bledb.LookupService(bleSvc.UUID.String()),
		}
		for _, bleChar := range bleSvc.Characteristics {
			char := &characteristic{
				uuid:    bledb.NormalizeUUID(bleChar.UUID.String()),
				handle:  bleChar.VHandle,
				props:   bleChar.Property,
				bleChar: bleChar,
				sess:    sess,
			}
			svc.chars = append(svc.chars, char)
			// Index by value handle; the declaration handle also resolves so
			// identifiers copied from other tools keep working.
			sess.byHandle[bleChar.VHandle] = char
			if _, taken := sess.byHandle[bleChar.Handle]; !taken {
				sess.byHandle[bleChar.Handle] = char
			}
		}
		sort.Slice(svc.chars, func(i, j int) bool {
			return svc.chars[i].handle < svc.chars[j].handle
		})
		sess.services = append(sess.services, svc)
	}

	c.logger.WithFields(logrus.Fields{
		"address":  address,
		"services": len(sess.services),
	}).Info("BLE device connected")
	return sess, nil
}

func (c *Connector) ensureDevice() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev != nil {
		return nil
	}
	dev, err := DeviceFactory()
	if err != nil {
		return err
	}
	ble.SetDefaultDevice(dev)
	c.dev = dev
	return nil
}

// session

type session struct {
	address  string
	logger   *logrus.Logger
	services []*service
	byHandle map[uint16]*characteristic

	mu     sync.RWMutex
	client ble.Client
}

func (s *session) Address() string { return s.address }

func (s *session) Alive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil
}

func (s *session) Services() []gatt.Service {
	out := make([]gatt.Service, len(s.services))
	for i, svc := range s.services {
		out[i] = svc
	}
	return out
}

func (s *session) Service(uuid string) (gatt.Service, bool) {
	want := bledb.NormalizeUUID(uuid)
	for _, svc := range s.services {
		if svc.uuid == want {
			return svc, true
		}
	}
	return nil, false
}

func (s *session) FindByHandle(handle uint16) (gatt.Characteristic, bool) {
	char, ok := s.byHandle[handle]
	return char, ok
}

func (s *session) FindByUUID(uuid string) (gatt.Characteristic, bool) {
	want := bledb.NormalizeUUID(uuid)
	for _, svc := range s.services {
		for _, char := range svc.chars {
			if char.uuid == want {
				return char, true
			}
		}
	}
	return nil, false
}

func (s *session) Close() error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()

	if client == nil {
		return nil
	}
	s.logger.WithField("address", s.address).Info("Disconnecting BLE device...")
	return client.CancelConnection()
}

func (s *session) liveClient() (ble.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, bterr.ErrSessionClosed
	}
	return s.client, nil
}

// service

type service struct {
	uuid  string
	name  string
	chars []*characteristic
}

func (s *service) UUID() string { return s.uuid }
func (s *service) Name() string { return s.name }

func (s *service) Characteristics() []gatt.Characteristic {
	out := make([]gatt.Characteristic, len(s.chars))
	for i, c := range s.chars {
		out[i] = c
	}
	return out
}

// characteristic

type characteristic struct {
	uuid    string
	handle  uint16
	props   ble.Property
	bleChar *ble.Characteristic
	sess    *session
}

func (c *characteristic) UUID() string   { return c.uuid }
func (c *characteristic) Handle() uint16 { return c.handle }

func (c *characteristic) Properties() string {
	var parts []string
	if c.props&ble.CharBroadcast != 0 {
		parts = append(parts, "broadcast")
	}
	if c.props&ble.CharRead != 0 {
		parts = append(parts, "read")
	}
	if c.props&ble.CharWriteNR != 0 {
		parts = append(parts, "write-without-response")
	}
	if c.props&ble.CharWrite != 0 {
		parts = append(parts, "write")
	}
	if c.props&ble.CharNotify != 0 {
		parts = append(parts, "notify")
	}
	if c.props&ble.CharIndicate != 0 {
		parts = append(parts, "indicate")
	}
	return strings.Join(parts, ",")
}

func (c *characteristic) Readable() bool {
	return c.props&ble.CharRead != 0
}

// Description reads the Characteristic User Description descriptor. On
// darwin descriptor handles are not always populated, so misses are normal.
func (c *characteristic) Description() string {
	client, err := c.sess.liveClient()
	if err != nil {
		return ""
	}
	for _, d := range c.bleChar.Descriptors {
		if bledb.NormalizeUUID(d.UUID.String()) != "2901" {
			continue
		}
		data, err := client.ReadDescriptor(d)
		if err != nil {
			return ""
		}
		return string(data)
	}
	return ""
}

func (c *characteristic) Read() ([]byte, error) {
	client, err := c.sess.liveClient()
	if err != nil {
		return nil, err
	}
	data, err := client.ReadCharacteristic(c.bleChar)
	if err != nil {
		return nil, classify("read", err)
	}
	return data, nil
}

func (c *characteristic) Write(data []byte, noResponse bool) error {
	if noResponse && c.props&ble.CharWriteNR == 0 {
		return fmt.Errorf("write without response on %s: %w", c.uuid, bterr.ErrUnsupported)
	}
	if !noResponse && c.props&ble.CharWrite == 0 && c.props&ble.CharWriteNR == 0 {
		return fmt.Errorf("write on %s: %w", c.uuid, bterr.ErrUnsupported)
	}

	client, err := c.sess.liveClient()
	if err != nil {
		return err
	}
	if err := client.WriteCharacteristic(c.bleChar, data, noResponse); err != nil {
		return classify("write", err)
	}
	return nil
}

// classify maps a transport error onto the shared taxonomy. ATT level
// refusals become RejectedError, deadline expiry becomes ErrTimeout,
// anything else passes through.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return bterr.ErrTimeout
	}
	msg := err.Error()
	if strings.Contains(msg, "ATT") ||
		strings.Contains(strings.ToLower(msg), "not permitted") ||
		strings.Contains(strings.ToLower(msg), "authentication") {
		return &bterr.RejectedError{Op: op, Reason: msg}
	}
	return err
}

func normalizeError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return bterr.ErrTimeout
	}
	return err
}
