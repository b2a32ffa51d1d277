// Package orchestrator sequences classic-link and GATT operations per device.
// The invariant it protects: a GATT dial to a device that is connected on the
// classic transport must be preceded by a system disconnect and a settle
// window, otherwise CoreBluetooth rejects or hangs the dial.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"btctl/internal/bterr"
	"btctl/internal/config"
	"btctl/internal/gatt"
)

// SystemController is the classic-transport surface the orchestrator drives.
type SystemController interface {
	Connect(ctx context.Context, address string) error
	Disconnect(ctx context.Context, address string) error
	IsConnected(ctx context.Context, address string) (bool, error)
	WaitSettled(ctx context.Context, address string, want bool, timeout, interval time.Duration) error
}

// KnownDeviceStore is the persistence side channel for devices that connected
// successfully at least once. The orchestrator only ever writes through it;
// reading the stored names back is the caller's concern.
type KnownDeviceStore interface {
	Put(address, name string) error
}

// SessionRequest describes one GATT session demand.
type SessionRequest struct {
	// TargetAddress is the BLE address to dial. Empty means the device record
	// carried no BLE identity and the request fails validation.
	TargetAddress string
	// SystemAddress is the classic address, used for the pre-dial disconnect.
	SystemAddress string
	Name          string
	// SystemConnected signals that the classic link is (or may be) up and must
	// be torn down before dialing.
	SystemConnected bool
	// ConnectTimeout bounds the dial and discovery. Zero means the configured
	// general GATT timeout.
	ConnectTimeout time.Duration
}

type Orchestrator struct {
	sys       SystemController
	connector gatt.Connector
	known     KnownDeviceStore
	sessions  *SessionRegistry
	cfg       *config.Config
	logger    *logrus.Logger

	locks *hashmap.Map[string, *sync.Mutex]
}

func New(sys SystemController, connector gatt.Connector, known KnownDeviceStore, cfg *config.Config, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		sys:       sys,
		connector: connector,
		known:     known,
		sessions:  NewSessionRegistry(),
		cfg:       cfg,
		logger:    logger,
		locks:     hashmap.New[string, *sync.Mutex](),
	}
}

// Sessions exposes the registry for read-side inspection.
func (o *Orchestrator) Sessions() *SessionRegistry {
	return o.sessions
}

// lockFor returns the mutex serializing operations against one address.
func (o *Orchestrator) lockFor(address string) *sync.Mutex {
	if mu, ok := o.locks.Get(address); ok {
		return mu
	}
	mu := &sync.Mutex{}
	if !o.locks.Insert(address, mu) {
		existing, _ := o.locks.Get(address)
		return existing
	}
	return mu
}

// ConnectSystem establishes the classic link and waits for it to settle.
// A successful connect is written through to the known-device store.
func (o *Orchestrator) ConnectSystem(ctx context.Context, address, name string) error {
	if address == "" {
		return &bterr.ValidationError{Field: "system_address", Msg: "no system address available"}
	}

	mu := o.lockFor(address)
	mu.Lock()
	defer mu.Unlock()

	o.logger.WithFields(logrus.Fields{
		"address": address,
		"name":    name,
	}).Info("Connecting system transport")

	if err := o.sys.Connect(ctx, address); err != nil {
		return fmt.Errorf("system connect %s: %w", address, err)
	}

	if o.known != nil {
		if err := o.known.Put(address, name); err != nil {
			o.logger.WithError(err).WithField("address", address).Warn("Failed to persist known device")
		}
	}

	return o.sys.WaitSettled(ctx, address, true, o.cfg.StabilizeTimeout, o.cfg.SettlePollInterval)
}

// DisconnectSystem tears down the classic link. Disconnecting an already
// disconnected device succeeds.
func (o *Orchestrator) DisconnectSystem(ctx context.Context, address string) error {
	if address == "" {
		return &bterr.ValidationError{Field: "system_address", Msg: "no system address available"}
	}

	mu := o.lockFor(address)
	mu.Lock()
	defer mu.Unlock()

	return o.disconnectSystemLocked(ctx, address)
}

func (o *Orchestrator) disconnectSystemLocked(ctx context.Context, address string) error {
	o.logger.WithField("address", address).Info("Disconnecting system transport")
	if err := o.sys.Disconnect(ctx, address); err != nil {
		return fmt.Errorf("system disconnect %s: %w", address, err)
	}
	return o.sys.WaitSettled(ctx, address, false, o.cfg.SettleTimeout, o.cfg.SettlePollInterval)
}

// EnsureGattSession returns an open session for the request target, reusing a
// registered live session when one exists. When the classic link is up it is
// disconnected and allowed to settle before the dial.
func (o *Orchestrator) EnsureGattSession(ctx context.Context, req SessionRequest) (gatt.Session, error) {
	if req.TargetAddress == "" {
		return nil, bterr.ErrNoBLEAddress
	}

	mu := o.lockFor(req.TargetAddress)
	mu.Lock()
	defer mu.Unlock()

	if sess, ok := o.sessions.Get(req.TargetAddress); ok {
		if sess.Alive() {
			o.logger.WithField("address", req.TargetAddress).Debug("Reusing open GATT session")
			return sess, nil
		}
		o.sessions.Remove(req.TargetAddress)
		o.logger.WithField("address", req.TargetAddress).Debug("Discarded dead GATT session")
	}

	// The same physical device answers on one transport at a time. Tear down
	// the classic link first and let it settle, then dial.
	if req.SystemConnected && req.SystemAddress != "" {
		if err := o.disconnectSystemLocked(ctx, req.SystemAddress); err != nil {
			o.logger.WithError(err).WithField("address", req.SystemAddress).Warn("Pre-dial system disconnect failed, dialing anyway")
		}
	}

	timeout := req.ConnectTimeout
	if timeout <= 0 {
		timeout = o.cfg.GattConnectTimeout
	}

	sess, err := o.connector.Connect(ctx, req.TargetAddress, timeout)
	if err != nil {
		if bterr.IsTimeout(err) {
			o.logger.WithFields(logrus.Fields{
				"address": req.TargetAddress,
				"timeout": timeout,
			}).Warn("GATT connect timed out")
		}
		return nil, fmt.Errorf("gatt connect %s: %w", req.TargetAddress, err)
	}

	o.sessions.Put(req.TargetAddress, sess)
	return sess, nil
}

// CloseGattSession closes and deregisters the session for the address.
// Closing an address without a session succeeds.
func (o *Orchestrator) CloseGattSession(address string) error {
	mu := o.lockFor(address)
	mu.Lock()
	defer mu.Unlock()

	sess, ok := o.sessions.Remove(address)
	if !ok {
		return nil
	}
	if err := sess.Close(); err != nil {
		return fmt.Errorf("close gatt session %s: %w", address, err)
	}
	return nil
}

// CloseAll tears down every registered session, keeping the first error.
func (o *Orchestrator) CloseAll() error {
	var firstErr error
	for _, addr := range o.sessions.Addresses() {
		if err := o.CloseGattSession(addr); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
