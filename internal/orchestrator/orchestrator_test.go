package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btctl/internal/bterr"
	"btctl/internal/config"
	"btctl/internal/testutils"
)

// fakeSystem journals every classic-transport call so tests can assert
// ordering.
type fakeSystem struct {
	mu            sync.Mutex
	journal       []string
	connectErr    error
	disconnectErr error
	connected     map[string]bool
}

func newFakeSystem() *fakeSystem {
	return &fakeSystem{connected: make(map[string]bool)}
}

func (f *fakeSystem) record(format string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.journal = append(f.journal, fmt.Sprintf(format, args...))
}

func (f *fakeSystem) Journal() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.journal...)
}

func (f *fakeSystem) Connect(_ context.Context, address string) error {
	f.record("connect %s", address)
	if f.connectErr != nil {
		return f.connectErr
	}
	f.mu.Lock()
	f.connected[address] = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSystem) Disconnect(_ context.Context, address string) error {
	f.record("disconnect %s", address)
	if f.disconnectErr != nil {
		return f.disconnectErr
	}
	f.mu.Lock()
	f.connected[address] = false
	f.mu.Unlock()
	return nil
}

func (f *fakeSystem) IsConnected(_ context.Context, address string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected[address], nil
}

func (f *fakeSystem) WaitSettled(_ context.Context, address string, want bool, _, _ time.Duration) error {
	f.record("settle %s want=%v", address, want)
	return nil
}

type fakeStore struct {
	mu      sync.Mutex
	devices map[string]string
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{devices: make(map[string]string)}
}

func (f *fakeStore) snapshot() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.devices))
	for k, v := range f.devices {
		out[k] = v
	}
	return out
}

func (f *fakeStore) Put(address, name string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices[address] = name
	return nil
}

func newTestOrchestrator(t *testing.T, sys *fakeSystem, conn *testutils.FakeConnector, store KnownDeviceStore) *Orchestrator {
	helper := testutils.NewTestHelper(t)
	return New(sys, conn, store, config.DefaultConfig(), helper.Logger)
}

func TestConnectSystem_WritesThroughAndSettles(t *testing.T) {
	sys := newFakeSystem()
	store := newFakeStore()
	orch := newTestOrchestrator(t, sys, &testutils.FakeConnector{}, store)

	require.NoError(t, orch.ConnectSystem(context.Background(), "AA:BB", "Buds"))

	assert.Equal(t, []string{"connect AA:BB", "settle AA:BB want=true"}, sys.Journal())
	assert.Equal(t, map[string]string{"AA:BB": "Buds"}, store.snapshot())
}

func TestConnectSystem_StoreFailureIsNotFatal(t *testing.T) {
	sys := newFakeSystem()
	store := newFakeStore()
	store.putErr = errors.New("disk full")
	orch := newTestOrchestrator(t, sys, &testutils.FakeConnector{}, store)

	assert.NoError(t, orch.ConnectSystem(context.Background(), "AA:BB", "Buds"))
}

func TestConnectSystem_EmptyAddress(t *testing.T) {
	orch := newTestOrchestrator(t, newFakeSystem(), &testutils.FakeConnector{}, newFakeStore())
	err := orch.ConnectSystem(context.Background(), "", "Buds")
	assert.True(t, bterr.IsValidation(err))
}

func TestDisconnectSystem_Settles(t *testing.T) {
	sys := newFakeSystem()
	orch := newTestOrchestrator(t, sys, &testutils.FakeConnector{}, newFakeStore())

	require.NoError(t, orch.DisconnectSystem(context.Background(), "AA:BB"))
	assert.Equal(t, []string{"disconnect AA:BB", "settle AA:BB want=false"}, sys.Journal())
}

func TestEnsureGattSession_EmptyTarget(t *testing.T) {
	orch := newTestOrchestrator(t, newFakeSystem(), &testutils.FakeConnector{}, newFakeStore())

	sess, err := orch.EnsureGattSession(context.Background(), SessionRequest{})

	assert.Nil(t, sess)
	assert.ErrorIs(t, err, bterr.ErrNoBLEAddress)
	assert.True(t, bterr.IsValidation(err))
}

func TestEnsureGattSession_DisconnectsBeforeDial(t *testing.T) {
	sys := newFakeSystem()
	sys.connected["AA:BB"] = true
	conn := &testutils.FakeConnector{Sessions: map[string]*testutils.FakeSession{
		"11:22": testutils.NewFakeSession("11:22"),
	}}
	orch := newTestOrchestrator(t, sys, conn, newFakeStore())

	sess, err := orch.EnsureGattSession(context.Background(), SessionRequest{
		TargetAddress:   "11:22",
		SystemAddress:   "AA:BB",
		Name:            "Buds",
		SystemConnected: true,
	})

	require.NoError(t, err)
	require.NotNil(t, sess)
	// Classic teardown and settle come strictly before the dial.
	assert.Equal(t, []string{"disconnect AA:BB", "settle AA:BB want=false"}, sys.Journal())
	assert.Equal(t, []string{"11:22"}, conn.Connects())
}

func TestEnsureGattSession_NoDisconnectWhenSystemDown(t *testing.T) {
	sys := newFakeSystem()
	conn := &testutils.FakeConnector{Sessions: map[string]*testutils.FakeSession{
		"11:22": testutils.NewFakeSession("11:22"),
	}}
	orch := newTestOrchestrator(t, sys, conn, newFakeStore())

	_, err := orch.EnsureGattSession(context.Background(), SessionRequest{TargetAddress: "11:22"})

	require.NoError(t, err)
	assert.Empty(t, sys.Journal())
}

func TestEnsureGattSession_ReusesLiveSession(t *testing.T) {
	conn := &testutils.FakeConnector{Sessions: map[string]*testutils.FakeSession{
		"11:22": testutils.NewFakeSession("11:22"),
	}}
	orch := newTestOrchestrator(t, newFakeSystem(), conn, newFakeStore())

	first, err := orch.EnsureGattSession(context.Background(), SessionRequest{TargetAddress: "11:22"})
	require.NoError(t, err)
	second, err := orch.EnsureGattSession(context.Background(), SessionRequest{TargetAddress: "11:22"})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, []string{"11:22"}, conn.Connects(), "live session must not be re-dialed")
}

func TestEnsureGattSession_RedialsDeadSession(t *testing.T) {
	fake := testutils.NewFakeSession("11:22")
	conn := &testutils.FakeConnector{Sessions: map[string]*testutils.FakeSession{"11:22": fake}}
	orch := newTestOrchestrator(t, newFakeSystem(), conn, newFakeStore())

	_, err := orch.EnsureGattSession(context.Background(), SessionRequest{TargetAddress: "11:22"})
	require.NoError(t, err)

	// Link drops out from under the registry.
	require.NoError(t, fake.Close())

	_, err = orch.EnsureGattSession(context.Background(), SessionRequest{TargetAddress: "11:22"})
	require.NoError(t, err)
	assert.Equal(t, []string{"11:22", "11:22"}, conn.Connects())
}

func TestEnsureGattSession_ConnectTimeout(t *testing.T) {
	conn := &testutils.FakeConnector{Err: bterr.ErrTimeout}
	orch := newTestOrchestrator(t, newFakeSystem(), conn, newFakeStore())

	sess, err := orch.EnsureGattSession(context.Background(), SessionRequest{TargetAddress: "11:22"})

	assert.Nil(t, sess)
	assert.True(t, bterr.IsTimeout(err))
	assert.Equal(t, 0, orch.Sessions().Len())
}

func TestCloseGattSession(t *testing.T) {
	fake := testutils.NewFakeSession("11:22")
	conn := &testutils.FakeConnector{Sessions: map[string]*testutils.FakeSession{"11:22": fake}}
	orch := newTestOrchestrator(t, newFakeSystem(), conn, newFakeStore())

	_, err := orch.EnsureGattSession(context.Background(), SessionRequest{TargetAddress: "11:22"})
	require.NoError(t, err)
	require.Equal(t, 1, orch.Sessions().Len())

	require.NoError(t, orch.CloseGattSession("11:22"))
	assert.Equal(t, 0, orch.Sessions().Len())
	assert.False(t, fake.Alive())

	// Closing again is a no-op.
	assert.NoError(t, orch.CloseGattSession("11:22"))
}

func TestCloseAll(t *testing.T) {
	conn := &testutils.FakeConnector{Sessions: map[string]*testutils.FakeSession{
		"11:22": testutils.NewFakeSession("11:22"),
		"33:44": testutils.NewFakeSession("33:44"),
	}}
	orch := newTestOrchestrator(t, newFakeSystem(), conn, newFakeStore())

	for _, addr := range []string{"11:22", "33:44"} {
		_, err := orch.EnsureGattSession(context.Background(), SessionRequest{TargetAddress: addr})
		require.NoError(t, err)
	}
	require.Equal(t, 2, orch.Sessions().Len())

	require.NoError(t, orch.CloseAll())
	assert.Equal(t, 0, orch.Sessions().Len())
}

func TestSessionRegistry(t *testing.T) {
	reg := NewSessionRegistry()
	sess := testutils.NewFakeSession("11:22")

	_, ok := reg.Get("11:22")
	assert.False(t, ok)

	reg.Put("11:22", sess)
	got, ok := reg.Get("11:22")
	assert.True(t, ok)
	assert.Same(t, sess, got)

	removed, ok := reg.Remove("11:22")
	assert.True(t, ok)
	assert.Same(t, sess, removed)
	assert.Equal(t, 0, reg.Len())

	_, ok = reg.Remove("11:22")
	assert.False(t, ok)
}
