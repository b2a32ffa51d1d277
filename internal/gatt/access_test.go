package gatt_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btctl/internal/bterr"
	"btctl/internal/gatt"
	"btctl/internal/testutils"
)

func newBatterySession() (*testutils.FakeSession, *testutils.FakeCharacteristic) {
	level := &testutils.FakeCharacteristic{
		CharUUID:   "2a19",
		CharHandle: 14,
		Props:      "read,notify",
		Value:      []byte{0x5f},
	}
	sess := testutils.NewFakeSession("11:22",
		&testutils.FakeService{SvcUUID: "180f", Chars: []*testutils.FakeCharacteristic{level}})
	return sess, level
}

func mustRef(t *testing.T, s string) gatt.AttributeRef {
	t.Helper()
	ref, err := gatt.ParseAttributeRef(s)
	require.NoError(t, err)
	return ref
}

func TestAccess_ReadByUUID(t *testing.T) {
	helper := testutils.NewTestHelper(t)
	access := gatt.NewAccess(helper.Logger, time.Second)
	sess, _ := newBatterySession()

	val, err := access.Read(context.Background(), sess, mustRef(t, "2a19"))

	require.NoError(t, err)
	assert.Equal(t, "5f", val.Hex())
	assert.Equal(t, []uint{95}, val.Uints())
}

func TestAccess_ReadByHandle(t *testing.T) {
	helper := testutils.NewTestHelper(t)
	access := gatt.NewAccess(helper.Logger, time.Second)
	sess, _ := newBatterySession()

	val, err := access.Read(context.Background(), sess, mustRef(t, "14"))

	require.NoError(t, err)
	assert.Equal(t, []byte{0x5f}, val.Bytes)
}

func TestAccess_ReadUnknownCharacteristic(t *testing.T) {
	helper := testutils.NewTestHelper(t)
	access := gatt.NewAccess(helper.Logger, time.Second)
	sess, _ := newBatterySession()

	_, err := access.Read(context.Background(), sess, mustRef(t, "2a37"))
	assert.ErrorIs(t, err, bterr.ErrNotFound)

	_, err = access.Read(context.Background(), sess, mustRef(t, "99"))
	assert.ErrorIs(t, err, bterr.ErrNotFound)
}

func TestAccess_ReadClosedSession(t *testing.T) {
	helper := testutils.NewTestHelper(t)
	access := gatt.NewAccess(helper.Logger, time.Second)
	sess, _ := newBatterySession()
	require.NoError(t, sess.Close())

	_, err := access.Read(context.Background(), sess, mustRef(t, "2a19"))
	assert.ErrorIs(t, err, bterr.ErrSessionClosed)
}

func TestAccess_ReadDeviceRejection(t *testing.T) {
	helper := testutils.NewTestHelper(t)
	access := gatt.NewAccess(helper.Logger, time.Second)
	sess, level := newBatterySession()
	level.ReadErr = &bterr.RejectedError{Op: "read", Reason: "read not permitted"}

	_, err := access.Read(context.Background(), sess, mustRef(t, "2a19"))
	assert.True(t, bterr.IsRejected(err))
}

func TestAccess_Write(t *testing.T) {
	helper := testutils.NewTestHelper(t)
	access := gatt.NewAccess(helper.Logger, time.Second)

	ctrl := &testutils.FakeCharacteristic{CharUUID: "2b7d", CharHandle: 20, Props: "read,write"}
	sess := testutils.NewFakeSession("11:22",
		&testutils.FakeService{SvcUUID: "1844", Chars: []*testutils.FakeCharacteristic{ctrl}})

	err := access.Write(context.Background(), sess, mustRef(t, "2b7d"), []byte{0x01, 0x02}, false)
	require.NoError(t, err)

	data, noResp := ctrl.LastWrite()
	assert.Equal(t, []byte{0x01, 0x02}, data)
	assert.False(t, noResp)
}

func TestAccess_WriteReadRoundTrip(t *testing.T) {
	helper := testutils.NewTestHelper(t)
	access := gatt.NewAccess(helper.Logger, time.Second)

	ctrl := &testutils.FakeCharacteristic{CharUUID: "2b7d", CharHandle: 20, Props: "read,write", Echo: true}
	sess := testutils.NewFakeSession("11:22",
		&testutils.FakeService{SvcUUID: "1844", Chars: []*testutils.FakeCharacteristic{ctrl}})

	require.NoError(t, access.Write(context.Background(), sess, mustRef(t, "2b7d"), []byte{0x64}, false))

	val, err := access.Read(context.Background(), sess, mustRef(t, "20"))
	require.NoError(t, err)
	assert.Equal(t, "64", val.Hex())
	assert.Equal(t, []uint{100}, val.Uints())
}

func TestAccess_WriteEmptyPayload(t *testing.T) {
	helper := testutils.NewTestHelper(t)
	access := gatt.NewAccess(helper.Logger, time.Second)
	sess, _ := newBatterySession()

	err := access.Write(context.Background(), sess, mustRef(t, "2a19"), nil, false)
	assert.True(t, bterr.IsValidation(err))
}

func TestAccess_ReadTimeout(t *testing.T) {
	helper := testutils.NewTestHelper(t)
	access := gatt.NewAccess(helper.Logger, 20*time.Millisecond)

	slow := &slowCharacteristic{
		FakeCharacteristic: testutils.FakeCharacteristic{CharUUID: "2a19", CharHandle: 14, Props: "read"},
		delay:              200 * time.Millisecond,
	}
	sess := &slowSession{FakeSession: *testutils.NewFakeSession("11:22"), char: slow}

	_, err := access.Read(context.Background(), sess, mustRef(t, "2a19"))
	assert.True(t, bterr.IsTimeout(err))
}

type slowCharacteristic struct {
	testutils.FakeCharacteristic
	delay time.Duration
}

func (c *slowCharacteristic) Read() ([]byte, error) {
	time.Sleep(c.delay)
	return nil, errors.New("too late")
}

type slowSession struct {
	testutils.FakeSession
	char *slowCharacteristic
}

func (s *slowSession) FindByUUID(uuid string) (gatt.Characteristic, bool) {
	if s.char.UUID() == uuid {
		return s.char, true
	}
	return nil, false
}
