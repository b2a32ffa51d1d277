package scan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btctl/internal/testutils"
)

type fakeAdvertisement struct {
	addr string
	name string
	rssi int
}

func (a fakeAdvertisement) Addr() string      { return a.addr }
func (a fakeAdvertisement) LocalName() string { return a.name }
func (a fakeAdvertisement) RSSI() int         { return a.rssi }

// fakeScanningDevice replays a fixed advertisement sequence.
type fakeScanningDevice struct {
	advs []fakeAdvertisement
}

func (d *fakeScanningDevice) Scan(_ context.Context, _ bool, handler func(Advertisement)) error {
	for _, adv := range d.advs {
		handler(adv)
	}
	return context.DeadlineExceeded
}

func withFakeDevice(t *testing.T, advs []fakeAdvertisement) {
	original := DeviceFactory
	DeviceFactory = func() (ScanningDevice, error) {
		return &fakeScanningDevice{advs: advs}, nil
	}
	t.Cleanup(func() { DeviceFactory = original })
}

func TestScanner_Scan(t *testing.T) {
	helper := testutils.NewTestHelper(t)

	withFakeDevice(t, []fakeAdvertisement{
		{addr: "11:22", name: "Buds", rssi: -50},
		{addr: "33:44", name: "Buds", rssi: -55},
		{addr: "55:66", name: "", rssi: -60},
		{addr: "11:22", name: "Buds", rssi: -48}, // repeat refreshes RSSI only
		{addr: "77:88", name: "Weak", rssi: -80}, // below the floor
	})

	scanner := NewScanner(helper.Logger)
	sightings, err := scanner.Scan(context.Background(), &Options{Duration: 50 * time.Millisecond, MinRSSI: -70})

	require.NoError(t, err)
	require.Len(t, sightings, 3)

	// First-seen order, duplicates folded
	assert.Equal(t, Sighting{Address: "11:22", Name: "Buds", RSSI: -48}, sightings[0])
	assert.Equal(t, Sighting{Address: "33:44", Name: "Buds", RSSI: -55}, sightings[1])
	assert.Equal(t, Sighting{Address: "55:66", Name: "Unknown BLE Device", RSSI: -60}, sightings[2])
}

func TestScanner_Scan_DeterministicOrder(t *testing.T) {
	helper := testutils.NewTestHelper(t)

	advs := []fakeAdvertisement{
		{addr: "aa", name: "One", rssi: -40},
		{addr: "bb", name: "Two", rssi: -41},
		{addr: "cc", name: "Three", rssi: -42},
	}
	withFakeDevice(t, advs)
	scanner := NewScanner(helper.Logger)

	first, err := scanner.Scan(context.Background(), DefaultOptions())
	require.NoError(t, err)
	second, err := scanner.Scan(context.Background(), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestScanner_LateNameFillsUnknown(t *testing.T) {
	helper := testutils.NewTestHelper(t)

	withFakeDevice(t, []fakeAdvertisement{
		{addr: "11:22", name: "", rssi: -50},
		{addr: "11:22", name: "Buds", rssi: -49},
	})

	scanner := NewScanner(helper.Logger)
	sightings, err := scanner.Scan(context.Background(), DefaultOptions())

	require.NoError(t, err)
	require.Len(t, sightings, 1)
	assert.Equal(t, "Buds", sightings[0].Name)
}

func TestScanner_DrainEvents(t *testing.T) {
	helper := testutils.NewTestHelper(t)

	withFakeDevice(t, []fakeAdvertisement{
		{addr: "11:22", name: "Buds", rssi: -50},
		{addr: "11:22", name: "Buds", rssi: -45}, // update, no new event
		{addr: "33:44", name: "Case", rssi: -52},
	})

	scanner := NewScanner(helper.Logger)
	_, err := scanner.Scan(context.Background(), DefaultOptions())
	require.NoError(t, err)

	events := scanner.DrainEvents()
	require.Len(t, events, 2)
	assert.Equal(t, "11:22", events[0].Address)
	assert.Equal(t, "33:44", events[1].Address)

	// Drained means empty
	assert.Empty(t, scanner.DrainEvents())
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.Equal(t, 5*time.Second, opts.Duration)
	assert.Equal(t, -70, opts.MinRSSI)
}
