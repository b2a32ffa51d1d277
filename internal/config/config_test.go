package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, 5*time.Second, cfg.ScanDuration)
	assert.Equal(t, -70, cfg.MinRSSI)
	assert.Equal(t, 2*time.Second, cfg.StabilizeTimeout)
	assert.Equal(t, 2*time.Second, cfg.SettleTimeout)
	assert.Equal(t, 200*time.Millisecond, cfg.SettlePollInterval)
	assert.Equal(t, 15*time.Second, cfg.GattConnectTimeout)
	assert.Equal(t, 10*time.Second, cfg.BatteryConnectTimeout)
	assert.Equal(t, 10*time.Second, cfg.ExecTimeout)
	assert.Equal(t, 4, cfg.ExecWorkers)
	assert.Equal(t, "bluetooth_devices.json", cfg.KnownDevicesPath)
}

func TestLoadConfig(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))

		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "btctl.yaml")
		require.NoError(t, os.WriteFile(path, []byte(
			"scan_duration: 11s\nmin_rssi: -90\nexec_workers: 2\n"), 0o644))

		cfg, err := LoadConfig(path)

		require.NoError(t, err)
		assert.Equal(t, 11*time.Second, cfg.ScanDuration)
		assert.Equal(t, -90, cfg.MinRSSI)
		assert.Equal(t, 2, cfg.ExecWorkers)
		// untouched fields keep their defaults
		assert.Equal(t, 15*time.Second, cfg.GattConnectTimeout)
	})

	t.Run("malformed file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "btctl.yaml")
		require.NoError(t, os.WriteFile(path, []byte("scan_duration: ["), 0o644))

		_, err := LoadConfig(path)
		assert.Error(t, err)
	})
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		expected logrus.Level
	}{
		{
			name:     "creates logger with debug level",
			logLevel: "debug",
			expected: logrus.DebugLevel,
		},
		{
			name:     "creates logger with info level",
			logLevel: "info",
			expected: logrus.InfoLevel,
		},
		{
			name:     "invalid level falls back to panic",
			logLevel: "chatty",
			expected: logrus.PanicLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}

			logger := cfg.NewLogger()

			assert.NotNil(t, logger)
			assert.Equal(t, tt.expected, logger.GetLevel())

			// Verify formatter is set correctly
			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}
