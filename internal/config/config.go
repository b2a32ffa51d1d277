// Package config holds application configuration. Every stabilization delay
// and transport timeout is an explicit field here rather than a constant
// buried in the orchestration code.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	// BLE scan
	ScanDuration time.Duration `yaml:"scan_duration" default:"5s"`
	MinRSSI      int           `yaml:"min_rssi" default:"-70"`

	// Classic-link settling. After a system connect/disconnect the host does
	// not make the link state synchronously observable; we poll up to the
	// timeout instead of sleeping blindly.
	StabilizeTimeout   time.Duration `yaml:"stabilize_timeout" default:"2s"`
	SettleTimeout      time.Duration `yaml:"settle_timeout" default:"2s"`
	SettlePollInterval time.Duration `yaml:"settle_poll_interval" default:"200ms"`

	// GATT transport
	GattConnectTimeout    time.Duration `yaml:"gatt_connect_timeout" default:"15s"`
	BatteryConnectTimeout time.Duration `yaml:"battery_connect_timeout" default:"10s"`
	ReadTimeout           time.Duration `yaml:"read_timeout" default:"5s"`

	// OS-utility dispatch
	ExecTimeout time.Duration `yaml:"exec_timeout" default:"10s"`
	ExecWorkers int           `yaml:"exec_workers" default:"4"`

	// Persistence side channel (address -> name map)
	KnownDevicesPath string `yaml:"known_devices_path" default:"bluetooth_devices.json"`

	LogLevel string `yaml:"log_level" default:"panic"`
}

// DefaultConfig returns configuration populated from the struct defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// LoadConfig reads a YAML config file on top of the defaults. A missing file
// is not an error; unknown keys are.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %q: %w", path, err)
	}
	return cfg, nil
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.PanicLevel
	}
	logger.SetLevel(level)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
