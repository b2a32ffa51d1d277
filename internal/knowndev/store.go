// Package knowndev persists the address-to-name map of devices that were
// successfully connected at least once. The file is plain JSON so it stays
// hand-editable.
package knowndev

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// Store is a write-through map of device address to display name backed by a
// JSON file. A missing or corrupt file is treated as an empty map; the store
// never blocks an operation over persistence problems.
type Store struct {
	path   string
	logger *logrus.Logger

	mu sync.Mutex
}

func NewStore(path string, logger *logrus.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Load reads the current map from disk.
func (s *Store) Load() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() map[string]string {
	devices := make(map[string]string)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WithError(err).WithField("path", s.path).Warn("Failed to read known devices file")
		}
		return devices
	}
	if err := json.Unmarshal(data, &devices); err != nil {
		s.logger.WithError(err).WithField("path", s.path).Warn("Known devices file is corrupt, starting empty")
		return make(map[string]string)
	}
	return devices
}

// Put records a device and writes the file through. Unchanged entries skip
// the write.
func (s *Store) Put(address, name string) error {
	if address == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	devices := s.load()
	if devices[address] == name {
		return nil
	}
	devices[address] = name
	return s.save(devices)
}

// Forget drops a device from the file.
func (s *Store) Forget(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices := s.load()
	if _, ok := devices[address]; !ok {
		return nil
	}
	delete(devices, address)
	return s.save(devices)
}

func (s *Store) save(devices map[string]string) error {
	data, err := json.MarshalIndent(devices, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode known devices: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create known devices directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write known devices file: %w", err)
	}
	return nil
}
