package testutils

import (
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
	Hook   *CaptureHook
}

// NewTestHelper creates a helper whose logger records entries instead of
// printing them. Entries stay inspectable through the Hook.
func NewTestHelper(t *testing.T) *TestHelper {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)
	hook := &CaptureHook{}
	logger.AddHook(hook)
	return &TestHelper{
		T:      t,
		Logger: logger,
		Hook:   hook,
	}
}

// CaptureHook records every log entry emitted through the helper's logger.
type CaptureHook struct {
	entries []logrus.Entry
}

func (h *CaptureHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *CaptureHook) Fire(entry *logrus.Entry) error {
	h.entries = append(h.entries, *entry)
	return nil
}

// HasMessage reports whether any recorded entry contains the given substring.
func (h *CaptureHook) HasMessage(sub string) bool {
	for _, e := range h.entries {
		if strings.Contains(strings.ToLower(e.Message), strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

func (h *CaptureHook) Reset() {
	h.entries = nil
}
