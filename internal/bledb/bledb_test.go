package bledb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "16-bit short form",
			input:    "180f",
			expected: "180f",
		},
		{
			name:     "uppercase short form",
			input:    "180F",
			expected: "180f",
		},
		{
			name:     "16-bit with 0x prefix",
			input:    "0x2a19",
			expected: "2a19",
		},
		{
			name:     "full SIG UUID with dashes",
			input:    "0000180f-0000-1000-8000-00805f9b34fb",
			expected: "180f",
		},
		{
			name:     "full SIG UUID without dashes",
			input:    "0000180f00001000800000805f9b34fb",
			expected: "180f",
		},
		{
			name:     "custom 128-bit UUID keeps full form",
			input:    "6e400001-b5a3-f393-e0a9-e50e24dcca9e",
			expected: "6e400001b5a3f393e0a9e50e24dcca9e",
		},
		{
			name:     "UUID with braces",
			input:    "{0000180f-0000-1000-8000-00805f9b34fb}",
			expected: "180f",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeUUID(tt.input))
		})
	}
}

func TestLookups(t *testing.T) {
	assert.Equal(t, "Battery Service", LookupService("180f"))
	assert.Equal(t, "Battery Service", LookupService("0000180f-0000-1000-8000-00805f9b34fb"))
	assert.Equal(t, "Battery Level", LookupCharacteristic("0x2A19"))
	assert.Empty(t, LookupService("6e400001-b5a3-f393-e0a9-e50e24dcca9e"))
}
