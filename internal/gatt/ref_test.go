package gatt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btctl/internal/bterr"
	"btctl/internal/gatt"
)

func TestParseAttributeRef(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantKind   gatt.RefKind
		wantHandle uint16
		wantUUID   string
		wantErr    bool
	}{
		{
			name:       "decimal digits are a handle",
			input:      "42",
			wantKind:   gatt.RefHandle,
			wantHandle: 42,
		},
		{
			name:       "handle zero",
			input:      "0",
			wantKind:   gatt.RefHandle,
			wantHandle: 0,
		},
		{
			name:       "max handle",
			input:      "65535",
			wantKind:   gatt.RefHandle,
			wantHandle: 65535,
		},
		{
			name:    "handle out of range",
			input:   "65536",
			wantErr: true,
		},
		{
			name:     "short UUID",
			input:    "2a19",
			wantKind: gatt.RefUUID,
			wantUUID: "2a19",
		},
		{
			name:     "uppercase UUID normalized",
			input:    "2A19",
			wantKind: gatt.RefUUID,
			wantUUID: "2a19",
		},
		{
			name:     "0x prefix stripped",
			input:    "0x2a19",
			wantKind: gatt.RefUUID,
			wantUUID: "2a19",
		},
		{
			name:     "full SIG UUID shortened",
			input:    "00002a19-0000-1000-8000-00805f9b34fb",
			wantKind: gatt.RefUUID,
			wantUUID: "2a19",
		},
		{
			name:     "custom 128-bit UUID",
			input:    "6e400002-b5a3-f393-e0a9-e50e24dcca9e",
			wantKind: gatt.RefUUID,
			wantUUID: "6e400002b5a3f393e0a9e50e24dcca9e",
		},
		{
			name:    "empty identifier",
			input:   "",
			wantErr: true,
		},
		{
			name:    "garbage identifier",
			input:   "not-a-uuid!",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := gatt.ParseAttributeRef(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, bterr.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, ref.Kind)
			assert.Equal(t, tt.wantHandle, ref.Handle)
			assert.Equal(t, tt.wantUUID, ref.UUID)
			assert.Equal(t, tt.input, ref.Raw())
		})
	}
}

func TestValue(t *testing.T) {
	v := gatt.Value{Bytes: []byte{0x64, 0x00, 0xff}}
	assert.Equal(t, "6400ff", v.Hex())
	assert.Equal(t, []uint{100, 0, 255}, v.Uints())

	empty := gatt.Value{}
	assert.Equal(t, "", empty.Hex())
	assert.NotNil(t, empty.Uints())
	assert.Len(t, empty.Uints(), 0)
}
