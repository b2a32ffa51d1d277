package gatt

import "encoding/hex"

// Value is the payload read from a characteristic.
type Value struct {
	Bytes []byte
}

// Hex returns the lowercase hex encoding of the payload, "" for empty.
func (v Value) Hex() string {
	return hex.EncodeToString(v.Bytes)
}

// Uints returns the payload as a list of byte values. The slice is never
// nil so JSON output stays an array.
func (v Value) Uints() []uint {
	out := make([]uint, len(v.Bytes))
	for i, b := range v.Bytes {
		out[i] = uint(b)
	}
	return out
}
