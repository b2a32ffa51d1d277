package gatt

import (
	"fmt"
	"strconv"

	"btctl/internal/bledb"
	"btctl/internal/bterr"
)

// RefKind discriminates the two ways callers can name a characteristic.
type RefKind int

const (
	// RefHandle addresses a characteristic by its ATT value handle.
	RefHandle RefKind = iota
	// RefUUID addresses a characteristic by UUID.
	RefUUID
)

// AttributeRef is a parsed characteristic identifier. It is constructed once
// at the input boundary; everything downstream switches on Kind instead of
// re-inspecting the raw string.
type AttributeRef struct {
	Kind   RefKind
	Handle uint16
	UUID   string // normalized, set when Kind == RefUUID
	raw    string
}

func (r AttributeRef) String() string {
	if r.Kind == RefHandle {
		return fmt.Sprintf("handle %d", r.Handle)
	}
	return "uuid " + r.UUID
}

// Raw returns the identifier exactly as the caller supplied it.
func (r AttributeRef) Raw() string { return r.raw }

// ParseAttributeRef classifies an identifier string. A string of decimal
// digits is a handle; anything else is treated as a UUID and normalized.
func ParseAttributeRef(s string) (AttributeRef, error) {
	if s == "" {
		return AttributeRef{}, &bterr.ValidationError{Field: "characteristic", Msg: "identifier is empty"}
	}
	if isDecimal(s) {
		h, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return AttributeRef{}, &bterr.ValidationError{
				Field: "characteristic",
				Msg:   fmt.Sprintf("handle %q out of range", s),
			}
		}
		return AttributeRef{Kind: RefHandle, Handle: uint16(h), raw: s}, nil
	}

	uuid := bledb.NormalizeUUID(s)
	if !isHex(uuid) {
		return AttributeRef{}, &bterr.ValidationError{
			Field: "characteristic",
			Msg:   fmt.Sprintf("%q is neither a handle nor a UUID", s),
		}
	}
	return AttributeRef{Kind: RefUUID, UUID: uuid, raw: s}, nil
}

func isDecimal(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

func isHex(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
