package main

import (
	"errors"

	"btctl/internal/bterr"
)

// FormatUserError turns an internal error into a message suitable for the
// terminal. The taxonomy cases get a plain-language rendering; anything else
// passes through unchanged.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, bterr.ErrNoBLEAddress):
		return "device has no BLE address - run 'btctl devices' to refresh its identity, or pass the BLE address directly"
	case bterr.IsValidation(err):
		return err.Error()
	case bterr.IsTimeout(err):
		return "operation timed out - device may be out of range, powered off, or busy on another transport"
	case bterr.IsRejected(err):
		return err.Error() + " (the device refused the operation; pairing or encryption may be required)"
	case errors.Is(err, bterr.ErrNotFound):
		return err.Error()
	case errors.Is(err, bterr.ErrSessionClosed):
		return "no open session for the device - it may have disconnected"
	default:
		return err.Error()
	}
}
