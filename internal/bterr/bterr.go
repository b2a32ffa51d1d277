// Package bterr defines the error taxonomy shared across the Bluetooth
// transports: validation failures, transport timeouts, device rejections and
// host-lookup misses. Nothing here is fatal to the process; callers degrade
// to zero values and decide their own retry policy.
package bterr

import (
	"context"
	"errors"
	"fmt"
)

// ValidationError indicates a caller error (missing address, empty UUID).
// It is never retried.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// Is allows errors.Is comparison against the ErrNoBLEAddress sentinel by Field.
func (e *ValidationError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return e.Field == t.Field
}

// ErrNoBLEAddress is returned when an operation needs a BLE address and the
// device record does not carry one. This is a validation failure, not a
// transport failure, and callers can distinguish it with errors.Is.
var ErrNoBLEAddress = &ValidationError{Field: "ble_address", Msg: "no BLE address available"}

// RejectedError indicates the device answered with an explicit GATT error
// (read/write refused). Surfaced as-is, not retried.
type RejectedError struct {
	Op     string // "read" or "write"
	Reason string
}

func (e *RejectedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("attribute rejected %s: %s", e.Op, e.Reason)
}

// Operation errors
var (
	// ErrTimeout marks a connect/read/write that exceeded its bound.
	// Retryable by the caller, never retried here.
	ErrTimeout = errors.New("timeout")

	// ErrUnsupported marks a characteristic that lacks the requested property.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrNotFound marks a best-effort lookup miss (host battery table,
	// service or characteristic search). Expected, drives fallbacks.
	ErrNotFound = errors.New("not found")

	// ErrSessionClosed marks an operation against a session that is not open.
	ErrSessionClosed = errors.New("session not open")
)

// IsTimeout reports whether err is a transport timeout, including context
// deadline expiry surfaced by the underlying BLE stack.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// IsRejected reports whether err is an explicit device rejection.
func IsRejected(err error) bool {
	var rerr *RejectedError
	return errors.As(err, &rerr)
}

// IsValidation reports whether err is a caller error rather than a transport
// failure.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
