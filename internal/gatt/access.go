package gatt

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"btctl/internal/bterr"
)

// Access performs reads and writes against an open session, resolving
// attribute references and bounding each operation with a timeout.
type Access struct {
	logger      *logrus.Logger
	readTimeout time.Duration
}

func NewAccess(logger *logrus.Logger, readTimeout time.Duration) *Access {
	if readTimeout <= 0 {
		readTimeout = 5 * time.Second
	}
	return &Access{logger: logger, readTimeout: readTimeout}
}

// Resolve finds the characteristic an AttributeRef points at.
func (a *Access) Resolve(session Session, ref AttributeRef) (Characteristic, error) {
	if session == nil || !session.Alive() {
		return nil, fmt.Errorf("resolve %s: %w", ref, bterr.ErrSessionClosed)
	}

	var (
		char Characteristic
		ok   bool
	)
	if ref.Kind == RefHandle {
		char, ok = session.FindByHandle(ref.Handle)
	} else {
		char, ok = session.FindByUUID(ref.UUID)
	}
	if !ok {
		return nil, fmt.Errorf("characteristic %s: %w", ref, bterr.ErrNotFound)
	}
	return char, nil
}

// Read resolves ref and reads its current value.
func (a *Access) Read(ctx context.Context, session Session, ref AttributeRef) (Value, error) {
	char, err := a.Resolve(session, ref)
	if err != nil {
		return Value{}, err
	}

	a.logger.WithFields(logrus.Fields{
		"address": session.Address(),
		"ref":     ref.String(),
		"uuid":    char.UUID(),
	}).Debug("Reading characteristic")

	data, err := a.bounded(ctx, func() ([]byte, error) { return char.Read() })
	if err != nil {
		return Value{}, fmt.Errorf("read %s: %w", ref, err)
	}
	return Value{Bytes: data}, nil
}

// Write resolves ref and writes data to it.
func (a *Access) Write(ctx context.Context, session Session, ref AttributeRef, data []byte, noResponse bool) error {
	if len(data) == 0 {
		return &bterr.ValidationError{Field: "data", Msg: "write payload is empty"}
	}
	char, err := a.Resolve(session, ref)
	if err != nil {
		return err
	}

	a.logger.WithFields(logrus.Fields{
		"address": session.Address(),
		"ref":     ref.String(),
		"uuid":    char.UUID(),
		"bytes":   len(data),
	}).Debug("Writing characteristic")

	_, err = a.bounded(ctx, func() ([]byte, error) {
		return nil, char.Write(data, noResponse)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", ref, err)
	}
	return nil
}

// bounded runs op on its own goroutine and gives up after the read timeout.
// The go-ble client calls are not context aware, so an abandoned op may
// linger until the session closes; the session owner reaps it on Close.
func (a *Access) bounded(ctx context.Context, op func() ([]byte, error)) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}

	ctx, cancel := context.WithTimeout(ctx, a.readTimeout)
	defer cancel()

	ch := make(chan result, 1)
	go func() {
		data, err := op()
		ch <- result{data, err}
	}()

	select {
	case res := <-ch:
		return res.data, res.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, bterr.ErrTimeout
		}
		return nil, ctx.Err()
	}
}
