package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressPrinter_StopIsIdempotent(t *testing.T) {
	p := NewProgressPrinter("working", "connecting")
	p.Start()

	assert.NotPanics(t, func() {
		p.Stop()
		p.Stop()
	})
}

func TestProgressPrinter_DoubleStartPanics(t *testing.T) {
	p := NewProgressPrinter("working", "connecting")
	p.Start()
	defer p.Stop()

	assert.Panics(t, func() {
		p.Start()
	})
}

func TestProgressPrinter_StopPhaseStopsPrinter(t *testing.T) {
	p := NewProgressPrinter("working", "connecting", "done")
	p.Start()

	callback := p.Callback()
	callback("done")

	// A stopped printer tolerates another Stop.
	assert.NotPanics(t, func() {
		p.Stop()
	})
}

func TestCountdownProgressPrinter(t *testing.T) {
	p := NewCountdownProgressPrinter("scanning", "scanning", 5*time.Second)
	p.Start()
	time.Sleep(150 * time.Millisecond)
	p.Stop()
}
