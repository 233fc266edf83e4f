//go:build !rp2040

// Package testutil holds fakes shared by the HAL device tests.
package testutil

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"picodemo/services/hal/internal/core"
	"picodemo/services/hal/internal/provider"
	"picodemo/setups"
)

// Emitter records every event a device emits.
type Emitter struct {
	mu  sync.Mutex
	evs []core.Event
	ch  chan core.Event
}

func NewEmitter() *Emitter { return &Emitter{ch: make(chan core.Event, 256)} }

func (e *Emitter) Emit(ev core.Event) bool {
	e.mu.Lock()
	e.evs = append(e.evs, ev)
	e.mu.Unlock()
	select {
	case e.ch <- ev:
		return true
	default:
		return false
	}
}

// Events returns a snapshot of everything emitted so far.
func (e *Emitter) Events() []core.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]core.Event(nil), e.evs...)
}

// Next waits for the next event matching pred.
func (e *Emitter) Next(t *testing.T, d time.Duration, pred func(core.Event) bool) core.Event {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case ev := <-e.ch:
			if pred == nil || pred(ev) {
				return ev
			}
		case <-deadline:
			t.Fatalf("no matching event within %v", d)
			return core.Event{}
		}
	}
}

// Env is a host-backed HAL environment for one device test.
type Env struct {
	Res core.Resources
	Reg *provider.Registry
	HW  provider.Hardware
	Em  *Emitter
	Out *Output // serial console sink
}

// NewEnv returns a host registry for the demo plan plus the emitter the
// device under test publishes to.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	out := &Output{}
	plan := setups.PicoDemo.Plan
	hw := provider.HostHardware(plan, out)
	reg := provider.NewRegistry(plan, hw)
	t.Cleanup(reg.Close)
	em := NewEmitter()
	return &Env{Res: core.Resources{Reg: reg, Pub: em}, Reg: reg, HW: hw, Em: em, Out: out}
}

// Output is a goroutine-safe console sink.
type Output struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (o *Output) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.b.Write(p)
}

func (o *Output) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.b.String()
}
