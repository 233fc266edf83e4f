//go:build !rp2040

package provider

import (
	"context"
	"io"
	"os"
	"sync"

	"tinygo.org/x/drivers"

	"picodemo/services/hal/internal/core"
	"picodemo/setups"
)

// NewResources builds in-memory stand-ins for every planned bus so the
// firmware runs unchanged on a development machine. The serial console is
// mirrored to stdout.
func NewResources(plan setups.ResourcePlan) (core.Resources, *Registry) {
	reg := NewRegistry(plan, HostHardware(plan, os.Stdout))
	return core.Resources{Reg: reg}, reg
}

// HostHardware returns fakes for plan: I2C buses acknowledge every
// transaction, SPI buses swallow writes and UART output goes to out.
func HostHardware(plan setups.ResourcePlan, out io.Writer) Hardware {
	hw := Hardware{
		I2C:    map[string]drivers.I2C{},
		SPI:    map[string]drivers.SPI{},
		Serial: map[string]core.SerialPort{},
		GPIO:   func(n int) core.GPIOHandle { return &FakePin{N: n} },
	}
	for _, p := range plan.I2C {
		hw.I2C[p.ID] = &FakeI2C{}
	}
	for _, p := range plan.SPI {
		hw.SPI[p.ID] = &FakeSPI{}
	}
	for _, p := range plan.UART {
		hw.Serial[p.ID] = &FakeSerial{W: out}
	}
	return hw
}

// FakePin is a GPIO that remembers its level.
type FakePin struct {
	mu    sync.Mutex
	N     int
	level bool
	out   bool
	sets  int
}

func (p *FakePin) Number() int { return p.N }
func (p *FakePin) ConfigureInput(core.Pull) error {
	p.mu.Lock()
	p.out = false
	p.mu.Unlock()
	return nil
}
func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.out, p.level = true, initial
	p.mu.Unlock()
	return nil
}
func (p *FakePin) Set(b bool) {
	p.mu.Lock()
	p.level = b
	p.sets++
	p.mu.Unlock()
}
func (p *FakePin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}
func (p *FakePin) Toggle() { p.Set(!p.Get()) }

// Sets returns how many times Set was called.
func (p *FakePin) Sets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sets
}

// FakeI2C acknowledges every write. Fail, when set, is returned instead.
type FakeI2C struct {
	mu    sync.Mutex
	Fail  error
	count int
	last  []byte
}

func (f *FakeI2C) Tx(addr uint16, w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	f.last = append(f.last[:0], w...)
	for i := range r {
		r[i] = 0
	}
	return f.Fail
}

// Count returns the number of transactions seen.
func (f *FakeI2C) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

// Last returns a copy of the most recent write.
func (f *FakeI2C) Last() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.last...)
}

// SetFail makes every following transaction return err.
func (f *FakeI2C) SetFail(err error) {
	f.mu.Lock()
	f.Fail = err
	f.mu.Unlock()
}

// FakeSPI records every frame written.
type FakeSPI struct {
	mu     sync.Mutex
	frames [][]byte
}

func (f *FakeSPI) Tx(w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, append([]byte(nil), w...))
	return nil
}

func (f *FakeSPI) Transfer(b byte) (byte, error) {
	return 0, f.Tx([]byte{b}, nil)
}

// Frames returns a copy of the recorded frames.
func (f *FakeSPI) Frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.frames...)
}

// FakeSerial writes to W and feeds Read from RX.
type FakeSerial struct {
	mu sync.Mutex
	W  io.Writer
	RX chan []byte
}

func (s *FakeSerial) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.W == nil {
		return len(p), nil
	}
	return s.W.Write(p)
}

func (s *FakeSerial) Read(ctx context.Context, buf []byte) (int, error) {
	if s.RX == nil {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	select {
	case b := <-s.RX:
		return copy(buf, b), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
