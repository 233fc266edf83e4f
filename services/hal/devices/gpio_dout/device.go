// Package gpio_dout exposes a digital output as an "led" capability with
// set, toggle, read and blink verbs.
package gpio_dout

import (
	"context"
	"sync"
	"time"

	"picodemo/errcode"
	"picodemo/services/hal/internal/core"
	"picodemo/types"
	"picodemo/x/strx"
	"picodemo/x/timex"
)

const EventBlinkDone = "blink_done"

type Device struct {
	id        string
	pin       core.GPIOHandle
	activeLow bool
	initial   bool
	res       core.Resources
	addr      core.CapAddr

	mu    sync.Mutex // guards pin writes and blink
	blink *blinker
}

type blinker struct {
	stop chan struct{}
	done chan struct{}
}

func New(id string, p types.LEDParams, h core.GPIOHandle, res core.Resources) *Device {
	return &Device{
		id:        id,
		pin:       h,
		activeLow: p.ActiveLow,
		initial:   p.Initial,
		res:       res,
		addr: core.CapAddr{
			Domain: strx.Coalesce(p.Domain, "io"),
			Kind:   string(types.KindLED),
			Name:   strx.Coalesce(p.Name, id),
		},
	}
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: d.addr.Domain,
		Kind:   types.KindLED,
		Name:   d.addr.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "gpio_dout",
			Detail:        types.LEDInfo{Pin: d.pin.Number()},
		},
	}}
}

func (d *Device) Init(ctx context.Context) error {
	if err := d.pin.ConfigureOutput(d.level(d.initial)); err != nil {
		return err
	}
	d.emitValue()
	return nil
}

func (d *Device) Close() error {
	d.stopBlink()
	d.res.Reg.ReleaseGPIO(d.id, d.pin.Number())
	return nil
}

func (d *Device) Control(_ core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	switch verb {
	case "set":
		p, code := core.As[types.LEDSet](payload)
		if code != "" {
			return core.EnqueueResult{OK: false, Error: code}, nil
		}
		d.stopBlink()
		d.set(p.Level)
		return core.EnqueueResult{OK: true}, nil
	case "toggle":
		d.stopBlink()
		d.mu.Lock()
		on := d.logical()
		d.mu.Unlock()
		d.set(!on)
		return core.EnqueueResult{OK: true}, nil
	case "read":
		d.emitValue()
		return core.EnqueueResult{OK: true}, nil
	case "blink":
		p, code := core.As[types.LEDBlink](payload)
		if code != "" {
			return core.EnqueueResult{OK: false, Error: code}, nil
		}
		if p.OnMs == 0 || p.OffMs == 0 {
			return core.EnqueueResult{OK: false, Error: errcode.InvalidPayload}, nil
		}
		d.stopBlink()
		b := &blinker{stop: make(chan struct{}), done: make(chan struct{})}
		d.mu.Lock()
		d.blink = b
		d.mu.Unlock()
		go d.runBlink(b, p)
		return core.EnqueueResult{OK: true}, nil
	default:
		return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
}

// runBlink drives Count on/off cycles (forever when Count is 0) and
// reports completion of a finite sequence on event blink_done.
func (d *Device) runBlink(b *blinker, p types.LEDBlink) {
	defer close(b.done)
	on := time.Duration(p.OnMs) * time.Millisecond
	off := time.Duration(p.OffMs) * time.Millisecond
	t := time.NewTimer(time.Hour)
	defer t.Stop()
	wait := func(dur time.Duration) bool {
		t.Reset(dur)
		select {
		case <-b.stop:
			return false
		case <-t.C:
			return true
		}
	}
	for n := uint16(0); p.Count == 0 || n < p.Count; n++ {
		d.set(true)
		if !wait(on) {
			return
		}
		d.set(false)
		if !wait(off) {
			return
		}
	}
	d.mu.Lock()
	if d.blink == b {
		d.blink = nil
	}
	d.mu.Unlock()
	d.res.Pub.Emit(core.Event{
		Addr:     d.addr,
		Payload:  types.LEDBlinkDone{Count: p.Count},
		TSms:     timex.NowMs(),
		IsEvent:  true,
		EventTag: EventBlinkDone,
	})
}

// stopBlink cancels a running blink and waits for it to exit.
func (d *Device) stopBlink() {
	d.mu.Lock()
	b := d.blink
	d.blink = nil
	d.mu.Unlock()
	if b != nil {
		close(b.stop)
		<-b.done
	}
}

func (d *Device) set(on bool) {
	d.mu.Lock()
	d.pin.Set(d.level(on))
	d.mu.Unlock()
	d.emitValue()
}

// level maps a logical state to the pin level and back.
func (d *Device) level(on bool) bool {
	if d.activeLow {
		return !on
	}
	return on
}

// caller holds mu
func (d *Device) logical() bool { return d.level(d.pin.Get()) }

func (d *Device) emitValue() {
	d.mu.Lock()
	var v uint8
	if d.logical() {
		v = 1
	}
	d.mu.Unlock()
	_ = d.res.Pub.Emit(core.Event{
		Addr:    d.addr,
		Payload: types.LEDValue{Level: v},
		TSms:    timex.NowMs(),
	})
}
