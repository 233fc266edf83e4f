// Package ssd1306 exposes an SSD1306 OLED as a "display" capability.
// Verbs: init (raw init sequence), draw (types.OLEDFrame), clear, contrast,
// invert and power. All panel I/O runs on the device worker; controls only
// enqueue.
package ssd1306

import (
	"context"
	"sync"
	"sync/atomic"

	"picodemo/drivers/ssd1306"
	"picodemo/errcode"
	"picodemo/render"
	"picodemo/services/hal/internal/core"
	"picodemo/types"
	"picodemo/x/strx"
	"picodemo/x/timex"
)

const jobQueueLen = 4

type jobKind uint8

const (
	jobInit jobKind = iota
	jobDraw
	jobClear
	jobContrast
	jobInvert
	jobPower
)

type job struct {
	kind  jobKind
	frame types.OLEDFrame
	level uint8
	on    bool
}

type Device struct {
	id   string
	bus  string
	addr core.CapAddr
	res  core.Resources
	drv  *ssd1306.Device

	jobs   chan job
	ready  atomic.Bool
	frames uint32 // worker-owned

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newDevice(id string, p types.OLEDParams, drv *ssd1306.Device, res core.Resources) *Device {
	return &Device{
		id:  id,
		bus: p.Bus,
		addr: core.CapAddr{
			Domain: strx.Coalesce(p.Domain, "display"),
			Kind:   string(types.KindDisplay),
			Name:   strx.Coalesce(p.Name, id),
		},
		res:  res,
		drv:  drv,
		jobs: make(chan job, jobQueueLen),
	}
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	w, h := d.drv.Size()
	return []core.CapabilitySpec{{
		Domain: d.addr.Domain,
		Kind:   types.KindDisplay,
		Name:   d.addr.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "ssd1306",
			Detail: types.DisplayInfo{
				Controller: "ssd1306", Width: w, Height: h, Bus: d.bus, Addr: d.drv.Address,
			},
		},
	}}
}

// Init starts the worker. The panel itself is initialised by verb "init".
func (d *Device) Init(ctx context.Context) error {
	wctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.wg.Add(1)
	go d.worker(wctx)
	return nil
}

func (d *Device) Close() error {
	if d.cancel != nil {
		d.cancel()
		d.wg.Wait()
	}
	d.res.Reg.ReleaseI2C(d.id, core.ResourceID(d.bus))
	return nil
}

func (d *Device) Control(_ core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	var j job
	switch verb {
	case "init":
		j.kind = jobInit
	case "draw":
		f, code := core.As[types.OLEDFrame](payload)
		if code != "" {
			return core.EnqueueResult{OK: false, Error: code}, nil
		}
		j = job{kind: jobDraw, frame: f}
	case "clear":
		j.kind = jobClear
	case "contrast":
		p, code := core.As[types.OLEDContrast](payload)
		if code != "" {
			return core.EnqueueResult{OK: false, Error: code}, nil
		}
		j = job{kind: jobContrast, level: p.Level}
	case "invert":
		p, code := core.As[types.OLEDInvert](payload)
		if code != "" {
			return core.EnqueueResult{OK: false, Error: code}, nil
		}
		j = job{kind: jobInvert, on: p.On}
	case "power":
		p, code := core.As[types.OLEDPower](payload)
		if code != "" {
			return core.EnqueueResult{OK: false, Error: code}, nil
		}
		j = job{kind: jobPower, on: p.On}
	default:
		return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
	if j.kind != jobInit && !d.ready.Load() {
		return core.EnqueueResult{OK: false, Error: errcode.NotReady}, nil
	}
	select {
	case d.jobs <- j:
		return core.EnqueueResult{OK: true}, nil
	default:
		return core.EnqueueResult{OK: false, Error: errcode.Busy}, nil
	}
}

func (d *Device) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-d.jobs:
			d.run(j)
		}
	}
}

func (d *Device) run(j job) {
	switch j.kind {
	case jobInit:
		d.ready.Store(false)
		if err := d.drv.Init(); err != nil {
			println("[ssd1306]", d.id, "init failed:", err.Error())
			d.emitErr(errcode.InitFailed)
			return
		}
		d.drv.ClearBuffer()
		if err := d.drv.Display(); err != nil {
			d.emitErr(errcode.IOError)
			return
		}
		d.ready.Store(true)
		d.emitValue()
	case jobDraw:
		render.Frame(d.drv, j.frame)
		if err := d.drv.Display(); err != nil {
			d.emitErr(errcode.IOError)
			return
		}
		d.frames++
		d.emitValue()
	case jobClear:
		d.finish(d.drv.ClearDisplay())
	case jobContrast:
		d.finish(d.drv.SetContrast(j.level))
	case jobInvert:
		d.finish(d.drv.SetInverted(j.on))
	case jobPower:
		d.finish(d.drv.Sleep(!j.on))
	}
}

// finish reports the outcome of a panel command.
func (d *Device) finish(err error) {
	if err != nil {
		d.emitErr(errcode.IOError)
		return
	}
	d.emitValue()
}

func (d *Device) emitValue() {
	d.res.Pub.Emit(core.Event{
		Addr:    d.addr,
		Payload: types.OLEDValue{Frames: d.frames},
		TSms:    timex.NowMs(),
	})
}

func (d *Device) emitErr(code errcode.Code) {
	d.res.Pub.Emit(core.Event{Addr: d.addr, Err: string(code), TSms: timex.NowMs()})
}
