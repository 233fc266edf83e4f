// Package max7219 exposes a four-module MAX7219 chain as a "display"
// capability showing a HH:MM:SS clock. Verbs: show, intensity, clear.
//
// A show is eight short SPI frames, so controls write synchronously.
package max7219

import (
	"context"

	"picodemo/clock"
	"picodemo/drivers/max7219"
	"picodemo/errcode"
	"picodemo/services/hal/internal/core"
	"picodemo/types"
	"picodemo/x/mathx"
	"picodemo/x/strx"
	"picodemo/x/timex"
)

type Device struct {
	id        string
	bus       string
	addr      core.CapAddr
	res       core.Resources
	drv       *max7219.Device
	cs        core.GPIOHandle
	intensity uint8
	bufs      [][8]byte
}

func newDevice(id string, p types.MatrixParams, drv *max7219.Device, cs core.GPIOHandle, res core.Resources) *Device {
	return &Device{
		id:  id,
		bus: p.Bus,
		addr: core.CapAddr{
			Domain: strx.Coalesce(p.Domain, "display"),
			Kind:   string(types.KindDisplay),
			Name:   strx.Coalesce(p.Name, id),
		},
		res:       res,
		drv:       drv,
		cs:        cs,
		intensity: mathx.Clamp(p.Intensity, 0, max7219.MaxIntensity),
		bufs:      make([][8]byte, p.Modules),
	}
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: d.addr.Domain,
		Kind:   types.KindDisplay,
		Name:   d.addr.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "max7219",
			Detail: types.DisplayInfo{
				Controller: "max7219", Width: int16(8 * d.drv.Modules()), Height: 8, Bus: d.bus,
			},
		},
	}}
}

func (d *Device) Init(ctx context.Context) error {
	if err := d.cs.ConfigureOutput(true); err != nil {
		return err
	}
	if err := d.drv.Configure(d.intensity); err != nil {
		return errcode.Wrap(errcode.InitFailed, "max7219", err)
	}
	return nil
}

func (d *Device) Close() error {
	_ = d.drv.Shutdown(true)
	d.res.Reg.ReleaseGPIO(d.id, d.cs.Number())
	d.res.Reg.ReleaseSPI(d.id, core.ResourceID(d.bus))
	return nil
}

func (d *Device) Control(_ core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	switch verb {
	case "show":
		p, code := core.As[types.MatrixShow](payload)
		if code != "" {
			return core.EnqueueResult{OK: false, Error: code}, nil
		}
		st := clock.State{Hours: p.Hours, Mins: p.Mins, Secs: p.Secs}
		if !st.Valid() {
			return core.EnqueueResult{OK: false, Error: errcode.InvalidPayload}, nil
		}
		buf := clock.PrepareBuffer(st)
		for i := range d.bufs {
			d.bufs[i] = buf[i]
		}
		if err := d.drv.WriteBuffers(d.bufs); err != nil {
			d.emitErr()
			return core.EnqueueResult{OK: false, Error: errcode.IOError}, nil
		}
		d.emit(types.MatrixValue{Text: st.String()})
		return core.EnqueueResult{OK: true}, nil
	case "intensity":
		p, code := core.As[types.MatrixIntensity](payload)
		if code != "" {
			return core.EnqueueResult{OK: false, Error: code}, nil
		}
		if err := d.drv.SetIntensity(p.Level); err != nil {
			d.emitErr()
			return core.EnqueueResult{OK: false, Error: errcode.IOError}, nil
		}
		d.intensity = d.drv.Intensity()
		return core.EnqueueResult{OK: true}, nil
	case "clear":
		if err := d.drv.Clear(); err != nil {
			d.emitErr()
			return core.EnqueueResult{OK: false, Error: errcode.IOError}, nil
		}
		d.emit(types.MatrixValue{})
		return core.EnqueueResult{OK: true}, nil
	default:
		return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
}

func (d *Device) emit(v types.MatrixValue) {
	d.res.Pub.Emit(core.Event{Addr: d.addr, Payload: v, TSms: timex.NowMs()})
}

func (d *Device) emitErr() {
	d.res.Pub.Emit(core.Event{Addr: d.addr, Err: string(errcode.IOError), TSms: timex.NowMs()})
}
