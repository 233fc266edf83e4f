// Package serial_console exposes a UART as a "serial" capability. Writes
// are queued to a TX worker so a slow port never blocks the HAL loop;
// received bytes are published on event tag "rx" when the port can read.
package serial_console

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

const (
	EventRx = "rx"

	txQueueLen = 8
	rxBufLen   = 64
	rxRetry    = 10 * time.Millisecond
)

func init() { core.RegisterBuilder("serial_console", builder{}) }

type builder struct{}

func (builder) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	p, err := core.Params[types.SerialParams](in.Params)
	if err != nil {
		return nil, err
	}
	if p.Bus == "" {
		return nil, errcode.InvalidParams
	}
	port, err := in.Res.Reg.ClaimSerial(in.ID, core.ResourceID(p.Bus))
	if err != nil {
		return nil, err
	}
	return &Device{
		id:   in.ID,
		bus:  p.Bus,
		baud: p.Baud,
		port: port,
		res:  in.Res,
		addr: core.CapAddr{
			Domain: strx.Coalesce(p.Domain, "io"),
			Kind:   string(types.KindSerial),
			Name:   strx.Coalesce(p.Name, in.ID),
		},
		txq: make(chan []byte, txQueueLen),
	}, nil
}

type Device struct {
	id   string
	bus  string
	baud uint32
	port core.SerialPort
	res  core.Resources
	addr core.CapAddr

	txq    chan []byte
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: d.addr.Domain,
		Kind:   types.KindSerial,
		Name:   d.addr.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "serial_console",
			Detail:        types.SerialInfo{Bus: d.bus, Baud: d.baud},
		},
	}}
}

func (d *Device) Init(ctx context.Context) error {
	if d.baud != 0 {
		if c, ok := d.port.(core.SerialConfigurator); ok {
			if err := c.SetBaudRate(d.baud); err != nil {
				return errcode.Wrap(errcode.InitFailed, "serial_console", err)
			}
		}
	}
	wctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.wg.Add(1)
	go d.txLoop(wctx)
	if r, ok := d.port.(core.SerialReader); ok {
		d.wg.Add(1)
		go d.rxLoop(wctx, r)
	}
	d.emit(types.SerialValue{})
	return nil
}

func (d *Device) Close() error {
	if d.cancel != nil {
		d.cancel()
		d.wg.Wait()
	}
	d.res.Reg.ReleaseSerial(d.id, core.ResourceID(d.bus))
	return nil
}

func (d *Device) Control(_ core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	switch verb {
	case "write":
		p, code := core.As[types.SerialWrite](payload)
		if code != "" {
			return core.EnqueueResult{OK: false, Error: code}, nil
		}
		if len(p.Data) == 0 {
			return core.EnqueueResult{OK: false, Error: errcode.InvalidPayload}, nil
		}
		select {
		case d.txq <- p.Data:
			return core.EnqueueResult{OK: true}, nil
		default:
			return core.EnqueueResult{OK: false, Error: errcode.Busy}, nil
		}
	default:
		return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
}

func (d *Device) txLoop(ctx context.Context) {
	defer d.wg.Done()
	var total uint32
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-d.txq:
			n, err := d.port.Write(b)
			total += uint32(n)
			if err != nil {
				d.res.Pub.Emit(core.Event{Addr: d.addr, Err: string(errcode.IOError), TSms: timex.NowMs()})
				continue
			}
			d.emit(types.SerialValue{TxBytes: total})
		}
	}
}

func (d *Device) rxLoop(ctx context.Context, r core.SerialReader) {
	defer d.wg.Done()
	buf := make([]byte, rxBufLen)
	for {
		n, err := r.Read(ctx, buf)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(rxRetry):
			}
			continue
		}
		if n == 0 {
			continue
		}
		d.res.Pub.Emit(core.Event{
			Addr:     d.addr,
			Payload:  types.SerialRx{Data: append([]byte(nil), buf[:n]...)},
			TSms:     timex.NowMs(),
			IsEvent:  true,
			EventTag: EventRx,
		})
	}
}

func (d *Device) emit(v types.SerialValue) {
	d.res.Pub.Emit(core.Event{Addr: d.addr, Payload: v, TSms: timex.NowMs()})
}
