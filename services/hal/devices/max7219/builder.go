package max7219

import (
	"context"

	"picodemo/clock"
	"picodemo/drivers/max7219"
	"picodemo/errcode"
	"picodemo/services/hal/internal/core"
	"picodemo/types"
)

func init() { core.RegisterBuilder("max7219", builder{}) }

type builder struct{}

func (builder) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	p, err := core.Params[types.MatrixParams](in.Params)
	if err != nil {
		return nil, err
	}
	if p.Bus == "" {
		return nil, errcode.InvalidParams
	}
	if p.Modules == 0 {
		p.Modules = clock.Modules
	}
	if p.Modules != clock.Modules {
		// The clock layout is fixed to a 32-column strip.
		return nil, errcode.InvalidParams
	}
	spi, err := in.Res.Reg.ClaimSPI(in.ID, core.ResourceID(p.Bus))
	if err != nil {
		return nil, err
	}
	cs, err := in.Res.Reg.ClaimGPIO(in.ID, p.CS)
	if err != nil {
		in.Res.Reg.ReleaseSPI(in.ID, core.ResourceID(p.Bus))
		return nil, err
	}
	drv, err := max7219.New(spi, chipSelect{cs}, p.Modules)
	if err != nil {
		in.Res.Reg.ReleaseGPIO(in.ID, p.CS)
		in.Res.Reg.ReleaseSPI(in.ID, core.ResourceID(p.Bus))
		return nil, errcode.InvalidParams
	}
	return newDevice(in.ID, p, drv, cs, in.Res), nil
}

// chipSelect drives the load line through a claimed GPIO.
type chipSelect struct{ g core.GPIOHandle }

func (c chipSelect) High() { c.g.Set(true) }
func (c chipSelect) Low()  { c.g.Set(false) }
