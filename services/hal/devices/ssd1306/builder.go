package ssd1306

import (
	"context"
	"time"

	"picodemo/drivers/ssd1306"
	"picodemo/errcode"
	"picodemo/services/hal/internal/core"
	"picodemo/types"
)

func init() { core.RegisterBuilder("ssd1306", builder{}) }

type builder struct{}

func (builder) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	p, err := core.Params[types.OLEDParams](in.Params)
	if err != nil {
		return nil, err
	}
	if p.Bus == "" {
		return nil, errcode.InvalidParams
	}
	i2c, err := in.Res.Reg.ClaimI2C(in.ID, core.ResourceID(p.Bus))
	if err != nil {
		return nil, err
	}
	drv := ssd1306.New(i2c)
	if err := drv.Configure(ssd1306.Config{
		Address:      p.Addr,
		Width:        p.Width,
		Height:       p.Height,
		CommandDelay: time.Duration(p.CmdDelayMs) * time.Millisecond,
	}); err != nil {
		in.Res.Reg.ReleaseI2C(in.ID, core.ResourceID(p.Bus))
		return nil, errcode.InvalidParams
	}
	return newDevice(in.ID, p, &drv, in.Res), nil
}
