package gpio_dout

import (
	"context"

	"picodemo/services/hal/internal/core"
	"picodemo/types"
)

func init() {
	core.RegisterBuilder("gpio_led", builderLED{})
}

type builderLED struct{}

func (builderLED) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	p, err := core.Params[types.LEDParams](in.Params)
	if err != nil {
		return nil, err
	}
	g, err := in.Res.Reg.ClaimGPIO(in.ID, p.Pin)
	if err != nil {
		return nil, err
	}
	return New(in.ID, p, g, in.Res), nil
}
