//go:build rp2040

package provider

import (
	"context"
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers"

	"picodemo/services/hal/internal/core"
	"picodemo/setups"
)

// NewResources configures the RP2040 peripherals named by the plan.
func NewResources(plan setups.ResourcePlan) (core.Resources, *Registry) {
	reg := NewRegistry(plan, rp2Hardware(plan))
	return core.Resources{Reg: reg}, reg
}

func rp2Hardware(plan setups.ResourcePlan) Hardware {
	hw := Hardware{
		I2C:    map[string]drivers.I2C{},
		SPI:    map[string]drivers.SPI{},
		Serial: map[string]core.SerialPort{},
		GPIO:   func(n int) core.GPIOHandle { return &rp2GPIO{p: machine.Pin(n), n: n} },
	}

	for _, p := range plan.I2C {
		var bus *machine.I2C
		switch p.ID {
		case "i2c0":
			bus = machine.I2C0
		case "i2c1":
			bus = machine.I2C1
		default:
			continue
		}
		sda, scl := machine.Pin(p.SDA), machine.Pin(p.SCL)
		sda.Configure(machine.PinConfig{Mode: machine.PinI2C})
		scl.Configure(machine.PinConfig{Mode: machine.PinI2C})
		if err := bus.Configure(machine.I2CConfig{SDA: sda, SCL: scl, Frequency: p.Hz}); err != nil {
			println("[provider] i2c configure failed:", p.ID, err.Error())
			continue
		}
		hw.I2C[p.ID] = bus
	}

	for _, p := range plan.SPI {
		var bus *machine.SPI
		switch p.ID {
		case "spi0":
			bus = machine.SPI0
		case "spi1":
			bus = machine.SPI1
		default:
			continue
		}
		cfg := machine.SPIConfig{
			Frequency: p.Hz,
			SCK:       machine.Pin(p.SCK),
			SDO:       machine.Pin(p.SDO),
			Mode:      0,
		}
		if p.SDI >= 0 {
			cfg.SDI = machine.Pin(p.SDI)
		} else {
			cfg.SDI = machine.NoPin
		}
		if err := bus.Configure(cfg); err != nil {
			println("[provider] spi configure failed:", p.ID, err.Error())
			continue
		}
		hw.SPI[p.ID] = bus
	}

	for _, u := range plan.UART {
		var port *uartx.UART
		switch u.ID {
		case "uart0":
			port = uartx.UART0
		case "uart1":
			port = uartx.UART1
		default:
			continue
		}
		_ = port.Configure(uartx.UARTConfig{
			BaudRate: u.Baud,
			TX:       machine.Pin(u.TX),
			RX:       machine.Pin(u.RX),
		})
		hw.Serial[u.ID] = &rp2SerialPort{u: port}
	}
	return hw
}

// -----------------------------------------------------------------------------
// GPIO handle
// -----------------------------------------------------------------------------

type rp2GPIO struct {
	p machine.Pin
	n int
}

func (r *rp2GPIO) Number() int { return r.n }

func (r *rp2GPIO) ConfigureInput(pull core.Pull) error {
	mode := machine.PinInput
	switch pull {
	case core.PullUp:
		mode = machine.PinInputPullup
	case core.PullDown:
		mode = machine.PinInputPulldown
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *rp2GPIO) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r *rp2GPIO) Set(b bool) { r.p.Set(b) }
func (r *rp2GPIO) Get() bool  { return r.p.Get() }
func (r *rp2GPIO) Toggle()    { r.p.Set(!r.p.Get()) }

// -----------------------------------------------------------------------------
// Serial port over uartx
// -----------------------------------------------------------------------------

type rp2SerialPort struct{ u *uartx.UART }

func (p *rp2SerialPort) Write(b []byte) (int, error) { return p.u.Write(b) }
func (p *rp2SerialPort) SetBaudRate(br uint32) error { p.u.SetBaudRate(br); return nil }

// Read blocks until some bytes arrive or ctx ends.
func (p *rp2SerialPort) Read(ctx context.Context, buf []byte) (int, error) {
	return p.u.RecvSomeContext(ctx, buf)
}
