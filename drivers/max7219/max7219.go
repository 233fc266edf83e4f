// Package max7219 drives a daisy chain of MAX7219 8x8 LED matrix modules
// (FC16-style boards) over SPI with a software chip select.
//
// Each register write is one latched frame: CS low, one 16-bit word per
// module, CS high. The word shifted first ends up in the module farthest
// from DIN, which on FC16 boards is the left-most one; buffer index 0 is
// therefore the left-most module.
package max7219

import (
	"errors"

	"tinygo.org/x/drivers"
)

// Registers.
const (
	RegNoOp        = 0x00
	RegDigit0      = 0x01 // rows 0..7 are RegDigit0..RegDigit0+7
	RegDecodeMode  = 0x09
	RegIntensity   = 0x0A
	RegScanLimit   = 0x0B
	RegShutdown    = 0x0C
	RegDisplayTest = 0x0F
)

const MaxIntensity = 0x0F

var (
	ErrChain      = errors.New("max7219: chain length must be > 0")
	ErrBufferSize = errors.New("max7219: buffer count does not match chain")
)

// ChipSelect is the load line. machine.Pin satisfies it.
type ChipSelect interface {
	High()
	Low()
}

type Device struct {
	bus drivers.SPI
	cs  ChipSelect
	n   int

	intensity uint8
	frame     []byte // 2 bytes per module
}

// New creates a driver for n chained modules. The SPI bus must already be
// configured (mode 0, MSB first).
func New(bus drivers.SPI, cs ChipSelect, n int) (*Device, error) {
	if n <= 0 {
		return nil, ErrChain
	}
	return &Device{bus: bus, cs: cs, n: n, frame: make([]byte, 2*n)}, nil
}

// Modules returns the chain length.
func (d *Device) Modules() int { return d.n }

// Configure wakes every module in raw (no-decode) matrix mode.
func (d *Device) Configure(intensity uint8) error {
	d.cs.High()
	steps := [][2]byte{
		{RegDisplayTest, 0},
		{RegScanLimit, 7},
		{RegDecodeMode, 0},
		{RegIntensity, min(intensity, MaxIntensity)},
		{RegShutdown, 1},
	}
	for _, s := range steps {
		if err := d.WriteAll(s[0], s[1]); err != nil {
			return err
		}
	}
	d.intensity = min(intensity, MaxIntensity)
	return d.Clear()
}

// WriteAll writes the same register value to every module.
func (d *Device) WriteAll(reg, val byte) error {
	for i := 0; i < d.n; i++ {
		d.frame[2*i] = reg
		d.frame[2*i+1] = val
	}
	return d.latch()
}

// WriteBuffers writes one 8x8 bitmap per module, row by row. bufs[i][r]
// is row r of module i; bit 7 is the left-most column.
func (d *Device) WriteBuffers(bufs [][8]byte) error {
	if len(bufs) != d.n {
		return ErrBufferSize
	}
	for r := 0; r < 8; r++ {
		for i := range bufs {
			d.frame[2*i] = RegDigit0 + byte(r)
			d.frame[2*i+1] = bufs[i][r]
		}
		if err := d.latch(); err != nil {
			return err
		}
	}
	return nil
}

// Clear blanks every row of every module.
func (d *Device) Clear() error {
	for r := 0; r < 8; r++ {
		if err := d.WriteAll(RegDigit0+byte(r), 0); err != nil {
			return err
		}
	}
	return nil
}

// SetIntensity sets the brightness (0..15) on every module.
func (d *Device) SetIntensity(level uint8) error {
	level = min(level, MaxIntensity)
	if err := d.WriteAll(RegIntensity, level); err != nil {
		return err
	}
	d.intensity = level
	return nil
}

func (d *Device) Intensity() uint8 { return d.intensity }

// Shutdown puts the chain in low-power mode (true) or wakes it (false).
func (d *Device) Shutdown(off bool) error {
	var v byte = 1
	if off {
		v = 0
	}
	return d.WriteAll(RegShutdown, v)
}

func (d *Device) latch() error {
	d.cs.Low()
	err := d.bus.Tx(d.frame, nil)
	d.cs.High()
	return err
}
