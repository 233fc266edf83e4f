// Package ssd1306 drives an SSD1306 OLED controller over I2C with a local
// framebuffer. Initialisation is explicit and command-by-command:
//
//	d := ssd1306.New(bus)
//	d.Configure(ssd1306.Config{})
//	err := d.Init()          // raw init sequence, aborts on first NACK
//	d.SetPixel(x, y, on)     // drivers.Displayer
//	err = d.Display()        // flush the whole framebuffer
//
// The device is not touched until Init; Configure only sizes the buffer.
package ssd1306

import (
	"errors"
	"image/color"
	"time"

	"tinygo.org/x/drivers"
)

// Default I2C address (SA0 low).
const Address = 0x3C

// Control bytes.
const (
	ctrlCommand = 0x00
	ctrlData    = 0x40
)

// Commands used outside the init sequence.
const (
	cmdDisplayOff  = 0xAE
	cmdColumnAddr  = 0x21
	cmdPageAddr    = 0x22
	cmdDisplayOn   = 0xAF
	cmdInvertOff   = 0xA6
	cmdInvertOn    = 0xA7
	cmdSetContrast = 0x81
)

// InitSequence brings a 128x64 panel up with the internal charge pump,
// horizontal addressing and a 180° segment/COM orientation.
var InitSequence = []byte{
	0xAE,       // display off
	0xD5, 0x80, // clock divide
	0xA8, 0x3F, // multiplex 64
	0xD3, 0x00, // display offset
	0x40,       // start line 0
	0x8D, 0x14, // charge pump on
	0x20, 0x00, // horizontal addressing
	0xA1,       // segment remap
	0xC8,       // COM scan decrement
	0xDA, 0x12, // COM pins
	0x81, 0xCF, // contrast
	0xD9, 0xF1, // precharge
	0xDB, 0x40, // VCOMH deselect
	0xA4,       // resume to RAM
	0xA6,       // normal (not inverted)
	0x2E,       // scroll off
	0xAF,       // display on
}

var (
	ErrInit       = errors.New("ssd1306: init failed")
	ErrNotInit    = errors.New("ssd1306: not initialised")
	ErrBufferSize = errors.New("ssd1306: invalid size")
)

// Config controls geometry and timing. All fields are optional.
type Config struct {
	// Address defaults to 0x3C.
	Address uint16
	// Width and Height default to 128x64. Height must be a multiple of 8.
	Width, Height int16
	// CommandDelay is waited after each init command. Default 10 ms.
	CommandDelay time.Duration
}

// Device is a buffered SSD1306 on an I2C bus.
type Device struct {
	bus     drivers.I2C
	Address uint16

	width, height int16
	delay         time.Duration
	ready         bool

	buf []byte // page-major framebuffer, one bit per pixel
	tx  []byte // ctrlData + buf, reused for flushes
	cmd [2]byte

	// sleep is swapped out by tests.
	sleep func(time.Duration)
}

var _ drivers.Displayer = (*Device)(nil)

// New creates a Device for an already configured bus.
func New(bus drivers.I2C) Device {
	return Device{bus: bus, Address: Address, sleep: time.Sleep}
}

// Configure applies cfg and (re)allocates the framebuffer.
func (d *Device) Configure(cfg Config) error {
	if cfg.Address != 0 {
		d.Address = cfg.Address
	}
	if cfg.Width == 0 {
		cfg.Width = 128
	}
	if cfg.Height == 0 {
		cfg.Height = 64
	}
	if cfg.Width < 0 || cfg.Height <= 0 || cfg.Height%8 != 0 {
		return ErrBufferSize
	}
	if cfg.CommandDelay <= 0 {
		cfg.CommandDelay = 10 * time.Millisecond
	}
	d.width, d.height, d.delay = cfg.Width, cfg.Height, cfg.CommandDelay
	n := int(cfg.Width) * int(cfg.Height) / 8
	d.tx = make([]byte, n+1)
	d.tx[0] = ctrlData
	d.buf = d.tx[1:]
	if d.sleep == nil {
		d.sleep = time.Sleep
	}
	return nil
}

// Init sends InitSequence one command per transaction.
func (d *Device) Init() error {
	if d.buf == nil {
		if err := d.Configure(Config{}); err != nil {
			return err
		}
	}
	d.ready = false
	for i, c := range InitSequence {
		if err := d.Command(c); err != nil {
			return &InitError{Index: i, Command: c, Err: err}
		}
		d.sleep(d.delay)
	}
	d.ready = true
	return nil
}

// InitError reports which init command the panel did not accept.
type InitError struct {
	Index   int
	Command byte
	Err     error
}

func (e *InitError) Error() string {
	const hexd = "0123456789ABCDEF"
	return ErrInit.Error() + " at command 0x" + string([]byte{hexd[e.Command>>4], hexd[e.Command&0xF]}) + ": " + e.Err.Error()
}

func (e *InitError) Is(target error) bool { return target == ErrInit }
func (e *InitError) Unwrap() error        { return e.Err }

// Ready reports whether Init completed.
func (d *Device) Ready() bool { return d.ready }

// Command writes a single command byte.
func (d *Device) Command(c byte) error {
	d.cmd[0] = ctrlCommand
	d.cmd[1] = c
	return d.bus.Tx(d.Address, d.cmd[:], nil)
}

func (d *Device) commands(cs ...byte) error {
	for _, c := range cs {
		if err := d.Command(c); err != nil {
			return err
		}
	}
	return nil
}

// Size implements drivers.Displayer.
func (d *Device) Size() (int16, int16) { return d.width, d.height }

// SetPixel implements drivers.Displayer. Any non-black colour lights the pixel.
func (d *Device) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || y < 0 || x >= d.width || y >= d.height {
		return
	}
	i := int(x) + int(y/8)*int(d.width)
	bit := byte(1) << uint(y%8)
	if c.R != 0 || c.G != 0 || c.B != 0 {
		d.buf[i] |= bit
	} else {
		d.buf[i] &^= bit
	}
}

// GetPixel reports whether (x, y) is lit in the framebuffer.
func (d *Device) GetPixel(x, y int16) bool {
	if x < 0 || y < 0 || x >= d.width || y >= d.height {
		return false
	}
	return d.buf[int(x)+int(y/8)*int(d.width)]&(1<<uint(y%8)) != 0
}

// Buffer exposes the framebuffer (page-major). Callers must not resize it.
func (d *Device) Buffer() []byte { return d.buf }

// ClearBuffer switches every pixel off without touching the panel.
func (d *Device) ClearBuffer() {
	for i := range d.buf {
		d.buf[i] = 0
	}
}

// Display implements drivers.Displayer: it flushes the framebuffer.
func (d *Device) Display() error {
	if !d.ready {
		return ErrNotInit
	}
	pages := byte(d.height/8) - 1
	if err := d.commands(cmdColumnAddr, 0, byte(d.width-1), cmdPageAddr, 0, pages); err != nil {
		return err
	}
	return d.bus.Tx(d.Address, d.tx, nil)
}

// ClearDisplay clears the framebuffer and flushes it.
func (d *Device) ClearDisplay() error {
	d.ClearBuffer()
	return d.Display()
}

// SetContrast sets the panel contrast (0..255).
func (d *Device) SetContrast(v uint8) error { return d.commands(cmdSetContrast, v) }

// SetInverted switches between normal and inverted output.
func (d *Device) SetInverted(on bool) error {
	if on {
		return d.Command(cmdInvertOn)
	}
	return d.Command(cmdInvertOff)
}

// Sleep turns the panel off (true) or back on (false).
func (d *Device) Sleep(off bool) error {
	if off {
		return d.Command(cmdDisplayOff)
	}
	return d.Command(cmdDisplayOn)
}
