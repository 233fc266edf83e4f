package core

import (
	"context"

	"tinygo.org/x/drivers"
)

// ---- Bus taxonomy ----

type BusClass uint8

const (
	BusTransactional BusClass = iota // I²C, SPI
	BusStream                        // UART
)

type ResourceID string // e.g. "i2c1", "spi0", "uart0"

// ---- Stream buses ----

// SerialPort is the TX side of a UART.
type SerialPort interface {
	Write(p []byte) (int, error)
}

// SerialReader is optionally implemented by ports with an RX path.
type SerialReader interface {
	Read(ctx context.Context, buf []byte) (int, error)
}

// SerialConfigurator is optionally implemented by ports that can change baud.
type SerialConfigurator interface {
	SetBaudRate(br uint32) error
}

// ---- GPIO handles ----

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

type GPIOHandle interface {
	Number() int
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(bool)
	Get() bool
	Toggle()
}

// ---- Device → HAL telemetry (single shape) ----
// By default, an Event represents a "value-like" update for a capability that
// HAL should publish to .../value (retained). If IsEvent is true, HAL instead
// publishes to .../event (non-retained). Err, when non-empty, causes HAL to
// publish only .../status=degraded (retained).

type Event struct {
	Addr     CapAddr
	Payload  any
	TSms     int64
	Err      string // "timeout","io_error","init_failed",...
	IsEvent  bool
	EventTag string // optional subtopic tag for events (e.g. "blink_done")
}

type EventEmitter interface {
	// Emit must be non-blocking; false indicates a drop under pressure.
	Emit(ev Event) bool
}

// ---- HAL-injected resources ----

type Resources struct {
	Reg ResourceRegistry
	Pub EventEmitter // provided by HAL
}

// ResourceRegistry hands out exclusive (GPIO, SPI, UART) or shared (I2C)
// access to the board's buses and pins.
type ResourceRegistry interface {
	ClassOf(id ResourceID) (BusClass, bool)

	// I2C access is shared; every transaction goes through the bus worker.
	ClaimI2C(devID string, id ResourceID) (drivers.I2C, error)
	ReleaseI2C(devID string, id ResourceID)

	ClaimSPI(devID string, id ResourceID) (drivers.SPI, error)
	ReleaseSPI(devID string, id ResourceID)

	ClaimSerial(devID string, id ResourceID) (SerialPort, error)
	ReleaseSerial(devID string, id ResourceID)

	ClaimGPIO(devID string, pin int) (GPIOHandle, error)
	ReleaseGPIO(devID string, pin int)
}
