// Package setups describes board wiring. A setup is a ResourcePlan (which
// buses exist and on which pins) plus the HAL configuration that binds
// devices to them. The firmware provider and the host simulation tooling
// both read the same setup.
package setups

import "picodemo/types"

// ResourcePlan specifies wiring and operating parameters chosen by a setup.
// Providers consume this plan to instantiate resource owners.
type ResourcePlan struct {
	I2C  []I2CPlan
	SPI  []SPIPlan
	UART []UARTPlan

	// GPIO numbers that may be claimed (inclusive).
	GPIOMin, GPIOMax int
}

type I2CPlan struct {
	ID  string // e.g. "i2c1"
	SDA int    // GPIO number
	SCL int    // GPIO number
	Hz  uint32 // bus frequency
}

type SPIPlan struct {
	ID  string // e.g. "spi0"
	SCK int
	SDO int // MOSI
	SDI int // MISO, -1 when unused
	Hz  uint32
}

type UARTPlan struct {
	ID   string // e.g. "uart0"
	TX   int    // GPIO number
	RX   int    // GPIO number
	Baud uint32
}

// Setup pairs a plan with the devices bound to it.
type Setup struct {
	Name string
	Plan ResourcePlan
	HAL  types.HALConfig
}

// FindI2C returns the plan entry for bus id.
func (p ResourcePlan) FindI2C(id string) (I2CPlan, bool) {
	for _, b := range p.I2C {
		if b.ID == id {
			return b, true
		}
	}
	return I2CPlan{}, false
}

func (p ResourcePlan) FindSPI(id string) (SPIPlan, bool) {
	for _, b := range p.SPI {
		if b.ID == id {
			return b, true
		}
	}
	return SPIPlan{}, false
}

func (p ResourcePlan) FindUART(id string) (UARTPlan, bool) {
	for _, b := range p.UART {
		if b.ID == id {
			return b, true
		}
	}
	return UARTPlan{}, false
}

