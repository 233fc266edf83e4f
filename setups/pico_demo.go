package setups

import "picodemo/types"

// Public capability names used by the application services.
const (
	StatusLED = "status"
	OLED      = "oled"
	Matrix    = "matrix"
	Console   = "console"
)

// PicoDemo is a Raspberry Pi Pico with an SSD1306 on I2C1, a four-module
// FC16 MAX7219 chain on SPI0 and the serial console on UART0.
var PicoDemo = Setup{
	Name: "pico_demo",
	Plan: ResourcePlan{
		I2C: []I2CPlan{
			{ID: "i2c1", SDA: 26, SCL: 27, Hz: 100_000},
		},
		SPI: []SPIPlan{
			{ID: "spi0", SCK: 18, SDO: 19, SDI: -1, Hz: 1_000_000},
		},
		UART: []UARTPlan{
			{ID: "uart0", TX: 0, RX: 1, Baud: 115_200},
		},
		GPIOMin: 0,
		GPIOMax: 29,
	},
	HAL: types.HALConfig{
		Devices: []types.HALDevice{
			{ID: "led0", Type: "gpio_led", Params: types.LEDParams{
				Pin: 25, Domain: "io", Name: StatusLED,
			}},
			{ID: "oled0", Type: "ssd1306", Params: types.OLEDParams{
				Bus: "i2c1", Addr: 0x3C, Width: 128, Height: 64, CmdDelayMs: 10,
				Domain: "display", Name: OLED,
			}},
			{ID: "matrix0", Type: "max7219", Params: types.MatrixParams{
				Bus: "spi0", CS: 17, Modules: 4, Intensity: 2,
				Domain: "display", Name: Matrix,
			}},
			{ID: "console0", Type: "serial_console", Params: types.SerialParams{
				Bus: "uart0", Baud: 115_200, Domain: "io", Name: Console,
			}},
		},
	},
}

// Selected is the setup the firmware boots with.
var Selected = PicoDemo
