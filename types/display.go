package types

// ------------------------
// SSD1306 OLED
// ------------------------

type OLEDParams struct {
	Bus        string `json:"bus"`            // e.g. "i2c1"
	Addr       uint16 `json:"addr,omitempty"` // default 0x3C
	Width      int16  `json:"width,omitempty"`
	Height     int16  `json:"height,omitempty"`
	CmdDelayMs uint16 `json:"cmd_delay_ms,omitempty"` // delay after each init command
	Domain     string `json:"domain,omitempty"`
	Name       string `json:"name,omitempty"`
}

type DisplayInfo struct {
	Controller string `json:"controller"` // "ssd1306", "max7219"
	Width      int16  `json:"width"`
	Height     int16  `json:"height"`
	Bus        string `json:"bus"`
	Addr       uint16 `json:"addr,omitempty"`
}

// Circle is described by its top-left corner and diameter.
type Circle struct {
	X        int16 `json:"x"`
	Y        int16 `json:"y"`
	Diameter int16 `json:"d"`
	Filled   bool  `json:"filled,omitempty"`
}

// OLEDFrame is the payload of verb "draw". Text is drawn with its baseline
// at (TextX, TextY).
type OLEDFrame struct {
	Text    string   `json:"text,omitempty"`
	TextX   int16    `json:"text_x"`
	TextY   int16    `json:"text_y"`
	Circles []Circle `json:"circles,omitempty"`
}

// OLEDContrast is the payload of verb "contrast".
type OLEDContrast struct {
	Level uint8 `json:"level"`
}

// OLEDInvert is the payload of verb "invert".
type OLEDInvert struct {
	On bool `json:"on"`
}

// OLEDPower is the payload of verb "power". On false puts the panel to
// sleep; the framebuffer is kept.
type OLEDPower struct {
	On bool `json:"on"`
}

// OLEDValue is published after every flushed frame.
type OLEDValue struct {
	Frames uint32 `json:"frames"`
}

// ------------------------
// MAX7219 LED matrix
// ------------------------

type MatrixParams struct {
	Bus       string `json:"bus"`               // e.g. "spi0"
	CS        int    `json:"cs"`                // chip-select GPIO
	Modules   int    `json:"modules,omitempty"` // default 4
	Intensity uint8  `json:"intensity,omitempty"`
	Domain    string `json:"domain,omitempty"`
	Name      string `json:"name,omitempty"`
}

// MatrixShow is the payload of verb "show".
type MatrixShow struct {
	Hours uint8 `json:"h"`
	Mins  uint8 `json:"m"`
	Secs  uint8 `json:"s"`
}

// MatrixIntensity is the payload of verb "intensity" (0..15).
type MatrixIntensity struct {
	Level uint8 `json:"level"`
}

type MatrixValue struct {
	Text string `json:"text"`
}
