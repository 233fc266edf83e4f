package types

// ------------------------
// Capability addressing & kinds
// ------------------------

type Kind string

const (
	KindLED     Kind = "led"
	KindDisplay Kind = "display"
	KindSerial  Kind = "serial"
)

// CapabilityAddress identifies a public capability on the bus.
type CapabilityAddress struct {
	Domain string `json:"domain"` // e.g. "io","display"
	Kind   Kind   `json:"kind"`
	Name   string `json:"name"`
}

// ------------------------
// LED
// ------------------------

type LEDParams struct {
	Pin       int    `json:"pin"`
	ActiveLow bool   `json:"active_low,omitempty"`
	Initial   bool   `json:"initial,omitempty"`
	Domain    string `json:"domain,omitempty"`
	Name      string `json:"name,omitempty"`
}

type LEDInfo struct {
	Pin int `json:"pin"`
}

type LEDValue struct {
	Level uint8 `json:"level"` // 0 or 1
}

// LEDSet is the payload of verb "set".
type LEDSet struct {
	Level bool `json:"level"`
}

// LEDBlink is the payload of verb "blink". Count 0 blinks until the next
// set, toggle or blink.
type LEDBlink struct {
	Count uint16 `json:"count"`
	OnMs  uint16 `json:"on_ms"`
	OffMs uint16 `json:"off_ms"`
}

// LEDBlinkDone is emitted on event tag "blink_done" when a finite blink ends.
type LEDBlinkDone struct {
	Count uint16 `json:"count"`
}

// ------------------------
// Serial console
// ------------------------

type SerialParams struct {
	Bus    string `json:"bus"`
	Baud   uint32 `json:"baud,omitempty"`
	Domain string `json:"domain,omitempty"`
	Name   string `json:"name,omitempty"`
}

type SerialInfo struct {
	Bus  string `json:"bus"`
	Baud uint32 `json:"baud"`
}

// SerialWrite is the payload of verb "write".
type SerialWrite struct {
	Data []byte `json:"data"`
}

type SerialValue struct {
	TxBytes uint32 `json:"tx_bytes"`
}

// SerialRx is emitted on event tag "rx" for every chunk received.
type SerialRx struct {
	Data []byte `json:"data"`
}
