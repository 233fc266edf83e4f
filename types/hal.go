package types

// HALLevel is the coarse lifecycle of the HAL, retained on hal/state.
type HALLevel string

const (
	HALIdle    HALLevel = "idle"    // running, waiting for config/hal
	HALReady   HALLevel = "ready"   // devices built and capabilities published
	HALStopped HALLevel = "stopped" // context cancelled, devices closed
)

type HALState struct {
	Level  HALLevel `json:"level"`
	Status string   `json:"status,omitempty"` // short reason, e.g. awaiting_config
	TSms   int64    `json:"ts_ms"`
}

// Link is the per-capability health published on .../status.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
)

type CapabilityStatus struct {
	Link  Link   `json:"link"`
	TSms  int64  `json:"ts_ms"`
	Error string `json:"error,omitempty"` // errcode value when degraded
}

// HALConfig is the device list published on config/hal. Params is either
// the device's typed params struct or a decoded JSON object.
type HALConfig struct {
	Devices []HALDevice `json:"devices"`
}

type HALDevice struct {
	ID     string `json:"id"`
	Type   string `json:"type"` // builder name: gpio_led, ssd1306, max7219, serial_console
	Params any    `json:"params"`
}

// Control replies. Accepted controls answer OKReply; the outcome follows
// later on value, status or event.

type OKReply struct {
	OK bool `json:"ok"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Info is the retained description on .../info. Detail is one of the
// *Info structs in this package.
type Info struct {
	SchemaVersion int    `json:"schema_version"`
	Driver        string `json:"driver"`
	Detail        any    `json:"detail,omitempty"`
}
