package config

// Embedded configuration, keyed by the device ID placed in the context
// under CtxDeviceKey.

const cfgPico = `{
  "heartbeat": {
    "interval": 1
  },
  "clock": {
    "start": "12:00:00"
  },
  "bounce": {
    "title": "Wokwi Go",
    "frame_delay_ms": 50,
    "ack_timeout_ms": 250
  }
}`

var embeddedConfigs = map[string][]byte{
	"pico": []byte(cfgPico),
}
