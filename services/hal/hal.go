// Package hal owns the board's buses and pins and exposes the configured
// devices as capabilities on the bus under hal/cap/<domain>/<kind>/<name>.
package hal

import (
	"context"

	"picodemo/bus"
	"picodemo/errcode"
	"picodemo/services/hal/internal/core"
	"picodemo/services/hal/internal/provider"
	"picodemo/setups"
	"picodemo/types"

	// Device builders register themselves.
	_ "picodemo/services/hal/devices/gpio_dout"
	_ "picodemo/services/hal/devices/max7219"
	_ "picodemo/services/hal/devices/serial_console"
	_ "picodemo/services/hal/devices/ssd1306"
)

// Run serves the HAL for the selected board until ctx ends. Devices are
// built from the retained config/hal message.
func Run(ctx context.Context, conn *bus.Connection) {
	res, reg := provider.NewResources(setups.Selected.Plan)
	defer reg.Close()
	core.NewHAL(conn, res).Run(ctx)
}

// DeviceTypes lists the device types this build can instantiate.
func DeviceTypes() []string { return core.RegisteredTypes() }

func TopicConfig() bus.Topic { return core.TopicConfigHAL() }
func TopicState() bus.Topic  { return core.TopicHALState() }

// Cap addresses one capability.
type Cap struct {
	Domain string
	Kind   types.Kind
	Name   string
}

func (c Cap) Info() bus.Topic   { return core.CapInfo(c.Domain, string(c.Kind), c.Name) }
func (c Cap) Status() bus.Topic { return core.CapStatus(c.Domain, string(c.Kind), c.Name) }
func (c Cap) Value() bus.Topic  { return core.CapValue(c.Domain, string(c.Kind), c.Name) }
func (c Cap) Event(tag string) bus.Topic {
	return core.CapEventTagged(c.Domain, string(c.Kind), c.Name, tag)
}
func (c Cap) Ctrl(verb string) bus.Topic {
	return core.CapCtrl(c.Domain, string(c.Kind), c.Name, verb)
}

// Call sends verb to the capability and waits for the enqueue reply. A
// rejected control returns its error code.
func (c Cap) Call(ctx context.Context, conn *bus.Connection, verb string, payload any) error {
	reply, err := conn.RequestWait(ctx, conn.NewMessage(c.Ctrl(verb), payload, false))
	if err != nil {
		return errcode.Wrap(errcode.Timeout, verb, err)
	}
	switch r := reply.Payload.(type) {
	case types.OKReply:
		return nil
	case types.ErrorReply:
		return errcode.Code(r.Error)
	default:
		return errcode.Error
	}
}
