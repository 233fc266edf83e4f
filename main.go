// Command picodemo is the Pico demo firmware: a bouncing ball on the
// SSD1306, a clock on the MAX7219 matrix and a console heartbeat.
package main

import (
	"context"
	"time"

	"picodemo/bus"
	"picodemo/services/bounce"
	"picodemo/services/clock"
	"picodemo/services/config"
	"picodemo/services/hal"
	"picodemo/services/heartbeat"
	"picodemo/setups"
)

const deviceID = "pico"

type service interface {
	Start(ctx context.Context, conn *bus.Connection) error
}

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("[main] boot", setups.Selected.Name)

	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, deviceID)
	b := bus.NewBus(8)

	println("[main] starting hal")
	go hal.Run(ctx, b.NewConnection("hal"))

	cfgConn := b.NewConnection("config")
	if err := config.NewConfigService().Start(ctx, cfgConn); err != nil {
		println("[main] config:", err.Error())
	}
	cfgConn.Publish(cfgConn.NewMessage(hal.TopicConfig(), setups.Selected.HAL, true))

	for name, s := range map[string]service{
		"bounce":    bounce.New(),
		"clock":     clock.New(),
		"heartbeat": heartbeat.New(),
	} {
		if err := s.Start(ctx, b.NewConnection(name)); err != nil {
			println("[main]", name, "failed:", err.Error())
		}
	}

	select {}
}
