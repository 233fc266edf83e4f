// Package heartbeat writes an uptime line to the serial console at a
// configurable interval.
package heartbeat

import (
	"context"
	"time"

	"picodemo/bus"
	"picodemo/services/config"
	"picodemo/services/hal"
	"picodemo/setups"
	"picodemo/types"
	"picodemo/x/conv"
)

const (
	defaultInterval = time.Second
	callTimeout     = 500 * time.Millisecond
)

type Config struct {
	Interval float64 `json:"interval"` // seconds
}

type Service struct {
	Console hal.Cap
	start   time.Time
}

func New() *Service {
	return &Service{Console: hal.Cap{Domain: "io", Kind: types.KindSerial, Name: setups.Console}}
}

// Line formats one heartbeat: "hb <uptime_s>\r\n".
func Line(dst []byte, uptime time.Duration) []byte {
	dst = append(dst, "hb "...)
	dst = conv.AppendUint(dst, uint64(uptime/time.Second), 0)
	return append(dst, '\r', '\n')
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(config.Topic("heartbeat"))
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(defaultInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("[heartbeat] stopping")
			return
		case <-tick.C:
			s.beat(ctx, conn)
		case msg := <-cfgSub.Channel():
			c, err := config.Decode[Config](msg.Payload)
			if err != nil || c.Interval <= 0 {
				println("[heartbeat] ignoring bad config")
				continue
			}
			tick.Reset(time.Duration(c.Interval * float64(time.Second)))
			println("[heartbeat] interval set to", int(c.Interval*1000), "ms")
		}
	}
}

func (s *Service) beat(ctx context.Context, conn *bus.Connection) {
	line := Line(nil, time.Since(s.start))
	println("[heartbeat]", string(line[:len(line)-2]))
	cctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	if err := s.Console.Call(cctx, conn, "write", types.SerialWrite{Data: line}); err != nil {
		println("[heartbeat] console write:", err.Error())
	}
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	s.start = time.Now()
	go s.serviceLoop(ctx, conn)
	return nil
}
