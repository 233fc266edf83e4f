// Package clock runs the HH:MM:SS clock on the LED matrix.
package clock

import (
	"context"
	"time"

	"picodemo/bus"
	"picodemo/clock"
	"picodemo/services/config"
	"picodemo/services/hal"
	"picodemo/setups"
	"picodemo/types"
)

const (
	DefaultStart = "12:00:00"
	callTimeout  = 500 * time.Millisecond
)

type Config struct {
	Start string `json:"start"` // HH:MM:SS
}

type Service struct {
	Matrix hal.Cap
	Period time.Duration // one clock second
}

func New() *Service {
	return &Service{
		Matrix: hal.Cap{Domain: "display", Kind: types.KindDisplay, Name: setups.Matrix},
		Period: time.Second,
	}
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(config.Topic("clock"))
	defer conn.Unsubscribe(cfgSub)

	st, _ := clock.Parse(DefaultStart)
	s.show(ctx, conn, st)

	tick := time.NewTicker(s.Period)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("[clock] stopping")
			return
		case <-tick.C:
			st.Tick()
			s.show(ctx, conn, st)
		case msg := <-cfgSub.Channel():
			c, err := config.Decode[Config](msg.Payload)
			if err != nil {
				println("[clock] ignoring bad config")
				continue
			}
			start, err := clock.Parse(c.Start)
			if err != nil {
				println("[clock] bad start time:", c.Start)
				continue
			}
			st = start
			tick.Reset(s.Period)
			s.show(ctx, conn, st)
		}
	}
}

func (s *Service) show(ctx context.Context, conn *bus.Connection, st clock.State) {
	cctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	err := s.Matrix.Call(cctx, conn, "show", types.MatrixShow{Hours: st.Hours, Mins: st.Mins, Secs: st.Secs})
	if err != nil {
		println("[clock] show", st.String()+":", err.Error())
	}
}

// Start the clock service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	if s.Period <= 0 {
		s.Period = time.Second
	}
	go s.serviceLoop(ctx, conn)
	return nil
}
