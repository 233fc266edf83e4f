// Package bounce runs the status-LED boot protocol and then animates a
// ball bouncing around the OLED.
//
// Boot: two slow blinks, LED off, one short blink, OLED init. A failed
// init leaves the LED blinking fast forever. A good init gets one long
// pulse, then every frame is drawn with the LED lit.
package bounce

import (
	"context"
	"errors"
	"time"

	"picodemo/bounce"
	"picodemo/bus"
	"picodemo/errcode"
	"picodemo/services/config"
	"picodemo/services/hal"
	"picodemo/setups"
	"picodemo/types"
)

// LED timings of the boot protocol, in milliseconds.
const (
	slowMs  = 500
	shortMs = 100
	fastMs  = 50
	pulseMs = 1000
)

const (
	DefaultTitle      = "Wokwi Go"
	DefaultFrameDelay = 50 * time.Millisecond
	DefaultAckTimeout = 250 * time.Millisecond

	readyTimeout = 5 * time.Second
	initTimeout  = 5 * time.Second
	callTimeout  = 500 * time.Millisecond
)

var (
	ErrInitFailed = errors.New("bounce: oled init failed")
	ErrNoAck      = errors.New("bounce: no acknowledgement")
)

type Config struct {
	Title        string `json:"title"`
	FrameDelayMs int    `json:"frame_delay_ms"`
	AckTimeoutMs int    `json:"ack_timeout_ms"`
}

type Service struct {
	LED  hal.Cap
	OLED hal.Cap

	Title      string
	FrameDelay time.Duration
	AckTimeout time.Duration

	// MaxFrames stops the animation after that many frames; 0 runs until
	// the context ends.
	MaxFrames int
	// Done, when set, is closed once the service goroutine returns.
	Done chan struct{}
}

func New() *Service {
	return &Service{
		LED:        hal.Cap{Domain: "io", Kind: types.KindLED, Name: setups.StatusLED},
		OLED:       hal.Cap{Domain: "display", Kind: types.KindDisplay, Name: setups.OLED},
		Title:      DefaultTitle,
		FrameDelay: DefaultFrameDelay,
		AckTimeout: DefaultAckTimeout,
	}
}

// Start the bounce service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go func() {
		if s.Done != nil {
			defer close(s.Done)
		}
		if err := s.run(ctx, conn); err != nil && ctx.Err() == nil {
			println("[bounce] " + err.Error())
		}
	}()
	return nil
}

func (s *Service) run(ctx context.Context, conn *bus.Connection) error {
	s.applyConfig(conn)
	if err := waitReady(ctx, conn); err != nil {
		return err
	}
	if err := s.boot(ctx, conn); err != nil {
		if errors.Is(err, ErrInitFailed) {
			println("[bounce] oled init failed, blinking")
			s.blinkForever(ctx, conn)
		}
		return err
	}
	return s.animate(ctx, conn)
}

// applyConfig takes config/bounce if it is already retained.
func (s *Service) applyConfig(conn *bus.Connection) {
	sub := conn.Subscribe(config.Topic("bounce"))
	defer conn.Unsubscribe(sub)
	select {
	case m := <-sub.Channel():
		c, err := config.Decode[Config](m.Payload)
		if err != nil {
			println("[bounce] ignoring bad config")
			return
		}
		if c.Title != "" {
			s.Title = c.Title
		}
		if c.FrameDelayMs > 0 {
			s.FrameDelay = time.Duration(c.FrameDelayMs) * time.Millisecond
		}
		if c.AckTimeoutMs > 0 {
			s.AckTimeout = time.Duration(c.AckTimeoutMs) * time.Millisecond
		}
	default:
	}
}

func (s *Service) boot(ctx context.Context, conn *bus.Connection) error {
	if err := s.blink(ctx, conn, 2, slowMs, slowMs); err != nil {
		return err
	}
	if err := s.setLED(ctx, conn, false); err != nil {
		return err
	}
	if err := s.blink(ctx, conn, 1, shortMs, shortMs); err != nil {
		return err
	}
	if err := s.initOLED(ctx, conn); err != nil {
		return err
	}
	// Long pulse: on, wait, off.
	if err := s.setLED(ctx, conn, true); err != nil {
		return err
	}
	if err := sleep(ctx, pulseMs*time.Millisecond); err != nil {
		return err
	}
	return s.setLED(ctx, conn, false)
}

func (s *Service) animate(ctx context.Context, conn *bus.Connection) error {
	values := conn.Subscribe(s.OLED.Value())
	defer conn.Unsubscribe(values)

	// The retained value carries the frame count after init. Every frame
	// waits for one more than the last count seen, so a rejected or lost
	// draw does not push later frames out to the ack timeout.
	var last uint32
	if v, ok := nextFrames(ctx, values, s.AckTimeout); ok {
		last = v
	}

	ball := bounce.NewBall()
	for n := 1; s.MaxFrames == 0 || n <= s.MaxFrames; n++ {
		if err := s.setLED(ctx, conn, true); err != nil {
			return err
		}
		ball.Step()
		if err := s.call(ctx, conn, s.OLED, "draw", ball.Frame(s.Title)); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			println("[bounce] draw:", err.Error())
		} else {
			v, ok := waitFrames(ctx, values, last+1, s.AckTimeout)
			last = max(last, v)
			if !ok && ctx.Err() == nil {
				println("[bounce] frame", n, "not acknowledged")
			}
		}
		if err := s.setLED(ctx, conn, false); err != nil {
			return err
		}
		if err := sleep(ctx, s.FrameDelay); err != nil {
			return err
		}
	}
	return nil
}

// blink runs a finite blink and waits for its blink_done event.
func (s *Service) blink(ctx context.Context, conn *bus.Connection, count, onMs, offMs uint16) error {
	done := conn.Subscribe(s.LED.Event("blink_done"))
	defer conn.Unsubscribe(done)

	if err := s.call(ctx, conn, s.LED, "blink", types.LEDBlink{Count: count, OnMs: onMs, OffMs: offMs}); err != nil {
		return err
	}
	limit := time.Duration(count)*time.Duration(onMs+offMs)*time.Millisecond + time.Second
	t := time.NewTimer(limit)
	defer t.Stop()
	select {
	case <-done.Channel():
		return nil
	case <-t.C:
		return errcode.Wrap(errcode.Timeout, "blink", ErrNoAck)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) blinkForever(ctx context.Context, conn *bus.Connection) {
	if err := s.call(ctx, conn, s.LED, "blink", types.LEDBlink{Count: 0, OnMs: fastMs, OffMs: fastMs}); err != nil {
		println("[bounce] blink:", err.Error())
	}
	<-ctx.Done()
}

func (s *Service) setLED(ctx context.Context, conn *bus.Connection, on bool) error {
	return s.call(ctx, conn, s.LED, "set", types.LEDSet{Level: on})
}

// initOLED requests init and waits for the OLED's status to leave "down".
func (s *Service) initOLED(ctx context.Context, conn *bus.Connection) error {
	status := conn.Subscribe(s.OLED.Status())
	defer conn.Unsubscribe(status)

	if err := s.call(ctx, conn, s.OLED, "init", nil); err != nil {
		return errors.Join(ErrInitFailed, err)
	}
	t := time.NewTimer(initTimeout)
	defer t.Stop()
	for {
		select {
		case m := <-status.Channel():
			st, ok := m.Payload.(types.CapabilityStatus)
			if !ok {
				continue
			}
			switch st.Link {
			case types.LinkUp:
				return nil
			case types.LinkDegraded:
				return errors.Join(ErrInitFailed, errcode.Code(st.Error))
			}
		case <-t.C:
			return errors.Join(ErrInitFailed, errcode.Timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Service) call(ctx context.Context, conn *bus.Connection, c hal.Cap, verb string, payload any) error {
	cctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	return c.Call(cctx, conn, verb, payload)
}

func waitReady(ctx context.Context, conn *bus.Connection) error {
	sub := conn.Subscribe(hal.TopicState())
	defer conn.Unsubscribe(sub)
	t := time.NewTimer(readyTimeout)
	defer t.Stop()
	for {
		select {
		case m := <-sub.Channel():
			if st, ok := m.Payload.(types.HALState); ok && st.Level == types.HALReady {
				return nil
			}
		case <-t.C:
			return errcode.HALNotReady
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// nextFrames returns the frame count of the next OLED value.
func nextFrames(ctx context.Context, sub *bus.Subscription, d time.Duration) (uint32, bool) {
	t := time.NewTimer(d)
	defer t.Stop()
	for {
		select {
		case m := <-sub.Channel():
			if v, ok := m.Payload.(types.OLEDValue); ok {
				return v.Frames, true
			}
		case <-t.C:
			return 0, false
		case <-ctx.Done():
			return 0, false
		}
	}
}

// waitFrames waits until the OLED reports at least want frames. It returns
// the highest count seen, which is 0 when nothing arrived.
func waitFrames(ctx context.Context, sub *bus.Subscription, want uint32, d time.Duration) (uint32, bool) {
	deadline := time.Now().Add(d)
	var seen uint32
	for {
		left := time.Until(deadline)
		if left <= 0 {
			return seen, false
		}
		v, ok := nextFrames(ctx, sub, left)
		if !ok {
			return seen, false
		}
		seen = max(seen, v)
		if seen >= want {
			return seen, true
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
