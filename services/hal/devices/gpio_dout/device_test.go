package gpio_dout

import (
	"context"
	"testing"
	"time"

	"picodemo/errcode"
	"picodemo/services/hal/internal/core"
	"picodemo/services/hal/internal/provider"
	"picodemo/services/hal/internal/testutil"
	"picodemo/types"
)

func build(t *testing.T, p types.LEDParams) (*Device, *provider.FakePin, *testutil.Emitter) {
	t.Helper()
	env := testutil.NewEnv(t)
	dev, err := builderLED{}.Build(context.Background(), core.BuilderInput{ID: "led0", Type: "gpio_led", Params: p, Res: env.Res})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	d := dev.(*Device)
	t.Cleanup(func() { _ = d.Close() })
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	// The registry caches handles; re-claiming as the owner returns the same pin.
	g, err := env.Reg.ClaimGPIO("led0", p.Pin)
	if err != nil {
		t.Fatal(err)
	}
	return d, g.(*provider.FakePin), env.Em
}

func isValue(ev core.Event) bool { return !ev.IsEvent && ev.Err == "" }

func level(ev core.Event) uint8 { return ev.Payload.(types.LEDValue).Level }

func TestInitAndSet_ActiveLow(t *testing.T) {
	d, pin, em := build(t, types.LEDParams{Pin: 25, ActiveLow: true, Name: "status"})

	if ev := em.Next(t, time.Second, isValue); level(ev) != 0 || ev.Addr != (core.CapAddr{Domain: "io", Kind: "led", Name: "status"}) {
		t.Fatalf("initial value = %+v", ev)
	}
	if !pin.Get() {
		t.Fatal("active-low LED off must drive the pin high")
	}

	res, _ := d.Control(core.CapAddr{}, "set", types.LEDSet{Level: true})
	if !res.OK {
		t.Fatalf("set: %+v", res)
	}
	if ev := em.Next(t, time.Second, isValue); level(ev) != 1 {
		t.Fatalf("value after set = %+v", ev)
	}
	if pin.Get() {
		t.Fatal("active-low LED on must drive the pin low")
	}

	d.Control(core.CapAddr{}, "toggle", nil)
	if ev := em.Next(t, time.Second, isValue); level(ev) != 0 {
		t.Fatalf("value after toggle = %+v", ev)
	}
}

func TestControl_Rejections(t *testing.T) {
	d, _, _ := build(t, types.LEDParams{Pin: 25})

	cases := []struct {
		verb    string
		payload any
		want    errcode.Code
	}{
		{"set", "on", errcode.InvalidPayload},
		{"blink", types.LEDBlink{Count: 1}, errcode.InvalidPayload},
		{"dance", nil, errcode.Unsupported},
	}
	for _, tc := range cases {
		res, err := d.Control(core.CapAddr{}, tc.verb, tc.payload)
		if err != nil || res.OK || res.Error != tc.want {
			t.Errorf("%s: %+v %v, want %s", tc.verb, res, err, tc.want)
		}
	}
}

func TestBlink_FiniteEmitsDone(t *testing.T) {
	d, pin, em := build(t, types.LEDParams{Pin: 25})
	em.Next(t, time.Second, isValue) // initial

	res, _ := d.Control(core.CapAddr{}, "blink", types.LEDBlink{Count: 2, OnMs: 5, OffMs: 5})
	if !res.OK {
		t.Fatalf("blink: %+v", res)
	}
	ev := em.Next(t, 2*time.Second, func(ev core.Event) bool { return ev.IsEvent })
	if ev.EventTag != EventBlinkDone || ev.Payload.(types.LEDBlinkDone).Count != 2 {
		t.Fatalf("done event = %+v", ev)
	}

	var ons, offs int
	for _, e := range em.Events() {
		if !isValue(e) {
			continue
		}
		if level(e) == 1 {
			ons++
		} else {
			offs++
		}
	}
	// initial off + 2 x (on, off)
	if ons != 2 || offs != 3 {
		t.Fatalf("ons=%d offs=%d", ons, offs)
	}
	if pin.Get() {
		t.Fatal("LED must be off after a finite blink")
	}
}

func TestBlink_EndlessIsCancelledBySet(t *testing.T) {
	d, pin, em := build(t, types.LEDParams{Pin: 25})

	d.Control(core.CapAddr{}, "blink", types.LEDBlink{Count: 0, OnMs: 2, OffMs: 2})
	time.Sleep(30 * time.Millisecond)
	d.Control(core.CapAddr{}, "set", types.LEDSet{Level: true})

	sets := pin.Sets()
	time.Sleep(30 * time.Millisecond)
	if pin.Sets() != sets {
		t.Fatal("blink kept running after set")
	}
	if !pin.Get() {
		t.Fatal("set level lost")
	}
	for _, e := range em.Events() {
		if e.IsEvent {
			t.Fatalf("endless blink must not report done: %+v", e)
		}
	}
}

func TestBuild_PinConflict(t *testing.T) {
	res := testutil.NewEnv(t).Res
	if _, err := (builderLED{}).Build(context.Background(), core.BuilderInput{ID: "a", Params: types.LEDParams{Pin: 25}, Res: res}); err != nil {
		t.Fatal(err)
	}
	_, err := builderLED{}.Build(context.Background(), core.BuilderInput{ID: "b", Params: types.LEDParams{Pin: 25}, Res: res})
	if err != errcode.PinInUse {
		t.Fatalf("want pin_in_use, got %v", err)
	}
	if _, err := (builderLED{}).Build(context.Background(), core.BuilderInput{ID: "c", Params: "x", Res: res}); err != errcode.InvalidParams {
		t.Fatalf("want invalid_params, got %v", err)
	}
}
