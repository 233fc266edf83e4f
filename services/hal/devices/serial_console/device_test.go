package serial_console

import (
	"context"
	"errors"
	"testing"
	"time"

	"picodemo/errcode"
	"picodemo/services/hal/internal/core"
	"picodemo/services/hal/internal/provider"
	"picodemo/services/hal/internal/testutil"
	"picodemo/types"
)

func build(t *testing.T, env *testutil.Env) *Device {
	t.Helper()
	dev, err := builder{}.Build(context.Background(), core.BuilderInput{
		ID: "console0", Type: "serial_console",
		Params: types.SerialParams{Bus: "uart0", Baud: 115200, Name: "console"},
		Res:    env.Res,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	d := dev.(*Device)
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func txBytes(ev core.Event) uint32 { return ev.Payload.(types.SerialValue).TxBytes }

func TestWrite_CountsBytes(t *testing.T) {
	env := testutil.NewEnv(t)
	d := build(t, env)
	if ev := env.Em.Next(t, time.Second, nil); txBytes(ev) != 0 {
		t.Fatalf("initial value = %+v", ev)
	}

	for _, s := range []string{"hb 1\r\n", "hb 2\r\n"} {
		if res, _ := d.Control(core.CapAddr{}, "write", types.SerialWrite{Data: []byte(s)}); !res.OK {
			t.Fatalf("write: %+v", res)
		}
	}
	env.Em.Next(t, time.Second, nil)
	if ev := env.Em.Next(t, time.Second, nil); txBytes(ev) != 12 {
		t.Fatalf("tx_bytes = %d, want 12", txBytes(ev))
	}
	if got := env.Out.String(); got != "hb 1\r\nhb 2\r\n" {
		t.Fatalf("console = %q", got)
	}
}

func TestWrite_Rejections(t *testing.T) {
	env := testutil.NewEnv(t)
	d := build(t, env)
	for _, tc := range []struct {
		verb    string
		payload any
		want    errcode.Code
	}{
		{"write", types.SerialWrite{}, errcode.InvalidPayload},
		{"write", 42, errcode.InvalidPayload},
		{"flush", nil, errcode.Unsupported},
	} {
		if res, _ := d.Control(core.CapAddr{}, tc.verb, tc.payload); res.OK || res.Error != tc.want {
			t.Errorf("%s %v: %+v", tc.verb, tc.payload, res)
		}
	}
}

// blockingPort never completes a write until released.
type blockingPort struct{ release chan struct{} }

func (p *blockingPort) Write(b []byte) (int, error) { <-p.release; return len(b), nil }

func TestWrite_FullQueueIsBusy(t *testing.T) {
	port := &blockingPort{release: make(chan struct{})}
	em := testutil.NewEmitter()
	d := &Device{port: port, res: core.Resources{Reg: testutil.NewEnv(t).Reg, Pub: em}, txq: make(chan []byte, txQueueLen)}
	if err := d.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	defer close(port.release)

	var busy bool
	for i := 0; i < txQueueLen+2; i++ {
		res, _ := d.Control(core.CapAddr{}, "write", types.SerialWrite{Data: []byte("x")})
		if !res.OK {
			if res.Error != errcode.Busy {
				t.Fatalf("want busy, got %+v", res)
			}
			busy = true
		}
	}
	if !busy {
		t.Fatal("queue never filled")
	}
}

func TestRx_PublishesEvents(t *testing.T) {
	env := testutil.NewEnv(t)
	env.HW.Serial["uart0"].(*provider.FakeSerial).RX = make(chan []byte, 1)
	build(t, env)

	env.HW.Serial["uart0"].(*provider.FakeSerial).RX <- []byte("ping")
	ev := env.Em.Next(t, time.Second, func(ev core.Event) bool { return ev.IsEvent })
	if ev.EventTag != EventRx || string(ev.Payload.(types.SerialRx).Data) != "ping" {
		t.Fatalf("rx event = %+v", ev)
	}
}

func TestBuild_Errors(t *testing.T) {
	env := testutil.NewEnv(t)
	build(t, env)
	_, err := builder{}.Build(context.Background(), core.BuilderInput{ID: "b", Params: types.SerialParams{Bus: "uart0"}, Res: env.Res})
	if !errors.Is(err, errcode.BusInUse) {
		t.Fatalf("second claim: %v", err)
	}
	_, err = builder{}.Build(context.Background(), core.BuilderInput{ID: "c", Params: types.SerialParams{}, Res: env.Res})
	if !errors.Is(err, errcode.InvalidParams) {
		t.Fatalf("missing bus: %v", err)
	}
}
