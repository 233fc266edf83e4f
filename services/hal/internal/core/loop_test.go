package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"picodemo/bus"
	"picodemo/errcode"
	"picodemo/types"
)

// ---- Test device & builder ----

type testDev struct {
	id      string
	pub     EventEmitter
	initErr error
	closed  bool
}

func (d *testDev) ID() string { return d.id }
func (d *testDev) Capabilities() []CapabilitySpec {
	return []CapabilitySpec{{Kind: types.KindLED, Name: d.id, Info: types.Info{SchemaVersion: 1, Driver: "test"}}}
}
func (d *testDev) Init(ctx context.Context) error { return d.initErr }
func (d *testDev) Close() error                   { d.closed = true; return nil }

func (d *testDev) Control(a CapAddr, verb string, payload any) (EnqueueResult, error) {
	switch verb {
	case "echo":
		p, code := As[types.LEDValue](payload)
		if code != "" {
			return EnqueueResult{OK: false, Error: code}, nil
		}
		d.pub.Emit(Event{Addr: a, Payload: p})
		return EnqueueResult{OK: true}, nil
	case "ping":
		d.pub.Emit(Event{Addr: a, Payload: "pong", IsEvent: true, EventTag: "ping"})
		return EnqueueResult{OK: true}, nil
	case "break":
		d.pub.Emit(Event{Addr: a, Err: string(errcode.IOError)})
		return EnqueueResult{OK: true}, nil
	case "fail":
		return EnqueueResult{}, errcode.Wrap(errcode.Timeout, "test", errors.New("slow"))
	default:
		return EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
}

var lastDev = map[string]*testDev{}

type testBuilder struct{ initErr error }

func (b testBuilder) Build(ctx context.Context, in BuilderInput) (Device, error) {
	d := &testDev{id: in.ID, pub: in.Res.Pub, initErr: b.initErr}
	lastDev[in.ID] = d
	return d, nil
}

func init() {
	RegisterBuilder("core_test", testBuilder{})
	RegisterBuilder("core_test_badinit", testBuilder{initErr: errcode.Wrap(errcode.InitFailed, "test", errors.New("nack"))})
}

func recvWithin[T any](t *testing.T, ch <-chan T, d time.Duration) (T, bool) {
	t.Helper()
	var zero T
	select {
	case v := <-ch:
		return v, true
	case <-time.After(d):
		return zero, false
	}
}

func startHAL(t *testing.T) (*bus.Connection, context.CancelFunc, chan struct{}) {
	t.Helper()
	b := bus.NewBus(16)
	halConn := b.NewConnection("hal")
	conn := b.NewConnection("test")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewHAL(halConn, Resources{}).Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return conn, cancel, done
}

func request(t *testing.T, conn *bus.Connection, topic bus.Topic, payload any) any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reply, err := conn.RequestWait(ctx, conn.NewMessage(topic, payload, false))
	if err != nil {
		t.Fatalf("request %v: %v", topic, err)
	}
	return reply.Payload
}

func waitState(t *testing.T, conn *bus.Connection, level types.HALLevel) {
	t.Helper()
	sub := conn.Subscribe(TopicHALState())
	defer conn.Unsubscribe(sub)
	deadline := time.After(time.Second)
	for {
		select {
		case m := <-sub.Channel():
			if st, ok := m.Payload.(types.HALState); ok && st.Level == level {
				return
			}
		case <-deadline:
			t.Fatalf("hal never reported %s", level)
		}
	}
}

func waitReady(t *testing.T, conn *bus.Connection) { t.Helper(); waitState(t, conn, types.HALReady) }

func waitLink(t *testing.T, ch <-chan *bus.Message, link types.Link) types.CapabilityStatus {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case m := <-ch:
			if st, ok := m.Payload.(types.CapabilityStatus); ok && st.Link == link {
				return st
			}
		case <-deadline:
			t.Fatalf("status never became %s", link)
		}
	}
}

// ---- Tests ----

func TestControlBeforeConfig_HALNotReady(t *testing.T) {
	conn, _, _ := startHAL(t)
	waitState(t, conn, types.HALIdle)

	got := request(t, conn, CapCtrl("io", "led", "x", "echo"), nil)
	er, ok := got.(types.ErrorReply)
	if !ok || er.Error != string(errcode.HALNotReady) {
		t.Fatalf("reply = %#v, want hal_not_ready", got)
	}
}

func TestConfig_PublishesInfoStatusAndRoutesControls(t *testing.T) {
	conn, _, _ := startHAL(t)

	conn.Publish(conn.NewMessage(TopicConfigHAL(), types.HALConfig{
		Devices: []types.HALDevice{{ID: "d1", Type: "core_test"}},
	}, true))
	waitReady(t, conn)

	info := conn.Subscribe(CapInfo("io", "led", "d1"))
	defer conn.Unsubscribe(info)
	if m, ok := recvWithin(t, info.Channel(), 200*time.Millisecond); !ok {
		t.Fatal("no retained info")
	} else if in := m.Payload.(types.Info); in.Driver != "test" || in.SchemaVersion != 1 {
		t.Fatalf("info = %+v", in)
	}

	status := conn.Subscribe(CapStatus("io", "led", "d1"))
	defer conn.Unsubscribe(status)
	if m, ok := recvWithin(t, status.Channel(), 200*time.Millisecond); !ok {
		t.Fatal("no retained status")
	} else if st := m.Payload.(types.CapabilityStatus); st.Link != types.LinkDown {
		t.Fatalf("initial status = %+v, want down", st)
	}

	value := conn.Subscribe(CapValue("io", "led", "d1"))
	defer conn.Unsubscribe(value)

	got := request(t, conn, CapCtrl("io", "led", "d1", "echo"), types.LEDValue{Level: 1})
	if r, ok := got.(types.OKReply); !ok || !r.OK {
		t.Fatalf("echo reply = %#v", got)
	}
	if m, ok := recvWithin(t, value.Channel(), 200*time.Millisecond); !ok {
		t.Fatal("no value published")
	} else if !m.Retained || m.Payload.(types.LEDValue).Level != 1 {
		t.Fatalf("value = %+v", m)
	}
	waitLink(t, status.Channel(), types.LinkUp)
}

func TestControl_ErrorsAndEvents(t *testing.T) {
	conn, _, _ := startHAL(t)
	conn.Publish(conn.NewMessage(TopicConfigHAL(), types.HALConfig{
		Devices: []types.HALDevice{{ID: "d2", Type: "core_test"}},
	}, true))
	waitReady(t, conn)

	cases := []struct {
		topic bus.Topic
		want  errcode.Code
	}{
		{CapCtrl("io", "led", "nope", "echo"), errcode.UnknownCapability},
		{CapCtrl("io", "led", "d2", "dance"), errcode.Unsupported},
		{CapCtrl("io", "led", "d2", "fail"), errcode.Timeout},
		{bus.T("hal", "cap", "io", "led", "d2", "control", 7), errcode.InvalidTopic},
	}
	for _, tc := range cases {
		got := request(t, conn, tc.topic, nil)
		er, ok := got.(types.ErrorReply)
		if !ok || er.Error != string(tc.want) {
			t.Errorf("%v: reply = %#v, want %s", tc.topic, got, tc.want)
		}
	}

	// Wrong payload type.
	got := request(t, conn, CapCtrl("io", "led", "d2", "echo"), 42)
	if er, ok := got.(types.ErrorReply); !ok || er.Error != string(errcode.InvalidPayload) {
		t.Fatalf("echo(42) reply = %#v", got)
	}

	ev := conn.Subscribe(CapEventTagged("io", "led", "d2", "ping"))
	defer conn.Unsubscribe(ev)
	request(t, conn, CapCtrl("io", "led", "d2", "ping"), nil)
	if m, ok := recvWithin(t, ev.Channel(), 200*time.Millisecond); !ok {
		t.Fatal("no tagged event")
	} else if m.Retained || m.Payload != "pong" {
		t.Fatalf("event = %+v", m)
	}

	status := conn.Subscribe(CapStatus("io", "led", "d2"))
	defer conn.Unsubscribe(status)
	request(t, conn, CapCtrl("io", "led", "d2", "break"), nil)
	if st := waitLink(t, status.Channel(), types.LinkDegraded); st.Error != "io_error" {
		t.Fatalf("status = %+v", st)
	}
}

func TestInitFailure_PublishesDegradedAndSkipsDevice(t *testing.T) {
	conn, _, _ := startHAL(t)
	status := conn.Subscribe(CapStatus("io", "led", "bad"))
	defer conn.Unsubscribe(status)

	conn.Publish(conn.NewMessage(TopicConfigHAL(), types.HALConfig{
		Devices: []types.HALDevice{{ID: "bad", Type: "core_test_badinit"}},
	}, true))
	waitReady(t, conn)

	m, ok := recvWithin(t, status.Channel(), 200*time.Millisecond)
	if !ok {
		t.Fatal("no status for failed device")
	}
	if st := m.Payload.(types.CapabilityStatus); st.Link != types.LinkDegraded || st.Error != string(errcode.InitFailed) {
		t.Fatalf("status = %+v", st)
	}
	if !lastDev["bad"].closed {
		t.Fatal("failed device must be closed")
	}
	got := request(t, conn, CapCtrl("io", "led", "bad", "echo"), nil)
	if er, ok := got.(types.ErrorReply); !ok || er.Error != string(errcode.UnknownCapability) {
		t.Fatalf("reply = %#v", got)
	}
}

func TestConfig_DecodesJSONShapedPayloadAndStops(t *testing.T) {
	conn, cancel, done := startHAL(t)

	conn.Publish(conn.NewMessage(TopicConfigHAL(), map[string]any{
		"devices": []any{map[string]any{"id": "j1", "type": "core_test"}},
	}, true))
	waitReady(t, conn)

	got := request(t, conn, CapCtrl("io", "led", "j1", "echo"), map[string]any{"level": 1})
	if r, ok := got.(types.OKReply); !ok || !r.OK {
		t.Fatalf("reply = %#v", got)
	}

	cancel()
	<-done
	if !lastDev["j1"].closed {
		t.Fatal("devices must be closed when HAL stops")
	}
	state := conn.Subscribe(TopicHALState())
	defer conn.Unsubscribe(state)
	m, ok := recvWithin(t, state.Channel(), 200*time.Millisecond)
	if !ok || m.Payload.(types.HALState).Level != types.HALStopped {
		t.Fatalf("final state = %+v", m)
	}
}

func TestAs(t *testing.T) {
	v, code := As[types.LEDSet](&types.LEDSet{Level: true})
	if code != "" || !v.Level {
		t.Fatalf("pointer payload: %v %q", v, code)
	}
	if _, code := As[types.LEDSet](nil); code != "" {
		t.Fatalf("nil payload must decode to zero value, got %q", code)
	}
	if _, code := As[types.LEDSet]("x"); code != errcode.InvalidPayload {
		t.Fatalf("string payload: %q", code)
	}
	if _, err := Params[types.LEDParams](nil); err != errcode.InvalidParams {
		t.Fatalf("nil params: %v", err)
	}
	p, err := Params[types.LEDParams](map[string]any{"pin": 25.0, "name": "status"})
	if err != nil || p.Pin != 25 || p.Name != "status" {
		t.Fatalf("map params: %+v %v", p, err)
	}
}
