package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wait = 200 * time.Millisecond

func recv(t *testing.T, s *Subscription) *Message {
	t.Helper()
	select {
	case m, ok := <-s.Channel():
		require.True(t, ok, "subscription %v closed", s.Topic())
		return m
	case <-time.After(wait):
		t.Fatalf("nothing on %v", s.Topic())
		return nil
	}
}

func quiet(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case m := <-s.Channel():
		t.Fatalf("unexpected %v = %v on %v", m.Topic, m.Payload, s.Topic())
	case <-time.After(40 * time.Millisecond):
	}
}

// payloads collects n string payloads in arrival order.
func payloads(t *testing.T, s *Subscription, n int) []string {
	t.Helper()
	out := make([]string, 0, n)
	for range n {
		out = append(out, recv(t, s).Payload.(string))
	}
	return out
}

func TestPublish_ExactAndRetained(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("cfg")

	live := c.Subscribe(T("config", "clock"))
	c.Publish(c.NewMessage(T("config", "clock"), "12:00:00", true))
	assert.Equal(t, "12:00:00", recv(t, live).Payload)

	late := c.Subscribe(T("config", "clock"))
	m := recv(t, late)
	assert.Equal(t, "12:00:00", m.Payload)
	assert.True(t, m.Retained)

	c.Publish(c.NewMessage(T("config", "clock"), "07:30:00", false))
	assert.Equal(t, "07:30:00", recv(t, late).Payload)
	quiet(t, c.Subscribe(T("config", "bounce")))

	// a non-retained publish leaves the stored copy alone
	assert.Equal(t, "12:00:00", recv(t, c.Subscribe(T("config", "clock"))).Payload)
}

func TestWildcards_Match(t *testing.T) {
	cases := []struct {
		pattern Topic
		hits    []Topic
		misses  []Topic
	}{
		{
			pattern: T("hal", "cap", "+", "led", "+", "value"),
			hits:    []Topic{T("hal", "cap", "io", "led", "status", "value")},
			misses: []Topic{
				T("hal", "cap", "io", "led", "status", "status"),
				T("hal", "cap", "io", "led", "status", "value", "x"),
				T("hal", "cap", "io", "led"),
			},
		},
		{
			pattern: T("hal", "cap", "#"),
			hits: []Topic{
				T("hal", "cap"),
				T("hal", "cap", "display", "display", "oled", "info"),
			},
			misses: []Topic{T("hal", "state"), T("config", "hal")},
		},
		{
			pattern: T("+", "+", "#"),
			hits:    []Topic{T("hal", "state"), T("config", "bounce", "extra")},
			misses:  []Topic{T("hal")},
		},
	}
	for _, tc := range cases {
		b := NewBus(8)
		c := b.NewConnection("w")
		s := c.Subscribe(tc.pattern)
		for _, tp := range tc.misses {
			c.Publish(c.NewMessage(tp, "miss", false))
		}
		quiet(t, s)
		for _, tp := range tc.hits {
			c.Publish(c.NewMessage(tp, "hit", false))
			assert.Equal(t, tp, recv(t, s).Topic, "pattern %v", tc.pattern)
		}
	}
}

func TestWildcards_RetainedReplayAndClear(t *testing.T) {
	b := NewBus(8)
	c := b.NewConnection("hal")
	for _, name := range []string{"oled", "matrix"} {
		c.Publish(c.NewMessage(T("hal", "cap", "display", "display", name, "info"), name, true))
	}
	c.Publish(c.NewMessage(T("hal", "cap", "io", "led", "status", "info"), "status", true))

	got := payloads(t, c.Subscribe(T("hal", "cap", "display", "+", "+", "info")), 2)
	assert.ElementsMatch(t, []string{"oled", "matrix"}, got)
	assert.ElementsMatch(t, []string{"oled", "matrix", "status"}, payloads(t, c.Subscribe(T("hal", "#")), 3))

	// retained nil clears the stored message and still reaches live subscribers
	all := c.Subscribe(T("hal", "cap", "+", "+", "+", "info"))
	payloads(t, all, 3)
	c.Publish(c.NewMessage(T("hal", "cap", "display", "display", "oled", "info"), nil, true))
	assert.Nil(t, recv(t, all).Payload)

	assert.Equal(t, []string{"matrix"}, payloads(t, c.Subscribe(T("hal", "cap", "display", "#")), 1))
	quiet(t, c.Subscribe(T("hal", "cap", "display", "display", "oled", "info")))
}

func TestPublish_FullQueueKeepsNewest(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("hb")
	s := c.Subscribe(T("hal", "cap", "io", "serial", "console", "value"))
	for _, p := range []string{"6", "12", "18"} {
		c.Publish(c.NewMessage(s.Topic(), p, false))
	}
	assert.Equal(t, []string{"12", "18"}, payloads(t, s, 2))
	quiet(t, s)
}

func TestRequestWait_Reply(t *testing.T) {
	b := NewBus(4)
	hal := b.NewConnection("hal")
	svc := b.NewConnection("bounce")

	ctrl := hal.Subscribe(T("hal", "cap", "io", "led", "+", "control", "+"))
	go func() {
		for req := range ctrl.Channel() {
			hal.Reply(req, "ok:"+req.Topic.At(6).(string), false)
		}
	}()
	t.Cleanup(func() { hal.Unsubscribe(ctrl) })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rep, err := svc.RequestWait(ctx, svc.NewMessage(T("hal", "cap", "io", "led", "status", "control", "blink"), nil, false))
	require.NoError(t, err)
	assert.Equal(t, "ok:blink", rep.Payload)
	assert.Equal(t, "_reply", rep.Topic.At(0))
	assert.Equal(t, "bounce", rep.Topic.At(1))
}

func TestRequestWait_Timeout(t *testing.T) {
	c := NewBus(4).NewConnection("bounce")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.RequestWait(ctx, c.NewMessage(T("hal", "cap", "display", "display", "oled", "control", "init"), nil, false))
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestRequest_ReplyTopicsAreUnique(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("clock")
	m1 := c.NewMessage(T("x"), nil, false)
	m2 := c.NewMessage(T("x"), nil, false)
	s1, s2 := c.Request(m1), c.Request(m2)
	defer c.Unsubscribe(s1)
	defer c.Unsubscribe(s2)
	assert.NotEqual(t, m1.ReplyTo, m2.ReplyTo)

	c.Reply(m2, "second", false)
	assert.Equal(t, "second", recv(t, s2).Payload)
	quiet(t, s1)
}

func TestReply_NoReplyTopicIgnored(t *testing.T) {
	c := NewBus(4).NewConnection("hal")
	all := c.Subscribe(T("#"))
	c.Reply(c.NewMessage(T("hal", "state"), nil, false), "dropped", false)
	quiet(t, all)
}

func TestUnsubscribeAndDisconnect_CloseChannels(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("svc")
	one := c.Subscribe(T("config", "heartbeat"))
	c.Unsubscribe(one)
	c.Unsubscribe(one)
	_, ok := <-one.Channel()
	assert.False(t, ok)
	c.Publish(c.NewMessage(T("config", "heartbeat"), "late", false))

	subs := []*Subscription{c.Subscribe(T("hal", "state")), c.Subscribe(T("hal", "cap", "#"))}
	c.Disconnect()
	for _, s := range subs {
		_, ok := <-s.Channel()
		assert.False(t, ok, "%v still open", s.Topic())
	}

	// a foreign connection cannot close someone else's subscription
	other := b.NewConnection("other")
	s := c.Subscribe(T("hal", "state"))
	other.Unsubscribe(s)
	c.Publish(c.NewMessage(T("hal", "state"), "ready", false))
	assert.Equal(t, "ready", recv(t, s).Payload)
}

func TestTopic_Helpers(t *testing.T) {
	assert.Panics(t, func() { T([]byte("oled")) })

	base := make(Topic, 0, 8)
	base = append(base, "hal", "cap")
	info, status := base.Append("info"), base.Append("status")
	assert.Equal(t, "info", info.At(2))
	assert.Equal(t, "status", status.At(2))
	assert.Nil(t, base.At(5))
	assert.Nil(t, base.At(-1))
	assert.Equal(t, 2, base.Len())
}
