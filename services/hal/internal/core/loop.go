package core

import (
	"context"

	"picodemo/bus"
	"picodemo/errcode"
	"picodemo/types"
	"picodemo/x/timex"
)

const eventQueueLen = 32

type HAL struct {
	conn *bus.Connection
	res  Resources

	// Device registry
	dev map[string]Device // devID -> device

	// Capability index: address -> devID
	capIndex map[CapAddr]string

	cfgSub  *bus.Subscription
	ctrlSub *bus.Subscription

	// Single-threaded publication of device events
	evCh chan Event
}

func NewHAL(conn *bus.Connection, res Resources) *HAL {
	h := &HAL{
		conn:     conn,
		res:      res,
		dev:      map[string]Device{},
		capIndex: map[CapAddr]string{},
		evCh:     make(chan Event, eventQueueLen),
	}
	// HAL provides the emitter to devices.
	h.res.Pub = h
	return h
}

// Run handles configuration, controls and device telemetry until ctx ends.
// Every device is closed before Run returns.
func (h *HAL) Run(ctx context.Context) {
	h.cfgSub = h.conn.Subscribe(TopicConfigHAL())
	h.ctrlSub = h.conn.Subscribe(ctrlWildcard())
	defer h.conn.Unsubscribe(h.cfgSub)
	defer h.conn.Unsubscribe(h.ctrlSub)
	defer h.closeAll()

	h.pubHALState(types.HALIdle, "awaiting_config")
	ready := false
	for {
		select {
		case <-ctx.Done():
			h.pubHALState(types.HALStopped, "context_cancelled")
			return
		case msg := <-h.cfgSub.Channel():
			cfg, code := As[types.HALConfig](msg.Payload)
			if code != "" || msg.Payload == nil {
				println("[hal] ignoring config/hal: invalid payload")
				continue
			}
			// applyConfig is additive/idempotent for existing devices.
			h.applyConfig(ctx, cfg)
			if !ready {
				ready = true
				h.pubHALState(types.HALReady, "")
			}
		case m := <-h.ctrlSub.Channel():
			if !ready {
				h.replyErr(m, errcode.HALNotReady)
				continue
			}
			h.handleControl(m) // strictly non-blocking
		case ev := <-h.evCh:
			// All device→HAL telemetry is published from this goroutine.
			h.handleEvent(ev)
		}
	}
}

func (h *HAL) applyConfig(ctx context.Context, cfg types.HALConfig) {
	for i := range cfg.Devices {
		dc := cfg.Devices[i]
		if _, exists := h.dev[dc.ID]; exists {
			continue
		}
		b, ok := lookupBuilder(dc.Type)
		if !ok {
			println("[hal] no builder for type:", dc.Type, "id:", dc.ID)
			continue
		}
		dev, err := b.Build(ctx, BuilderInput{
			ID:     dc.ID,
			Type:   dc.Type,
			Params: dc.Params,
			Res:    h.res,
		})
		if err != nil {
			println("[hal] build failed for:", dc.ID, "err:", err.Error())
			continue
		}
		caps := h.resolveCaps(dev)
		if err := dev.Init(ctx); err != nil {
			println("[hal] init failed for:", dc.ID, "err:", err.Error())
			// Capabilities stay unindexed; announce them as degraded so
			// that waiters see the failure instead of silence.
			code := string(errcode.Of(err))
			for _, a := range caps {
				h.pubStatus(a, types.LinkDegraded, code, timex.NowMs())
			}
			_ = dev.Close()
			continue
		}
		h.dev[dev.ID()] = dev

		// Register capabilities, publish retained info + initial status:down
		for i, cs := range dev.Capabilities() {
			a := caps[i]
			h.capIndex[a] = dev.ID()
			h.conn.Publish(h.conn.NewMessage(
				CapInfo(a.Domain, a.Kind, a.Name),
				types.Info{SchemaVersion: cs.Info.SchemaVersion, Driver: cs.Info.Driver, Detail: cs.Info.Detail},
				true,
			))
			h.pubStatus(a, types.LinkDown, "", timex.NowMs())
		}
	}
}

// resolveCaps applies the default domain and name to each capability.
func (h *HAL) resolveCaps(dev Device) []CapAddr {
	specs := dev.Capabilities()
	out := make([]CapAddr, len(specs))
	for i, cs := range specs {
		k := string(cs.Kind)
		a := CapAddr{Domain: cs.Domain, Kind: k, Name: cs.Name}
		if a.Domain == "" {
			a.Domain = DefaultDomainFor(k)
		}
		if a.Name == "" {
			a.Name = dev.ID()
		}
		out[i] = a
	}
	return out
}

func (h *HAL) handleControl(msg *bus.Message) {
	// hal/cap/<domain>/<kind>/<name>/control/<verb>
	if msg.Topic.Len() != 7 {
		h.replyErr(msg, errcode.InvalidTopic)
		return
	}
	domain, ok1 := msg.Topic.At(2).(string)
	kind, ok2 := msg.Topic.At(3).(string)
	name, ok3 := msg.Topic.At(4).(string)
	verb, ok4 := msg.Topic.At(6).(string)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		h.replyErr(msg, errcode.InvalidTopic)
		return
	}

	addr := CapAddr{Domain: domain, Kind: kind, Name: name}
	ownerID, ok := h.capIndex[addr]
	if !ok {
		h.replyErr(msg, errcode.UnknownCapability)
		return
	}
	dev := h.dev[ownerID]
	if dev == nil {
		h.replyErr(msg, errcode.Error)
		return
	}

	res, err := dev.Control(addr, verb, msg.Payload)
	if err != nil {
		h.replyFromError(msg, err)
		return
	}
	if !msg.CanReply() {
		return
	}
	if res.OK {
		h.replyOK(msg)
		return
	}
	code := res.Error
	if code == "" {
		code = errcode.Busy
	}
	h.replyErr(msg, code)
}

func (h *HAL) handleEvent(ev Event) {
	a := ev.Addr
	ts := ev.TSms
	if ts == 0 {
		ts = timex.NowMs()
	}

	// 1) Error → retained status:degraded; no value/event published.
	if ev.Err != "" {
		h.pubStatus(a, types.LinkDegraded, ev.Err, ts)
		return
	}

	// 2) Success: event vs value
	if ev.IsEvent {
		t := CapEvent(a.Domain, a.Kind, a.Name)
		if ev.EventTag != "" {
			t = CapEventTagged(a.Domain, a.Kind, a.Name, ev.EventTag)
		}
		h.conn.Publish(h.conn.NewMessage(t, ev.Payload, false))
	} else {
		h.conn.Publish(h.conn.NewMessage(CapValue(a.Domain, a.Kind, a.Name), ev.Payload, true))
	}
	h.pubStatus(a, types.LinkUp, "", ts)
}

func (h *HAL) pubStatus(a CapAddr, link types.Link, code string, ts int64) {
	h.conn.Publish(h.conn.NewMessage(
		CapStatus(a.Domain, a.Kind, a.Name),
		types.CapabilityStatus{Link: link, TSms: ts, Error: code},
		true,
	))
}

func (h *HAL) pubHALState(level types.HALLevel, status string) {
	h.conn.Publish(h.conn.NewMessage(
		TopicHALState(),
		types.HALState{Level: level, Status: status, TSms: timex.NowMs()},
		true,
	))
}

func (h *HAL) closeAll() {
	for id, d := range h.dev {
		if err := d.Close(); err != nil {
			println("[hal] close failed for:", id, "err:", err.Error())
		}
		delete(h.dev, id)
	}
	for k := range h.capIndex {
		delete(h.capIndex, k)
	}
}

// DefaultDomainFor infers the public domain of a capability kind.
func DefaultDomainFor(kind string) string {
	switch types.Kind(kind) {
	case types.KindDisplay:
		return "display"
	default:
		return "io"
	}
}

// ---- HAL as EventEmitter (enqueue to single publisher) ----

func (h *HAL) Emit(ev Event) bool {
	select {
	case h.evCh <- ev:
		return true
	default:
		return false
	}
}
