package core

import (
	"context"

	"picodemo/errcode"
	"picodemo/types"
)

// ---- Capability & device model ----

// CapAddr is the public address of one capability:
// hal/cap/<domain>/<kind>/<name>/...
type CapAddr struct {
	Domain string
	Kind   string
	Name   string
}

type CapabilitySpec struct {
	Domain string // empty => inferred from Kind
	Kind   types.Kind
	Name   string // empty => device id
	Info   types.Info
}

// EnqueueResult is the synchronous answer to a control. OK means the
// request was accepted; the outcome arrives later as value/event/status.
type EnqueueResult struct {
	OK    bool
	Error errcode.Code
}

// Device is implemented by every HAL device. Control must not block: slow
// work is handed to a device-owned worker.
type Device interface {
	ID() string
	Capabilities() []CapabilitySpec
	Init(ctx context.Context) error
	Control(addr CapAddr, verb string, payload any) (EnqueueResult, error)
	Close() error // release claimed resources and stop workers
}

// Builder input
type BuilderInput struct {
	ID, Type string
	Params   any
	Res      Resources
}

type Builder interface {
	Build(ctx context.Context, in BuilderInput) (Device, error)
}
