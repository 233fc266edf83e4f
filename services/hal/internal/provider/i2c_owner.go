package provider

import (
	"time"

	"tinygo.org/x/drivers"

	"picodemo/errcode"
)

const (
	i2cQueueLen       = 16
	i2cDefaultTimeout = 250 * time.Millisecond
)

// request posted to the per-bus worker. w and r are owned by the request:
// a caller that timed out may reuse its own buffers while this one is
// still queued.
type i2cReq struct {
	addr uint16
	w, r []byte
	done chan error // buffered(1); worker replies best-effort
}

// i2cOwner hosts the single worker goroutine that touches a bus.
type i2cOwner struct {
	id   string
	hw   drivers.I2C
	reqs chan i2cReq
	quit chan struct{}
}

func newI2COwner(id string, hw drivers.I2C) *i2cOwner {
	o := &i2cOwner{
		id:   id,
		hw:   hw,
		reqs: make(chan i2cReq, i2cQueueLen),
		quit: make(chan struct{}),
	}
	go o.loop()
	return o
}

func (o *i2cOwner) loop() {
	for {
		select {
		case req := <-o.reqs:
			err := o.hw.Tx(req.addr, req.w, req.r)
			// best-effort reply; do not block the worker
			select {
			case req.done <- err:
			default:
			}
		case <-o.quit:
			return
		}
	}
}

func (o *i2cOwner) stop() { close(o.quit) }

// i2cClient adapts the owner to drivers.I2C. Each Tx posts a request and
// waits for it with bounded enqueue and completion.
type i2cClient struct {
	o       *i2cOwner
	timeout time.Duration // 0 => no deadline
}

var _ drivers.I2C = (*i2cClient)(nil)

func (d *i2cClient) Tx(addr uint16, w, r []byte) error {
	req := i2cReq{addr: addr, done: make(chan error, 1)}
	if len(w) > 0 {
		req.w = append([]byte(nil), w...)
	}
	if len(r) > 0 {
		req.r = make([]byte, len(r))
	}

	if d.timeout <= 0 {
		select {
		case d.o.reqs <- req:
		case <-d.o.quit:
			return errcode.UnknownBus
		}
		return req.finish(r, <-req.done)
	}

	// Bounded enqueue
	t := time.NewTimer(d.timeout)
	defer t.Stop()
	select {
	case d.o.reqs <- req:
	case <-d.o.quit:
		return errcode.UnknownBus
	case <-t.C:
		return errcode.Busy
	}

	// Completion
	t.Reset(d.timeout)
	select {
	case err := <-req.done:
		return req.finish(r, err)
	case <-t.C:
		return errcode.Timeout
	}
}

// finish hands read data back to the caller once the worker is done.
func (req *i2cReq) finish(r []byte, err error) error {
	if err == nil {
		copy(r, req.r)
	}
	return err
}
