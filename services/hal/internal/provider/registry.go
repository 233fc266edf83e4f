package provider

import (
	"sync"

	"tinygo.org/x/drivers"

	"picodemo/errcode"
	"picodemo/services/hal/internal/core"
	"picodemo/setups"
)

// Hardware is what a platform hands to the registry: configured bus
// peripherals keyed by plan id and a GPIO factory.
type Hardware struct {
	I2C    map[string]drivers.I2C
	SPI    map[string]drivers.SPI
	Serial map[string]core.SerialPort
	GPIO   func(n int) core.GPIOHandle
}

// Registry enforces ownership over the planned resources. I2C buses are
// shared through a per-bus worker; SPI, UART and pins are exclusive.
type Registry struct {
	mu   sync.Mutex
	plan setups.ResourcePlan
	hw   Hardware

	i2cOwners map[core.ResourceID]*i2cOwner
	i2cUsers  map[core.ResourceID]int // claim count

	spiOwners  map[core.ResourceID]string
	uartOwners map[core.ResourceID]string
	pinOwners  map[int]string
	gpio       map[int]core.GPIOHandle
}

var _ core.ResourceRegistry = (*Registry)(nil)

func NewRegistry(plan setups.ResourcePlan, hw Hardware) *Registry {
	r := &Registry{
		plan:       plan,
		hw:         hw,
		i2cOwners:  make(map[core.ResourceID]*i2cOwner),
		i2cUsers:   make(map[core.ResourceID]int),
		spiOwners:  make(map[core.ResourceID]string),
		uartOwners: make(map[core.ResourceID]string),
		pinOwners:  make(map[int]string),
		gpio:       make(map[int]core.GPIOHandle),
	}
	for _, p := range plan.I2C {
		if bus := hw.I2C[p.ID]; bus != nil {
			r.i2cOwners[core.ResourceID(p.ID)] = newI2COwner(p.ID, bus)
		}
	}
	return r
}

func (r *Registry) ClassOf(id core.ResourceID) (core.BusClass, bool) {
	if _, ok := r.plan.FindI2C(string(id)); ok {
		return core.BusTransactional, true
	}
	if _, ok := r.plan.FindSPI(string(id)); ok {
		return core.BusTransactional, true
	}
	if _, ok := r.plan.FindUART(string(id)); ok {
		return core.BusStream, true
	}
	return 0, false
}

// ---- I2C (shared) ----

func (r *Registry) ClaimI2C(devID string, id core.ResourceID) (drivers.I2C, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.i2cOwners[id]
	if o == nil {
		return nil, errcode.UnknownBus
	}
	r.i2cUsers[id]++
	return &i2cClient{o: o, timeout: i2cDefaultTimeout}, nil
}

func (r *Registry) ReleaseI2C(devID string, id core.ResourceID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.i2cUsers[id] > 0 {
		r.i2cUsers[id]--
	}
}

// ---- SPI (exclusive) ----

func (r *Registry) ClaimSPI(devID string, id core.ResourceID) (drivers.SPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bus := r.hw.SPI[string(id)]
	if bus == nil {
		return nil, errcode.UnknownBus
	}
	if owner, taken := r.spiOwners[id]; taken && owner != devID {
		return nil, errcode.BusInUse
	}
	r.spiOwners[id] = devID
	return bus, nil
}

func (r *Registry) ReleaseSPI(devID string, id core.ResourceID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.spiOwners[id]; ok && owner == devID {
		delete(r.spiOwners, id)
	}
}

// ---- Serial (exclusive) ----

func (r *Registry) ClaimSerial(devID string, id core.ResourceID) (core.SerialPort, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.hw.Serial[string(id)]
	if p == nil {
		return nil, errcode.UnknownBus
	}
	if owner, taken := r.uartOwners[id]; taken && owner != devID {
		return nil, errcode.BusInUse
	}
	r.uartOwners[id] = devID
	return p, nil
}

func (r *Registry) ReleaseSerial(devID string, id core.ResourceID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.uartOwners[id]; ok && owner == devID {
		delete(r.uartOwners, id)
	}
}

// ---- GPIO (exclusive) ----

func (r *Registry) ClaimGPIO(devID string, n int) (core.GPIOHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < r.plan.GPIOMin || n > r.plan.GPIOMax || r.hw.GPIO == nil || r.reservedLocked(n) {
		return nil, errcode.UnknownPin
	}
	if owner, inUse := r.pinOwners[n]; inUse && owner != devID {
		return nil, errcode.PinInUse
	}
	g, ok := r.gpio[n]
	if !ok {
		g = r.hw.GPIO(n)
		r.gpio[n] = g
	}
	r.pinOwners[n] = devID
	return g, nil
}

func (r *Registry) ReleaseGPIO(devID string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.pinOwners[n]; ok && owner == devID {
		// Put the pin back to a safe input state.
		if g := r.gpio[n]; g != nil {
			_ = g.ConfigureInput(core.PullNone)
		}
		delete(r.pinOwners, n)
	}
}

// reservedLocked reports whether pin n is wired to a planned bus.
func (r *Registry) reservedLocked(n int) bool {
	for _, p := range r.plan.I2C {
		if n == p.SDA || n == p.SCL {
			return true
		}
	}
	for _, p := range r.plan.SPI {
		if n == p.SCK || n == p.SDO || n == p.SDI {
			return true
		}
	}
	for _, p := range r.plan.UART {
		if n == p.TX || n == p.RX {
			return true
		}
	}
	return false
}

// Close stops background workers (per-bus I2C goroutines).
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, o := range r.i2cOwners {
		o.stop()
		delete(r.i2cOwners, id)
	}
}
