package scanner

import (
	"github.com/waftester/vulnprobe/pkg/runner"
)

// Dispatcher manages probe registration for one scan.
type Dispatcher struct {
	probes map[string]runner.ProbeFunc
	order  []string // preserves registration order for deterministic execution
}

// NewDispatcher creates a new probe dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		probes: make(map[string]runner.ProbeFunc),
	}
}

// Register adds a named probe. Registering a name twice replaces the
// function but keeps the original position.
func (d *Dispatcher) Register(name string, fn runner.ProbeFunc) {
	if _, exists := d.probes[name]; !exists {
		d.order = append(d.order, name)
	}
	d.probes[name] = fn
}

// Names returns all registered probe names in registration order.
func (d *Dispatcher) Names() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Has returns true if a probe with the given name is registered.
func (d *Dispatcher) Has(name string) bool {
	_, ok := d.probes[name]
	return ok
}

// Count returns the number of registered probes.
func (d *Dispatcher) Count() int {
	return len(d.probes)
}

// Probes returns the registered probes in order, each passed through wrap
// when wrap is non-nil.
func (d *Dispatcher) Probes(wrap func(string, runner.ProbeFunc) runner.ProbeFunc) []runner.Probe {
	out := make([]runner.Probe, 0, len(d.order))
	for _, name := range d.order {
		fn := d.probes[name]
		if wrap != nil {
			fn = wrap(name, fn)
		}
		out = append(out, runner.Probe{Name: name, Run: fn})
	}
	return out
}
