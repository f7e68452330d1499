package engine

import "sync/atomic"

// Kind identifies one sampled metric.
type Kind int

const (
	KindTemperature Kind = iota
	KindFrequency
	KindCPUPower
	KindGPUPower
	KindUsage
	KindThermal
	kindCount
)

func (k Kind) String() string {
	switch k {
	case KindTemperature:
		return "temperature"
	case KindFrequency:
		return "frequency"
	case KindCPUPower:
		return "cpu_power"
	case KindGPUPower:
		return "gpu_power"
	case KindUsage:
		return "usage"
	case KindThermal:
		return "thermal"
	default:
		return "unknown"
	}
}

// State is a capability flag value. Once a flag leaves StateUnknown it
// never changes for the process lifetime.
type State int32

const (
	StateUnknown State = iota
	StateSupported
	StateUnsupported
)

// Registry holds one write-once capability flag per metric kind. Flag
// reads are lock-free; the failure counters belong to the scheduler
// goroutine alone.
type Registry struct {
	threshold int
	flags     [kindCount]atomic.Int32
	failures  [kindCount]int
}

func NewRegistry(threshold int) *Registry {
	return &Registry{threshold: threshold}
}

func (r *Registry) State(kind Kind) State {
	return State(r.flags[kind].Load())
}

// Available reports whether the metric is still worth sampling: the
// flag is unknown or supported.
func (r *Registry) Available(kind Kind) bool {
	return r.State(kind) != StateUnsupported
}

// RecordSuccess commits an unknown flag to supported and clears the
// consecutive failure count.
func (r *Registry) RecordSuccess(kind Kind) {
	r.flags[kind].CompareAndSwap(int32(StateUnknown), int32(StateSupported))
	r.failures[kind] = 0
}

// RecordFailure counts one failed attempt. An unknown flag is
// committed unsupported once the threshold of consecutive failures is
// reached; a supported flag never changes. Returns the resulting
// state.
func (r *Registry) RecordFailure(kind Kind) State {
	if r.State(kind) != StateUnknown {
		return r.State(kind)
	}

	r.failures[kind]++
	if r.failures[kind] >= r.threshold {
		r.flags[kind].CompareAndSwap(int32(StateUnknown), int32(StateUnsupported))
	}

	return r.State(kind)
}

// MarkUnsupported commits an unknown flag immediately, for failures
// that are deterministic rather than transient.
func (r *Registry) MarkUnsupported(kind Kind) {
	r.flags[kind].CompareAndSwap(int32(StateUnknown), int32(StateUnsupported))
}

// ProbeOnce returns the committed flag without running probe when one
// exists. Otherwise probe runs exactly once, its outcome is recorded,
// and the current availability is returned.
func (r *Registry) ProbeOnce(kind Kind, probe func() bool) bool {
	switch r.State(kind) {
	case StateSupported:
		return true
	case StateUnsupported:
		return false
	}

	if probe() {
		r.RecordSuccess(kind)
		return true
	}
	r.RecordFailure(kind)

	return r.Available(kind)
}
