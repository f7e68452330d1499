package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProbeOnceRunsProbeOnce(t *testing.T) {
	r := NewRegistry(3)
	calls := 0

	ok := r.ProbeOnce(KindTemperature, func() bool {
		calls++
		return true
	})
	assert.True(t, ok)
	assert.Equal(t, 1, calls)
	assert.Equal(t, StateSupported, r.State(KindTemperature))

	ok = r.ProbeOnce(KindTemperature, func() bool {
		calls++
		return false
	})
	assert.True(t, ok)
	assert.Equal(t, 1, calls, "committed flag must skip the probe")
}

func TestProbeOnceFailureThreshold(t *testing.T) {
	r := NewRegistry(3)
	calls := 0
	probe := func() bool {
		calls++
		return false
	}

	assert.True(t, r.ProbeOnce(KindFrequency, probe))
	assert.True(t, r.ProbeOnce(KindFrequency, probe))
	assert.False(t, r.ProbeOnce(KindFrequency, probe))
	assert.Equal(t, 3, calls)
	assert.Equal(t, StateUnsupported, r.State(KindFrequency))

	assert.False(t, r.ProbeOnce(KindFrequency, probe))
	assert.Equal(t, 3, calls, "committed flag must skip the probe")
}

func TestRecordSuccessWriteOnce(t *testing.T) {
	r := NewRegistry(1)

	r.RecordSuccess(KindCPUPower)
	assert.Equal(t, StateSupported, r.State(KindCPUPower))

	// A later failure never flips a supported flag.
	r.RecordFailure(KindCPUPower)
	r.RecordFailure(KindCPUPower)
	assert.Equal(t, StateSupported, r.State(KindCPUPower))
	assert.True(t, r.Available(KindCPUPower))
}

func TestRecordFailureThreshold(t *testing.T) {
	r := NewRegistry(3)

	assert.Equal(t, StateUnknown, r.RecordFailure(KindGPUPower))
	assert.Equal(t, StateUnknown, r.RecordFailure(KindGPUPower))
	assert.True(t, r.Available(KindGPUPower))

	assert.Equal(t, StateUnsupported, r.RecordFailure(KindGPUPower))
	assert.False(t, r.Available(KindGPUPower))

	// Write-once: success after commitment changes nothing.
	r.RecordSuccess(KindGPUPower)
	assert.Equal(t, StateUnsupported, r.State(KindGPUPower))
}

func TestRecordSuccessClearsFailureCount(t *testing.T) {
	r := NewRegistry(3)

	r.RecordFailure(KindThermal)
	r.RecordFailure(KindThermal)
	r.RecordSuccess(KindThermal)
	assert.Equal(t, StateSupported, r.State(KindThermal))
}

func TestMarkUnsupported(t *testing.T) {
	r := NewRegistry(3)

	r.MarkUnsupported(KindThermal)
	assert.Equal(t, StateUnsupported, r.State(KindThermal))
	assert.False(t, r.Available(KindThermal))

	// Write-once holds for direct commitment too.
	r.RecordSuccess(KindThermal)
	assert.Equal(t, StateUnsupported, r.State(KindThermal))
}

func TestKindString(t *testing.T) {
	names := map[Kind]string{
		KindTemperature: "temperature",
		KindFrequency:   "frequency",
		KindCPUPower:    "cpu_power",
		KindGPUPower:    "gpu_power",
		KindUsage:       "usage",
		KindThermal:     "thermal",
	}
	for kind, want := range names {
		assert.Equal(t, want, kind.String())
	}
}
