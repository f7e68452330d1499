package soc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJoulesFromUnit(t *testing.T) {
	tests := []struct {
		value int64
		unit  string
		want  float64
		ok    bool
	}{
		{5_000_000_000, "nJ", 5, true},
		{3_000_000, "uJ", 3, true},
		{2000, "mJ", 2, true},
		{2000, " mJ ", 2, true},
		{1, "J", 0, false},
		{1, "", 0, false},
	}

	for _, tt := range tests {
		got, ok := joulesFromUnit(tt.value, tt.unit)
		assert.Equal(t, tt.ok, ok, "unit %q", tt.unit)
		assert.InDelta(t, tt.want, got, 1e-12, "unit %q", tt.unit)
	}
}

func TestGPUBusy(t *testing.T) {
	busy, ok := gpuBusy([]ChannelState{
		{Name: "IDLE", Residency: 300},
		{Name: "OFF", Residency: 200},
		{Name: "P1", Residency: 500},
	})
	assert.True(t, ok)
	assert.InDelta(t, 0.5, busy, 1e-9)

	busy, ok = gpuBusy([]ChannelState{{Name: "IDLE", Residency: 100}})
	assert.True(t, ok)
	assert.Zero(t, busy)

	_, ok = gpuBusy(nil)
	assert.False(t, ok)
}

func TestPowerFromChannels(t *testing.T) {
	channels := []Channel{
		{Group: energyModelGroup, Name: "CPU Energy", Unit: "nJ", Value: 5_000_000_000},
		{Group: energyModelGroup, Name: "GPU Energy", Unit: "mJ", Value: 2000},
		{Group: energyModelGroup, Name: "ANE0 Energy", Unit: "uJ", Value: 1_000_000},
	}

	sample := powerFromChannels(channels, time.Second)

	assert.InDelta(t, 5.0, float64(sample.CPU), 1e-9)
	assert.InDelta(t, 2.0, float64(sample.GPU), 1e-9)
	assert.InDelta(t, 1.0, float64(sample.ANE), 1e-9)
	assert.True(t, sample.hasData())
}

func TestPowerFromChannelsWindowLength(t *testing.T) {
	channels := []Channel{
		{Group: energyModelGroup, Name: "CPU Energy", Unit: "nJ", Value: 5_000_000_000},
	}

	sample := powerFromChannels(channels, 2*time.Second)
	assert.InDelta(t, 2.5, float64(sample.CPU), 1e-9)

	sample = powerFromChannels(channels, 0)
	assert.Zero(t, sample.CPU)
}

func TestPowerFromChannelsCounterReset(t *testing.T) {
	channels := []Channel{
		{Group: energyModelGroup, Name: "CPU Energy", Unit: "nJ", Value: -1_000_000},
		{Group: energyModelGroup, Name: "GPU Energy", Unit: "nJ", Value: 1_000_000_000},
	}

	sample := powerFromChannels(channels, time.Second)

	// A reset counter sits the window out instead of reporting garbage.
	assert.Zero(t, sample.CPU)
	assert.InDelta(t, 1.0, float64(sample.GPU), 1e-9)
}

func TestPowerFromChannelsUnknownUnit(t *testing.T) {
	channels := []Channel{
		{Group: energyModelGroup, Name: "CPU Energy", Unit: "kJ", Value: 10},
	}

	sample := powerFromChannels(channels, time.Second)
	assert.False(t, sample.hasData())
}

func TestPowerFromChannelsGPUStats(t *testing.T) {
	channels := []Channel{
		{
			Group:    gpuStatsGroup,
			Subgroup: gpuPerformanceStates,
			Name:     "GPUPH",
			States: []ChannelState{
				{Name: "IDLE", Residency: 1_000_000_000},
				{Name: "500 MHz", Residency: 1_000_000_000},
			},
		},
	}

	sample := powerFromChannels(channels, time.Second)

	assert.InDelta(t, 0.5, sample.GPUBusy, 1e-9)
	assert.InDelta(t, 0.25, float64(sample.GPUFrequency), 1e-9)
	assert.True(t, sample.GPUSeen)
	assert.False(t, sample.hasData())
}

func TestPowerFromChannelsGPUSeen(t *testing.T) {
	sample := powerFromChannels([]Channel{
		{Group: energyModelGroup, Name: "CPU Energy", Unit: "nJ", Value: 1_000_000_000},
	}, time.Second)
	assert.False(t, sample.GPUSeen)

	sample = powerFromChannels([]Channel{
		{Group: energyModelGroup, Name: "GPU Energy", Unit: "nJ", Value: 1_000_000_000},
	}, time.Second)
	assert.True(t, sample.GPUSeen)
}
