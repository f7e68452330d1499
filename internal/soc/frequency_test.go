package soc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCluster(t *testing.T) {
	tests := []struct {
		name string
		want clusterKind
	}{
		{"ECPU", clusterE},
		{"ECPU4", clusterE},
		{"E-Cluster DVFS", clusterE},
		{"Efficiency Cores", clusterE},
		{"PCPU", clusterP},
		{"PCPU0", clusterP},
		{"P-Cluster DVFS", clusterP},
		{"Performance Cores", clusterP},
		{"E-Cluster Performance States", clusterE},
		{"GPUPH", clusterUnknown},
		{"", clusterUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyCluster(tt.name), "name %q", tt.name)
	}
}

func TestParseStateMHz(t *testing.T) {
	tests := []struct {
		label string
		want  float64
		ok    bool
	}{
		{"2400 MHz", 2400, true},
		{"V0 1398 MHz", 1398, true},
		{"freq 400 MHz extra", 400, true},
		{"P0", 0, false},
		{"IDLE", 0, false},
		{"MHz", 0, false},
		{"0 MHz", 0, false},
		{"12000 MHz", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseStateMHz(tt.label)
		assert.Equal(t, tt.ok, ok, "label %q", tt.label)
		assert.Equal(t, tt.want, got, "label %q", tt.label)
	}
}

func TestIsIdleState(t *testing.T) {
	for _, name := range []string{"IDLE", "idle", " Idle ", "DOWN", "OFF", "off"} {
		assert.True(t, isIdleState(name), "name %q", name)
	}
	for _, name := range []string{"P0", "2400 MHz", "", "OFFLINE"} {
		assert.False(t, isIdleState(name), "name %q", name)
	}
}

func TestValidChannel(t *testing.T) {
	assert.True(t, validChannel(Channel{Name: "PCPU", States: []ChannelState{{Name: "IDLE"}}}))
	assert.False(t, validChannel(Channel{Name: "", States: []ChannelState{{Name: "IDLE"}}}))
	assert.False(t, validChannel(Channel{Name: "PCPU"}))
}

func TestClusterFrequencies(t *testing.T) {
	channels := []Channel{
		{
			Group: cpuStatsGroup,
			Name:  "PCPU",
			States: []ChannelState{
				{Name: "IDLE", Residency: 500_000_000},
				{Name: "1000 MHz", Residency: 250_000_000},
				{Name: "3000 MHz", Residency: 250_000_000},
			},
		},
		{
			Group: cpuStatsGroup,
			Name:  "ECPU",
			States: []ChannelState{
				{Name: "600 MHz", Residency: 1_000_000_000},
			},
		},
	}

	freqs := clusterFrequencies(channels)

	// P cluster: (1000*0.25 + 3000*0.25) / 1.0 = 1000 MHz
	assert.InDelta(t, 1.0, float64(freqs.PCluster), 1e-9)
	assert.InDelta(t, 0.6, float64(freqs.ECluster), 1e-9)
	// Combined: (1000 + 600) / 2.0 = 800 MHz
	assert.InDelta(t, 0.8, float64(freqs.Average), 1e-9)
}

func TestClusterFrequenciesSkipsUnusableChannels(t *testing.T) {
	channels := []Channel{
		{Name: "", States: []ChannelState{{Name: "1000 MHz", Residency: 1}}},
		{Name: "GPUPH", States: []ChannelState{{Name: "500 MHz", Residency: 1}}},
		{Name: "PCPU"},
		{
			Name: "PCPU0",
			States: []ChannelState{
				{Name: "V7", Residency: 900_000_000},
				{Name: "2000 MHz", Residency: 100_000_000},
			},
		},
	}

	freqs := clusterFrequencies(channels)

	// The unparseable V7 label is skipped entirely, so the only
	// weighted state is 2000 MHz.
	assert.InDelta(t, 2.0, float64(freqs.PCluster), 1e-9)
	assert.Zero(t, freqs.ECluster)
	assert.InDelta(t, 2.0, float64(freqs.Average), 1e-9)
}

func TestClusterFrequenciesIdleOnlyWindow(t *testing.T) {
	channels := []Channel{
		{
			Name: "ECPU",
			States: []ChannelState{
				{Name: "IDLE", Residency: 1_000_000_000},
				{Name: "DOWN", Residency: 500_000_000},
			},
		},
	}

	freqs := clusterFrequencies(channels)

	require.Zero(t, freqs.ECluster)
	require.Zero(t, freqs.Average)
}

func TestFreqAccumulatorNegativeResidency(t *testing.T) {
	var acc freqAccumulator
	acc.add([]ChannelState{
		{Name: "1000 MHz", Residency: -5},
		{Name: "1000 MHz", Residency: 0},
	})

	assert.Zero(t, acc.gigahertz())
}
