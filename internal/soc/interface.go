package soc

import "time"

// Domain types for type safety and validation
type (
	Celsius   float64
	Gigahertz float64
	Watts     float64
)

// ClusterFrequencies holds residency-weighted average clock speeds per
// core cluster, derived from one sampling window.
type ClusterFrequencies struct {
	PCluster Gigahertz `json:"pcluster"`
	ECluster Gigahertz `json:"ecluster"`
	Average  Gigahertz `json:"average"`
}

// PowerSample holds average power draw over one sampling window.
type PowerSample struct {
	CPU Watts `json:"cpu_watts"`
	GPU Watts `json:"gpu_watts"`
	ANE Watts `json:"ane_watts"`

	// GPU performance-state data rides on the same subscription
	GPUBusy      float64   `json:"gpu_busy"`
	GPUFrequency Gigahertz `json:"gpu_frequency_ghz"`

	// GPUSeen marks that GPU channels were present in the window,
	// even when the GPU sat fully idle.
	GPUSeen bool `json:"-"`
}

// ChannelState is one voltage/performance state of a reporting channel.
type ChannelState struct {
	Name      string
	Residency int64
}

// Channel is a decoded reporting channel from one delta sample. States
// is empty for simple counter channels; Value is unset for state
// channels.
type Channel struct {
	Group    string
	Subgroup string
	Name     string
	Unit     string
	Value    int64
	States   []ChannelState
}

// TemperatureSource reads the die temperature. The connection is opened
// lazily and must be confined to a single OS thread.
type TemperatureSource interface {
	Open() error
	Close()
	Read() (Celsius, error)
}

// FrequencySource samples per-cluster clock speeds via delta sampling.
type FrequencySource interface {
	Open() error
	Close()
	Sample() (ClusterFrequencies, error)
}

// PowerSource samples energy-model channels via delta sampling.
type PowerSource interface {
	Open() error
	Close()
	Sample() (PowerSample, error)
}

// Topology describes the host SoC, detected once at startup.
type Topology struct {
	Model            string    `json:"model"`
	AppleSilicon     bool      `json:"apple_silicon"`
	PhysicalCores    int       `json:"physical_cores"`
	LogicalCores     int       `json:"logical_cores"`
	PerformanceCores int       `json:"performance_cores"`
	EfficiencyCores  int       `json:"efficiency_cores"`
	GPUCores         int       `json:"gpu_cores"`
	L2CacheBytes     uint64    `json:"l2_cache_bytes,omitempty"`
	L3CacheBytes     uint64    `json:"l3_cache_bytes,omitempty"`
	PClusterMax      Gigahertz `json:"pcluster_max_ghz"`
	EClusterMax      Gigahertz `json:"ecluster_max_ghz"`
	DetectedAt       time.Time `json:"detected_at"`
}
