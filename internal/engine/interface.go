package engine

import (
	"time"

	"codeberg.org/mutker/socmon/internal/host"
	"codeberg.org/mutker/socmon/internal/soc"
)

// Config controls the sampling scheduler. Each metric refreshes
// independently once its interval has elapsed since its last
// successful sample.
type Config struct {
	Interval            time.Duration
	TemperatureInterval time.Duration
	FrequencyInterval   time.Duration
	PowerInterval       time.Duration
	UsageInterval       time.Duration
	ThermalInterval     time.Duration

	// FailureThreshold is the number of consecutive failed attempts
	// before a metric is committed unsupported.
	FailureThreshold int

	// Visibility precedence: AlwaysOn pins the engine visible, an
	// explicit Visible func overrides the default, and the default
	// reports true while the last snapshot read is younger than
	// VisibilityWindow.
	AlwaysOn         bool
	Visible          func() bool
	VisibilityWindow time.Duration
}

// Sources are the platform readers the scheduler owns. The scheduler
// goroutine is their only caller.
type Sources struct {
	Temperature soc.TemperatureSource
	Frequency   soc.FrequencySource
	Power       soc.PowerSource
	Usage       host.UsageSource
	Thermal     host.ThermalSource
}

// Capabilities reports per-metric availability. A metric stays true
// until this host proves it unsupported.
type Capabilities struct {
	Temperature bool `json:"temperature"`
	Frequency   bool `json:"frequency"`
	CPUPower    bool `json:"cpu_power"`
	GPUPower    bool `json:"gpu_power"`
	Usage       bool `json:"usage"`
	Thermal     bool `json:"thermal"`
}

// Snapshot is the aggregate consumer view assembled from the metric
// caches. Reading one never triggers a platform call.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	Temperature soc.Celsius `json:"cpu_temp_celsius"`

	Frequency soc.ClusterFrequencies `json:"frequency_ghz"`
	// FrequencyNominal marks Frequency as the rated clocks from
	// topology, reported while no measured window exists.
	FrequencyNominal bool `json:"frequency_nominal"`

	Power soc.PowerSample `json:"power"`

	Usage      host.Usage   `json:"usage"`
	Battery    host.Battery `json:"battery"`
	HasBattery bool         `json:"has_battery"`

	ThermalPressure host.PressureLevel `json:"thermal_pressure,omitempty"`

	Topology     soc.Topology `json:"topology"`
	Capabilities Capabilities `json:"capabilities"`
}
