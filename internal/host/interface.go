package host

import "context"

// Usage holds coarse host utilization for one sampling tick.
type Usage struct {
	CPUPercent        float64 `json:"cpu_percent"`
	Load1             float64 `json:"load1"`
	Load5             float64 `json:"load5"`
	Load15            float64 `json:"load15"`
	MemoryUsed        uint64  `json:"memory_used_bytes"`
	MemoryTotal       uint64  `json:"memory_total_bytes"`
	MemoryUsedPercent float64 `json:"memory_used_percent"`
	UptimeSeconds     uint64  `json:"uptime_seconds"`
}

// Battery describes the builtin battery as reported by pmset.
type Battery struct {
	Present  bool    `json:"present"`
	Percent  float64 `json:"percent"`
	Status   string  `json:"status"`
	Charging bool    `json:"charging"`
	TimeLeft string  `json:"time_left,omitempty"`
}

// PressureLevel is a macOS thermal pressure level.
type PressureLevel string

const (
	PressureNominal  PressureLevel = "Nominal"
	PressureModerate PressureLevel = "Moderate"
	PressureHeavy    PressureLevel = "Heavy"
	PressureTrapping PressureLevel = "Trapping"
	PressureSleeping PressureLevel = "Sleeping"
)

// Severity orders pressure levels for export. Nominal is 0; unknown
// levels report -1.
func (p PressureLevel) Severity() int {
	switch p {
	case PressureNominal:
		return 0
	case PressureModerate:
		return 1
	case PressureHeavy:
		return 2
	case PressureTrapping:
		return 3
	case PressureSleeping:
		return 4
	default:
		return -1
	}
}

// UsageSource samples coarse utilization and battery state.
type UsageSource interface {
	Usage(ctx context.Context) (Usage, error)
	Battery(ctx context.Context) (Battery, error)
}

// ThermalSource reads the thermal pressure level.
type ThermalSource interface {
	Pressure(ctx context.Context) (PressureLevel, error)
}
