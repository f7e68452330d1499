package host

import "codeberg.org/mutker/socmon/internal/errors"

const (
	// Utilization Errors
	ErrUsageReadFailed = errors.ErrorCode("host_usage_read_failed")

	// Battery Errors
	ErrBatteryReadFailed = errors.ErrorCode("host_battery_read_failed")
	ErrBatteryNotFound   = errors.ErrorCode("host_battery_not_found")

	// Thermal Pressure Errors
	ErrThermalReadFailed  = errors.ErrorCode("host_thermal_read_failed")
	ErrThermalUnavailable = errors.ErrorCode("host_thermal_unavailable")
	ErrThermalParseFailed = errors.ErrorCode("host_thermal_parse_failed")
)
