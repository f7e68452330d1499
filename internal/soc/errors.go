package soc

import (
	"fmt"

	"codeberg.org/mutker/socmon/internal/errors"
)

const (
	// Lifecycle errors
	ErrNotOpen          = errors.ErrorCode("soc_not_open")
	ErrConnectionFailed = errors.ErrorCode("soc_connection_failed")
	ErrShutdownFailed   = errors.ErrorCode("soc_shutdown_failed")

	// Handle validation errors
	ErrNullHandle = errors.ErrorCode("soc_null_handle")
	ErrWrongType  = errors.ErrorCode("soc_wrong_cf_type")

	// Sampling errors
	ErrNoChannels       = errors.ErrorCode("soc_no_channels")
	ErrNoBaseline       = errors.ErrorCode("soc_no_baseline")
	ErrDeltaFailed      = errors.ErrorCode("soc_delta_failed")
	ErrNoUsableChannels = errors.ErrorCode("soc_no_usable_channels")

	// Sensor errors
	ErrInvalidKey       = errors.ErrorCode("soc_invalid_key")
	ErrSensorNotFound   = errors.ErrorCode("soc_sensor_not_found")
	ErrSensorReadFailed = errors.ErrorCode("soc_sensor_read_failed")
	ErrImplausibleValue = errors.ErrorCode("soc_implausible_value")
)

// kernError represents an IOKit kern_return_t failure
type kernError struct {
	code int
}

func (e *kernError) Error() string {
	return fmt.Sprintf("kern_return 0x%x", e.code)
}

// newKernError creates an error from an IOKit return code
func newKernError(code int) error {
	if code == 0 {
		return nil
	}
	return &kernError{code: code}
}

// IsKernSuccess checks if an IOKit return code indicates success
func IsKernSuccess(code int) bool {
	return code == 0
}
