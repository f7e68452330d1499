package engine

import "codeberg.org/mutker/socmon/internal/errors"

const (
	ErrInvalidConfig = errors.ErrorCode("engine_invalid_config")
	ErrNilSource     = errors.ErrorCode("engine_nil_source")
)
