package export

import "codeberg.org/mutker/socmon/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig     = errors.ErrorCode("export_invalid_config")
	ErrInvalidListenAddr = errors.ErrorCode("export_invalid_listen_addr")
	ErrNilSource         = errors.ErrorCode("export_nil_snapshot_source")

	// Collection Errors
	ErrInvalidSnapshot  = errors.ErrorCode("export_invalid_snapshot")
	ErrOperationTimeout = errors.ErrorCode("export_operation_timeout")

	// Server Errors
	ErrServerStart    = errors.ErrorCode("export_server_start_failed")
	ErrServerShutdown = errors.ErrorCode("export_server_shutdown_failed")
)
