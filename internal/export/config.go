package export

import (
	"time"

	"codeberg.org/mutker/socmon/internal/errors"
)

const (
	defaultListenAddr = ":9757"

	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 3 * time.Second
)

type Config struct {
	Enabled    bool
	ListenAddr string
}

func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		ListenAddr: defaultListenAddr,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate the listen address if the exporter is enabled
	if c.Enabled && c.ListenAddr == "" {
		return errFactory.New(ErrInvalidListenAddr)
	}
	return nil
}

func boolToGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
