package host

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"time"

	"howett.net/plist"

	"codeberg.org/mutker/socmon/internal/errors"
)

const (
	thermalReadTimeout  = 10 * time.Second
	thermalSampleWindow = "1000"
	thermalPressureKey  = "thermal_pressure"
	powermetricsBin     = "powermetrics"
)

// ThermalReader samples the thermal pressure level with a one-shot
// powermetrics run. powermetrics requires root; other users get
// ErrThermalUnavailable so the capability can settle as unsupported.
type ThermalReader struct{}

func NewThermalReader() *ThermalReader {
	return &ThermalReader{}
}

func (r *ThermalReader) Pressure(ctx context.Context) (PressureLevel, error) {
	errFactory := errors.New()

	if os.Geteuid() != 0 {
		return "", errFactory.New(ErrThermalUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, thermalReadTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, powermetricsBin,
		"--samplers", "thermal", "-i", thermalSampleWindow, "-n", "1", "-f", "plist").Output()
	if err != nil {
		return "", errFactory.Wrap(ErrThermalReadFailed, err)
	}

	return parseThermalPressure(out)
}

// parseThermalPressure decodes the thermal_pressure key from one plist
// document. powermetrics terminates samples with a NUL byte, so the
// document is located by its plist tags first.
func parseThermalPressure(out []byte) (PressureLevel, error) {
	errFactory := errors.New()

	start := bytes.Index(out, []byte("<plist"))
	if start < 0 {
		return "", errFactory.New(ErrThermalParseFailed)
	}
	end := bytes.Index(out[start:], []byte("</plist>"))
	if end < 0 {
		return "", errFactory.New(ErrThermalParseFailed)
	}
	doc := out[start : start+end+len("</plist>")]

	var data map[string]interface{}
	if err := plist.NewDecoder(bytes.NewReader(doc)).Decode(&data); err != nil {
		return "", errFactory.Wrap(ErrThermalParseFailed, err)
	}

	raw, ok := data[thermalPressureKey].(string)
	if !ok {
		return "", errFactory.New(ErrThermalParseFailed)
	}

	level := PressureLevel(raw)
	switch level {
	case PressureNominal, PressureModerate, PressureHeavy, PressureTrapping, PressureSleeping:
		return level, nil
	default:
		return "", errFactory.WithData(ErrThermalParseFailed, struct {
			Level string
		}{raw})
	}
}
