package soc

import (
	"codeberg.org/mutker/socmon/internal/errors"
	"codeberg.org/mutker/socmon/internal/logger"
)

// Generic die and proximity sensor keys, in priority order.
const (
	smcKeyDieTemperature       = "TC0D"
	smcKeyProximityTemperature = "TC0P"
)

// candidateTemperatureKeys lists the per-cluster sensor keys newer
// models expose instead of the generic ones. Probed in order; the
// first plausible hit is cached for the life of the process.
var candidateTemperatureKeys = []string{"Tf04", "Tf09", "Tf0A", "Tf0B", "Tf0D", "Tf0E"}

// maxPlausibleCelsius bounds a sane die temperature. Zero readings
// count as failed probes, not as valid data.
const maxPlausibleCelsius = 130

func plausibleCelsius(t Celsius) bool {
	return t > 0 && t < maxPlausibleCelsius
}

// TemperatureReader reads the CPU die temperature over the SMC,
// falling back to thermal HID services on models without a readable
// key. Key discovery runs at most once; the discovered key and the
// HID decision survive Close so reopening skips rediscovery.
type TemperatureReader struct {
	client        smcClient
	smcAvailable  bool
	discoveredKey string
	useHID        bool
}

func NewTemperatureReader() *TemperatureReader {
	return &TemperatureReader{}
}

// Open connects to the SMC. A missing SMC service is not fatal here;
// reads then rely on the HID stratum alone.
func (r *TemperatureReader) Open() error {
	if err := r.client.Open(); err != nil {
		logger.Debug().Err(err).Msg("SMC unavailable, temperature reads rely on HID services")
		r.smcAvailable = false
		return nil
	}
	r.smcAvailable = true

	return nil
}

func (r *TemperatureReader) Close() {
	if err := r.client.Close(); err != nil {
		logger.Debug().Err(err).Msg("SMC connection close failed")
	}
	r.smcAvailable = false
}

// Read resolves the die temperature. Generic keys are tried first,
// then the cached discovered key, then the candidate list, then the
// HID services. Implausible values fail the probe that produced them.
func (r *TemperatureReader) Read() (Celsius, error) {
	errFactory := errors.New()

	if r.smcAvailable {
		for _, key := range []string{smcKeyDieTemperature, smcKeyProximityTemperature} {
			value, err := r.client.ReadKey(key)
			if err != nil {
				continue
			}
			if t := Celsius(value); plausibleCelsius(t) {
				return t, nil
			}
		}

		if r.discoveredKey != "" {
			value, err := r.client.ReadKey(r.discoveredKey)
			if err != nil {
				return 0, err
			}
			t := Celsius(value)
			if !plausibleCelsius(t) {
				return 0, errFactory.WithData(ErrImplausibleValue, struct {
					Key   string
					Value float64
				}{r.discoveredKey, value})
			}
			return t, nil
		}

		if !r.useHID {
			for _, key := range candidateTemperatureKeys {
				value, err := r.client.ReadKey(key)
				if err != nil {
					continue
				}
				if t := Celsius(value); plausibleCelsius(t) {
					r.discoveredKey = key
					logger.Debug().Str("key", key).Float64("celsius", value).Msg("discovered temperature sensor key")
					return t, nil
				}
			}
		}
	}

	readings, err := readHIDTemperatures()
	if err == nil {
		if t, ok := classifyHIDReadings(readings); ok {
			if !r.useHID {
				r.useHID = true
				logger.Debug().Msg("temperature sensing settled on HID services")
			}
			return t, nil
		}
	}

	return 0, errFactory.New(ErrSensorNotFound)
}
