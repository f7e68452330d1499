package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/socmon/internal/errors"
)

func thermalPlist(level string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>is_delta</key>
	<false/>
	<key>elapsed_ns</key>
	<integer>1003741958</integer>
	<key>thermal_pressure</key>
	<string>` + level + `</string>
</dict>
</plist>
` + "\x00")
}

func TestParseThermalPressure(t *testing.T) {
	for _, level := range []PressureLevel{
		PressureNominal, PressureModerate, PressureHeavy, PressureTrapping, PressureSleeping,
	} {
		got, err := parseThermalPressure(thermalPlist(string(level)))
		require.NoError(t, err, "level %s", level)
		assert.Equal(t, level, got)
	}
}

func TestParseThermalPressureUnknownLevel(t *testing.T) {
	_, err := parseThermalPressure(thermalPlist("Volcanic"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrThermalParseFailed))
}

func TestParseThermalPressureMissingKey(t *testing.T) {
	doc := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">
<dict>
	<key>elapsed_ns</key>
	<integer>1000000000</integer>
</dict>
</plist>`)

	_, err := parseThermalPressure(doc)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrThermalParseFailed))
}

func TestParseThermalPressureNotPlist(t *testing.T) {
	_, err := parseThermalPressure([]byte("Machine model: Mac15,9\n"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrThermalParseFailed))
}

func TestPressureLevelSeverity(t *testing.T) {
	assert.Equal(t, 0, PressureNominal.Severity())
	assert.Equal(t, 1, PressureModerate.Severity())
	assert.Equal(t, 2, PressureHeavy.Severity())
	assert.Equal(t, 3, PressureTrapping.Severity())
	assert.Equal(t, 4, PressureSleeping.Severity())
	assert.Equal(t, -1, PressureLevel("").Severity())
}
