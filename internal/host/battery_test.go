package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pmsetDischarging = `Now drawing from 'Battery Power'
 -InternalBattery-0 (id=4456547)	87%; discharging; 4:11 remaining present: true
`

const pmsetCharging = `Now drawing from 'AC Power'
 -InternalBattery-0 (id=4456547)	64%; charging; 1:02 remaining present: true
`

const pmsetCharged = `Now drawing from 'AC Power'
 -InternalBattery-0 (id=4456547)	100%; charged; 0:00 remaining present: true
`

const pmsetNoEstimate = `Now drawing from 'Battery Power'
 -InternalBattery-0 (id=4456547)	92%; discharging; (no estimate) present: true
`

const pmsetDesktop = `Now drawing from 'AC Power'
`

func TestParseBatteryDischarging(t *testing.T) {
	b, ok := parseBattery(pmsetDischarging)
	require.True(t, ok)

	assert.True(t, b.Present)
	assert.InDelta(t, 87, b.Percent, 1e-9)
	assert.Equal(t, "discharging", b.Status)
	assert.False(t, b.Charging)
	assert.Equal(t, "4:11", b.TimeLeft)
}

func TestParseBatteryCharging(t *testing.T) {
	b, ok := parseBattery(pmsetCharging)
	require.True(t, ok)

	assert.InDelta(t, 64, b.Percent, 1e-9)
	assert.Equal(t, "charging", b.Status)
	assert.True(t, b.Charging)
	assert.Equal(t, "1:02", b.TimeLeft)
}

func TestParseBatteryCharged(t *testing.T) {
	b, ok := parseBattery(pmsetCharged)
	require.True(t, ok)

	assert.InDelta(t, 100, b.Percent, 1e-9)
	assert.Equal(t, "charged", b.Status)
	assert.False(t, b.Charging)
}

func TestParseBatteryNoEstimate(t *testing.T) {
	b, ok := parseBattery(pmsetNoEstimate)
	require.True(t, ok)

	assert.InDelta(t, 92, b.Percent, 1e-9)
	assert.Empty(t, b.TimeLeft)
}

func TestParseBatteryDesktop(t *testing.T) {
	_, ok := parseBattery(pmsetDesktop)
	assert.False(t, ok)
}

func TestParseBatteryEmpty(t *testing.T) {
	_, ok := parseBattery("")
	assert.False(t, ok)
}
