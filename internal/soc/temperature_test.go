package soc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlausibleCelsius(t *testing.T) {
	assert.True(t, plausibleCelsius(45))
	assert.True(t, plausibleCelsius(0.1))
	assert.True(t, plausibleCelsius(129.9))

	// Zero is a failed probe, not a reading.
	assert.False(t, plausibleCelsius(0))
	assert.False(t, plausibleCelsius(-5))
	assert.False(t, plausibleCelsius(130))
	assert.False(t, plausibleCelsius(200))
}

func TestClassifyHIDReadings(t *testing.T) {
	readings := []hidReading{
		{Name: "pACC MTR Temp Sensor0", Value: 50},
		{Name: "eACC MTR Temp Sensor2", Value: 40},
		{Name: "GPU MTR Temp Sensor1", Value: 60},
	}

	temp, ok := classifyHIDReadings(readings)
	assert.True(t, ok)
	assert.InDelta(t, 45.0, float64(temp), 1e-9)
}

func TestClassifyHIDReadingsPMU(t *testing.T) {
	readings := []hidReading{
		{Name: "PMU tdie1", Value: 44},
		{Name: "PMU tdie2", Value: 46},
		{Name: "NAND CH0 temp", Value: 35},
	}

	temp, ok := classifyHIDReadings(readings)
	assert.True(t, ok)
	assert.InDelta(t, 45.0, float64(temp), 1e-9)
}

func TestClassifyHIDReadingsFallbackAverage(t *testing.T) {
	readings := []hidReading{
		{Name: "NAND CH0 temp", Value: 30},
		{Name: "battery sensor", Value: 34},
	}

	temp, ok := classifyHIDReadings(readings)
	assert.True(t, ok)
	assert.InDelta(t, 32.0, float64(temp), 1e-9)
}

func TestClassifyHIDReadingsFiltersImplausible(t *testing.T) {
	readings := []hidReading{
		{Name: "PMU tdie1", Value: 0},
		{Name: "PMU tdie2", Value: 300},
		{Name: "PMU tdie3", Value: -10},
	}

	_, ok := classifyHIDReadings(readings)
	assert.False(t, ok)

	_, ok = classifyHIDReadings(nil)
	assert.False(t, ok)
}
