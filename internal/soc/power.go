package soc

import (
	"strings"
	"time"

	"codeberg.org/mutker/socmon/internal/errors"
	"codeberg.org/mutker/socmon/internal/logger"
)

const (
	energyModelGroup     = "Energy Model"
	gpuStatsGroup        = "GPU Stats"
	gpuPerformanceStates = "GPU Performance States"
)

// joulesFromUnit converts an energy counter delta to joules using its
// channel unit label.
func joulesFromUnit(value int64, unit string) (float64, bool) {
	switch strings.TrimSpace(unit) {
	case "nJ":
		return float64(value) / 1e9, true
	case "uJ":
		return float64(value) / 1e6, true
	case "mJ":
		return float64(value) / 1e3, true
	}

	return 0, false
}

// gpuBusy derives the active fraction from performance state
// residencies, counting everything outside the idle states.
func gpuBusy(states []ChannelState) (float64, bool) {
	var idle, total int64
	for _, s := range states {
		if s.Residency <= 0 {
			continue
		}
		total += s.Residency
		if isIdleState(s.Name) {
			idle += s.Residency
		}
	}
	if total <= 0 {
		return 0, false
	}

	return 1 - float64(idle)/float64(total), true
}

// powerFromChannels folds one delta window into average draw. Energy
// counters divide by the window length; a negative delta means the
// counter reset mid-window, and that channel sits the window out.
func powerFromChannels(channels []Channel, dt time.Duration) PowerSample {
	var out PowerSample
	if dt <= 0 {
		return out
	}
	secs := dt.Seconds()

	for _, ch := range channels {
		switch {
		case ch.Group == energyModelGroup:
			if ch.Value < 0 {
				continue
			}
			joules, ok := joulesFromUnit(ch.Value, ch.Unit)
			if !ok {
				continue
			}
			watts := Watts(joules / secs)
			switch {
			case strings.Contains(ch.Name, "CPU Energy"):
				out.CPU += watts
			case strings.Contains(ch.Name, "GPU Energy"):
				out.GPU += watts
				out.GPUSeen = true
			case strings.HasPrefix(ch.Name, "ANE"):
				out.ANE += watts
			}
		case ch.Group == gpuStatsGroup && validChannel(ch):
			out.GPUSeen = true
			if busy, ok := gpuBusy(ch.States); ok {
				out.GPUBusy = busy
			}
			var acc freqAccumulator
			acc.add(ch.States)
			if f := acc.gigahertz(); f > 0 {
				out.GPUFrequency = f
			}
		}
	}

	return out
}

func (p PowerSample) hasData() bool {
	return p.CPU > 0 || p.GPU > 0 || p.ANE > 0
}

// PowerReader samples the energy model counters and the GPU
// performance states over one shared subscription.
type PowerReader struct {
	// Diagnostics logs every decoded channel of each window at debug
	// level, for channel layout troubleshooting on new chips.
	Diagnostics bool

	source   deltaSource
	lastGood PowerSample
	hasLast  bool
}

func NewPowerReader() *PowerReader {
	return &PowerReader{
		source: deltaSource{
			groups: []channelGroup{
				{group: energyModelGroup},
				{group: gpuStatsGroup, subgroup: gpuPerformanceStates},
			},
		},
	}
}

func (r *PowerReader) Open() error {
	return r.source.open()
}

func (r *PowerReader) Close() {
	r.source.close()
}

func (r *PowerReader) Sample() (PowerSample, error) {
	errFactory := errors.New()

	channels, dt, err := r.source.window()
	if err != nil {
		if r.hasLast && deltaFailure(err) {
			return r.lastGood, nil
		}
		return PowerSample{}, err
	}

	sample := powerFromChannels(channels, dt)
	if r.Diagnostics {
		logPowerWindow(channels, dt, sample)
	}
	if sample.hasData() {
		r.lastGood = sample
		r.hasLast = true
		return sample, nil
	}
	if r.hasLast {
		return r.lastGood, nil
	}
	if len(channels) == 0 {
		return PowerSample{}, errFactory.New(ErrNoUsableChannels)
	}

	return sample, nil
}

// logPowerWindow records the raw evidence behind one window: each
// energy counter with its unit and derived draw, each GPU state
// channel with its busy fraction and clock, then the folded sample.
func logPowerWindow(channels []Channel, dt time.Duration, sample PowerSample) {
	secs := dt.Seconds()
	for _, ch := range channels {
		switch ch.Group {
		case energyModelGroup:
			event := logger.Debug().
				Str("channel", ch.Name).
				Str("unit", ch.Unit).
				Int64("delta", ch.Value)
			if joules, ok := joulesFromUnit(ch.Value, ch.Unit); ok && secs > 0 {
				event = event.Float64("watts", joules/secs)
			}
			event.Msg("Energy channel")
		case gpuStatsGroup:
			if !validChannel(ch) {
				continue
			}
			busy, _ := gpuBusy(ch.States)
			var acc freqAccumulator
			acc.add(ch.States)
			logger.Debug().
				Str("channel", ch.Name).
				Int("states", len(ch.States)).
				Float64("busy", busy).
				Float64("ghz", float64(acc.gigahertz())).
				Msg("GPU state channel")
		}
	}
	logger.Debug().
		Dur("window", dt).
		Float64("cpu_watts", float64(sample.CPU)).
		Float64("gpu_watts", float64(sample.GPU)).
		Float64("ane_watts", float64(sample.ANE)).
		Msg("Power window")
}
