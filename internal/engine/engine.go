package engine

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/socmon/internal/errors"
	"codeberg.org/mutker/socmon/internal/host"
	"codeberg.org/mutker/socmon/internal/logger"
	"codeberg.org/mutker/socmon/internal/soc"
)

const (
	maxCelsius = 150

	// Rated clocks undershoot slightly on some models; measured
	// windows may exceed them by this factor before rejection.
	frequencySlack = 1.25
)

// metricCache holds the last successfully computed value per metric
// with the time it was computed. Snapshot reads copy the whole struct
// under the mutex; the lock is never held across a platform call.
type metricCache struct {
	temperature   soc.Celsius
	temperatureAt time.Time

	frequency    soc.ClusterFrequencies
	frequencyAt  time.Time
	hasFrequency bool

	power   soc.PowerSample
	powerAt time.Time

	usage      host.Usage
	usageAt    time.Time
	battery    host.Battery
	hasBattery bool

	thermal   host.PressureLevel
	thermalAt time.Time
}

// Engine owns every subscription and connection and is the sole caller
// of the platform readers. Run pins its goroutine to one OS thread for
// the whole lifetime; the SMC connection must not move across threads.
type Engine struct {
	cfg      Config
	topo     soc.Topology
	sources  Sources
	registry *Registry

	now func() time.Time

	mu    sync.Mutex
	cache metricCache

	lastTouch atomic.Int64

	// Scheduler-goroutine state. lastSample is the per-metric
	// staleness reference: advanced on successful samples and reset
	// when visibility starts.
	visible       bool
	lastSample    [kindCount]time.Time
	maxClock      soc.Gigahertz
	batteryAbsent bool

	tempOpen  bool
	freqOpen  bool
	powerOpen bool
}

func New(cfg Config, topo soc.Topology, sources Sources) (*Engine, error) {
	errFactory := errors.New()

	if cfg.Interval <= 0 || cfg.TemperatureInterval <= 0 || cfg.FrequencyInterval <= 0 ||
		cfg.PowerInterval <= 0 || cfg.UsageInterval <= 0 || cfg.ThermalInterval <= 0 {
		return nil, errFactory.WithMessage(ErrInvalidConfig, "sampling intervals must be positive")
	}
	if cfg.FailureThreshold <= 0 {
		return nil, errFactory.WithMessage(ErrInvalidConfig, "failure threshold must be positive")
	}
	if !cfg.AlwaysOn && cfg.Visible == nil && cfg.VisibilityWindow <= 0 {
		return nil, errFactory.WithMessage(ErrInvalidConfig, "no visibility signal configured")
	}
	if sources.Temperature == nil || sources.Frequency == nil || sources.Power == nil ||
		sources.Usage == nil || sources.Thermal == nil {
		return nil, errFactory.New(ErrNilSource)
	}

	maxClock := topo.PClusterMax
	if topo.EClusterMax > maxClock {
		maxClock = topo.EClusterMax
	}

	return &Engine{
		cfg:      cfg,
		topo:     topo,
		sources:  sources,
		registry: NewRegistry(cfg.FailureThreshold),
		now:      time.Now,
		maxClock: maxClock * frequencySlack,
	}, nil
}

// Run drives the scheduler loop until ctx is cancelled. All open
// resources are released before returning.
func (e *Engine) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer e.teardown()

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	logger.Info().
		Dur("interval", e.cfg.Interval).
		Bool("always_on", e.cfg.AlwaysOn).
		Msg("Sampling engine started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("Sampling engine stopped")
			return nil
		case <-ticker.C:
			start := e.now()
			e.step(ctx, start)
			if elapsed := e.now().Sub(start); elapsed > e.cfg.Interval {
				logger.Warn().Dur("elapsed", elapsed).Msg("Sampling tick overran its interval")
			}
		}
	}
}

// step runs one scheduler tick: evaluate visibility, handle the
// transitions, then sample every stale metric.
func (e *Engine) step(ctx context.Context, now time.Time) {
	if !e.visibleAt(now) {
		if e.visible {
			e.teardown()
			e.visible = false
			logger.Debug().Msg("Consumer hidden, platform resources released")
		}
		return
	}

	if !e.visible {
		e.visible = true
		e.resetStaleness(now)
		logger.Debug().Msg("Consumer visible, sampling resumed")
	}

	if e.registry.Available(KindTemperature) && e.stale(KindTemperature, now) {
		e.sampleTemperature(now)
	}
	if e.registry.Available(KindFrequency) && e.stale(KindFrequency, now) {
		e.sampleFrequency(now)
	}
	if (e.registry.Available(KindCPUPower) || e.registry.Available(KindGPUPower)) &&
		e.stale(KindCPUPower, now) {
		e.samplePower(now)
	}
	if e.registry.Available(KindUsage) && e.stale(KindUsage, now) {
		e.sampleUsage(ctx, now)
	}
	if e.registry.Available(KindThermal) && e.stale(KindThermal, now) {
		e.sampleThermal(ctx, now)
	}
}

func (e *Engine) visibleAt(now time.Time) bool {
	if e.cfg.AlwaysOn {
		return true
	}
	if e.cfg.Visible != nil {
		return e.cfg.Visible()
	}

	touch := e.lastTouch.Load()
	if touch == 0 {
		return false
	}

	return now.Sub(time.Unix(0, touch)) < e.cfg.VisibilityWindow
}

func (e *Engine) stale(kind Kind, now time.Time) bool {
	return now.Sub(e.lastSample[kind]) >= e.intervalFor(kind)
}

func (e *Engine) intervalFor(kind Kind) time.Duration {
	switch kind {
	case KindTemperature:
		return e.cfg.TemperatureInterval
	case KindFrequency:
		return e.cfg.FrequencyInterval
	case KindCPUPower, KindGPUPower:
		return e.cfg.PowerInterval
	case KindUsage:
		return e.cfg.UsageInterval
	case KindThermal:
		return e.cfg.ThermalInterval
	default:
		return e.cfg.Interval
	}
}

// resetStaleness restarts every staleness clock. Metrics come due one
// interval after visibility starts, so a view flapping open and shut
// never triggers a sampling burst.
func (e *Engine) resetStaleness(now time.Time) {
	for k := range e.lastSample {
		e.lastSample[k] = now
	}
}

func (e *Engine) sampleTemperature(now time.Time) {
	if !e.tempOpen {
		if err := e.sources.Temperature.Open(); err != nil {
			e.recordFailure(KindTemperature, err)
			return
		}
		e.tempOpen = true
	}

	value, err := e.sources.Temperature.Read()
	if err != nil {
		e.recordFailure(KindTemperature, err)
		return
	}
	if value < 0 || value > maxCelsius {
		logger.Debug().Float64("celsius", float64(value)).Msg("Temperature outside physical bounds, sample rejected")
		e.fail(KindTemperature)
		return
	}

	e.registry.RecordSuccess(KindTemperature)
	e.lastSample[KindTemperature] = now

	e.mu.Lock()
	e.cache.temperature = value
	e.cache.temperatureAt = now
	e.mu.Unlock()
}

func (e *Engine) sampleFrequency(now time.Time) {
	if !e.freqOpen {
		if err := e.sources.Frequency.Open(); err != nil {
			e.recordFailure(KindFrequency, err)
			return
		}
		e.freqOpen = true
	}

	freqs, err := e.sources.Frequency.Sample()
	if err != nil {
		if errors.HasCode(err, soc.ErrNoBaseline) {
			e.lastSample[KindFrequency] = now
			return
		}
		e.recordFailure(KindFrequency, err)
		return
	}

	if !e.plausibleFrequencies(freqs) {
		logger.Debug().Float64("average_ghz", float64(freqs.Average)).Msg("Frequency outside rated bounds, sample rejected")
		e.fail(KindFrequency)
		return
	}

	e.registry.RecordSuccess(KindFrequency)
	e.lastSample[KindFrequency] = now

	// A zero average means a fully idle window; the cache keeps its
	// last real value so zero never masquerades as a measurement.
	if freqs.Average <= 0 {
		return
	}

	e.mu.Lock()
	e.cache.frequency = freqs
	e.cache.frequencyAt = now
	e.cache.hasFrequency = true
	e.mu.Unlock()
}

func (e *Engine) plausibleFrequencies(f soc.ClusterFrequencies) bool {
	if f.PCluster < 0 || f.ECluster < 0 || f.Average < 0 {
		return false
	}
	if e.maxClock <= 0 {
		return true
	}

	return f.PCluster <= e.maxClock && f.ECluster <= e.maxClock && f.Average <= e.maxClock
}

func (e *Engine) samplePower(now time.Time) {
	if !e.powerOpen {
		if err := e.sources.Power.Open(); err != nil {
			e.failPower(err)
			return
		}
		e.powerOpen = true
	}

	sample, err := e.sources.Power.Sample()
	if err != nil {
		if errors.HasCode(err, soc.ErrNoBaseline) {
			e.lastSample[KindCPUPower] = now
			e.lastSample[KindGPUPower] = now
			return
		}
		e.failPower(err)
		return
	}

	if sample.CPU < 0 || sample.GPU < 0 || sample.ANE < 0 {
		logger.Debug().Msg("Negative power sample rejected")
		e.fail(KindCPUPower)
		e.fail(KindGPUPower)
		return
	}

	if sample.CPU > 0 {
		e.registry.RecordSuccess(KindCPUPower)
	} else {
		e.fail(KindCPUPower)
	}
	if sample.GPUSeen {
		e.registry.RecordSuccess(KindGPUPower)
	} else {
		e.fail(KindGPUPower)
	}

	e.lastSample[KindCPUPower] = now
	e.lastSample[KindGPUPower] = now

	if sample.CPU > 0 || sample.ANE > 0 || sample.GPUSeen {
		e.mu.Lock()
		e.cache.power = sample
		e.cache.powerAt = now
		e.mu.Unlock()
	}
}

func (e *Engine) sampleUsage(ctx context.Context, now time.Time) {
	usage, err := e.sources.Usage.Usage(ctx)
	if err != nil {
		e.recordFailure(KindUsage, err)
		return
	}

	e.registry.RecordSuccess(KindUsage)
	e.lastSample[KindUsage] = now

	var (
		battery    host.Battery
		batteryErr error
	)
	if !e.batteryAbsent {
		battery, batteryErr = e.sources.Usage.Battery(ctx)
		if batteryErr != nil && errors.HasCode(batteryErr, host.ErrBatteryNotFound) {
			e.batteryAbsent = true
		}
	}

	e.mu.Lock()
	e.cache.usage = usage
	e.cache.usageAt = now
	if !e.batteryAbsent && batteryErr == nil {
		e.cache.battery = battery
		e.cache.hasBattery = true
	}
	e.mu.Unlock()

	if batteryErr != nil && !errors.HasCode(batteryErr, host.ErrBatteryNotFound) {
		logger.Debug().Err(batteryErr).Msg("Battery read failed")
	}
}

func (e *Engine) sampleThermal(ctx context.Context, now time.Time) {
	level, err := e.sources.Thermal.Pressure(ctx)
	if err != nil {
		if errors.HasCode(err, host.ErrThermalUnavailable) {
			e.registry.MarkUnsupported(KindThermal)
			logger.Debug().Msg("Thermal pressure requires root, metric unsupported")
			return
		}
		e.recordFailure(KindThermal, err)
		return
	}

	e.registry.RecordSuccess(KindThermal)
	e.lastSample[KindThermal] = now

	e.mu.Lock()
	e.cache.thermal = level
	e.cache.thermalAt = now
	e.mu.Unlock()
}

func (e *Engine) recordFailure(kind Kind, err error) {
	logger.Debug().Err(err).Str("metric", kind.String()).Msg("Sample failed")
	e.fail(kind)
}

func (e *Engine) failPower(err error) {
	logger.Debug().Err(err).Str("metric", "power").Msg("Sample failed")
	e.fail(KindCPUPower)
	e.fail(KindGPUPower)
}

// fail counts one failure toward commitment. Only unknown metrics
// count; a metric crossing the threshold is committed unsupported and
// its resource released.
func (e *Engine) fail(kind Kind) {
	if e.registry.State(kind) != StateUnknown {
		return
	}
	if e.registry.RecordFailure(kind) == StateUnsupported {
		logger.Info().Str("metric", kind.String()).Msg("Metric unsupported on this host")
		e.closeSource(kind)
	}
}

func (e *Engine) closeSource(kind Kind) {
	switch kind {
	case KindTemperature:
		if e.tempOpen {
			e.sources.Temperature.Close()
			e.tempOpen = false
		}
	case KindFrequency:
		if e.freqOpen {
			e.sources.Frequency.Close()
			e.freqOpen = false
		}
	case KindCPUPower, KindGPUPower:
		// The power subscription serves both kinds; it closes once
		// neither can use it.
		if e.powerOpen && !e.registry.Available(KindCPUPower) && !e.registry.Available(KindGPUPower) {
			e.sources.Power.Close()
			e.powerOpen = false
		}
	}
}

// teardown releases every open subscription and connection. Metric
// caches survive, so consumers keep the last known values while the
// view is hidden.
func (e *Engine) teardown() {
	if e.tempOpen {
		e.sources.Temperature.Close()
		e.tempOpen = false
	}
	if e.freqOpen {
		e.sources.Frequency.Close()
		e.freqOpen = false
	}
	if e.powerOpen {
		e.sources.Power.Close()
		e.powerOpen = false
	}
}

// Snapshot assembles the consumer view from current cache state and
// records the read for the scrape-driven visibility default. It never
// triggers a platform call.
func (e *Engine) Snapshot() Snapshot {
	now := e.now()
	e.lastTouch.Store(now.UnixNano())

	e.mu.Lock()
	c := e.cache
	e.mu.Unlock()

	snap := Snapshot{
		Timestamp:       now,
		Temperature:     c.temperature,
		Frequency:       c.frequency,
		Power:           c.power,
		Usage:           c.usage,
		Battery:         c.battery,
		HasBattery:      c.hasBattery,
		ThermalPressure: c.thermal,
		Topology:        e.topo,
		Capabilities: Capabilities{
			Temperature: e.registry.Available(KindTemperature),
			Frequency:   e.registry.Available(KindFrequency),
			CPUPower:    e.registry.Available(KindCPUPower),
			GPUPower:    e.registry.Available(KindGPUPower),
			Usage:       e.registry.Available(KindUsage),
			Thermal:     e.registry.Available(KindThermal),
		},
	}

	if !c.hasFrequency {
		snap.Frequency = e.topo.NominalFrequencies()
		snap.FrequencyNominal = true
	}

	return snap
}

// SampleOnce runs one full synchronous sampling cycle, ignoring
// visibility and staleness. Delta-based readers need two
// time-separated samples, so the cycle settles between them. All
// resources are released before returning.
func (e *Engine) SampleOnce(ctx context.Context, settle time.Duration) Snapshot {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer e.teardown()

	now := e.now()
	e.sampleTemperature(now)
	e.sampleFrequency(now)
	e.samplePower(now)
	e.sampleUsage(ctx, now)
	e.sampleThermal(ctx, now)

	if settle > 0 {
		time.Sleep(settle)
	}

	now = e.now()
	e.sampleFrequency(now)
	e.samplePower(now)

	return e.Snapshot()
}
