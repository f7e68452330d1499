package export

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"codeberg.org/mutker/socmon/internal/engine"
	"codeberg.org/mutker/socmon/internal/errors"
	"codeberg.org/mutker/socmon/internal/logger"
)

const namespace = "socmon"

type service struct {
	cfg      Config
	snapshot SnapshotFunc

	registry *prometheus.Registry
	gauges   gauges
	metrics  http.Handler
	server   *http.Server
}

// No-op implementation
type noopCollector struct{}

func NewService(cfg Config, snapshot SnapshotFunc) (Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	// If the exporter is disabled, return a no-op collector
	if !cfg.Enabled {
		logger.Debug().Msg("Exporter disabled, using no-op collector")
		return &noopCollector{}, nil
	}

	if snapshot == nil {
		return nil, errFactory.New(ErrNilSource)
	}

	registry := prometheus.NewRegistry()
	g := newGauges()
	g.register(registry)

	logger.Debug().
		Str("listen", cfg.ListenAddr).
		Bool("enabled", cfg.Enabled).
		Msg("Exporter initialized")

	return &service{
		cfg:      cfg,
		snapshot: snapshot,
		registry: registry,
		gauges:   g,
		metrics:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, nil
}

func (s *service) Record(ctx context.Context, snapshot *engine.Snapshot) error {
	errFactory := errors.New()

	if snapshot == nil {
		return errFactory.New(ErrInvalidSnapshot)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		s.gauges.apply(snapshot)
	}

	return nil
}

// Serve binds the listen address and starts answering scrapes in the
// background. The returned error covers the bind only; later server
// failures are logged.
func (s *service) Serve() error {
	errFactory := errors.New()

	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return errFactory.Wrap(ErrServerStart, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.handler())

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("listen", s.cfg.ListenAddr).Msg("Exporter server failed")
		}
	}()

	logger.Info().Str("listen", listener.Addr().String()).Msg("Serving metrics")

	return nil
}

func (s *service) Close() error {
	errFactory := errors.New()

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return errFactory.Wrap(ErrServerShutdown, err)
	}
	return nil
}

// handler refreshes the gauges from a fresh snapshot before each
// exposition, so scraped values are never older than the engine's
// caches and every scrape touches the engine's visibility clock.
func (s *service) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := s.snapshot()
		if err := s.Record(r.Context(), &snap); err != nil {
			logger.Debug().Err(err).Msg("Gauge refresh failed during scrape")
		}
		s.metrics.ServeHTTP(w, r)
	})
}

// No-op implementation
func (*noopCollector) Record(_ context.Context, _ *engine.Snapshot) error {
	return nil
}

func (*noopCollector) Serve() error {
	return nil
}

func (*noopCollector) Close() error {
	return nil
}

type gauges struct {
	temperature     prometheus.Gauge
	pcluster        prometheus.Gauge
	ecluster        prometheus.Gauge
	frequency       prometheus.Gauge
	frequencyRated  prometheus.Gauge
	cpuPower        prometheus.Gauge
	gpuPower        prometheus.Gauge
	anePower        prometheus.Gauge
	gpuBusy         prometheus.Gauge
	gpuFrequency    prometheus.Gauge
	cpuUsage        prometheus.Gauge
	loadAverage     *prometheus.GaugeVec
	memoryUsed      prometheus.Gauge
	memoryTotal     prometheus.Gauge
	memoryRatio     prometheus.Gauge
	uptime          prometheus.Gauge
	batteryPresent  prometheus.Gauge
	batteryPercent  prometheus.Gauge
	batteryCharging prometheus.Gauge
	thermal         prometheus.Gauge
	supported       *prometheus.GaugeVec
	socInfo         *prometheus.GaugeVec
}

func newGauges() gauges {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
	}
	vec := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	}

	return gauges{
		temperature:     gauge("cpu_temp_celsius", "CPU die temperature in degrees Celsius"),
		pcluster:        gauge("pcluster_ghz", "Performance cluster frequency in GHz"),
		ecluster:        gauge("ecluster_ghz", "Efficiency cluster frequency in GHz"),
		frequency:       gauge("cpu_freq_ghz", "Core-weighted average CPU frequency in GHz"),
		frequencyRated:  gauge("frequency_nominal", "1 while frequencies are rated clocks instead of measurements"),
		cpuPower:        gauge("cpu_power_watts", "CPU package power in watts"),
		gpuPower:        gauge("gpu_power_watts", "GPU power in watts"),
		anePower:        gauge("ane_power_watts", "Neural Engine power in watts"),
		gpuBusy:         gauge("gpu_busy_ratio", "GPU active residency, 0 to 1"),
		gpuFrequency:    gauge("gpu_freq_ghz", "GPU frequency in GHz"),
		cpuUsage:        gauge("cpu_usage_percent", "Total CPU utilization percentage"),
		loadAverage:     vec("load_average", "System load average", "period"),
		memoryUsed:      gauge("memory_used_bytes", "Memory in use in bytes"),
		memoryTotal:     gauge("memory_total_bytes", "Total physical memory in bytes"),
		memoryRatio:     gauge("memory_used_ratio", "Memory in use as a fraction of total"),
		uptime:          gauge("uptime_seconds", "Host uptime in seconds"),
		batteryPresent:  gauge("battery_present", "1 when a battery is installed"),
		batteryPercent:  gauge("battery_percent", "Battery charge percentage"),
		batteryCharging: gauge("battery_charging", "1 while the battery is charging"),
		thermal:         gauge("thermal_pressure", "Thermal pressure severity, 0 nominal to 4 sleeping"),
		supported:       vec("metric_supported", "1 while the metric is readable on this host", "metric"),
		socInfo:         vec("soc_info", "Detected SoC topology", "model", "performance_cores", "efficiency_cores", "gpu_cores"),
	}
}

func (g gauges) register(r *prometheus.Registry) {
	r.MustRegister(
		g.temperature,
		g.pcluster,
		g.ecluster,
		g.frequency,
		g.frequencyRated,
		g.cpuPower,
		g.gpuPower,
		g.anePower,
		g.gpuBusy,
		g.gpuFrequency,
		g.cpuUsage,
		g.loadAverage,
		g.memoryUsed,
		g.memoryTotal,
		g.memoryRatio,
		g.uptime,
		g.batteryPresent,
		g.batteryPercent,
		g.batteryCharging,
		g.thermal,
		g.supported,
		g.socInfo,
	)
}

func (g gauges) apply(snap *engine.Snapshot) {
	g.temperature.Set(float64(snap.Temperature))

	g.pcluster.Set(float64(snap.Frequency.PCluster))
	g.ecluster.Set(float64(snap.Frequency.ECluster))
	g.frequency.Set(float64(snap.Frequency.Average))
	g.frequencyRated.Set(boolToGauge(snap.FrequencyNominal))

	g.cpuPower.Set(float64(snap.Power.CPU))
	g.gpuPower.Set(float64(snap.Power.GPU))
	g.anePower.Set(float64(snap.Power.ANE))
	g.gpuBusy.Set(snap.Power.GPUBusy)
	g.gpuFrequency.Set(float64(snap.Power.GPUFrequency))

	g.cpuUsage.Set(snap.Usage.CPUPercent)
	g.loadAverage.With(prometheus.Labels{"period": "1m"}).Set(snap.Usage.Load1)
	g.loadAverage.With(prometheus.Labels{"period": "5m"}).Set(snap.Usage.Load5)
	g.loadAverage.With(prometheus.Labels{"period": "15m"}).Set(snap.Usage.Load15)
	g.memoryUsed.Set(float64(snap.Usage.MemoryUsed))
	g.memoryTotal.Set(float64(snap.Usage.MemoryTotal))
	g.memoryRatio.Set(snap.Usage.MemoryUsedPercent / 100)
	g.uptime.Set(float64(snap.Usage.UptimeSeconds))

	g.batteryPresent.Set(boolToGauge(snap.HasBattery))
	if snap.HasBattery {
		g.batteryPercent.Set(snap.Battery.Percent)
		g.batteryCharging.Set(boolToGauge(snap.Battery.Charging))
	}

	if severity := snap.ThermalPressure.Severity(); severity >= 0 {
		g.thermal.Set(float64(severity))
	}

	caps := snap.Capabilities
	g.supported.With(prometheus.Labels{"metric": "temperature"}).Set(boolToGauge(caps.Temperature))
	g.supported.With(prometheus.Labels{"metric": "frequency"}).Set(boolToGauge(caps.Frequency))
	g.supported.With(prometheus.Labels{"metric": "cpu_power"}).Set(boolToGauge(caps.CPUPower))
	g.supported.With(prometheus.Labels{"metric": "gpu_power"}).Set(boolToGauge(caps.GPUPower))
	g.supported.With(prometheus.Labels{"metric": "usage"}).Set(boolToGauge(caps.Usage))
	g.supported.With(prometheus.Labels{"metric": "thermal"}).Set(boolToGauge(caps.Thermal))

	g.socInfo.With(prometheus.Labels{
		"model":             snap.Topology.Model,
		"performance_cores": strconv.Itoa(snap.Topology.PerformanceCores),
		"efficiency_cores":  strconv.Itoa(snap.Topology.EfficiencyCores),
		"gpu_cores":         strconv.Itoa(snap.Topology.GPUCores),
	}).Set(1)
}
