package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/socmon/internal/config"
	"codeberg.org/mutker/socmon/internal/engine"
	"codeberg.org/mutker/socmon/internal/export"
	"codeberg.org/mutker/socmon/internal/host"
	"codeberg.org/mutker/socmon/internal/logger"
	"codeberg.org/mutker/socmon/internal/pid"
	"codeberg.org/mutker/socmon/internal/soc"
)

// onceSettle is the pause between the priming and the reporting pass
// in one-shot mode, long enough for a meaningful delta window.
const onceSettle = time.Second

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Once {
		if err := runOnce(ctx); err != nil {
			logger.Fatal().Err(err).Msg("one-shot sample failed")
		}
		return
	}

	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to write PID file")
	}

	go handleSignals(cancel)

	topo := detectTopology(ctx)

	eng, err := engine.New(engineConfig(), topo, buildSources(ctx))
	if err != nil {
		removePIDFile()
		logger.Fatal().Err(err).Msg("failed to initialize engine")
	}

	exporter, err := export.NewService(exportConfig(), eng.Snapshot)
	if err != nil {
		removePIDFile()
		logger.Fatal().Err(err).Msg("failed to initialize exporter")
	}
	if err := exporter.Serve(); err != nil {
		removePIDFile()
		logger.Fatal().Err(err).Msg("failed to start exporter")
	}

	if !cfg.Exporter && !cfg.AlwaysOn {
		logger.Warn().Msg("Exporter disabled without always_on, sampling stays idle until a consumer appears")
	}

	if err := eng.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("error in sampling loop")
	}
	cleanup(exporter)
}

// runOnce takes a single forced-visible sample cycle and prints the
// snapshot as JSON. No PID file and no exporter, so a spot check never
// collides with a running daemon.
func runOnce(ctx context.Context) error {
	topo := detectTopology(ctx)

	onceCfg := engineConfig()
	onceCfg.AlwaysOn = true

	eng, err := engine.New(onceCfg, topo, buildSources(ctx))
	if err != nil {
		return err
	}

	snapshot := eng.SampleOnce(ctx, onceSettle)

	out, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	return nil
}

func detectTopology(ctx context.Context) soc.Topology {
	topo := soc.DetectTopology(ctx)

	logger.Info().
		Str("model", topo.Model).
		Int("performance_cores", topo.PerformanceCores).
		Int("efficiency_cores", topo.EfficiencyCores).
		Int("gpu_cores", topo.GPUCores).
		Msg("Detected SoC")

	if !topo.AppleSilicon {
		logger.Warn().Msg("Not an Apple Silicon host, most metrics will report unsupported")
	}

	return topo
}

func buildSources(ctx context.Context) engine.Sources {
	frequency := soc.NewFrequencyReader()
	frequency.Diagnostics = cfg.DiagFrequency

	power := soc.NewPowerReader()
	power.Diagnostics = cfg.DiagPower

	return engine.Sources{
		Temperature: soc.NewTemperatureReader(),
		Frequency:   frequency,
		Power:       power,
		Usage:       host.NewSampler(ctx),
		Thermal:     host.NewThermalReader(),
	}
}

func engineConfig() engine.Config {
	return engine.Config{
		Interval:            time.Duration(cfg.Interval) * time.Second,
		TemperatureInterval: time.Duration(cfg.TemperatureInterval) * time.Second,
		FrequencyInterval:   time.Duration(cfg.FrequencyInterval) * time.Second,
		PowerInterval:       time.Duration(cfg.PowerInterval) * time.Second,
		UsageInterval:       time.Duration(cfg.UsageInterval) * time.Second,
		ThermalInterval:     time.Duration(cfg.ThermalInterval) * time.Second,
		FailureThreshold:    cfg.FailureThreshold,
		AlwaysOn:            cfg.AlwaysOn,
		VisibilityWindow:    time.Duration(cfg.VisibilityWindow) * time.Second,
	}
}

func exportConfig() export.Config {
	return export.Config{
		Enabled:    cfg.Exporter,
		ListenAddr: cfg.Listen,
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func cleanup(exporter export.Collector) {
	if err := exporter.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to stop exporter")
	}
	removePIDFile()
	logger.Info().Msg("Exiting...")
}

func removePIDFile() {
	if err := pid.Remove(); err != nil {
		logger.Error().Err(err).Msg("failed to remove PID file")
	}
}
