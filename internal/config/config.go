package config

import (
	"os"
	"strings"

	"codeberg.org/mutker/socmon/internal/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = "info"

	defaultInterval         = 1
	defaultTempInterval     = 20
	defaultFreqInterval     = 30
	defaultPowerInterval    = 5
	defaultUsageInterval    = 5
	defaultThermalInterval  = 60
	defaultFailureThreshold = 3
	defaultVisibilityWindow = 15
	defaultListen           = ":9757"
)

type Config struct {
	Interval            int    `mapstructure:"interval"`
	TemperatureInterval int    `mapstructure:"temperature_interval"`
	FrequencyInterval   int    `mapstructure:"frequency_interval"`
	PowerInterval       int    `mapstructure:"power_interval"`
	UsageInterval       int    `mapstructure:"usage_interval"`
	ThermalInterval     int    `mapstructure:"thermal_interval"`
	FailureThreshold    int    `mapstructure:"failure_threshold"`
	VisibilityWindow    int    `mapstructure:"visibility_window"`
	AlwaysOn            bool   `mapstructure:"always_on"`
	Exporter            bool   `mapstructure:"exporter"`
	Listen              string `mapstructure:"listen"`
	LogLevel            string `mapstructure:"log_level"`
	Debug               bool   `mapstructure:"debug"`
	Verbose             bool   `mapstructure:"verbose"`
	DiagFrequency       bool   `mapstructure:"diag_frequency"`
	DiagPower           bool   `mapstructure:"diag_power"`
	Once                bool   `mapstructure:"once"`
}

func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{envPrefix: "SOCMON"}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	fs := pflag.NewFlagSet("socmon", pflag.ContinueOnError)
	fs.Int("interval", defaultInterval, "Seconds between scheduler ticks")
	fs.Int("temperature-interval", defaultTempInterval, "Seconds between temperature samples")
	fs.Int("frequency-interval", defaultFreqInterval, "Seconds between frequency samples")
	fs.Int("power-interval", defaultPowerInterval, "Seconds between power samples")
	fs.Int("usage-interval", defaultUsageInterval, "Seconds between utilization samples")
	fs.Int("thermal-interval", defaultThermalInterval, "Seconds between thermal pressure samples")
	fs.Bool("always-on", false, "Sample even when no consumer is attached")
	fs.Bool("exporter", true, "Serve Prometheus metrics")
	fs.String("listen", defaultListen, "Exporter listen address")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.Bool("verbose", false, "Enable verbose logging")
	fs.Bool("diag-frequency", false, "Log per-channel frequency diagnostics")
	fs.Bool("diag-power", false, "Log per-channel power diagnostics")
	fs.Bool("once", false, "Take a single snapshot, print it as JSON and exit")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	if err := readConfigFile(v, o.configPath, o.envPrefix); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Flags set on the command line override file and environment values
	fs.Visit(func(f *pflag.Flag) {
		v.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
	})

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	applyLogLevel(config)

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", defaultInterval)
	v.SetDefault("temperature_interval", defaultTempInterval)
	v.SetDefault("frequency_interval", defaultFreqInterval)
	v.SetDefault("power_interval", defaultPowerInterval)
	v.SetDefault("usage_interval", defaultUsageInterval)
	v.SetDefault("thermal_interval", defaultThermalInterval)
	v.SetDefault("failure_threshold", defaultFailureThreshold)
	v.SetDefault("visibility_window", defaultVisibilityWindow)
	v.SetDefault("always_on", false)
	v.SetDefault("exporter", true)
	v.SetDefault("listen", defaultListen)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)
	v.SetDefault("diag_frequency", false)
	v.SetDefault("diag_power", false)
	v.SetDefault("once", false)
}

func readConfigFile(v *viper.Viper, explicitPath, envPrefix string) error {
	errFactory := errors.New()

	if explicitPath == "" {
		explicitPath = os.Getenv(envPrefix + "_CONFIG")
	}

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
		return nil
	}

	v.SetConfigName("socmon")
	v.SetConfigType("toml")
	v.AddConfigPath("/etc")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	return nil
}

func (c *Config) validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}

	for _, interval := range []int{
		c.TemperatureInterval, c.FrequencyInterval, c.PowerInterval,
		c.UsageInterval, c.ThermalInterval,
	} {
		if interval <= 0 {
			return errFactory.WithData(errors.ErrInvalidInterval, interval)
		}
	}

	if c.FailureThreshold < 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, "failure_threshold must be at least 1")
	}

	if c.VisibilityWindow < c.Interval {
		return errFactory.WithData(errors.ErrInvalidConfig, "visibility_window shorter than interval")
	}

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if c.Exporter && c.Listen == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "exporter enabled without listen address")
	}

	return nil
}

func applyLogLevel(c *Config) {
	if c.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	if c.Verbose {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return
	}

	switch LogLevel(c.LogLevel) {
	case LogLevelDebug:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case LogLevelInfo:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case LogLevelWarning:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case LogLevelError:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	}
}
