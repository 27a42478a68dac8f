// Package config loads gcpacer configuration from an optional YAML file and
// GCPACER_ environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/gcpacer/pkg/observability"
	"github.com/Sumatoshi-tech/gcpacer/pkg/pacer"
	"github.com/Sumatoshi-tech/gcpacer/pkg/safeconv"
	"github.com/Sumatoshi-tech/gcpacer/pkg/units"
)

// Sentinel validation errors.
var (
	ErrInvalidInterval  = errors.New("interval must be positive")
	ErrInvalidRatio     = errors.New("ratio out of range")
	ErrInvalidThreshold = errors.New("threshold must be positive")
	ErrInvalidSize      = errors.New("invalid size")
	ErrInvalidLogLevel  = errors.New("invalid log level")
	ErrInvalidLogFormat = errors.New("invalid log format")
	ErrInvalidWorkload  = errors.New("invalid workload")
)

const (
	envPrefix  = "GCPACER"
	configName = "gcpacer"

	logFormatText = "text"
	logFormatJSON = "json"
)

// Config holds all gcpacer configuration.
type Config struct {
	Pacer     PacerConfig     `mapstructure:"pacer"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Run       RunConfig       `mapstructure:"run"`
}

// PacerConfig holds controller startup options and every tuning constant.
// Sizes are human-readable strings such as "512MiB".
type PacerConfig struct {
	MiniMode     bool          `mapstructure:"mini_mode"`
	EdenEnabled  bool          `mapstructure:"eden_enabled"`
	// EdenInterval and FullInterval override eden_delay and full_delay as
	// the startup intervals when non-zero.
	EdenInterval time.Duration `mapstructure:"eden_interval"`
	FullEnabled  bool          `mapstructure:"full_enabled"`
	FullInterval time.Duration `mapstructure:"full_interval"`

	EdenDelay                    time.Duration `mapstructure:"eden_delay"`
	EdenAggressiveDelay          time.Duration `mapstructure:"eden_aggressive_delay"`
	EdenDeferThreshold           int           `mapstructure:"eden_defer_threshold"`
	EdenAggressiveDeferThreshold int           `mapstructure:"eden_aggressive_defer_threshold"`
	FullDelay                    time.Duration `mapstructure:"full_delay"`
	FullDeferThreshold           int           `mapstructure:"full_defer_threshold"`
	IdleReclaimDelay             time.Duration `mapstructure:"idle_reclaim_delay"`
	IdleReclaimDeferThreshold    int           `mapstructure:"idle_reclaim_defer_threshold"`

	PressureRatio  float64 `mapstructure:"pressure_ratio"`
	GrowthRatio    float64 `mapstructure:"growth_ratio"`
	RSSRatio       float64 `mapstructure:"rss_ratio"`
	AbsoluteCap    string  `mapstructure:"absolute_cap"`
	RSSProbeFloor  string  `mapstructure:"rss_probe_floor"`
	GrowthPlateau  int     `mapstructure:"growth_plateau"`
	ReclaimPlateau int     `mapstructure:"reclaim_plateau"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds tracing and metrics export configuration.
type TelemetryConfig struct {
	Environment        string            `mapstructure:"environment"`
	OTLPEndpoint       string            `mapstructure:"otlp_endpoint"`
	OTLPInsecure       bool              `mapstructure:"otlp_insecure"`
	OTLPHeaders        map[string]string `mapstructure:"otlp_headers"`
	SampleRatio        float64           `mapstructure:"sample_ratio"`
	PrometheusEnabled  bool              `mapstructure:"prometheus_enabled"`
	ShutdownTimeoutSec int               `mapstructure:"shutdown_timeout_sec"`
}

// RunConfig holds the live runtime pacing workload options.
type RunConfig struct {
	MetricsAddr string        `mapstructure:"metrics_addr"`
	Duration    time.Duration `mapstructure:"duration"`
	Workers     int           `mapstructure:"workers"`
	Interval    time.Duration `mapstructure:"interval"`
	RequestSize string        `mapstructure:"request_size"`
	CacheSize   string        `mapstructure:"cache_size"`
	QueueSize   int           `mapstructure:"queue_size"`
	RAMOverride string        `mapstructure:"ram_override"`
}

// LoadConfig loads configuration from configPath, or from gcpacer.yaml in the
// standard search paths when configPath is empty, then applies environment
// overrides such as GCPACER_PACER_EDEN_INTERVAL.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/gcpacer")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var cfg Config

	if err := viperCfg.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Tuning converts the pacer section into controller constants.
func (pc PacerConfig) Tuning() (pacer.Tuning, error) {
	absoluteCap, err := parseSize("pacer.absolute_cap", pc.AbsoluteCap)
	if err != nil {
		return pacer.Tuning{}, err
	}

	probeFloor, err := parseSize("pacer.rss_probe_floor", pc.RSSProbeFloor)
	if err != nil {
		return pacer.Tuning{}, err
	}

	return pacer.Tuning{
		EdenDelay:                    pc.EdenDelay,
		EdenAggressiveDelay:          pc.EdenAggressiveDelay,
		EdenDeferThreshold:           safeconv.IntToUint32(pc.EdenDeferThreshold),
		EdenAggressiveDeferThreshold: safeconv.IntToUint32(pc.EdenAggressiveDeferThreshold),
		FullDelay:                    pc.FullDelay,
		FullDeferThreshold:           safeconv.IntToUint32(pc.FullDeferThreshold),
		IdleReclaimDelay:             pc.IdleReclaimDelay,
		IdleReclaimDeferThreshold:    safeconv.IntToUint32(pc.IdleReclaimDeferThreshold),
		PressureRatio:                pc.PressureRatio,
		GrowthRatio:                  pc.GrowthRatio,
		RSSRatio:                     pc.RSSRatio,
		AbsoluteCap:                  absoluteCap,
		RSSProbeFloor:                probeFloor,
		GrowthPlateau:                safeconv.IntToUint32(pc.GrowthPlateau),
		ReclaimPlateau:               safeconv.IntToUint32(pc.ReclaimPlateau),
	}, nil
}

// SlogLevel parses the configured level name.
func (lc LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level

	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, lc.Level)
	}

	return level, nil
}

// Observability builds the observability configuration for the given mode.
func (c *Config) Observability(mode observability.AppMode, version string) (observability.Config, error) {
	level, err := c.Logging.SlogLevel()
	if err != nil {
		return observability.Config{}, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version
	obsCfg.Environment = c.Telemetry.Environment
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = c.Telemetry.OTLPInsecure
	obsCfg.OTLPHeaders = c.Telemetry.OTLPHeaders
	obsCfg.SampleRatio = c.Telemetry.SampleRatio
	obsCfg.PrometheusEnabled = c.Telemetry.PrometheusEnabled
	obsCfg.LogLevel = level
	obsCfg.LogJSON = c.Logging.Format == logFormatJSON

	if c.Telemetry.ShutdownTimeoutSec > 0 {
		obsCfg.ShutdownTimeoutSec = c.Telemetry.ShutdownTimeoutSec
	}

	return obsCfg, nil
}

// Sizes returns the parsed run workload sizes.
func (rc RunConfig) Sizes() (request, cache, ram uint64, err error) {
	if request, err = parseSize("run.request_size", rc.RequestSize); err != nil {
		return 0, 0, 0, err
	}

	if cache, err = parseSize("run.cache_size", rc.CacheSize); err != nil {
		return 0, 0, 0, err
	}

	if ram, err = parseSize("run.ram_override", rc.RAMOverride); err != nil {
		return 0, 0, 0, err
	}

	return request, cache, ram, nil
}

func parseSize(key, value string) (uint64, error) {
	size, err := units.ParseSize(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidSize, key, err)
	}

	return size, nil
}

func validateConfig(cfg *Config) error {
	return errors.Join(
		validatePacer(cfg.Pacer),
		validateLogging(cfg.Logging),
		validateTelemetry(cfg.Telemetry),
		validateRun(cfg.Run),
	)
}

func validatePacer(pc PacerConfig) error {
	var errs []error

	overrides := []struct {
		key string
		val time.Duration
	}{
		{"eden_interval", pc.EdenInterval},
		{"full_interval", pc.FullInterval},
	}

	for _, ov := range overrides {
		if ov.val < 0 {
			errs = append(errs, fmt.Errorf("%w: pacer.%s=%s", ErrInvalidInterval, ov.key, ov.val))
		}
	}

	intervals := []struct {
		key string
		val time.Duration
	}{
		{"eden_delay", pc.EdenDelay},
		{"eden_aggressive_delay", pc.EdenAggressiveDelay},
		{"full_delay", pc.FullDelay},
		{"idle_reclaim_delay", pc.IdleReclaimDelay},
	}

	for _, iv := range intervals {
		if iv.val <= 0 {
			errs = append(errs, fmt.Errorf("%w: pacer.%s=%s", ErrInvalidInterval, iv.key, iv.val))
		}
	}

	thresholds := []struct {
		key string
		val int
	}{
		{"eden_defer_threshold", pc.EdenDeferThreshold},
		{"eden_aggressive_defer_threshold", pc.EdenAggressiveDeferThreshold},
		{"full_defer_threshold", pc.FullDeferThreshold},
		{"idle_reclaim_defer_threshold", pc.IdleReclaimDeferThreshold},
		{"growth_plateau", pc.GrowthPlateau},
		{"reclaim_plateau", pc.ReclaimPlateau},
	}

	for _, th := range thresholds {
		if th.val <= 0 {
			errs = append(errs, fmt.Errorf("%w: pacer.%s=%d", ErrInvalidThreshold, th.key, th.val))
		}
	}

	ratios := []struct {
		key string
		val float64
	}{
		{"pressure_ratio", pc.PressureRatio},
		{"growth_ratio", pc.GrowthRatio},
		{"rss_ratio", pc.RSSRatio},
	}

	for _, r := range ratios {
		if r.val <= 0 {
			errs = append(errs, fmt.Errorf("%w: pacer.%s=%g", ErrInvalidRatio, r.key, r.val))
		}
	}

	if _, err := pc.Tuning(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateLogging(lc LoggingConfig) error {
	var errs []error

	if _, err := lc.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if lc.Format != logFormatText && lc.Format != logFormatJSON {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogFormat, lc.Format))
	}

	return errors.Join(errs...)
}

func validateTelemetry(tc TelemetryConfig) error {
	if tc.SampleRatio < 0 || tc.SampleRatio > 1 {
		return fmt.Errorf("%w: telemetry.sample_ratio=%g", ErrInvalidRatio, tc.SampleRatio)
	}

	return nil
}

// Validate checks the run section, for callers that override it after loading.
func (rc RunConfig) Validate() error {
	return validateRun(rc)
}

func validateRun(rc RunConfig) error {
	var errs []error

	if rc.Workers <= 0 {
		errs = append(errs, fmt.Errorf("%w: run.workers=%d", ErrInvalidWorkload, rc.Workers))
	}

	if rc.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: run.queue_size=%d", ErrInvalidWorkload, rc.QueueSize))
	}

	if rc.Interval <= 0 {
		errs = append(errs, fmt.Errorf("%w: run.interval=%s", ErrInvalidInterval, rc.Interval))
	}

	if rc.Duration < 0 {
		errs = append(errs, fmt.Errorf("%w: run.duration=%s", ErrInvalidInterval, rc.Duration))
	}

	if _, _, _, err := rc.Sizes(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
