package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/gcpacer/pkg/pacer"
)

// Run workload defaults.
const (
	DefaultMetricsAddr = ":9464"
	DefaultRunWorkers  = 4
	DefaultRunInterval = 5 * time.Millisecond
	DefaultRequestSize = "256KiB"
	DefaultCacheSize   = "64MiB"
	DefaultQueueSize   = 1024
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = logFormatText
)

func setDefaults(viperCfg *viper.Viper) {
	tuning := pacer.DefaultTuning()

	viperCfg.SetDefault("pacer.mini_mode", false)
	viperCfg.SetDefault("pacer.eden_enabled", true)
	viperCfg.SetDefault("pacer.eden_interval", time.Duration(0))
	viperCfg.SetDefault("pacer.full_enabled", true)
	viperCfg.SetDefault("pacer.full_interval", time.Duration(0))

	viperCfg.SetDefault("pacer.eden_delay", tuning.EdenDelay)
	viperCfg.SetDefault("pacer.eden_aggressive_delay", tuning.EdenAggressiveDelay)
	viperCfg.SetDefault("pacer.eden_defer_threshold", tuning.EdenDeferThreshold)
	viperCfg.SetDefault("pacer.eden_aggressive_defer_threshold", tuning.EdenAggressiveDeferThreshold)
	viperCfg.SetDefault("pacer.full_delay", tuning.FullDelay)
	viperCfg.SetDefault("pacer.full_defer_threshold", tuning.FullDeferThreshold)
	viperCfg.SetDefault("pacer.idle_reclaim_delay", tuning.IdleReclaimDelay)
	viperCfg.SetDefault("pacer.idle_reclaim_defer_threshold", tuning.IdleReclaimDeferThreshold)
	viperCfg.SetDefault("pacer.pressure_ratio", tuning.PressureRatio)
	viperCfg.SetDefault("pacer.growth_ratio", tuning.GrowthRatio)
	viperCfg.SetDefault("pacer.rss_ratio", tuning.RSSRatio)
	viperCfg.SetDefault("pacer.absolute_cap", "1GiB")
	viperCfg.SetDefault("pacer.rss_probe_floor", "512MiB")
	viperCfg.SetDefault("pacer.growth_plateau", tuning.GrowthPlateau)
	viperCfg.SetDefault("pacer.reclaim_plateau", tuning.ReclaimPlateau)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("telemetry.environment", "")
	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.sample_ratio", 0.0)
	viperCfg.SetDefault("telemetry.prometheus_enabled", true)
	viperCfg.SetDefault("telemetry.shutdown_timeout_sec", 0)

	viperCfg.SetDefault("run.metrics_addr", DefaultMetricsAddr)
	viperCfg.SetDefault("run.duration", time.Duration(0))
	viperCfg.SetDefault("run.workers", DefaultRunWorkers)
	viperCfg.SetDefault("run.interval", DefaultRunInterval)
	viperCfg.SetDefault("run.request_size", DefaultRequestSize)
	viperCfg.SetDefault("run.cache_size", DefaultCacheSize)
	viperCfg.SetDefault("run.queue_size", DefaultQueueSize)
	viperCfg.SetDefault("run.ram_override", "")
}
