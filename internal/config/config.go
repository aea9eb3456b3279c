package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all agent configuration.
type Config struct {
	Core     CoreConfig
	Tracking TrackingConfig
	Logging  LogConfig
}

// CoreConfig holds top-level agent settings.
type CoreConfig struct {
	Monitor bool   `envconfig:"SCOUT_MONITOR" default:"true"`
	Name    string `envconfig:"SCOUT_NAME" default:""`
	AppRoot string `envconfig:"SCOUT_APP_ROOT" default:""`
}

// TrackingConfig holds span tracking and detection settings.
type TrackingConfig struct {
	IgnorePaths        []string `envconfig:"SCOUT_IGNORE" default:""`
	NPlusOneThreshold  int      `envconfig:"SCOUT_N_PLUS_ONE_THRESHOLD" default:"5"`
	CollectBacktraces  bool     `envconfig:"SCOUT_COLLECT_BACKTRACES" default:"true"`
	MaxBacktraceFrames int      `envconfig:"SCOUT_MAX_BACKTRACE_FRAMES" default:"50"`
	ExportQueueSize    int      `envconfig:"SCOUT_EXPORT_QUEUE_SIZE" default:"256"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"SCOUT_LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"SCOUT_LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Core: CoreConfig{
			Monitor: true,
		},
		Tracking: TrackingConfig{
			NPlusOneThreshold:  5,
			CollectBacktraces:  true,
			MaxBacktraceFrames: 50,
			ExportQueueSize:    256,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}
