// Package config handles loading and validating the roundhouse configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultPipeline is the system stage order used when a session carries no
// override, highest priority first. Position encodes priority: cheap exact
// matchers run before expensive statistical ones before generic catch-alls.
var DefaultPipeline = []string{
	"converse",
	"intent_high",
	"keyword",
	"common_query",
	"fallback_high",
	"intent_medium",
	"fallback_medium",
	"intent_low",
	"fallback_low",
}

// Config is the root configuration for the roundhouse daemon.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Bus      BusConfig      `mapstructure:"bus"`
	Lang     LangConfig     `mapstructure:"lang"`
	Session  SessionConfig  `mapstructure:"session"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Sounds   SoundsConfig   `mapstructure:"sounds"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds the HTTP surfaces of the daemon.
type ServerConfig struct {
	HealthPort     int  `mapstructure:"health_port"`
	GatewayEnabled bool `mapstructure:"gateway_enabled"`
	GatewayPort    int  `mapstructure:"gateway_port"`
}

// BusConfig selects and configures the message bus backend.
type BusConfig struct {
	Backend     string `mapstructure:"backend"` // "mqtt" or "inproc"
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	QoS         int    `mapstructure:"qos"`
}

// LangConfig holds the language disambiguation settings.
type LangConfig struct {
	// Default is the fallback language tag when no valid signal is present.
	Default string `mapstructure:"default"`

	// Enabled is the set of languages the deployment accepts. Signals
	// resolving outside this set are ignored.
	Enabled []string `mapstructure:"enabled"`
}

// SessionConfig holds session lifecycle settings.
type SessionConfig struct {
	// TTL is how long the default session stays fresh between touches.
	TTL time.Duration `mapstructure:"ttl"`
}

// PipelineConfig holds the dispatch pipeline settings.
type PipelineConfig struct {
	// Stages is the default stage order. Sessions may override it.
	Stages []string `mapstructure:"stages"`

	// CatchAll binds an always-accepting stage into the lowest fallback
	// slot, guaranteeing every utterance terminates with a result.
	CatchAll CatchAllConfig `mapstructure:"catch_all"`
}

// CatchAllConfig configures the built-in catch-all fallback stage.
type CatchAllConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	IntentType string `mapstructure:"intent_type"`
}

// SoundsConfig maps notification sounds to URIs.
type SoundsConfig struct {
	Error string `mapstructure:"error"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./roundhouse.yaml, ./configs/roundhouse.yaml,
// /etc/roundhouse/roundhouse.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("server.gateway_enabled", true)
	v.SetDefault("server.gateway_port", 8080)
	v.SetDefault("bus.backend", "mqtt")
	v.SetDefault("bus.broker", "tcp://localhost:1883")
	v.SetDefault("bus.client_id", "roundhouse")
	v.SetDefault("bus.topic_prefix", "roundhouse")
	v.SetDefault("bus.qos", 1)
	v.SetDefault("lang.default", "en-us")
	v.SetDefault("lang.enabled", []string{"en-us"})
	v.SetDefault("session.ttl", "5m")
	v.SetDefault("pipeline.stages", DefaultPipeline)
	v.SetDefault("pipeline.catch_all.enabled", false)
	v.SetDefault("pipeline.catch_all.intent_type", "fallback.unhandled")
	v.SetDefault("sounds.error", "snd/error.mp3")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("roundhouse")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/roundhouse")
	}

	// Environment variables: ROUNDHOUSE_BUS_BROKER, ROUNDHOUSE_LANG_DEFAULT, etc.
	v.SetEnvPrefix("ROUNDHOUSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional — env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if len(cfg.Pipeline.Stages) == 0 {
		cfg.Pipeline.Stages = DefaultPipeline
	}
	if cfg.Session.TTL <= 0 {
		return nil, fmt.Errorf("session.ttl must be positive, got %s", cfg.Session.TTL)
	}
	if len(cfg.Lang.Enabled) == 0 {
		cfg.Lang.Enabled = []string{cfg.Lang.Default}
	}

	return &cfg, nil
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
