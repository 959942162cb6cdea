package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load merges an optional config file at path (.toml, .yaml or .yml) on top
// of Defaults, loads .env if present, applies SIGNAL_* environment overrides
// and returns the result. The caller should invoke Validate after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("config: %s: %w", path, err)
		}
	case ".yaml", ".yml":
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return fmt.Errorf("config: %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config: unsupported file type %q", ext)
	}
	return nil
}

// applyEnvOverrides overwrites fields from SIGNAL_* variables that are set
// and non-empty, so secrets can be injected at deploy time.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.LogLevel, "SIGNAL_LOG_LEVEL")

	setStr(&cfg.Instrument.Symbol, "SIGNAL_SYMBOL")
	setStr(&cfg.Instrument.Label, "SIGNAL_INSTRUMENT_LABEL")

	setStr(&cfg.Feed.URL, "SIGNAL_FEED_URL")
	setStr(&cfg.Feed.Token, "SIGNAL_FEED_TOKEN")
	setStr(&cfg.Feed.NewsChannel, "SIGNAL_FEED_NEWS_CHANNEL")

	setInt(&cfg.Buffer.Capacity, "SIGNAL_BUFFER_CAPACITY")
	setStr(&cfg.Strategy.Profile, "SIGNAL_PROFILE")

	setStr(&cfg.Targets.Strategy, "SIGNAL_TARGETS")
	setFloat64(&cfg.Targets.TPMult, "SIGNAL_TP_MULT")
	setFloat64(&cfg.Targets.SLMult, "SIGNAL_SL_MULT")
	setFloat64(&cfg.Targets.TPOffset, "SIGNAL_TP_OFFSET")
	setFloat64(&cfg.Targets.SLOffset, "SIGNAL_SL_OFFSET")

	setDuration(&cfg.Suppression.Duration, "SIGNAL_SUPPRESSION_DURATION")
	setStr(&cfg.Suppression.Trigger, "SIGNAL_SUPPRESSION_TRIGGER")

	setDuration(&cfg.Lifecycle.Cooldown, "SIGNAL_COOLDOWN")
	setDuration(&cfg.Lifecycle.MonitorInterval, "SIGNAL_MONITOR_INTERVAL")
	setStr(&cfg.Lifecycle.FreeTierReset, "SIGNAL_FREE_TIER_RESET")

	setStr(&cfg.Notify.Primary, "SIGNAL_NOTIFY_PRIMARY")
	setStr(&cfg.Notify.Secondary, "SIGNAL_NOTIFY_SECONDARY")
	setStr(&cfg.Notify.TelegramToken, "SIGNAL_TELEGRAM_TOKEN")
	setBool(&cfg.Notify.RetryOnce, "SIGNAL_NOTIFY_RETRY_ONCE")

	setBool(&cfg.Redis.Enabled, "SIGNAL_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SIGNAL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SIGNAL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SIGNAL_REDIS_DB")

	setBool(&cfg.Gateway.Enabled, "SIGNAL_GATEWAY_ENABLED")

	setStr(&cfg.Journal.Path, "SIGNAL_JOURNAL_PATH")
	setStr(&cfg.Metrics.Addr, "SIGNAL_METRICS_ADDR")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
