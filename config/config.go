// Package config loads the signal engine configuration: built-in defaults,
// an optional TOML or YAML file, a .env file and SIGNAL_* environment
// overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sigflow/signalengine/internal/indicator"
	"github.com/sigflow/signalengine/internal/lifecycle"
	"github.com/sigflow/signalengine/internal/logger"
	"github.com/sigflow/signalengine/internal/notification"
	"github.com/sigflow/signalengine/internal/strategy"
	"github.com/sigflow/signalengine/internal/suppression"
)

// Duration wraps time.Duration so config files can say "5m" or "30s".
type Duration struct {
	time.Duration
}

// D is shorthand for building a Duration.
func D(d time.Duration) Duration { return Duration{d} }

// UnmarshalText implements encoding.TextUnmarshaler (TOML and env values).
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML decodes a YAML scalar like "20m".
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	return d.UnmarshalText([]byte(n.Value))
}

// Config holds all application configuration.
type Config struct {
	Service  string `toml:"service" yaml:"service"`
	LogLevel string `toml:"log_level" yaml:"log_level"`

	Instrument  InstrumentConfig  `toml:"instrument" yaml:"instrument"`
	Feed        FeedConfig        `toml:"feed" yaml:"feed"`
	Buffer      BufferConfig      `toml:"buffer" yaml:"buffer"`
	Strategy    StrategyConfig    `toml:"strategy" yaml:"strategy"`
	Targets     TargetsConfig     `toml:"targets" yaml:"targets"`
	Suppression SuppressionConfig `toml:"suppression" yaml:"suppression"`
	Lifecycle   LifecycleConfig   `toml:"lifecycle" yaml:"lifecycle"`
	Notify      NotifyConfig      `toml:"notify" yaml:"notify"`
	Redis       RedisConfig       `toml:"redis" yaml:"redis"`
	Gateway     GatewayConfig     `toml:"gateway" yaml:"gateway"`
	Journal     JournalConfig     `toml:"journal" yaml:"journal"`
	Metrics     MetricsConfig     `toml:"metrics" yaml:"metrics"`
}

// InstrumentConfig names the single tracked instrument.
type InstrumentConfig struct {
	Symbol string `toml:"symbol" yaml:"symbol"` // feed symbol, e.g. BINANCE:BTCUSDT
	Label  string `toml:"label" yaml:"label"`   // shown in messages, e.g. BTC/USD
}

// FeedConfig holds the market-data websocket parameters.
type FeedConfig struct {
	URL               string   `toml:"url" yaml:"url"`
	Token             string   `toml:"token" yaml:"token"`
	NewsChannel       string   `toml:"news_channel" yaml:"news_channel"`
	ReconnectDelay    Duration `toml:"reconnect_delay" yaml:"reconnect_delay"`
	MaxReconnectDelay Duration `toml:"max_reconnect_delay" yaml:"max_reconnect_delay"`
	ReadTimeout       Duration `toml:"read_timeout" yaml:"read_timeout"`
	EventBuffer       int      `toml:"event_buffer" yaml:"event_buffer"`
}

// BufferConfig sizes the rolling tick window.
type BufferConfig struct {
	Capacity int `toml:"capacity" yaml:"capacity"`
}

// StrategyConfig selects the decision profile. Profile "custom" uses the
// Indicators and Rules blocks; any other name must be a built-in profile.
// Indicators starts from the default periods, so a custom block only lists
// the ones it overrides.
type StrategyConfig struct {
	Profile    string            `toml:"profile" yaml:"profile"`
	Indicators *indicator.Config `toml:"indicators" yaml:"indicators"`
	Rules      *strategy.RuleSet `toml:"rules" yaml:"rules"`
}

// TargetsConfig selects the take-profit / stop-loss strategy.
type TargetsConfig struct {
	Strategy string  `toml:"strategy" yaml:"strategy"` // atr | fixed
	TPMult   float64 `toml:"tp_mult" yaml:"tp_mult"`
	SLMult   float64 `toml:"sl_mult" yaml:"sl_mult"`
	TPOffset float64 `toml:"tp_offset" yaml:"tp_offset"`
	SLOffset float64 `toml:"sl_offset" yaml:"sl_offset"`
}

// SuppressionConfig configures the news gate.
type SuppressionConfig struct {
	Duration Duration `toml:"duration" yaml:"duration"`
	Trigger  string   `toml:"trigger" yaml:"trigger"` // high_impact | any
}

// LifecycleConfig configures trade tracking.
type LifecycleConfig struct {
	Cooldown        Duration `toml:"cooldown" yaml:"cooldown"`
	MonitorInterval Duration `toml:"monitor_interval" yaml:"monitor_interval"`
	FreeTierReset   string   `toml:"free_tier_reset" yaml:"free_tier_reset"` // never | idle | session
}

// NotifyConfig holds destinations and sender credentials.
type NotifyConfig struct {
	Primary        string   `toml:"primary" yaml:"primary"`     // scheme:target
	Secondary      string   `toml:"secondary" yaml:"secondary"` // empty disables the free tier
	TelegramToken  string   `toml:"telegram_token" yaml:"telegram_token"`
	TelegramAPI    string   `toml:"telegram_api" yaml:"telegram_api"`
	WebhookTimeout Duration `toml:"webhook_timeout" yaml:"webhook_timeout"`
	QueueSize      int      `toml:"queue_size" yaml:"queue_size"`
	Workers        int      `toml:"workers" yaml:"workers"`
	RetryOnce      bool     `toml:"retry_once" yaml:"retry_once"`
}

// RedisConfig enables the redis: destination.
type RedisConfig struct {
	Enabled   bool   `toml:"enabled" yaml:"enabled"`
	Addr      string `toml:"addr" yaml:"addr"`
	Password  string `toml:"password" yaml:"password"`
	DB        int    `toml:"db" yaml:"db"`
	KeyPrefix string `toml:"key_prefix" yaml:"key_prefix"`
}

// GatewayConfig enables the ws: destination, served at /ws on the metrics
// server.
type GatewayConfig struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
	Replay  int  `toml:"replay" yaml:"replay"` // recent messages kept for ?since=
}

// JournalConfig enables the SQLite audit journal. Empty path disables it.
type JournalConfig struct {
	Path string `toml:"path" yaml:"path"`
}

// MetricsConfig configures the HTTP server for /metrics, /healthz, /status.
type MetricsConfig struct {
	Addr string `toml:"addr" yaml:"addr"`
}

// Defaults returns a Config populated with production defaults.
func Defaults() Config {
	ind := indicator.DefaultConfig()
	return Config{
		Service:  "signalengine",
		LogLevel: "info",
		Instrument: InstrumentConfig{
			Symbol: "BINANCE:BTCUSDT",
			Label:  "BTC/USD",
		},
		Feed: FeedConfig{
			URL:               "wss://ws.finnhub.io",
			NewsChannel:       "economic_calendar",
			ReconnectDelay:    D(2 * time.Second),
			MaxReconnectDelay: D(30 * time.Second),
			ReadTimeout:       D(90 * time.Second),
			EventBuffer:       256,
		},
		Buffer:   BufferConfig{Capacity: 500},
		Strategy: StrategyConfig{Profile: "classic", Indicators: &ind},
		Targets: TargetsConfig{
			Strategy: "atr",
			TPMult:   1.5,
			SLMult:   2.25,
			TPOffset: 200,
			SLOffset: 300,
		},
		Suppression: SuppressionConfig{
			Duration: D(suppression.DefaultDuration),
			Trigger:  string(suppression.TriggerHighImpact),
		},
		Lifecycle: LifecycleConfig{
			Cooldown:        D(lifecycle.DefaultCooldown),
			MonitorInterval: D(5 * time.Second),
			FreeTierReset:   string(lifecycle.ResetNever),
		},
		Notify: NotifyConfig{
			Primary:        "log:premium",
			WebhookTimeout: D(10 * time.Second),
			QueueSize:      64,
			Workers:        1,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "signalengine",
		},
		Gateway: GatewayConfig{Replay: 200},
		Metrics: MetricsConfig{Addr: ":9090"},
	}
}

// Profile resolves the decision profile.
func (c *Config) Profile() (strategy.Profile, error) {
	if c.Strategy.Profile == "custom" {
		if c.Strategy.Rules == nil {
			return strategy.Profile{}, errors.New("config: custom profile needs [strategy.rules]")
		}
		ind := indicator.DefaultConfig()
		if c.Strategy.Indicators != nil {
			ind = *c.Strategy.Indicators
		}
		rules := *c.Strategy.Rules
		if rules.Profile == "" {
			rules.Profile = "custom"
		}
		return strategy.Profile{Indicators: ind, Rules: rules}, nil
	}
	p, ok := strategy.Builtin(c.Strategy.Profile)
	if !ok {
		return strategy.Profile{}, fmt.Errorf("config: unknown profile %q (built-in: %v, or custom)", c.Strategy.Profile, strategy.BuiltinNames())
	}
	return p, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Instrument.Symbol == "" {
		add("instrument.symbol is required")
	}
	if c.Feed.URL == "" {
		add("feed.url is required")
	}
	if c.Feed.ReconnectDelay.Duration <= 0 || c.Feed.MaxReconnectDelay.Duration < c.Feed.ReconnectDelay.Duration {
		add("feed reconnect delays invalid (%s..%s)", c.Feed.ReconnectDelay, c.Feed.MaxReconnectDelay)
	}
	if c.Buffer.Capacity < 50 || c.Buffer.Capacity > 10000 {
		add("buffer.capacity %d out of range [50, 10000]", c.Buffer.Capacity)
	}

	profile, err := c.Profile()
	if err != nil {
		errs = append(errs, err)
	} else if err := profile.Validate(); err != nil {
		errs = append(errs, err)
	} else if eng, err := indicator.NewEngine(profile.Indicators, profile.Rules.Requirements()); err == nil && eng.MinSamples() > c.Buffer.Capacity {
		add("buffer.capacity %d is below the %d samples profile %q needs", c.Buffer.Capacity, eng.MinSamples(), profile.Rules.Name())
	}

	if _, err := c.TargetsStrategy(); err != nil {
		errs = append(errs, err)
	}
	if c.Suppression.Duration.Duration <= 0 {
		add("suppression.duration must be positive")
	}
	if _, err := suppression.New(c.Suppression.Duration.Duration, suppression.TriggerMode(c.Suppression.Trigger)); err != nil {
		errs = append(errs, err)
	}
	if c.Lifecycle.Cooldown.Duration < 0 {
		add("lifecycle.cooldown must not be negative")
	}
	if c.Lifecycle.MonitorInterval.Duration <= 0 {
		add("lifecycle.monitor_interval must be positive")
	}
	if _, err := lifecycle.ParseFreeTierReset(c.Lifecycle.FreeTierReset); err != nil {
		errs = append(errs, err)
	}

	dests := []string{c.Notify.Primary}
	if c.Notify.Secondary != "" {
		dests = append(dests, c.Notify.Secondary)
	}
	for _, s := range dests {
		d, err := notification.ParseDestination(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		switch d.Scheme {
		case "telegram":
			if c.Notify.TelegramToken == "" {
				add("notify: %s needs notify.telegram_token", d)
			}
		case "redis":
			if !c.Redis.Enabled {
				add("notify: %s needs redis.enabled", d)
			}
		case "ws":
			if !c.Gateway.Enabled {
				add("notify: %s needs gateway.enabled", d)
			}
		case "webhook", "log":
		default:
			add("notify: unknown destination scheme %q", d.Scheme)
		}
	}
	if c.Notify.QueueSize <= 0 || c.Notify.Workers <= 0 {
		add("notify.queue_size and notify.workers must be positive")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		add("redis.addr is required when redis is enabled")
	}

	return errors.Join(errs...)
}

// TargetsStrategy builds the configured TP/SL strategy.
func (c *Config) TargetsStrategy() (lifecycle.Targets, error) {
	t := c.Targets
	return lifecycle.NewTargets(t.Strategy, t.TPMult, t.SLMult, t.TPOffset, t.SLOffset)
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	redact(&c.Feed.Token)
	redact(&c.Notify.TelegramToken)
	redact(&c.Redis.Password)
	return c
}

func redact(s *string) {
	if *s != "" {
		*s = "***"
	}
}
