package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigflow/signalengine/internal/indicator"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults_Valid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 500, cfg.Buffer.Capacity)
	assert.Equal(t, 20*time.Minute, cfg.Suppression.Duration.Duration)
	assert.Equal(t, 2*time.Minute, cfg.Lifecycle.Cooldown.Duration)
	assert.Equal(t, 5*time.Second, cfg.Lifecycle.MonitorInterval.Duration)
	assert.Equal(t, "BTC/USD", cfg.Instrument.Label)
	assert.Equal(t, 1, cfg.Notify.Workers)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "signal.toml", `
log_level = "debug"

[buffer]
capacity = 1000

[strategy]
profile = "momentum"

[suppression]
duration = "30m"
trigger = "any"

[lifecycle]
cooldown = "90s"
free_tier_reset = "idle"

[notify]
primary = "webhook:http://localhost:8080/hook"
secondary = "log:free"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 1000, cfg.Buffer.Capacity)
	assert.Equal(t, "momentum", cfg.Strategy.Profile)
	assert.Equal(t, 30*time.Minute, cfg.Suppression.Duration.Duration)
	assert.Equal(t, "any", cfg.Suppression.Trigger)
	assert.Equal(t, 90*time.Second, cfg.Lifecycle.Cooldown.Duration)
	assert.Equal(t, "idle", cfg.Lifecycle.FreeTierReset)
	assert.Equal(t, "log:free", cfg.Notify.Secondary)
	// untouched sections keep defaults
	assert.Equal(t, "BINANCE:BTCUSDT", cfg.Instrument.Symbol)
}

func TestLoad_PartialIndicatorsKeepDefaults(t *testing.T) {
	path := writeFile(t, "signal.toml", `
[strategy]
profile = "custom"

[strategy.indicators]
fast_ema = 9
slow_ema = 21

[strategy.rules]
confirmations = ["rvol"]
mode = "any"
rvol_threshold = 1.2
rsi_midline = 50
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	p, err := cfg.Profile()
	require.NoError(t, err)
	want := indicator.DefaultConfig()
	want.FastEMA, want.SlowEMA = 9, 21
	assert.Equal(t, want, p.Indicators)
	assert.Equal(t, "custom", p.Rules.Name())
}

func TestLoad_PartialIndicatorsYAML(t *testing.T) {
	path := writeFile(t, "signal.yml", `
strategy:
  profile: custom
  indicators:
    rsi_period: 7
  rules:
    confirmations: [atr]
    mode: all
    atr_threshold: 2
    rsi_midline: 50
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	p, err := cfg.Profile()
	require.NoError(t, err)
	assert.Equal(t, 7, p.Indicators.RSIPeriod)
	assert.Equal(t, 26, p.Indicators.MACDSlow)
	assert.Equal(t, 50, p.Indicators.FastEMA)
}

func TestLoad_YAMLCustomProfile(t *testing.T) {
	path := writeFile(t, "signal.yaml", `
buffer:
  capacity: 100
strategy:
  profile: custom
  indicators:
    fast_ema: 5
    slow_ema: 20
    macd_fast: 12
    macd_slow: 26
    macd_signal: 9
    rsi_period: 14
    atr_period: 14
    bollinger_period: 20
    bollinger_k: 2
    rvol_window: 20
  rules:
    name: scalper
    confirmations: [atr]
    mode: any
    atr_threshold: 1
    rsi_midline: 50
suppression:
  duration: 5m
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	p, err := cfg.Profile()
	require.NoError(t, err)
	assert.Equal(t, "scalper", p.Rules.Name())
	assert.Equal(t, 5, p.Indicators.FastEMA)
	assert.Equal(t, 5*time.Minute, cfg.Suppression.Duration.Duration)
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, "signal.json", `{}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SIGNAL_FEED_TOKEN", "tok")
	t.Setenv("SIGNAL_BUFFER_CAPACITY", "750")
	t.Setenv("SIGNAL_COOLDOWN", "3m")
	t.Setenv("SIGNAL_NOTIFY_RETRY_ONCE", "true")
	t.Setenv("SIGNAL_TP_MULT", "2.5")
	t.Setenv("SIGNAL_REDIS_DB", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "tok", cfg.Feed.Token)
	assert.Equal(t, 750, cfg.Buffer.Capacity)
	assert.Equal(t, 3*time.Minute, cfg.Lifecycle.Cooldown.Duration)
	assert.True(t, cfg.Notify.RetryOnce)
	assert.Equal(t, 2.5, cfg.Targets.TPMult)
	assert.Equal(t, 0, cfg.Redis.DB, "unparseable values are ignored")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"buffer too small", func(c *Config) { c.Buffer.Capacity = 10 }},
		{"buffer too large", func(c *Config) { c.Buffer.Capacity = 20000 }},
		{"buffer below profile warm-up", func(c *Config) { c.Buffer.Capacity = 100 }},
		{"unknown profile", func(c *Config) { c.Strategy.Profile = "nope" }},
		{"custom without blocks", func(c *Config) { c.Strategy.Profile = "custom" }},
		{"unknown targets", func(c *Config) { c.Targets.Strategy = "moon" }},
		{"zero suppression", func(c *Config) { c.Suppression.Duration = D(0) }},
		{"bad trigger", func(c *Config) { c.Suppression.Trigger = "sometimes" }},
		{"bad free tier reset", func(c *Config) { c.Lifecycle.FreeTierReset = "weekly" }},
		{"zero monitor interval", func(c *Config) { c.Lifecycle.MonitorInterval = D(0) }},
		{"bad destination", func(c *Config) { c.Notify.Primary = "nocolon" }},
		{"unknown scheme", func(c *Config) { c.Notify.Primary = "smtp:ops" }},
		{"telegram without token", func(c *Config) { c.Notify.Primary = "telegram:-100123" }},
		{"redis disabled", func(c *Config) { c.Notify.Secondary = "redis:free" }},
		{"gateway disabled", func(c *Config) { c.Notify.Secondary = "ws:free" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"no symbol", func(c *Config) { c.Instrument.Symbol = "" }},
		{"zero workers", func(c *Config) { c.Notify.Workers = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_GatewayDestination(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.Enabled = true
	cfg.Notify.Secondary = "ws:free"
	assert.NoError(t, cfg.Validate())
}

func TestRedacted(t *testing.T) {
	cfg := Defaults()
	cfg.Feed.Token = "secret"
	cfg.Notify.TelegramToken = "123:abc"

	r := cfg.Redacted()
	assert.Equal(t, "***", r.Feed.Token)
	assert.Equal(t, "***", r.Notify.TelegramToken)
	assert.Empty(t, r.Redis.Password)
	assert.Equal(t, "secret", cfg.Feed.Token, "original untouched")
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	b, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(b))

	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
