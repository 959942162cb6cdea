// Package redis publishes signal messages to Redis pub/sub channels through
// a circuit breaker.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/sigflow/signalengine/internal/metrics"
)

const defaultLatestTTL = 24 * time.Hour

// Config configures the Redis publisher.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int

	// KeyPrefix namespaces the "latest message" keys.
	KeyPrefix string
	LatestTTL time.Duration

	MaxFailures  int
	ResetTimeout time.Duration
}

// Publisher implements the "redis:<channel>" notification destination.
// Each message is PUBLISHed to the channel and also stored under
// <prefix>:latest:<channel> so late subscribers can read the last one.
type Publisher struct {
	client *goredis.Client
	cb     *CircuitBreaker
	cfg    Config
	logger *slog.Logger
}

// New connects to Redis and pings it.
func New(ctx context.Context, cfg Config, m *metrics.Metrics, logger *slog.Logger) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	p := NewWithClient(client, cfg, m, logger)
	p.logger.Info("connected", slog.String("addr", cfg.Addr))
	return p, nil
}

// NewWithClient wraps an existing client without pinging. m may be nil.
func NewWithClient(client *goredis.Client, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Publisher {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "signalengine"
	}
	if cfg.LatestTTL <= 0 {
		cfg.LatestTTL = defaultLatestTTL
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 10 * time.Second
	}

	p := &Publisher{
		client: client,
		cb:     NewCircuitBreaker(cfg.MaxFailures, cfg.ResetTimeout),
		cfg:    cfg,
		logger: logger.With(slog.String("component", "redis")),
	}
	p.cb.OnStateChange = func(from, to State) {
		p.logger.Warn("circuit breaker transition",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
		if m != nil {
			m.RedisCircuitBreakerState.Set(float64(to))
			if to == StateOpen {
				m.RedisCircuitBreakerTrips.Inc()
			}
		}
	}
	return p
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Breaker exposes the circuit breaker state.
func (p *Publisher) Breaker() *CircuitBreaker { return p.cb }

func (p *Publisher) Name() string { return "redis" }

// LatestKey is the key holding the last message sent to channel.
func (p *Publisher) LatestKey(channel string) string {
	return p.cfg.KeyPrefix + ":latest:" + channel
}

// Send publishes text on channel.
func (p *Publisher) Send(ctx context.Context, channel, text string) error {
	err := p.cb.Execute(func() error {
		pipe := p.client.TxPipeline()
		pipe.Publish(ctx, channel, text)
		pipe.Set(ctx, p.LatestKey(channel), text, p.cfg.LatestTTL)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Close closes the client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
