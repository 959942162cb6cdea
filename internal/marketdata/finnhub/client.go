// Package finnhub streams trades and news from a Finnhub-style websocket.
//
// On connect the client subscribes to one instrument symbol and one news
// channel, then decodes every frame into model.Event values. Malformed
// frames are logged, counted and skipped. The connection is re-established
// with exponential backoff until the context is cancelled.
package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sigflow/signalengine/internal/metrics"
	"github.com/sigflow/signalengine/internal/model"
)

// Config holds configuration for the feed client.
type Config struct {
	// URL of the websocket, e.g. "wss://ws.finnhub.io"
	URL   string
	Token string

	Symbol      string // e.g. "BINANCE:BTCUSDT"
	NewsChannel string // e.g. "economic_calendar"

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration

	// ReadTimeout drops a silent connection. Defaults to 90s.
	ReadTimeout time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 90 * time.Second
	}
}

// Client connects to the feed and pushes events into a channel.
type Client struct {
	cfg     Config
	dialURL string
	m       *metrics.Metrics
	health  *metrics.HealthStatus
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Client. Returns an error if the URL is unparseable.
// health receives the connection state; nil means it is not reported.
// Tick recency is recorded by the engine, not here.
func New(cfg Config, m *metrics.Metrics, health *metrics.HealthStatus, logger *slog.Logger) (*Client, error) {
	cfg.defaults()
	if health == nil {
		health = metrics.NewHealthStatus()
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("finnhub: parse url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("finnhub: url scheme must be ws or wss, got %q", u.Scheme)
	}
	if cfg.Symbol == "" {
		return nil, errors.New("finnhub: symbol is required")
	}
	if cfg.Token != "" {
		q := u.Query()
		q.Set("token", cfg.Token)
		u.RawQuery = q.Encode()
	}

	return &Client{
		cfg:     cfg,
		dialURL: u.String(),
		m:       m,
		health:  health,
		logger:  logger.With(slog.String("component", "finnhub")),
		now:     time.Now,
	}, nil
}

// Run streams events into out until ctx is cancelled. Sends block, so a
// slow consumer applies backpressure to the socket rather than losing
// news events. Always returns nil on cancellation.
func (c *Client) Run(ctx context.Context, out chan<- model.Event) error {
	delay := c.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		connected, err := c.runOnce(ctx, out)
		c.health.SetWSConnected(false)
		if err == nil {
			return nil
		}
		if connected {
			delay = c.cfg.ReconnectDelay
		}

		c.logger.Warn("disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		c.m.WSReconnects.Inc()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.cfg.MaxReconnectDelay {
			delay = c.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or
// ctx cancel. connected reports whether the dial succeeded.
func (c *Client) runOnce(ctx context.Context, out chan<- model.Event) (connected bool, err error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.dialURL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	for _, sym := range []string{c.cfg.Symbol, c.cfg.NewsChannel} {
		if sym == "" {
			continue
		}
		msg, _ := json.Marshal(map[string]string{"type": "subscribe", "symbol": sym})
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return true, fmt.Errorf("subscribe %s: %w", sym, err)
		}
	}

	c.logger.Info("connected",
		slog.String("symbol", c.cfg.Symbol),
		slog.String("news_channel", c.cfg.NewsChannel),
	)
	c.health.SetWSConnected(true)

	// Closes the connection when ctx is cancelled so ReadMessage unblocks.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
			conn.Close()
		case <-stop:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return true, err
		}

		events, err := Parse(raw, c.cfg.Symbol, c.now())
		if err != nil {
			if errors.Is(err, ErrMalformed) {
				c.m.MalformedTotal.Inc()
			}
			c.logger.Warn("discarding message",
				slog.String("error", err.Error()),
				slog.Int("bytes", len(raw)),
			)
			continue
		}

		for _, ev := range events {
			c.countEvent(ev)
			select {
			case out <- ev:
			case <-ctx.Done():
				return true, nil
			}
		}
	}
}

func (c *Client) countEvent(ev model.Event) {
	switch ev.Kind {
	case model.EventTrade:
		c.m.FeedEvents.WithLabelValues("trade").Inc()
	case model.EventNews:
		c.m.FeedEvents.WithLabelValues(string(ev.News.Kind)).Inc()
	}
}
