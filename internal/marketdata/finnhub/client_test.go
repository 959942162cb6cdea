package finnhub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigflow/signalengine/internal/logger"
	"github.com/sigflow/signalengine/internal/metrics"
	"github.com/sigflow/signalengine/internal/model"
)

// fakeFeed is a websocket server that records subscriptions and then writes frames.
type fakeFeed struct {
	mu     sync.Mutex
	subs   []string
	token  string
	frames []string
}

func (f *fakeFeed) handler(t *testing.T) http.HandlerFunc {
	up := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.token = r.URL.Query().Get("token")
		f.mu.Unlock()

		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for i := 0; i < 2; i++ {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var sub map[string]string
			json.Unmarshal(msg, &sub)
			f.mu.Lock()
			f.subs = append(f.subs, sub["symbol"])
			f.mu.Unlock()
		}
		for _, fr := range f.frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(fr)); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		conn.ReadMessage()
	}
}

func newTestClient(t *testing.T, url string) (*Client, *metrics.HealthStatus) {
	t.Helper()
	health := metrics.NewHealthStatus()
	c, err := New(Config{
		URL:         url,
		Token:       "secret",
		Symbol:      sym,
		NewsChannel: "economic_calendar",
	}, metrics.NewMetrics(prometheus.NewRegistry()), health, logger.Discard())
	require.NoError(t, err)
	return c, health
}

func TestClient_SubscribesAndStreams(t *testing.T) {
	feed := &fakeFeed{frames: []string{
		`{"type":"ping"}`,
		`{"type":"trade","data":[{"p":100,"s":"BINANCE:BTCUSDT","t":1772461800000,"v":1}]}`,
		`garbage`,
		`{"type":"economic_calendar","data":{"impact":"high","event":"FOMC"}}`,
	}}
	srv := httptest.NewServer(feed.handler(t))
	defer srv.Close()

	c, health := newTestClient(t, "ws"+strings.TrimPrefix(srv.URL, "http"))

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan model.Event, 8)
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, out) }()

	var got []model.Event
	timeout := time.After(3 * time.Second)
	for len(got) < 2 {
		select {
		case ev := <-out:
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("timed out, got %d events", len(got))
		}
	}
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, model.EventTrade, got[0].Kind)
	assert.Equal(t, 100.0, got[0].Ticks[0].Close)
	assert.Equal(t, model.EventNews, got[1].Kind)
	assert.True(t, got[1].News.HighImpact())

	feed.mu.Lock()
	defer feed.mu.Unlock()
	assert.Equal(t, []string{sym, "economic_calendar"}, feed.subs)
	assert.Equal(t, "secret", feed.token)
	assert.False(t, health.WSConnected)
	assert.True(t, health.LastTickTime.IsZero(), "tick time belongs to the engine")
}

func TestClient_NilHealth(t *testing.T) {
	feed := &fakeFeed{frames: []string{
		`{"type":"trade","data":[{"p":100,"s":"BINANCE:BTCUSDT","t":1772461800000,"v":1}]}`,
	}}
	srv := httptest.NewServer(feed.handler(t))
	defer srv.Close()

	c, err := New(Config{
		URL:         "ws" + strings.TrimPrefix(srv.URL, "http"),
		Symbol:      sym,
		NewsChannel: "economic_calendar",
	}, metrics.NewMetrics(prometheus.NewRegistry()), nil, logger.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan model.Event, 4)
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, out) }()

	select {
	case ev := <-out:
		assert.Equal(t, model.EventTrade, ev.Kind)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for trade")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestNew_Validation(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	h := metrics.NewHealthStatus()

	_, err := New(Config{URL: "http://x", Symbol: sym}, m, h, logger.Discard())
	assert.Error(t, err)
	_, err = New(Config{URL: "wss://ws.finnhub.io"}, m, h, logger.Discard())
	assert.Error(t, err)

	c, err := New(Config{URL: "wss://ws.finnhub.io", Token: "abc", Symbol: sym}, m, h, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, "wss://ws.finnhub.io?token=abc", c.dialURL)
	assert.Equal(t, 2*time.Second, c.cfg.ReconnectDelay)
}

func TestClient_StopsWhileReconnecting(t *testing.T) {
	c, _ := newTestClient(t, "ws://127.0.0.1:1/")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, c.Run(ctx, make(chan model.Event)))
}
