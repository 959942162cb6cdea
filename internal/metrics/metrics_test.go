package metrics

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.TicksTotal.Add(3)
	m.DecisionsTotal.WithLabelValues("NONE").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
		if f.GetName() == "signalengine_ticks_total" {
			require.Len(t, f.GetMetric(), 1)
			assert.Equal(t, 3.0, f.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, names["signalengine_ticks_total"])
	assert.True(t, names["signalengine_decisions_total"])

	// Registering twice on the same registry panics.
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestHealthz(t *testing.T) {
	h := NewHealthStatus()
	fixed := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }
	h.StartedAt = fixed.Add(-time.Hour)

	get := func() (int, map[string]any) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return rec.Code, body
	}

	code, body := get()
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "starting", body["status"])

	h.SetWSConnected(true)
	h.SetLastTickTime(fixed.Add(-2 * time.Second))
	code, body = get()
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "2s", body["tick_age"])
	assert.Equal(t, "1h0m0s", body["uptime"])

	h.EnableRedis()
	code, body = get()
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body["status"])
}

func TestServerRoutes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.WSReconnects.Inc()

	status := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"trade_state":"IDLE"}`)
	})
	s := NewServer("127.0.0.1:0", reg, NewHealthStatus(), status, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Handle("/ws", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.True(t, strings.Contains(string(b), "signalengine_ws_reconnects_total 1"))

	resp, err = http.Get(ts.URL + "/status")
	require.NoError(t, err)
	b, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(t, `{"trade_state":"IDLE"}`, string(b))

	resp, err = http.Get(ts.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
}
