// Package gateway broadcasts signal messages to websocket clients. It backs
// the "ws:<channel>" notification destination, so dashboards can follow the
// premium or free feed live and catch up on what they missed.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sigflow/signalengine/internal/metrics"
)

// DefaultReplaySize is how many recent messages are kept for late joiners.
const DefaultReplaySize = 200

// Envelope is the JSON frame sent to clients.
type Envelope struct {
	Channel string    `json:"channel"`
	Seq     int64     `json:"seq"`
	TS      time.Time `json:"ts"`
	Text    string    `json:"text"`
	Replay  bool      `json:"replay,omitempty"`
}

// Hub tracks connected clients and fans messages out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	seq     int64
	replay  *ReplayBuffer

	upgrader websocket.Upgrader
	m        *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewHub creates a Hub keeping replaySize recent messages.
func NewHub(replaySize int, m *metrics.Metrics, logger *slog.Logger) *Hub {
	if replaySize <= 0 {
		replaySize = DefaultReplaySize
	}
	return &Hub{
		clients: make(map[*Client]bool),
		replay:  NewReplayBuffer(replaySize),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		m:      m,
		logger: logger.With(slog.String("component", "gateway")),
		now:    time.Now,
	}
}

func (h *Hub) Name() string { return "ws" }

// Send broadcasts text on channel. Clients too slow to keep up miss the
// frame; they can recover it from the replay buffer on reconnect.
func (h *Hub) Send(ctx context.Context, channel, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Held across seq, replay and fan-out: frames leave in seq order.
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	env := Envelope{Channel: channel, Seq: h.seq, TS: h.now().UTC(), Text: text}
	frame, err := json.Marshal(env)
	if err != nil {
		h.seq--
		return err
	}
	h.replay.Push(env.Seq, channel, frame)

	for c := range h.clients {
		if !c.wants(channel) {
			continue
		}
		select {
		case c.send <- frame:
		default:
			h.m.GatewayDropped.Inc()
		}
	}
	return nil
}

// ServeHTTP upgrades GET /ws. Query parameters: channel (optional filter)
// and since (replay every buffered message with a greater seq).
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	since := int64(-1)
	if s := r.URL.Query().Get("since"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			http.Error(w, "since must be a non-negative integer", http.StatusBadRequest)
			return
		}
		since = n
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &Client{conn: conn, send: make(chan []byte, 256), hub: h, channel: channel}

	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	// Queue the replay before any live frame can reach this client.
	if since >= 0 {
		for _, e := range h.replay.Since(since) {
			if c.wants(e.Channel) {
				select {
				case c.send <- markReplay(e.Data):
				default:
				}
			}
		}
	}
	h.mu.Unlock()

	h.m.GatewayClients.Set(float64(count))
	h.logger.Info("ws client connected",
		slog.String("remote", r.RemoteAddr),
		slog.String("channel", channel),
		slog.Int("clients", count),
	)

	go c.writePump()
	go c.readPump()
}

// RemoveClient unregisters c and closes its send queue. Idempotent.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	h.m.GatewayClients.Set(float64(count))
	h.logger.Info("ws client disconnected", slog.Int("clients", count))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run blocks until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		h.RemoveClient(c)
	}
	return nil
}

func markReplay(frame []byte) []byte {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return frame
	}
	env.Replay = true
	b, err := json.Marshal(env)
	if err != nil {
		return frame
	}
	return b
}
