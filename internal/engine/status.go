package engine

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sigflow/signalengine/internal/lifecycle"
)

// Status is a read-only view of the engine, published after every event.
type Status struct {
	Suppressed      bool       `json:"suppressed"`
	SuppressedUntil *time.Time `json:"suppressed_until,omitempty"`

	lifecycle.View

	Profile   string    `json:"profile"`
	BufferLen int       `json:"buffer_len"`
	BufferCap int       `json:"buffer_cap"`
	LastTick  time.Time `json:"last_tick,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Engine) publish() {
	now := e.now()
	w := e.supp.Window(now)
	s := &Status{
		Suppressed: w.Active,
		View:       e.tracker.View(),
		Profile:    e.policy.Name(),
		BufferLen:  e.buf.Len(),
		BufferCap:  e.buf.Cap(),
		LastTick:   e.lastTick,
		UpdatedAt:  now,
	}
	if w.Active {
		until := w.ExpiresAt
		s.SuppressedUntil = &until
	}
	e.status.Store(s)
}

// Status returns the last published status. Safe from any goroutine.
func (e *Engine) Status() Status {
	return *e.status.Load()
}

// ServeHTTP serves GET /status.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(e.Status())
}
