// Package suppression gates signal decisions for a fixed window after news.
package suppression

import (
	"fmt"
	"sync"
	"time"

	"github.com/sigflow/signalengine/internal/model"
)

// TriggerMode selects which news events start a suppression window.
type TriggerMode string

const (
	TriggerHighImpact TriggerMode = "high_impact" // calendar entries with impact "high"
	TriggerAny        TriggerMode = "any"         // every news or calendar item
)

// DefaultDuration is the window length used when none is configured.
const DefaultDuration = 20 * time.Minute

// Window is a point-in-time view of the controller.
type Window struct {
	Active    bool      `json:"active"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Controller is a two-state gate: CLEAR or ACTIVE until expiry.
// A new trigger replaces the expiry; windows never stack.
type Controller struct {
	mu       sync.Mutex
	duration time.Duration
	mode     TriggerMode
	expiry   time.Time
	triggers uint64
}

// New creates a Controller. A non-positive duration falls back to DefaultDuration.
func New(duration time.Duration, mode TriggerMode) (*Controller, error) {
	if duration <= 0 {
		duration = DefaultDuration
	}
	switch mode {
	case TriggerHighImpact, TriggerAny:
	case "":
		mode = TriggerHighImpact
	default:
		return nil, fmt.Errorf("suppression: unknown trigger mode %q", mode)
	}
	return &Controller{duration: duration, mode: mode}, nil
}

// Qualifies reports whether ev should start a window under the trigger mode.
func (c *Controller) Qualifies(ev model.NewsEvent) bool {
	if c.mode == TriggerAny {
		return true
	}
	return ev.HighImpact()
}

// Trigger starts or extends the window to now+duration and returns the new expiry.
func (c *Controller) Trigger(now time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expiry = now.Add(c.duration)
	c.triggers++
	return c.expiry
}

// Active reports whether decisions are blocked at now. The expiry instant
// itself is already clear.
func (c *Controller) Active(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Before(c.expiry)
}

// Window returns the state at now.
func (c *Controller) Window(now time.Time) Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !now.Before(c.expiry) {
		return Window{}
	}
	return Window{Active: true, ExpiresAt: c.expiry}
}

// Expiry returns the current expiry; zero if never triggered.
func (c *Controller) Expiry() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiry
}

// Duration returns the configured window length.
func (c *Controller) Duration() time.Duration { return c.duration }

// Triggers returns how many times the window was (re)started.
func (c *Controller) Triggers() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.triggers
}
