// Package lifecycle tracks the single open signal from emission to its
// take-profit or stop-loss outcome and through the cooldown that follows.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/sigflow/signalengine/internal/indicator"
	"github.com/sigflow/signalengine/internal/model"
)

// State is the tracker slot state.
type State string

const (
	StateIdle     State = "IDLE"
	StateOpen     State = "OPEN"
	StateClosedTP State = "CLOSED_TP"
	StateClosedSL State = "CLOSED_SL"
	StateCooldown State = "COOLDOWN"
)

// FreeTierReset controls when the secondary destination may receive another
// opened signal.
type FreeTierReset string

const (
	ResetNever   FreeTierReset = "never"   // once per process
	ResetIdle    FreeTierReset = "idle"    // each time the slot returns to IDLE
	ResetSession FreeTierReset = "session" // each time a suppression window ends
)

// ParseFreeTierReset validates s. Empty means ResetNever.
func ParseFreeTierReset(s string) (FreeTierReset, error) {
	switch FreeTierReset(s) {
	case "":
		return ResetNever, nil
	case ResetNever, ResetIdle, ResetSession:
		return FreeTierReset(s), nil
	}
	return "", fmt.Errorf("lifecycle: unknown free tier reset %q", s)
}

// DefaultCooldown is the settling period after a close.
const DefaultCooldown = 2 * time.Minute

// View is a read-only copy of the tracker state.
type View struct {
	State            State         `json:"trade_state"`
	Active           *model.Signal `json:"active,omitempty"`
	LastClose        *model.Close  `json:"last_close,omitempty"`
	CooldownUntil    time.Time     `json:"cooldown_until,omitempty"`
	FreeTierNotified bool          `json:"free_tier_notified"`
}

// Tracker holds at most one open signal. Invalid calls are no-ops that
// return false.
//
// Tracker is not safe for concurrent use; the engine loop owns it.
type Tracker struct {
	targets  Targets
	cooldown time.Duration
	codes    CodeGen
	reset    FreeTierReset

	state    State
	active   model.Signal
	last     *model.Close
	closedAt time.Time
	lastCode string

	freeNotified bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithCodeGen replaces the random signal code generator.
func WithCodeGen(g CodeGen) Option { return func(t *Tracker) { t.codes = g } }

// WithFreeTierReset sets the free-tier reset policy.
func WithFreeTierReset(r FreeTierReset) Option { return func(t *Tracker) { t.reset = r } }

// New creates an idle Tracker.
func New(targets Targets, cooldown time.Duration, opts ...Option) *Tracker {
	if cooldown < 0 {
		cooldown = 0
	}
	t := &Tracker{
		targets:  targets,
		cooldown: cooldown,
		codes:    RandomCodes(nil),
		reset:    ResetNever,
		state:    StateIdle,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Tracker) State() State { return t.state }

// Active returns the open signal, if any.
func (t *Tracker) Active() (model.Signal, bool) {
	if t.state != StateOpen {
		return model.Signal{}, false
	}
	return t.active, true
}

// Open emits a new signal at entry. Only valid from IDLE; also refused when
// the targets strategy cannot price the trade or returns levels that could
// never close (non-positive, or TP equal to SL).
func (t *Tracker) Open(now time.Time, side model.Side, entry float64, snap indicator.Snapshot) (model.Signal, bool) {
	if t.state != StateIdle || entry <= 0 {
		return model.Signal{}, false
	}
	tp, sl, ok := t.targets.Levels(side, entry, snap)
	if !ok || tp <= 0 || sl <= 0 || tp == sl {
		return model.Signal{}, false
	}

	code := t.codes()
	if code == t.lastCode {
		code = t.codes()
	}
	t.lastCode = code

	t.active = model.Signal{
		Code:       code,
		Side:       side,
		Entry:      entry,
		TakeProfit: tp,
		StopLoss:   sl,
		OpenedAt:   now,
	}
	t.state = StateOpen
	return t.active, true
}

// CheckPrice closes the open signal if price crossed TP or SL.
func (t *Tracker) CheckPrice(now time.Time, price float64) (model.Close, bool) {
	if t.state != StateOpen {
		return model.Close{}, false
	}

	s := t.active
	var outcome model.Outcome
	switch s.Side {
	case model.SideBuy:
		switch {
		case price >= s.TakeProfit:
			outcome = model.OutcomeTP
		case price <= s.StopLoss:
			outcome = model.OutcomeSL
		}
	case model.SideSell:
		switch {
		case price <= s.TakeProfit:
			outcome = model.OutcomeTP
		case price >= s.StopLoss:
			outcome = model.OutcomeSL
		}
	}
	if outcome == "" {
		return model.Close{}, false
	}

	c := model.Close{Signal: s, Outcome: outcome, Price: price, ClosedAt: now}
	t.last = &c
	t.closedAt = now
	if outcome == model.OutcomeTP {
		t.state = StateClosedTP
	} else {
		t.state = StateClosedSL
	}
	return c, true
}

// Advance moves CLOSED_* to COOLDOWN and COOLDOWN to IDLE once the cooldown
// has elapsed since the close. Returns the resulting state.
func (t *Tracker) Advance(now time.Time) State {
	if t.state == StateClosedTP || t.state == StateClosedSL {
		t.state = StateCooldown
	}
	if t.state == StateCooldown && !now.Before(t.CooldownUntil()) {
		t.state = StateIdle
		t.active = model.Signal{}
		if t.reset == ResetIdle {
			t.freeNotified = false
		}
	}
	return t.state
}

// CooldownUntil is when the slot may return to IDLE. Zero unless closed or cooling down.
func (t *Tracker) CooldownUntil() time.Time {
	switch t.state {
	case StateClosedTP, StateClosedSL, StateCooldown:
		return t.closedAt.Add(t.cooldown)
	}
	return time.Time{}
}

func (t *Tracker) FreeTierNotified() bool { return t.freeNotified }
func (t *Tracker) MarkFreeTierNotified()  { t.freeNotified = true }
func (t *Tracker) ResetFreeTier()         { t.freeNotified = false }

// SessionEnded is called when a suppression window ends.
func (t *Tracker) SessionEnded() {
	if t.reset == ResetSession {
		t.freeNotified = false
	}
}

// View returns a copy of the current state.
func (t *Tracker) View() View {
	v := View{
		State:            t.state,
		CooldownUntil:    t.CooldownUntil(),
		FreeTierNotified: t.freeNotified,
	}
	if t.state == StateOpen {
		s := t.active
		v.Active = &s
	}
	if t.last != nil {
		c := *t.last
		v.LastClose = &c
	}
	return v
}
