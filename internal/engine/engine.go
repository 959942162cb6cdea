// Package engine runs the serialized event loop that owns the tick buffer,
// the trade tracker and the suppression gate.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sigflow/signalengine/internal/indicator"
	"github.com/sigflow/signalengine/internal/lifecycle"
	"github.com/sigflow/signalengine/internal/metrics"
	"github.com/sigflow/signalengine/internal/model"
	"github.com/sigflow/signalengine/internal/notification"
	"github.com/sigflow/signalengine/internal/ringbuf"
	"github.com/sigflow/signalengine/internal/strategy"
	"github.com/sigflow/signalengine/internal/suppression"
)

// DefaultMonitorInterval is how often the open trade is re-checked.
const DefaultMonitorInterval = 5 * time.Second

// Notifier accepts lifecycle events for delivery. Notify must not block.
type Notifier interface {
	Notify(ev notification.Event) bool
	HasSecondary() bool
}

// Deps are the collaborators the loop drives. Health may be nil.
type Deps struct {
	Buffer      *ringbuf.Ring
	Indicators  *indicator.Engine
	Policy      strategy.Policy
	Tracker     *lifecycle.Tracker
	Suppression *suppression.Controller
	Notifier    Notifier
	Metrics     *metrics.Metrics
	Health      *metrics.HealthStatus
	Logger      *slog.Logger
}

// Engine is the single owner of core state. Everything except Status and
// ServeHTTP must be called from the Run goroutine.
type Engine struct {
	buf      *ringbuf.Ring
	ind      *indicator.Engine
	policy   strategy.Policy
	tracker  *lifecycle.Tracker
	supp     *suppression.Controller
	notifier Notifier
	m        *metrics.Metrics
	health   *metrics.HealthStatus
	logger   *slog.Logger

	monitorInterval time.Duration
	now             func() time.Time

	suppTimer *time.Timer
	coolTimer *time.Timer

	evicted  uint64
	lastTick time.Time
	status   atomic.Pointer[Status]
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithMonitorInterval sets the open-trade re-check period.
func WithMonitorInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.monitorInterval = d
		}
	}
}

// New wires an Engine. All Deps except Health are required.
func New(d Deps, opts ...Option) (*Engine, error) {
	switch {
	case d.Buffer == nil, d.Indicators == nil, d.Policy == nil, d.Tracker == nil,
		d.Suppression == nil, d.Notifier == nil, d.Metrics == nil:
		return nil, errors.New("engine: missing dependency")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	e := &Engine{
		buf:             d.Buffer,
		ind:             d.Indicators,
		policy:          d.Policy,
		tracker:         d.Tracker,
		supp:            d.Suppression,
		notifier:        d.Notifier,
		m:               d.Metrics,
		health:          d.Health,
		logger:          d.Logger.With(slog.String("component", "engine")),
		monitorInterval: DefaultMonitorInterval,
		now:             time.Now,
		suppTimer:       stoppedTimer(),
		coolTimer:       stoppedTimer(),
	}
	for _, o := range opts {
		o(e)
	}
	e.publish()
	return e, nil
}

// Run consumes feed events until ctx is cancelled or events is closed.
func (e *Engine) Run(ctx context.Context, events <-chan model.Event) error {
	monitor := time.NewTicker(e.monitorInterval)
	defer monitor.Stop()
	defer e.suppTimer.Stop()
	defer e.coolTimer.Stop()

	e.logger.Info("engine started",
		slog.String("profile", e.policy.Name()),
		slog.Int("capacity", e.buf.Cap()),
		slog.Int("min_samples", e.ind.MinSamples()),
		slog.Duration("monitor_interval", e.monitorInterval),
	)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopped")
			return nil
		case ev, ok := <-events:
			if !ok {
				return fmt.Errorf("engine: feed channel closed")
			}
			e.handle(ev)
		case <-monitor.C:
			e.monitor()
		case <-e.suppTimer.C:
			e.suppressionExpired()
		case <-e.coolTimer.C:
			e.cooldownExpired()
		}
		e.publish()
	}
}

func (e *Engine) handle(ev model.Event) {
	switch ev.Kind {
	case model.EventTrade:
		e.onTrades(ev.Ticks)
	case model.EventNews:
		e.onNews(ev.News)
	}
}

// onTrades appends a trade batch and makes at most one decision for it.
func (e *Engine) onTrades(ticks []model.PriceTick) {
	pushed := 0
	for _, t := range ticks {
		if !t.Valid() {
			e.m.MalformedTotal.Inc()
			continue
		}
		e.buf.Push(t)
		e.lastTick = t.TS
		pushed++
	}
	if pushed == 0 {
		return
	}

	e.m.TicksTotal.Add(float64(pushed))
	e.m.BufferLen.Set(float64(e.buf.Len()))
	if n := e.buf.Evicted(); n > e.evicted {
		e.m.BufferEvictions.Add(float64(n - e.evicted))
		e.evicted = n
	}
	// Sole writer of the health tick time: when the loop consumed the batch.
	if e.health != nil {
		e.health.SetLastTickTime(e.now())
	}

	e.decide()
}

func (e *Engine) decide() {
	now := e.now()

	if e.supp.Active(now) {
		e.m.DecisionsTotal.WithLabelValues("suppressed").Inc()
		return
	}
	if e.tracker.Advance(now) != lifecycle.StateIdle {
		e.m.DecisionsTotal.WithLabelValues("busy").Inc()
		return
	}

	start := time.Now()
	snap, err := e.ind.Compute(e.buf.Snapshot())
	e.m.IndicatorComputeDur.Observe(time.Since(start).Seconds())
	if errors.Is(err, indicator.ErrInsufficientData) {
		e.m.DecisionsTotal.WithLabelValues("insufficient").Inc()
		return
	}
	if err != nil {
		e.logger.Error("indicator compute failed", slog.String("error", err.Error()))
		return
	}

	action := e.policy.Decide(snap)
	e.m.DecisionsTotal.WithLabelValues(string(action)).Inc()

	var side model.Side
	switch action {
	case strategy.ActionBuy:
		side = model.SideBuy
	case strategy.ActionSell:
		side = model.SideSell
	default:
		return
	}

	sig, ok := e.tracker.Open(now, side, snap.Close, snap)
	if !ok {
		e.logger.Warn("signal refused by targets",
			slog.String("side", string(side)),
			slog.Float64("entry", snap.Close),
		)
		return
	}

	// Commit the free-tier flag before handing the event off.
	mirror := e.notifier.HasSecondary() && !e.tracker.FreeTierNotified()
	if mirror {
		e.tracker.MarkFreeTierNotified()
	}

	e.m.SignalsOpened.WithLabelValues(string(sig.Side)).Inc()
	e.m.TradeState.Set(stateGauge(e.tracker.State()))
	e.logger.Info("signal opened",
		slog.String("code", sig.Code),
		slog.String("side", string(sig.Side)),
		slog.Float64("entry", sig.Entry),
		slog.Float64("tp", sig.TakeProfit),
		slog.Float64("sl", sig.StopLoss),
		slog.Bool("free_tier", mirror),
	)
	e.notifier.Notify(notification.Opened(sig, mirror))
}

func (e *Engine) onNews(n model.NewsEvent) {
	if !e.supp.Qualifies(n) {
		return
	}
	now := e.now()
	expiry := e.supp.Trigger(now)
	resetTimer(e.suppTimer, expiry.Sub(now))

	e.m.SuppressionTriggers.Inc()
	e.m.SuppressionActive.Set(1)
	e.logger.Info("suppression started",
		slog.String("impact", n.Impact),
		slog.String("headline", n.Headline),
		slog.Time("until", expiry),
	)
}

// monitor re-checks the open trade against the newest buffered price.
func (e *Engine) monitor() {
	now := e.now()
	if e.tracker.State() != lifecycle.StateOpen {
		if e.tracker.Advance(now) == lifecycle.StateIdle {
			e.m.TradeState.Set(stateGauge(lifecycle.StateIdle))
		}
		return
	}
	price, ok := e.buf.LatestClose()
	if !ok {
		return
	}

	c, closed := e.tracker.CheckPrice(now, price)
	if !closed {
		return
	}
	e.tracker.Advance(now)
	resetTimer(e.coolTimer, e.tracker.CooldownUntil().Sub(now))

	e.m.SignalsClosed.WithLabelValues(string(c.Outcome)).Inc()
	e.m.TradeState.Set(stateGauge(e.tracker.State()))
	e.logger.Info("signal closed",
		slog.String("code", c.Signal.Code),
		slog.String("outcome", string(c.Outcome)),
		slog.Float64("price", c.Price),
	)
	e.notifier.Notify(notification.Closed(c))
}

func (e *Engine) suppressionExpired() {
	now := e.now()
	if e.supp.Active(now) {
		// Retriggered after the timer fired.
		resetTimer(e.suppTimer, e.supp.Expiry().Sub(now))
		return
	}
	e.tracker.SessionEnded()
	e.m.SuppressionActive.Set(0)
	e.logger.Info("suppression ended")
}

func (e *Engine) cooldownExpired() {
	now := e.now()
	state := e.tracker.Advance(now)
	if state == lifecycle.StateCooldown {
		resetTimer(e.coolTimer, e.tracker.CooldownUntil().Sub(now))
		return
	}
	e.m.TradeState.Set(stateGauge(state))
	e.logger.Debug("cooldown finished", slog.String("trade_state", string(state)))
}

func stateGauge(s lifecycle.State) float64 {
	switch s {
	case lifecycle.StateOpen:
		return 1
	case lifecycle.StateClosedTP, lifecycle.StateClosedSL:
		return 2
	case lifecycle.StateCooldown:
		return 3
	}
	return 0
}

func stoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}

// resetTimer reschedules t, discarding any pending fire.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	if d < 0 {
		d = 0
	}
	t.Reset(d)
}
