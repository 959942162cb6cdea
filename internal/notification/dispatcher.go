package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sigflow/signalengine/internal/logger"
	"github.com/sigflow/signalengine/internal/metrics"
	"github.com/sigflow/signalengine/internal/model"
)

// EventKind distinguishes opened from closed signal events.
type EventKind string

const (
	EventOpened EventKind = "opened"
	EventClosed EventKind = "closed"
)

// Event is one signal lifecycle event handed to the Dispatcher.
type Event struct {
	ID     string
	Kind   EventKind
	Signal model.Signal
	Close  model.Close // EventClosed only

	// MirrorFree also sends an opened event to the secondary destination.
	MirrorFree bool
}

// Opened builds an opened event with a fresh ID.
func Opened(s model.Signal, mirrorFree bool) Event {
	return Event{ID: uuid.NewString(), Kind: EventOpened, Signal: s, MirrorFree: mirrorFree}
}

// Closed builds a closed event with a fresh ID.
func Closed(c model.Close) Event {
	return Event{ID: uuid.NewString(), Kind: EventClosed, Signal: c.Signal, Close: c}
}

// Journal records every dispatched event. Implemented by the SQLite store.
type Journal interface {
	RecordOpened(ctx context.Context, eventID string, s model.Signal, text string) error
	RecordClosed(ctx context.Context, eventID string, c model.Close, text string) error
}

// Config configures a Dispatcher.
type Config struct {
	Primary   Destination
	Secondary Destination // zero value disables the free tier
	Label     string      // instrument label shown in messages

	QueueSize   int
	Workers     int
	RetryOnce   bool
	SendTimeout time.Duration
}

const (
	tierPrimary   = "primary"
	tierSecondary = "secondary"
)

// Dispatcher formats events and delivers them from a bounded queue so the
// engine loop never waits on I/O. Delivery failures are logged and counted;
// they never feed back into lifecycle state.
type Dispatcher struct {
	cfg     Config
	router  *Router
	journal Journal
	m       *metrics.Metrics
	logger  *slog.Logger
	queue   chan Event
}

// NewDispatcher validates that both destinations have a sender. journal may be nil.
func NewDispatcher(cfg Config, router *Router, journal Journal, m *metrics.Metrics, log *slog.Logger) (*Dispatcher, error) {
	if err := router.Check(cfg.Primary); err != nil {
		return nil, fmt.Errorf("primary destination: %w", err)
	}
	if cfg.Secondary.Scheme != "" {
		if err := router.Check(cfg.Secondary); err != nil {
			return nil, fmt.Errorf("secondary destination: %w", err)
		}
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Dispatcher{
		cfg:     cfg,
		router:  router,
		journal: journal,
		m:       m,
		logger:  log.With(slog.String("component", "dispatcher")),
		queue:   make(chan Event, cfg.QueueSize),
	}, nil
}

// HasSecondary reports whether a free-tier destination is configured.
func (d *Dispatcher) HasSecondary() bool { return d.cfg.Secondary.Scheme != "" }

// Notify enqueues ev without blocking. Returns false if the queue is full
// and the event was dropped.
func (d *Dispatcher) Notify(ev Event) bool {
	select {
	case d.queue <- ev:
		d.m.DispatchQueueLen.Set(float64(len(d.queue)))
		return true
	default:
		d.m.NotificationsDropped.Inc()
		d.logger.Error("dispatch queue full, event dropped",
			slog.String("event_id", ev.ID),
			slog.String("kind", string(ev.Kind)),
			slog.String("code", ev.Signal.Code),
		)
		return false
	}
}

// Run starts the workers and blocks until ctx is done. Events still queued
// at that point are delivered with a short grace period.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ev := <-d.queue:
					d.handle(ctx, ev)
				}
			}
		}()
	}
	wg.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()
	for {
		select {
		case ev := <-d.queue:
			d.handle(drainCtx, ev)
		default:
			return nil
		}
	}
}

// Format renders ev as message text.
func (d *Dispatcher) Format(ev Event) string {
	if ev.Kind == EventClosed {
		return FormatClosed(d.cfg.Label, ev.Close)
	}
	return FormatOpened(d.cfg.Label, ev.Signal)
}

func (d *Dispatcher) handle(ctx context.Context, ev Event) {
	d.m.DispatchQueueLen.Set(float64(len(d.queue)))
	ctx = logger.WithTraceID(ctx, ev.ID)
	text := d.Format(ev)

	d.deliver(ctx, tierPrimary, d.cfg.Primary, text, ev)
	if ev.Kind == EventOpened && ev.MirrorFree && d.HasSecondary() {
		d.deliver(ctx, tierSecondary, d.cfg.Secondary, text, ev)
	}

	if d.journal != nil {
		start := time.Now()
		var err error
		if ev.Kind == EventClosed {
			err = d.journal.RecordClosed(ctx, ev.ID, ev.Close, text)
		} else {
			err = d.journal.RecordOpened(ctx, ev.ID, ev.Signal, text)
		}
		d.m.JournalWriteDur.Observe(time.Since(start).Seconds())
		if err != nil {
			d.m.JournalErrors.Inc()
			d.logger.ErrorContext(ctx, "journal write failed",
				append(logger.LogWithTrace(ctx), slog.String("error", err.Error()))...,
			)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, tier string, dest Destination, text string, ev Event) {
	attrs := append(logger.LogWithTrace(ctx),
		slog.String("tier", tier),
		slog.String("destination", dest.String()),
		slog.String("kind", string(ev.Kind)),
		slog.String("code", ev.Signal.Code),
	)

	for attempt := 0; ; attempt++ {
		sctx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		start := time.Now()
		err := d.router.Send(sctx, dest, text)
		cancel()
		d.m.NotificationDur.Observe(time.Since(start).Seconds())

		if err == nil {
			d.m.NotificationsSent.WithLabelValues(tier, dest.Scheme).Inc()
			d.logger.InfoContext(ctx, "notification sent", attrs...)
			return
		}
		if attempt == 0 && d.cfg.RetryOnce && ctx.Err() == nil {
			d.logger.WarnContext(ctx, "delivery failed, retrying",
				append(attrs, slog.String("error", err.Error()))...)
			continue
		}
		d.m.NotificationFailures.WithLabelValues(tier, dest.Scheme).Inc()
		d.logger.ErrorContext(ctx, "delivery failed",
			append(attrs, slog.String("error", err.Error()))...)
		return
	}
}
