package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the signal engine.
type Metrics struct {
	// Feed
	TicksTotal     prometheus.Counter
	FeedEvents     *prometheus.CounterVec // labels: kind=trade|news|ping
	MalformedTotal prometheus.Counter
	WSReconnects   prometheus.Counter

	// Tick buffer
	BufferLen       prometheus.Gauge
	BufferEvictions prometheus.Counter

	// Indicators and decisions
	IndicatorComputeDur prometheus.Histogram
	DecisionsTotal      *prometheus.CounterVec // labels: result=BUY|SELL|NONE|insufficient|suppressed|busy

	// Lifecycle
	SignalsOpened *prometheus.CounterVec // labels: side
	SignalsClosed *prometheus.CounterVec // labels: outcome
	TradeState    prometheus.Gauge       // 0=idle, 1=open, 2=closed, 3=cooldown

	// Suppression
	SuppressionActive   prometheus.Gauge
	SuppressionTriggers prometheus.Counter

	// Dispatch
	NotificationsSent    *prometheus.CounterVec // labels: tier=primary|secondary, scheme
	NotificationFailures *prometheus.CounterVec // labels: tier, scheme
	NotificationsDropped prometheus.Counter
	NotificationDur      prometheus.Histogram
	DispatchQueueLen     prometheus.Gauge

	// Websocket gateway
	GatewayClients prometheus.Gauge
	GatewayDropped prometheus.Counter

	// Stores
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	JournalWriteDur          prometheus.Histogram
	JournalErrors            prometheus.Counter
}

// NewMetrics creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalengine_ticks_total",
			Help: "Total valid ticks pushed into the buffer",
		}),
		FeedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalengine_feed_events_total",
			Help: "Feed messages decoded (by kind)",
		}, []string{"kind"}),
		MalformedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalengine_malformed_total",
			Help: "Feed messages or ticks discarded as malformed",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalengine_ws_reconnects_total",
			Help: "Total WebSocket reconnection attempts",
		}),

		BufferLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalengine_buffer_len",
			Help: "Ticks currently held in the rolling window",
		}),
		BufferEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalengine_buffer_evictions_total",
			Help: "Ticks evicted from the rolling window",
		}),

		IndicatorComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signalengine_indicator_compute_duration_seconds",
			Help:    "Indicator snapshot compute latency",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalengine_decisions_total",
			Help: "Decision attempts by result",
		}, []string{"result"}),

		SignalsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalengine_signals_opened_total",
			Help: "Signals opened (by side)",
		}, []string{"side"}),
		SignalsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalengine_signals_closed_total",
			Help: "Signals closed (by outcome)",
		}, []string{"outcome"}),
		TradeState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalengine_trade_state",
			Help: "Lifecycle slot state (0=idle, 1=open, 2=closed, 3=cooldown)",
		}),

		SuppressionActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalengine_suppression_active",
			Help: "1 while a news suppression window is active",
		}),
		SuppressionTriggers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalengine_suppression_triggers_total",
			Help: "Qualifying news events that (re)started suppression",
		}),

		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalengine_notifications_sent_total",
			Help: "Messages delivered (by tier and destination scheme)",
		}, []string{"tier", "scheme"}),
		NotificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalengine_notification_failures_total",
			Help: "Message deliveries that failed after any retry",
		}, []string{"tier", "scheme"}),
		NotificationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalengine_notifications_dropped_total",
			Help: "Events dropped because the dispatch queue was full",
		}),
		NotificationDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signalengine_notification_duration_seconds",
			Help:    "Per-destination delivery latency",
			Buckets: prometheus.DefBuckets,
		}),
		DispatchQueueLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalengine_dispatch_queue_len",
			Help: "Events waiting in the dispatch queue",
		}),

		GatewayClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalengine_gateway_clients",
			Help: "Connected websocket gateway clients",
		}),
		GatewayDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalengine_gateway_dropped_total",
			Help: "Frames not queued to a slow gateway client",
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalengine_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalengine_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker opened",
		}),
		JournalWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signalengine_journal_write_duration_seconds",
			Help:    "SQLite journal insert latency",
			Buckets: prometheus.DefBuckets,
		}),
		JournalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalengine_journal_errors_total",
			Help: "Journal inserts that failed",
		}),
	}

	reg.MustRegister(
		m.TicksTotal,
		m.FeedEvents,
		m.MalformedTotal,
		m.WSReconnects,
		m.BufferLen,
		m.BufferEvictions,
		m.IndicatorComputeDur,
		m.DecisionsTotal,
		m.SignalsOpened,
		m.SignalsClosed,
		m.TradeState,
		m.SuppressionActive,
		m.SuppressionTriggers,
		m.NotificationsSent,
		m.NotificationFailures,
		m.NotificationsDropped,
		m.NotificationDur,
		m.DispatchQueueLen,
		m.GatewayClients,
		m.GatewayDropped,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.JournalWriteDur,
		m.JournalErrors,
	)

	return m
}
