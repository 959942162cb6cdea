// Command signalengine watches one instrument's live trade feed and emits
// BUY/SELL signals with take-profit and stop-loss levels.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/sigflow/signalengine/config"
	"github.com/sigflow/signalengine/internal/engine"
	"github.com/sigflow/signalengine/internal/gateway"
	"github.com/sigflow/signalengine/internal/indicator"
	"github.com/sigflow/signalengine/internal/lifecycle"
	"github.com/sigflow/signalengine/internal/logger"
	"github.com/sigflow/signalengine/internal/marketdata/finnhub"
	"github.com/sigflow/signalengine/internal/metrics"
	"github.com/sigflow/signalengine/internal/model"
	"github.com/sigflow/signalengine/internal/notification"
	"github.com/sigflow/signalengine/internal/ringbuf"
	redisstore "github.com/sigflow/signalengine/internal/store/redis"
	sqlitestore "github.com/sigflow/signalengine/internal/store/sqlite"
	"github.com/sigflow/signalengine/internal/suppression"
)

func main() {
	configPath := flag.String("config", os.Getenv("SIGNAL_CONFIG"), "path to a .toml or .yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "signalengine: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "signalengine: invalid config:\n%v\n", err)
		os.Exit(1)
	}

	level, _ := logger.ParseLevel(cfg.LogLevel)
	log := logger.Init(cfg.Service, level)
	log.Info("starting", slog.Any("config", cfg.Redacted()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)
	health := metrics.NewHealthStatus()

	// ---- Decision core ----
	profile, err := cfg.Profile()
	if err != nil {
		return err
	}
	ind, err := indicator.NewEngine(profile.Indicators, profile.Rules.Requirements())
	if err != nil {
		return err
	}
	targets, err := cfg.TargetsStrategy()
	if err != nil {
		return err
	}
	reset, err := lifecycle.ParseFreeTierReset(cfg.Lifecycle.FreeTierReset)
	if err != nil {
		return err
	}
	tracker := lifecycle.New(targets, cfg.Lifecycle.Cooldown.Duration,
		lifecycle.WithFreeTierReset(reset),
		lifecycle.WithCodeGen(lifecycle.RandomCodes(rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5157)))),
	)
	supp, err := suppression.New(cfg.Suppression.Duration.Duration, suppression.TriggerMode(cfg.Suppression.Trigger))
	if err != nil {
		return err
	}

	// ---- Stores ----
	var journal notification.Journal
	var journalDB *sqlitestore.Journal
	if cfg.Journal.Path != "" {
		journalDB, err = sqlitestore.Open(cfg.Journal.Path, cfg.Instrument.Symbol, log)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		defer journalDB.Close()
		journal = journalDB
		health.EnableJournal()
	}

	senders := []notification.Sender{
		notification.NewLogSender(log),
		notification.NewWebhookSender(cfg.Notify.WebhookTimeout.Duration),
	}
	if cfg.Notify.TelegramToken != "" {
		senders = append(senders, notification.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramAPI, cfg.Notify.WebhookTimeout.Duration))
	}
	var rdb *goredis.Client
	if cfg.Redis.Enabled {
		pub, err := redisstore.New(ctx, redisstore.Config{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, m, log)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer pub.Close()
		rdb = pub.Client()
		senders = append(senders, pub)
		health.EnableRedis()
	}

	var hub *gateway.Hub
	if cfg.Gateway.Enabled {
		hub = gateway.NewHub(cfg.Gateway.Replay, m, log)
		senders = append(senders, hub)
	}

	// ---- Dispatcher ----
	primary, err := notification.ParseDestination(cfg.Notify.Primary)
	if err != nil {
		return err
	}
	var secondary notification.Destination
	if cfg.Notify.Secondary != "" {
		if secondary, err = notification.ParseDestination(cfg.Notify.Secondary); err != nil {
			return err
		}
	}
	dispatcher, err := notification.NewDispatcher(notification.Config{
		Primary:     primary,
		Secondary:   secondary,
		Label:       cfg.Instrument.Label,
		QueueSize:   cfg.Notify.QueueSize,
		Workers:     cfg.Notify.Workers,
		RetryOnce:   cfg.Notify.RetryOnce,
		SendTimeout: cfg.Notify.WebhookTimeout.Duration,
	}, notification.NewRouter(senders...), journal, m, log)
	if err != nil {
		return err
	}

	// ---- Feed ----
	feed, err := finnhub.New(finnhub.Config{
		URL:               cfg.Feed.URL,
		Token:             cfg.Feed.Token,
		Symbol:            cfg.Instrument.Symbol,
		NewsChannel:       cfg.Feed.NewsChannel,
		ReconnectDelay:    cfg.Feed.ReconnectDelay.Duration,
		MaxReconnectDelay: cfg.Feed.MaxReconnectDelay.Duration,
		ReadTimeout:       cfg.Feed.ReadTimeout.Duration,
	}, m, health, log)
	if err != nil {
		return err
	}

	eng, err := engine.New(engine.Deps{
		Buffer:      ringbuf.New(cfg.Buffer.Capacity),
		Indicators:  ind,
		Policy:      profile.Rules,
		Tracker:     tracker,
		Suppression: supp,
		Notifier:    dispatcher,
		Metrics:     m,
		Health:      health,
		Logger:      log,
	}, engine.WithMonitorInterval(cfg.Lifecycle.MonitorInterval.Duration))
	if err != nil {
		return err
	}

	srv := metrics.NewServer(cfg.Metrics.Addr, reg, health, eng, log)
	if hub != nil {
		srv.Handle("/ws", hub)
	}

	log.Info("signal engine ready",
		slog.String("symbol", cfg.Instrument.Symbol),
		slog.String("profile", profile.Rules.Name()),
		slog.Int("min_samples", ind.MinSamples()),
		slog.String("primary", primary.String()),
		slog.Bool("free_tier", dispatcher.HasSecondary()),
	)

	events := make(chan model.Event, cfg.Feed.EventBuffer)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return feed.Run(gctx, events) })
	g.Go(func() error { return eng.Run(gctx, events) })
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })
	if hub != nil {
		g.Go(func() error { return hub.Run(gctx) })
	}
	g.Go(func() error {
		var db *sql.DB
		if journalDB != nil {
			db = journalDB.DB()
		}
		health.RunLivenessChecker(gctx, rdb, db, 10*time.Second)
		return nil
	})

	return g.Wait()
}
