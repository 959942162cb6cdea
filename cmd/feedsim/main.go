// Command feedsim is a staging websocket server that speaks the Finnhub
// trade/calendar protocol, so signalengine can run without a real token.
//
// Point signalengine at it with SIGNAL_FEED_URL=ws://localhost:9001.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/sigflow/signalengine/internal/logger"
)

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client, drop the frame
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("upgrade failed", slog.String("error", err.Error()))
			return
		}
		log.Info("client connected", slog.String("remote", r.RemoteAddr))

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Info("client disconnected", slog.String("remote", r.RemoteAddr))
		}()

		// Read pump: log subscriptions, notice disconnects.
		go func() {
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					h.unregister(conn)
					return
				}
				if sym, ok := subscribedSymbol(msg); ok {
					log.Info("subscribe", slog.String("symbol", sym))
				}
			}
		}()

		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

type options struct {
	addr      string
	symbol    string
	price     float64
	interval  time.Duration
	newsEvery time.Duration
	impact    string
}

func main() {
	var o options
	flag.StringVar(&o.addr, "addr", envOr("FEEDSIM_ADDR", ":9001"), "listen address")
	flag.StringVar(&o.symbol, "symbol", envOr("FEEDSIM_SYMBOL", "BINANCE:BTCUSDT"), "symbol stamped on trades")
	flag.Float64Var(&o.price, "price", 65000, "starting price")
	flag.DurationVar(&o.interval, "interval", 250*time.Millisecond, "trade frame interval")
	flag.DurationVar(&o.newsEvery, "news-every", 10*time.Minute, "calendar event interval (0 disables)")
	flag.StringVar(&o.impact, "impact", "high", "impact of simulated calendar events")
	flag.Parse()

	log := logger.Init("feedsim", slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, log); err != nil {
		log.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, log *slog.Logger) error {
	h := newHub()

	mux := http.NewServeMux()
	mux.HandleFunc("/", wsHandler(h, log))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"feedsim"}`)
	})
	srv := &http.Server{Addr: o.addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", slog.String("addr", o.addr), slog.String("symbol", o.symbol))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	g.Go(func() error {
		generate(gctx, h, o, log)
		return nil
	})
	return g.Wait()
}

func generate(ctx context.Context, h *hub, o options, log *slog.Logger) {
	trades := time.NewTicker(o.interval)
	defer trades.Stop()
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	var news <-chan time.Time
	if o.newsEvery > 0 {
		t := time.NewTicker(o.newsEvery)
		defer t.Stop()
		news = t.C
	}

	w := newWalk(o.price, rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 7)))
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-trades.C:
			b, err := tradeFrame(o.symbol, w.next(), now)
			if err != nil {
				continue
			}
			h.broadcast(b)
		case now := <-news:
			b, err := calendarFrame(o.impact, "Simulated CPI release", now)
			if err != nil {
				continue
			}
			log.Info("calendar event", slog.String("impact", o.impact))
			h.broadcast(b)
		case <-ping.C:
			h.broadcast([]byte(`{"type":"ping"}`))
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
