// Package sqlite keeps an append-only audit journal of dispatched signal
// events. The engine never reads it back.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sigflow/signalengine/internal/model"
)

// Journal persists signal events to SQLite for analysis and audit.
type Journal struct {
	mu     sync.Mutex
	db     *sql.DB
	symbol string
	logger *slog.Logger
}

// Open opens (or creates) the journal at path. The parent directory is
// created if needed.
func Open(path, symbol string, logger *slog.Logger) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	j := &Journal{db: db, symbol: symbol, logger: logger.With(slog.String("component", "journal"))}
	j.logger.Info("opened signal journal", slog.String("path", path))
	return j, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS signal_events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id    TEXT    NOT NULL UNIQUE,
			kind        TEXT    NOT NULL,
			symbol      TEXT    NOT NULL,
			code        TEXT    NOT NULL,
			side        TEXT    NOT NULL,
			entry       REAL    NOT NULL,
			take_profit REAL    NOT NULL,
			stop_loss   REAL    NOT NULL,
			outcome     TEXT,
			close_price REAL,
			opened_at   DATETIME NOT NULL,
			closed_at   DATETIME,
			message     TEXT    NOT NULL,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_signal_events_code ON signal_events(code);
		CREATE INDEX IF NOT EXISTS idx_signal_events_opened_at ON signal_events(opened_at);
	`)
	return err
}

// DB returns the underlying sql.DB for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// RecordOpened appends an opened-signal row.
func (j *Journal) RecordOpened(ctx context.Context, eventID string, s model.Signal, text string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO signal_events (event_id, kind, symbol, code, side, entry, take_profit, stop_loss, opened_at, message)
		 VALUES (?, 'opened', ?, ?, ?, ?, ?, ?, ?, ?)`,
		eventID, j.symbol, s.Code, string(s.Side), s.Entry, s.TakeProfit, s.StopLoss,
		s.OpenedAt.UTC().Format(time.RFC3339Nano), text,
	)
	if err != nil {
		return fmt.Errorf("sqlite: record opened %s: %w", s.Code, err)
	}
	return nil
}

// RecordClosed appends a closed-signal row.
func (j *Journal) RecordClosed(ctx context.Context, eventID string, c model.Close, text string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	s := c.Signal
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO signal_events (event_id, kind, symbol, code, side, entry, take_profit, stop_loss,
		                            outcome, close_price, opened_at, closed_at, message)
		 VALUES (?, 'closed', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		eventID, j.symbol, s.Code, string(s.Side), s.Entry, s.TakeProfit, s.StopLoss,
		string(c.Outcome), c.Price,
		s.OpenedAt.UTC().Format(time.RFC3339Nano), c.ClosedAt.UTC().Format(time.RFC3339Nano), text,
	)
	if err != nil {
		return fmt.Errorf("sqlite: record closed %s: %w", s.Code, err)
	}
	return nil
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
