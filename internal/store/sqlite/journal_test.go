package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigflow/signalengine/internal/logger"
	"github.com/sigflow/signalengine/internal/model"
)

func TestJournal_AppendOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "signals.db")
	j, err := Open(path, "BINANCE:BTCUSDT", logger.Discard())
	require.NoError(t, err)
	defer j.Close()

	ctx := context.Background()
	opened := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	sig := model.Signal{Code: "CR4821", Side: model.SideBuy, Entry: 100, TakeProfit: 115, StopLoss: 77.5, OpenedAt: opened}

	require.NoError(t, j.RecordOpened(ctx, "ev-1", sig, "opened text"))
	require.NoError(t, j.RecordClosed(ctx, "ev-2", model.Close{
		Signal: sig, Outcome: model.OutcomeTP, Price: 116, ClosedAt: opened.Add(time.Minute),
	}, "closed text"))

	var n int
	require.NoError(t, j.DB().QueryRow(`SELECT COUNT(*) FROM signal_events WHERE code = ?`, "CR4821").Scan(&n))
	assert.Equal(t, 2, n)

	var outcome string
	var price float64
	require.NoError(t, j.DB().QueryRow(
		`SELECT outcome, close_price FROM signal_events WHERE kind = 'closed'`).Scan(&outcome, &price))
	assert.Equal(t, "TP", outcome)
	assert.Equal(t, 116.0, price)

	// Event IDs are unique; a replayed event is rejected.
	assert.Error(t, j.RecordOpened(ctx, "ev-1", sig, "dup"))
}

func TestJournal_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.db")
	j, err := Open(path, "X", logger.Discard())
	require.NoError(t, err)
	require.NoError(t, j.RecordOpened(context.Background(), "a", model.Signal{Code: "CR1000", Side: model.SideSell}, "t"))
	require.NoError(t, j.Close())

	j, err = Open(path, "X", logger.Discard())
	require.NoError(t, err)
	defer j.Close()
	var n int
	require.NoError(t, j.DB().QueryRow(`SELECT COUNT(*) FROM signal_events`).Scan(&n))
	assert.Equal(t, 1, n)
}
