package notification

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigflow/signalengine/internal/model"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func sampleSignal() model.Signal {
	return model.Signal{
		Code: "CR4821", Side: model.SideBuy,
		Entry: 100, TakeProfit: 115, StopLoss: 77.5, OpenedAt: t0,
	}
}

func twoDP(v float64) decimal.Decimal { return decimal.NewFromFloat(v).Round(2) }

func TestFormatOpened(t *testing.T) {
	got := FormatOpened("BTC/USD", sampleSignal())
	want := "🔹 *Signal BUY BTC/USD* 🔹\n" +
		"📌 Code: CR4821\n" +
		"📈 Entry: 100.00\n" +
		"🎯 TP: 115.00\n" +
		"🛑 SL: 77.50"
	assert.Equal(t, want, got)
}

func TestFormatClosed(t *testing.T) {
	c := model.Close{Signal: sampleSignal(), Outcome: model.OutcomeTP, Price: 116.004, ClosedAt: t0}
	got := FormatClosed("BTC/USD", c)
	assert.Contains(t, got, "*Result BUY BTC/USD*")
	assert.Contains(t, got, "🏁 Outcome: TP\n")
	assert.Contains(t, got, "💰 Close: 116.00")
}

func TestRoundTrip_Opened(t *testing.T) {
	s := sampleSignal()
	p, err := ParseMessage(FormatOpened("BTC/USD", s))
	require.NoError(t, err)

	assert.Equal(t, EventOpened, p.Kind)
	assert.Equal(t, s.Code, p.Code)
	assert.Equal(t, s.Side, p.Side)
	assert.True(t, twoDP(s.Entry).Equal(p.Entry))
	assert.True(t, twoDP(s.TakeProfit).Equal(p.TakeProfit))
	assert.True(t, twoDP(s.StopLoss).Equal(p.StopLoss))
}

func TestRoundTrip_Closed(t *testing.T) {
	c := model.Close{
		Signal:  model.Signal{Code: "CR1000", Side: model.SideSell, Entry: 64250.12, TakeProfit: 64050.12, StopLoss: 64550.12},
		Outcome: model.OutcomeSL,
		Price:   64551.3,
	}
	p, err := ParseMessage(FormatClosed("BTC/USD", c))
	require.NoError(t, err)

	assert.Equal(t, EventClosed, p.Kind)
	assert.Equal(t, "CR1000", p.Code)
	assert.Equal(t, model.SideSell, p.Side)
	assert.Equal(t, model.OutcomeSL, p.Outcome)
	assert.Equal(t, "64250.12", p.Entry.StringFixed(2))
	assert.Equal(t, "64551.30", p.Price.StringFixed(2))
}

func TestRoundTrip_Random(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 200; i++ {
		entry := 1000 + r.Float64()*99000
		s := model.Signal{
			Code:       "CR1234",
			Side:       model.SideSell,
			Entry:      entry,
			TakeProfit: entry - r.Float64()*500,
			StopLoss:   entry + r.Float64()*700,
		}
		p, err := ParseMessage(FormatOpened("BTC/USD", s))
		require.NoError(t, err)
		assert.True(t, twoDP(s.Entry).Equal(p.Entry), "entry %v -> %v", s.Entry, p.Entry)
		assert.True(t, twoDP(s.TakeProfit).Equal(p.TakeProfit))
		assert.True(t, twoDP(s.StopLoss).Equal(p.StopLoss))
	}
}

func TestRoundTrip_NegativeLevel(t *testing.T) {
	s := model.Signal{Code: "CR2000", Side: model.SideBuy, Entry: 100, TakeProfit: 300, StopLoss: -200}
	p, err := ParseMessage(FormatOpened("BTC/USD", s))
	require.NoError(t, err)
	assert.Equal(t, "-200.00", p.StopLoss.StringFixed(2))
}

func TestParseMessage_Errors(t *testing.T) {
	_, err := ParseMessage("hello")
	assert.Error(t, err)

	_, err = ParseMessage("🔹 *Signal HOLD BTC/USD* 🔹\n📌 Code: CR1")
	assert.Error(t, err)

	_, err = ParseMessage("🔹 *Signal BUY BTC/USD* 🔹\n📌 Code: CR1\n📈 Entry: 1.00")
	assert.Error(t, err, "missing TP/SL")

	_, err = ParseMessage("🔹 *Signal BUY BTC/USD* 🔹\n📌 Code: CR1\n📈 Entry: abc\n🎯 TP: 1\n🛑 SL: 1")
	assert.Error(t, err)
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `BTC\_USD \*x\*`, escapeMarkdown("BTC_USD *x*"))
	assert.Equal(t, "BTC/USD", escapeMarkdown("BTC/USD"))
}
