package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigflow/signalengine/internal/indicator"
	"github.com/sigflow/signalengine/internal/model"
)

func f(v float64) *float64 { return &v }

var ts = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// bullSnapshot satisfies every BUY condition of the classic profile.
func bullSnapshot() indicator.Snapshot {
	return indicator.Snapshot{
		Samples: 200,
		Close:   105,
		FastEMA: 101,
		SlowEMA: 100,
		MACD:    indicator.MACDValue{Line: 1, Signal: 0.5, Histogram: 0.5},
		RSI:     60,
		OBV:     &indicator.OBVValue{Last: 20, Prev: 10},
		ATR:     f(4),
		RVOL:    f(1.2),
		Bollinger: &indicator.Bands{
			Upper: 110, Middle: 102, Lower: 94,
		},
		Prev: model.NewTick(ts, 99).WithOHLC(101, 102, 98),
		Last: model.NewTick(ts.Add(time.Second), 105).WithOHLC(98.5, 106, 98),
	}
}

// bearSnapshot is the mirror of bullSnapshot.
func bearSnapshot() indicator.Snapshot {
	return indicator.Snapshot{
		Samples: 200,
		Close:   95,
		FastEMA: 99,
		SlowEMA: 100,
		MACD:    indicator.MACDValue{Line: -1, Signal: -0.5, Histogram: -0.5},
		RSI:     40,
		OBV:     &indicator.OBVValue{Last: 10, Prev: 20},
		ATR:     f(4),
		RVOL:    f(1.2),
		Bollinger: &indicator.Bands{
			Upper: 106, Middle: 98, Lower: 90,
		},
		Prev: model.NewTick(ts, 101).WithOHLC(99, 102, 98),
		Last: model.NewTick(ts.Add(time.Second), 95).WithOHLC(101.5, 102, 94),
	}
}

func classic(t *testing.T) RuleSet {
	t.Helper()
	p, ok := Builtin("classic")
	require.True(t, ok)
	return p.Rules
}

func TestDecide_Classic(t *testing.T) {
	r := classic(t)
	assert.Equal(t, ActionBuy, r.Decide(bullSnapshot()))
	assert.Equal(t, ActionSell, r.Decide(bearSnapshot()))
}

func TestDecide_EachBuyConditionRequired(t *testing.T) {
	r := classic(t)

	tests := []struct {
		name   string
		mutate func(s *indicator.Snapshot)
	}{
		{"ema equal", func(s *indicator.Snapshot) { s.FastEMA = s.SlowEMA }},
		{"histogram zero", func(s *indicator.Snapshot) { s.MACD.Histogram = 0 }},
		{"rsi at midline", func(s *indicator.Snapshot) { s.RSI = 50 }},
		{"obv flat", func(s *indicator.Snapshot) { s.OBV = &indicator.OBVValue{Last: 10, Prev: 10} }},
		{"obv missing", func(s *indicator.Snapshot) { s.OBV = nil }},
		{"atr at threshold", func(s *indicator.Snapshot) { s.ATR = f(3) }},
		{"atr missing", func(s *indicator.Snapshot) { s.ATR = nil }},
		{"no engulfing", func(s *indicator.Snapshot) { s.Last = model.NewTick(ts, 100).WithOHLC(100.5, 101, 99) }},
		{"no open", func(s *indicator.Snapshot) { s.Last = model.NewTick(ts, 105) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := bullSnapshot()
			tt.mutate(&s)
			assert.Equal(t, ActionNone, r.Decide(s))
		})
	}
}

func TestDecide_BearishRequiresBearishConfirmation(t *testing.T) {
	r := classic(t)
	s := bearSnapshot()
	// Bullish candle on a bearish trend must not confirm.
	s.Prev = bullSnapshot().Prev
	s.Last = bullSnapshot().Last
	assert.Equal(t, ActionNone, r.Decide(s))
}

func TestDecide_ModeAny(t *testing.T) {
	r := RuleSet{
		Profile:       "custom",
		Confirmations: []Confirmation{ConfirmATR, ConfirmRVOL},
		Mode:          ModeAny,
		ATRThreshold:  3,
		RVOLThreshold: 1,
		RSIMidline:    50,
	}
	require.NoError(t, r.Validate())

	s := bullSnapshot()
	s.ATR = f(1)
	assert.Equal(t, ActionBuy, r.Decide(s), "rvol alone is enough")

	s.RVOL = f(0.8)
	assert.Equal(t, ActionNone, r.Decide(s))

	// Missing input fails closed even when another confirmation passes.
	s = bullSnapshot()
	s.RVOL = nil
	assert.Equal(t, ActionNone, r.Decide(s))
}

func TestDecide_Breakout(t *testing.T) {
	p, ok := Builtin("breakout")
	require.True(t, ok)
	require.NoError(t, p.Validate())
	assert.True(t, p.Rules.Requirements().Bollinger)

	s := bullSnapshot()
	assert.Equal(t, ActionNone, p.Rules.Decide(s), "trend ema missing")

	s.TrendEMA = f(90)
	assert.Equal(t, ActionBuy, p.Rules.Decide(s))

	s.TrendEMA = f(100.5)
	assert.Equal(t, ActionNone, p.Rules.Decide(s), "slow below trend")

	s = bearSnapshot()
	s.TrendEMA = f(110)
	assert.Equal(t, ActionSell, p.Rules.Decide(s))

	s.Bollinger = nil
	assert.Equal(t, ActionNone, p.Rules.Decide(s))
}

func TestDecide_NeverBothSides(t *testing.T) {
	r := RuleSet{
		Profile:       "loose",
		Confirmations: []Confirmation{ConfirmATR},
		Mode:          ModeAny,
		ATRThreshold:  0,
		RSIMidline:    50,
	}
	// Sweep the EMA relation with everything else held fixed: the action
	// always follows the EMA direction.
	for _, fast := range []float64{99, 100, 101} {
		for _, hist := range []float64{-1, 0, 1} {
			for _, rsi := range []float64{40, 50, 60} {
				s := bullSnapshot()
				s.FastEMA = fast
				s.MACD.Histogram = hist
				s.RSI = rsi
				got := r.Decide(s)
				switch {
				case fast > 100:
					assert.NotEqual(t, ActionSell, got)
				case fast < 100:
					assert.NotEqual(t, ActionBuy, got)
				default:
					assert.Equal(t, ActionNone, got)
				}
			}
		}
	}
}

func TestRuleSetValidate(t *testing.T) {
	for _, name := range BuiltinNames() {
		p, ok := Builtin(name)
		require.True(t, ok)
		assert.NoError(t, p.Validate(), name)
	}

	r := classic(t)
	r.Confirmations = nil
	assert.Error(t, r.Validate())

	r = classic(t)
	r.Confirmations = []Confirmation{"macd"}
	assert.Error(t, r.Validate())

	r = classic(t)
	r.Mode = "most"
	assert.Error(t, r.Validate())

	_, ok := Builtin("scalper")
	assert.False(t, ok)
}

func TestBuiltinReturnsCopies(t *testing.T) {
	a, _ := Builtin("classic")
	a.Rules.Confirmations[0] = ConfirmRVOL
	b, _ := Builtin("classic")
	assert.Equal(t, ConfirmATR, b.Rules.Confirmations[0])
}
