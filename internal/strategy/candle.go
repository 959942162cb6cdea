package strategy

import "github.com/sigflow/signalengine/internal/model"

// Pattern is a two-candle pattern detected on the last two ticks.
type Pattern int

const (
	PatternNone Pattern = iota
	PatternBullishEngulfing
	PatternBearishEngulfing
)

func (p Pattern) String() string {
	switch p {
	case PatternBullishEngulfing:
		return "BULLISH_ENGULFING"
	case PatternBearishEngulfing:
		return "BEARISH_ENGULFING"
	default:
		return "NONE"
	}
}

// Engulfing checks whether cur's body reverses and covers prev's body.
// ok is false when either tick lacks an open price.
func Engulfing(prev, cur model.PriceTick) (p Pattern, ok bool) {
	if !prev.HasOpen() || !cur.HasOpen() {
		return PatternNone, false
	}

	switch {
	case cur.Close > cur.Open && prev.Close < prev.Open &&
		cur.Close > prev.Open && cur.Open <= prev.Close:
		return PatternBullishEngulfing, true
	case cur.Close < cur.Open && prev.Close > prev.Open &&
		cur.Close < prev.Open && cur.Open >= prev.Close:
		return PatternBearishEngulfing, true
	}
	return PatternNone, true
}
