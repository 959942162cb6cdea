package indicator

import (
	"math"

	"github.com/sigflow/signalengine/internal/model"
)

// atr computes Wilder's Average True Range over the longest trailing run of
// ticks that carry both high and low. Returns nil when that run holds fewer
// than period+1 ticks (feeds that only send a last price never get an ATR).
func atr(ticks []model.PriceTick, period int) *float64 {
	start := len(ticks)
	for start > 0 && ticks[start-1].HasRange() {
		start--
	}
	run := ticks[start:]
	if len(run) < period+1 {
		return nil
	}

	s := NewSMMA(period)
	for i := 1; i < len(run); i++ {
		s.Update(trueRange(run[i], run[i-1].Close))
	}
	if !s.Ready() {
		return nil
	}
	return ptr(s.Value())
}

// trueRange = max(high-low, |high-prevClose|, |low-prevClose|).
func trueRange(t model.PriceTick, prevClose float64) float64 {
	tr1 := t.High - t.Low
	tr2 := math.Abs(t.High - prevClose)
	tr3 := math.Abs(t.Low - prevClose)
	return math.Max(tr1, math.Max(tr2, tr3))
}
