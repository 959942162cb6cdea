package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sigflow/signalengine/internal/model"
)

func TestEngulfing(t *testing.T) {
	ohlc := func(o, c float64) model.PriceTick {
		hi, lo := o, c
		if c > o {
			hi, lo = c, o
		}
		return model.NewTick(ts, c).WithOHLC(o, hi+1, lo-1)
	}

	tests := []struct {
		name      string
		prev, cur model.PriceTick
		want      Pattern
		ok        bool
	}{
		{"bullish", ohlc(101, 99), ohlc(98.5, 102), PatternBullishEngulfing, true},
		{"bullish open above prev close", ohlc(101, 99), ohlc(99.5, 102), PatternNone, true},
		{"bullish close inside prev body", ohlc(101, 99), ohlc(98.5, 100), PatternNone, true},
		{"bearish", ohlc(99, 101), ohlc(101.5, 98), PatternBearishEngulfing, true},
		{"two green", ohlc(99, 101), ohlc(100, 103), PatternNone, true},
		{"missing open", model.NewTick(ts, 99), ohlc(98.5, 102), PatternNone, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Engulfing(tt.prev, tt.cur)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "BULLISH_ENGULFING", PatternBullishEngulfing.String())
}
