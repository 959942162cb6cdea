package main

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"time"
)

type tradeData struct {
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"`
	S string  `json:"s"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
}

type bar struct {
	open, high, low, close, volume float64
}

// walk is a bounded random walk producing one small bar per step.
type walk struct {
	price float64
	rng   *rand.Rand
}

func newWalk(start float64, rng *rand.Rand) *walk {
	return &walk{price: start, rng: rng}
}

// next moves the price by up to ±0.1% and returns the bar spanning the move.
func (w *walk) next() bar {
	open := w.price
	pct := (w.rng.Float64()*0.2 - 0.1) / 100
	closePx := math.Max(1, open*(1+pct))
	wick := math.Abs(closePx-open) * w.rng.Float64()

	w.price = closePx
	return bar{
		open:   round2(open),
		high:   round2(math.Max(open, closePx) + wick),
		low:    round2(math.Max(0.01, math.Min(open, closePx)-wick)),
		close:  round2(closePx),
		volume: round2(0.01 + w.rng.Float64()*2),
	}
}

func tradeFrame(symbol string, b bar, now time.Time) ([]byte, error) {
	return json.Marshal(struct {
		Type string      `json:"type"`
		Data []tradeData `json:"data"`
	}{
		Type: "trade",
		Data: []tradeData{{
			P: b.close, V: b.volume, T: now.UnixMilli(), S: symbol,
			O: b.open, H: b.high, L: b.low,
		}},
	})
}

func calendarFrame(impact, event string, now time.Time) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type": "economic_calendar",
		"data": map[string]string{
			"impact":  impact,
			"event":   event,
			"country": "US",
			"time":    now.UTC().Format(time.RFC3339),
		},
	})
}

// subscribedSymbol extracts the symbol from a client subscribe message.
func subscribedSymbol(msg []byte) (string, bool) {
	var sub struct {
		Type   string `json:"type"`
		Symbol string `json:"symbol"`
	}
	if err := json.Unmarshal(msg, &sub); err != nil || sub.Type != "subscribe" {
		return "", false
	}
	return sub.Symbol, true
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
