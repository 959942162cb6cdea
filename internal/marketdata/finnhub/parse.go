package finnhub

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sigflow/signalengine/internal/model"
)

// ErrMalformed marks a feed message that could not be used. The message is
// discarded and the read loop continues.
var ErrMalformed = errors.New("finnhub: malformed message")

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
	Msg  string          `json:"msg"`
}

// trade is one element of a "trade" message. o/h/l are not part of the
// public Finnhub schema but some relays add them.
type trade struct {
	Price  *float64 `json:"p"`
	Volume *float64 `json:"v"`
	TS     int64    `json:"t"` // epoch milliseconds
	Symbol string   `json:"s"`
	Open   *float64 `json:"o"`
	High   *float64 `json:"h"`
	Low    *float64 `json:"l"`
}

type calendarEntry struct {
	Impact  string `json:"impact"`
	Event   string `json:"event"`
	Country string `json:"country"`
	Time    string `json:"time"`
}

type newsItem struct {
	Headline string `json:"headline"`
	Datetime int64  `json:"datetime"` // epoch seconds
}

// Parse decodes one websocket frame into zero or more events.
// Trades whose symbol does not match symbol are ignored (empty symbol accepts
// all). ping and subscription acks yield no events and no error.
func Parse(raw []byte, symbol string, now time.Time) ([]model.Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case "trade":
		return parseTrades(env.Data, symbol)
	case "economic_calendar":
		return parseCalendar(env.Data, now)
	case "news":
		return parseNews(env.Data, now)
	case "ping", "":
		return nil, nil
	case "error":
		return nil, fmt.Errorf("finnhub: server error: %s", env.Msg)
	}
	return nil, nil
}

func parseTrades(data json.RawMessage, symbol string) ([]model.Event, error) {
	var trades []trade
	if err := json.Unmarshal(data, &trades); err != nil {
		return nil, fmt.Errorf("%w: trade data: %v", ErrMalformed, err)
	}

	ticks := make([]model.PriceTick, 0, len(trades))
	bad := 0
	for _, tr := range trades {
		if symbol != "" && tr.Symbol != "" && tr.Symbol != symbol {
			continue
		}
		tick, ok := tr.tick()
		if !ok {
			bad++
			continue
		}
		ticks = append(ticks, tick)
	}

	if len(ticks) == 0 {
		if bad > 0 {
			return nil, fmt.Errorf("%w: %d unusable trades", ErrMalformed, bad)
		}
		return nil, nil
	}
	return []model.Event{{Kind: model.EventTrade, Ticks: ticks}}, nil
}

func (tr trade) tick() (model.PriceTick, bool) {
	if tr.Price == nil || tr.TS <= 0 {
		return model.PriceTick{}, false
	}
	t := model.NewTick(time.UnixMilli(tr.TS).UTC(), *tr.Price)
	if !t.Valid() {
		return model.PriceTick{}, false
	}
	if tr.Volume != nil && *tr.Volume >= 0 && !math.IsNaN(*tr.Volume) {
		t = t.WithVolume(*tr.Volume)
	}
	switch {
	case tr.Open != nil && tr.High != nil && tr.Low != nil:
		t = t.WithOHLC(*tr.Open, *tr.High, *tr.Low)
	case tr.High != nil && tr.Low != nil:
		t = t.WithRange(*tr.High, *tr.Low)
	}
	if t.HasRange() && t.High < t.Low {
		return model.PriceTick{}, false
	}
	return t, true
}

// parseCalendar accepts either a single entry or an array of entries.
func parseCalendar(data json.RawMessage, now time.Time) ([]model.Event, error) {
	var entries []calendarEntry
	trimmed := strings.TrimSpace(string(data))
	switch {
	case strings.HasPrefix(trimmed, "["):
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("%w: calendar data: %v", ErrMalformed, err)
		}
	case strings.HasPrefix(trimmed, "{"):
		var e calendarEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("%w: calendar data: %v", ErrMalformed, err)
		}
		entries = append(entries, e)
	default:
		return nil, fmt.Errorf("%w: calendar data missing", ErrMalformed)
	}

	out := make([]model.Event, 0, len(entries))
	for _, e := range entries {
		out = append(out, model.Event{
			Kind: model.EventNews,
			News: model.NewsEvent{
				Kind:     model.NewsCalendar,
				Impact:   e.Impact,
				Headline: e.Event,
				TS:       now,
			},
		})
	}
	return out, nil
}

func parseNews(data json.RawMessage, now time.Time) ([]model.Event, error) {
	var items []newsItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: news data: %v", ErrMalformed, err)
	}
	out := make([]model.Event, 0, len(items))
	for _, it := range items {
		ts := now
		if it.Datetime > 0 {
			ts = time.Unix(it.Datetime, 0).UTC()
		}
		out = append(out, model.Event{
			Kind: model.EventNews,
			News: model.NewsEvent{Kind: model.NewsItem, Headline: it.Headline, TS: ts},
		})
	}
	return out, nil
}
