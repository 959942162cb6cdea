package model

import (
	"math"
	"time"
)

// Fields is a presence bitmask for the optional parts of a PriceTick.
// Feed variants differ in what they carry; Close is always required.
type Fields uint8

const (
	FieldOpen Fields = 1 << iota
	FieldHigh
	FieldLow
	FieldVolume
)

// PriceTick is a single price observation for the tracked instrument.
// Prices are plain float64 quote units (USD for BTC/USD).
type PriceTick struct {
	TS     time.Time `json:"ts"`
	Open   float64   `json:"open,omitempty"`
	High   float64   `json:"high,omitempty"`
	Low    float64   `json:"low,omitempty"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume,omitempty"`
	Fields Fields    `json:"fields"`
}

// NewTick builds a close-only tick.
func NewTick(ts time.Time, close float64) PriceTick {
	return PriceTick{TS: ts, Close: close}
}

// WithVolume returns a copy of t carrying volume v.
func (t PriceTick) WithVolume(v float64) PriceTick {
	t.Volume = v
	t.Fields |= FieldVolume
	return t
}

// WithOHLC returns a copy of t carrying open, high and low.
func (t PriceTick) WithOHLC(open, high, low float64) PriceTick {
	t.Open, t.High, t.Low = open, high, low
	t.Fields |= FieldOpen | FieldHigh | FieldLow
	return t
}

// WithRange returns a copy of t carrying high and low only.
func (t PriceTick) WithRange(high, low float64) PriceTick {
	t.High, t.Low = high, low
	t.Fields |= FieldHigh | FieldLow
	return t
}

func (t PriceTick) HasOpen() bool   { return t.Fields&FieldOpen != 0 }
func (t PriceTick) HasVolume() bool { return t.Fields&FieldVolume != 0 }

// HasRange reports whether both high and low are present.
func (t PriceTick) HasRange() bool {
	return t.Fields&(FieldHigh|FieldLow) == FieldHigh|FieldLow
}

// Valid reports whether the tick is usable: a positive finite close.
func (t PriceTick) Valid() bool {
	return t.Close > 0 && !math.IsInf(t.Close, 0) && !math.IsNaN(t.Close)
}
