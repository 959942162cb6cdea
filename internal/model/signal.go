package model

import "time"

// Side is the direction of a trade signal.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Outcome is how an open signal was resolved.
type Outcome string

const (
	OutcomeTP Outcome = "TP"
	OutcomeSL Outcome = "SL"
)

// Signal is an emitted trade idea. Immutable once created by the lifecycle tracker.
type Signal struct {
	Code       string    `json:"code"`
	Side       Side      `json:"side"`
	Entry      float64   `json:"entry"`
	TakeProfit float64   `json:"take_profit"`
	StopLoss   float64   `json:"stop_loss"`
	OpenedAt   time.Time `json:"opened_at"`
}

// Close records the resolution of a signal.
type Close struct {
	Signal   Signal    `json:"signal"`
	Outcome  Outcome   `json:"outcome"`
	Price    float64   `json:"price"`
	ClosedAt time.Time `json:"closed_at"`
}
