package indicator

import "github.com/sigflow/signalengine/internal/model"

// Snapshot is the set of indicator values computed from one buffer snapshot.
// Optional indicators are nil when the feed does not carry the fields they
// need or when they are not enabled.
type Snapshot struct {
	Samples int     `json:"samples"`
	Close   float64 `json:"close"`

	FastEMA  float64  `json:"fast_ema"`
	SlowEMA  float64  `json:"slow_ema"`
	TrendEMA *float64 `json:"trend_ema,omitempty"`

	MACD MACDValue `json:"macd"`
	RSI  float64   `json:"rsi"`

	OBV       *OBVValue `json:"obv,omitempty"`
	ATR       *float64  `json:"atr,omitempty"`
	Bollinger *Bands    `json:"bollinger,omitempty"`
	RVOL      *float64  `json:"rvol,omitempty"`

	// Last two ticks, for candlestick pattern checks.
	Last model.PriceTick `json:"last"`
	Prev model.PriceTick `json:"prev"`
}
