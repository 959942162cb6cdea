package indicator

import (
	"errors"
	"fmt"

	"github.com/sigflow/signalengine/internal/model"
)

// ErrInsufficientData is returned when the window is shorter than the longest
// lookback any enabled indicator needs.
var ErrInsufficientData = errors.New("indicator: insufficient data")

// Config holds the indicator periods.
type Config struct {
	FastEMA  int `toml:"fast_ema" yaml:"fast_ema"`
	SlowEMA  int `toml:"slow_ema" yaml:"slow_ema"`
	TrendEMA int `toml:"trend_ema" yaml:"trend_ema"` // 0 disables the third EMA

	MACDFast   int `toml:"macd_fast" yaml:"macd_fast"`
	MACDSlow   int `toml:"macd_slow" yaml:"macd_slow"`
	MACDSignal int `toml:"macd_signal" yaml:"macd_signal"`

	RSIPeriod int `toml:"rsi_period" yaml:"rsi_period"`
	ATRPeriod int `toml:"atr_period" yaml:"atr_period"`

	BollingerPeriod int     `toml:"bollinger_period" yaml:"bollinger_period"`
	BollingerK      float64 `toml:"bollinger_k" yaml:"bollinger_k"`

	RVOLWindow int `toml:"rvol_window" yaml:"rvol_window"`
}

// DefaultConfig returns the long-EMA configuration (50/200).
func DefaultConfig() Config {
	return Config{
		FastEMA:         50,
		SlowEMA:         200,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		RSIPeriod:       14,
		ATRPeriod:       14,
		BollingerPeriod: 20,
		BollingerK:      2,
		RVOLWindow:      50,
	}
}

// Validate checks that every period is usable.
func (c Config) Validate() error {
	if c.FastEMA <= 0 || c.SlowEMA <= 0 {
		return fmt.Errorf("indicator: ema periods must be positive (fast=%d slow=%d)", c.FastEMA, c.SlowEMA)
	}
	if c.FastEMA >= c.SlowEMA {
		return fmt.Errorf("indicator: fast ema %d must be shorter than slow ema %d", c.FastEMA, c.SlowEMA)
	}
	if c.TrendEMA < 0 || (c.TrendEMA > 0 && c.TrendEMA <= c.SlowEMA) {
		return fmt.Errorf("indicator: trend ema %d must be 0 or longer than slow ema %d", c.TrendEMA, c.SlowEMA)
	}
	if c.MACDFast <= 0 || c.MACDSlow <= c.MACDFast || c.MACDSignal <= 0 {
		return fmt.Errorf("indicator: invalid macd periods %d/%d/%d", c.MACDFast, c.MACDSlow, c.MACDSignal)
	}
	if c.RSIPeriod <= 0 || c.ATRPeriod <= 0 {
		return fmt.Errorf("indicator: rsi and atr periods must be positive")
	}
	if c.BollingerPeriod <= 0 || c.BollingerK <= 0 {
		return fmt.Errorf("indicator: bollinger period and k must be positive")
	}
	if c.RVOLWindow <= 0 {
		return fmt.Errorf("indicator: rvol window must be positive")
	}
	return nil
}

// Requirements selects optional indicators that affect the minimum lookback.
type Requirements struct {
	Bollinger bool
}

// Engine computes a Snapshot from a window of ticks.
// Stateless between calls; safe for concurrent use.
type Engine struct {
	cfg Config
	req Requirements
	min int
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg Config, req Requirements) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, req: req}
	e.min = e.minSamples()
	return e, nil
}

// MinSamples is the number of ticks required before Compute succeeds.
func (e *Engine) MinSamples() int { return e.min }

func (e *Engine) minSamples() int {
	need := e.cfg.SlowEMA
	if e.cfg.TrendEMA > need {
		need = e.cfg.TrendEMA
	}
	if m := e.cfg.MACDSlow + e.cfg.MACDSignal - 1; m > need {
		need = m
	}
	if r := e.cfg.RSIPeriod + 1; r > need {
		need = r
	}
	if e.req.Bollinger && e.cfg.BollingerPeriod > need {
		need = e.cfg.BollingerPeriod
	}
	if need < 2 {
		need = 2
	}
	return need
}

// Compute derives all indicators from ticks (oldest first).
// Returns ErrInsufficientData when len(ticks) < MinSamples.
func (e *Engine) Compute(ticks []model.PriceTick) (Snapshot, error) {
	if len(ticks) < e.min {
		return Snapshot{}, fmt.Errorf("%w: have %d ticks, need %d", ErrInsufficientData, len(ticks), e.min)
	}

	closes := make([]float64, len(ticks))
	for i, t := range ticks {
		closes[i] = t.Close
	}

	snap := Snapshot{
		Samples: len(ticks),
		Close:   closes[len(closes)-1],
		Last:    ticks[len(ticks)-1],
		Prev:    ticks[len(ticks)-2],
	}

	var ok bool
	if snap.FastEMA, ok = emaOf(closes, e.cfg.FastEMA); !ok {
		return Snapshot{}, ErrInsufficientData
	}
	if snap.SlowEMA, ok = emaOf(closes, e.cfg.SlowEMA); !ok {
		return Snapshot{}, ErrInsufficientData
	}
	if e.cfg.TrendEMA > 0 {
		v, ok := emaOf(closes, e.cfg.TrendEMA)
		if !ok {
			return Snapshot{}, ErrInsufficientData
		}
		snap.TrendEMA = ptr(v)
	}

	macd := NewMACD(e.cfg.MACDFast, e.cfg.MACDSlow, e.cfg.MACDSignal)
	rsi := NewRSI(e.cfg.RSIPeriod)
	for _, c := range closes {
		macd.Update(c)
		rsi.Update(c)
	}
	if !macd.Ready() || !rsi.Ready() {
		return Snapshot{}, ErrInsufficientData
	}
	snap.MACD = macd.Value()
	snap.RSI = rsi.Value()

	snap.OBV = obv(ticks)
	snap.ATR = atr(ticks, e.cfg.ATRPeriod)
	snap.RVOL = rvol(ticks, e.cfg.RVOLWindow)
	if e.req.Bollinger {
		snap.Bollinger = bollinger(closes, e.cfg.BollingerPeriod, e.cfg.BollingerK)
	}

	return snap, nil
}
