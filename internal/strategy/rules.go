package strategy

import (
	"fmt"

	"github.com/sigflow/signalengine/internal/indicator"
)

// Confirmation names one of the optional filters that must agree with the
// trend before a signal is emitted.
type Confirmation string

const (
	ConfirmATR       Confirmation = "atr"
	ConfirmRVOL      Confirmation = "rvol"
	ConfirmEngulfing Confirmation = "engulfing"
	ConfirmBollinger Confirmation = "bollinger"
)

// Mode controls how confirmations combine.
type Mode string

const (
	ModeAny Mode = "any" // at least one confirmation true
	ModeAll Mode = "all" // every confirmation true
)

// RuleSet is the configurable Policy.
//
// Direction comes from the EMAs alone: fast above slow (and slow above trend,
// when a trend EMA is configured) selects the BUY side, the mirror selects
// SELL, anything else is NONE. Only the selected side is then checked against
// MACD, RSI, OBV and the confirmations, so BUY and SELL can never both hold.
type RuleSet struct {
	Profile       string         `toml:"name" yaml:"name"`
	Confirmations []Confirmation `toml:"confirmations" yaml:"confirmations"`
	Mode          Mode           `toml:"mode" yaml:"mode"`
	ATRThreshold  float64        `toml:"atr_threshold" yaml:"atr_threshold"`
	RVOLThreshold float64        `toml:"rvol_threshold" yaml:"rvol_threshold"`
	RSIMidline    float64        `toml:"rsi_midline" yaml:"rsi_midline"`
	UseTrend      bool           `toml:"use_trend" yaml:"use_trend"`
}

// Validate checks the rule set is usable.
func (r RuleSet) Validate() error {
	if len(r.Confirmations) == 0 {
		return fmt.Errorf("strategy: profile %q: at least one confirmation is required", r.Profile)
	}
	for _, c := range r.Confirmations {
		switch c {
		case ConfirmATR, ConfirmRVOL, ConfirmEngulfing, ConfirmBollinger:
		default:
			return fmt.Errorf("strategy: profile %q: unknown confirmation %q", r.Profile, c)
		}
	}
	if r.Mode != ModeAny && r.Mode != ModeAll {
		return fmt.Errorf("strategy: profile %q: mode must be %q or %q, got %q", r.Profile, ModeAny, ModeAll, r.Mode)
	}
	if r.RSIMidline <= 0 || r.RSIMidline >= 100 {
		return fmt.Errorf("strategy: profile %q: rsi midline %.2f out of range", r.Profile, r.RSIMidline)
	}
	return nil
}

func (r RuleSet) Name() string { return r.Profile }

func (r RuleSet) Requirements() indicator.Requirements {
	var req indicator.Requirements
	for _, c := range r.Confirmations {
		if c == ConfirmBollinger {
			req.Bollinger = true
		}
	}
	return req
}

// Decide applies the rule set to snap.
func (r RuleSet) Decide(snap indicator.Snapshot) Action {
	side := r.direction(snap)
	if side == ActionNone {
		return ActionNone
	}
	bull := side == ActionBuy

	if snap.OBV == nil {
		return ActionNone
	}
	if bull {
		if snap.MACD.Histogram <= 0 || snap.RSI <= r.RSIMidline || !snap.OBV.Rising() {
			return ActionNone
		}
	} else {
		if snap.MACD.Histogram >= 0 || snap.RSI >= r.RSIMidline || !snap.OBV.Falling() {
			return ActionNone
		}
	}

	passed := 0
	for _, c := range r.Confirmations {
		ok, known := r.confirm(c, snap, bull)
		if !known {
			return ActionNone
		}
		if ok {
			passed++
		}
	}

	switch r.Mode {
	case ModeAll:
		if passed != len(r.Confirmations) {
			return ActionNone
		}
	default:
		if passed == 0 {
			return ActionNone
		}
	}
	return side
}

func (r RuleSet) direction(snap indicator.Snapshot) Action {
	if r.UseTrend && snap.TrendEMA == nil {
		return ActionNone
	}

	switch {
	case snap.FastEMA > snap.SlowEMA:
		if r.UseTrend && snap.SlowEMA <= *snap.TrendEMA {
			return ActionNone
		}
		return ActionBuy
	case snap.FastEMA < snap.SlowEMA:
		if r.UseTrend && snap.SlowEMA >= *snap.TrendEMA {
			return ActionNone
		}
		return ActionSell
	}
	return ActionNone
}

// confirm evaluates one confirmation for the given side. known is false when
// the snapshot lacks the input the confirmation needs.
func (r RuleSet) confirm(c Confirmation, snap indicator.Snapshot, bull bool) (ok, known bool) {
	switch c {
	case ConfirmATR:
		if snap.ATR == nil {
			return false, false
		}
		return *snap.ATR > r.ATRThreshold, true

	case ConfirmRVOL:
		if snap.RVOL == nil {
			return false, false
		}
		return *snap.RVOL > r.RVOLThreshold, true

	case ConfirmEngulfing:
		p, ok := Engulfing(snap.Prev, snap.Last)
		if !ok {
			return false, false
		}
		if bull {
			return p == PatternBullishEngulfing, true
		}
		return p == PatternBearishEngulfing, true

	case ConfirmBollinger:
		if snap.Bollinger == nil {
			return false, false
		}
		if bull {
			return snap.Close > snap.Bollinger.Middle, true
		}
		return snap.Close < snap.Bollinger.Middle, true
	}
	return false, false
}
