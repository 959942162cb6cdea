package strategy

import (
	"fmt"
	"sort"

	"github.com/sigflow/signalengine/internal/indicator"
)

// Profile pairs the indicator periods with the rule set that reads them.
type Profile struct {
	Indicators indicator.Config
	Rules      RuleSet
}

// Validate checks both halves of the profile.
func (p Profile) Validate() error {
	if err := p.Indicators.Validate(); err != nil {
		return fmt.Errorf("strategy: profile %q: %w", p.Rules.Profile, err)
	}
	if p.Rules.UseTrend && p.Indicators.TrendEMA == 0 {
		return fmt.Errorf("strategy: profile %q: use_trend set without a trend ema period", p.Rules.Profile)
	}
	return p.Rules.Validate()
}

var builtin = map[string]func() Profile{
	// EMA 50/200, ATR above 3 plus an engulfing candle.
	"classic": func() Profile {
		ind := indicator.DefaultConfig()
		return Profile{
			Indicators: ind,
			Rules: RuleSet{
				Profile:       "classic",
				Confirmations: []Confirmation{ConfirmATR, ConfirmEngulfing},
				Mode:          ModeAll,
				ATRThreshold:  3,
				RVOLThreshold: 1,
				RSIMidline:    50,
			},
		}
	},
	"momentum": func() Profile {
		ind := indicator.DefaultConfig()
		ind.FastEMA, ind.SlowEMA = 21, 50
		return Profile{
			Indicators: ind,
			Rules: RuleSet{
				Profile:       "momentum",
				Confirmations: []Confirmation{ConfirmRVOL},
				Mode:          ModeAny,
				ATRThreshold:  3,
				RVOLThreshold: 1,
				RSIMidline:    50,
			},
		}
	},
	"breakout": func() Profile {
		ind := indicator.DefaultConfig()
		ind.FastEMA, ind.SlowEMA, ind.TrendEMA = 21, 50, 200
		return Profile{
			Indicators: ind,
			Rules: RuleSet{
				Profile:       "breakout",
				Confirmations: []Confirmation{ConfirmBollinger, ConfirmRVOL},
				Mode:          ModeAll,
				ATRThreshold:  3,
				RVOLThreshold: 1,
				RSIMidline:    50,
				UseTrend:      true,
			},
		}
	},
}

// Builtin returns a fresh copy of the named built-in profile.
func Builtin(name string) (Profile, bool) {
	f, ok := builtin[name]
	if !ok {
		return Profile{}, false
	}
	return f(), true
}

// BuiltinNames lists the built-in profile names in sorted order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtin))
	for n := range builtin {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
