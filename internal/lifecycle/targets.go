package lifecycle

import (
	"fmt"

	"github.com/sigflow/signalengine/internal/indicator"
	"github.com/sigflow/signalengine/internal/model"
)

// Targets computes take-profit and stop-loss levels for a new signal.
type Targets interface {
	Name() string
	// Levels returns the TP and SL for side at entry. ok is false when the
	// snapshot lacks what the strategy needs or the levels would be unusable.
	Levels(side model.Side, entry float64, snap indicator.Snapshot) (tp, sl float64, ok bool)
}

// ATRTargets places TP and SL at multiples of ATR from the entry.
type ATRTargets struct {
	TPMult float64
	SLMult float64
}

func (a ATRTargets) Name() string { return "atr" }

func (a ATRTargets) Levels(side model.Side, entry float64, snap indicator.Snapshot) (float64, float64, bool) {
	if snap.ATR == nil || *snap.ATR <= 0 {
		return 0, 0, false
	}
	atr := *snap.ATR
	return offsets(side, entry, a.TPMult*atr, a.SLMult*atr)
}

// FixedTargets places TP and SL at fixed price offsets from the entry.
type FixedTargets struct {
	TPOffset float64
	SLOffset float64
}

func (f FixedTargets) Name() string { return "fixed" }

func (f FixedTargets) Levels(side model.Side, entry float64, _ indicator.Snapshot) (float64, float64, bool) {
	return offsets(side, entry, f.TPOffset, f.SLOffset)
}

// offsets refuses levels that could never close: a non-positive price or a
// TP equal to the SL.
func offsets(side model.Side, entry, tpDist, slDist float64) (float64, float64, bool) {
	var tp, sl float64
	switch side {
	case model.SideBuy:
		tp, sl = entry+tpDist, entry-slDist
	case model.SideSell:
		tp, sl = entry-tpDist, entry+slDist
	default:
		return 0, 0, false
	}
	if tp <= 0 || sl <= 0 || tp == sl {
		return 0, 0, false
	}
	return tp, sl, true
}

// NewTargets builds the named strategy ("atr" or "fixed").
func NewTargets(name string, tpMult, slMult, tpOffset, slOffset float64) (Targets, error) {
	switch name {
	case "atr":
		if tpMult <= 0 || slMult <= 0 {
			return nil, fmt.Errorf("lifecycle: atr multipliers must be positive (tp=%.2f sl=%.2f)", tpMult, slMult)
		}
		return ATRTargets{TPMult: tpMult, SLMult: slMult}, nil
	case "fixed":
		if tpOffset <= 0 || slOffset <= 0 {
			return nil, fmt.Errorf("lifecycle: fixed offsets must be positive (tp=%.2f sl=%.2f)", tpOffset, slOffset)
		}
		return FixedTargets{TPOffset: tpOffset, SLOffset: slOffset}, nil
	}
	return nil, fmt.Errorf("lifecycle: unknown targets strategy %q", name)
}
