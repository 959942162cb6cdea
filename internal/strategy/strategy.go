// Package strategy decides BUY/SELL/NONE from an indicator snapshot.
//
// A Policy is a pure function of the snapshot. The shipped implementation is
// RuleSet, configured either from one of the built-in profiles or from a
// custom rule block in the config file.
package strategy

import "github.com/sigflow/signalengine/internal/indicator"

// Action is the outcome of a decision.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionNone Action = "NONE"
)

// Policy is the interface every decision rule set implements.
type Policy interface {
	// Name returns the profile name, used in logs and metrics labels.
	Name() string

	// Decide maps a snapshot to an action. Must not mutate anything.
	Decide(snap indicator.Snapshot) Action

	// Requirements reports which optional indicators the policy reads.
	Requirements() indicator.Requirements
}
