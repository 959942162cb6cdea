// Package indicator computes technical indicators over a window of ticks.
//
// Every indicator is a small streaming accumulator implementing Series. The
// Engine builds fresh accumulators on each Compute call and replays the whole
// window through them, so a Snapshot is a pure function of the ticks it was
// computed from and never drifts.
package indicator

// Series is implemented by the single-input accumulators (EMA, SMA, SMMA, RSI).
type Series interface {
	// Update feeds the next value.
	Update(v float64)

	// Value returns the current value. Returns 0 until Ready.
	Value() float64

	// Ready returns true once enough values have been seen.
	Ready() bool
}

// ptr returns a pointer to a copy of v.
func ptr(v float64) *float64 { return &v }
