package indicator

import "github.com/sigflow/signalengine/internal/model"

// rvol returns relative volume: the last tick's volume divided by the mean of
// the trailing window volume samples (the last one included). Returns nil if
// the last tick has no volume, fewer than window samples exist, or the mean
// is zero.
func rvol(ticks []model.PriceTick, window int) *float64 {
	if window <= 0 || len(ticks) == 0 || !ticks[len(ticks)-1].HasVolume() {
		return nil
	}

	var sum float64
	seen := 0
	for i := len(ticks) - 1; i >= 0 && seen < window; i-- {
		if !ticks[i].HasVolume() {
			continue
		}
		sum += ticks[i].Volume
		seen++
	}
	if seen < window || sum == 0 {
		return nil
	}
	mean := sum / float64(window)
	return ptr(ticks[len(ticks)-1].Volume / mean)
}
