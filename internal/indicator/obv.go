package indicator

import "github.com/sigflow/signalengine/internal/model"

// OBVValue holds the last two points of the On-Balance-Volume series.
type OBVValue struct {
	Last float64 `json:"last"`
	Prev float64 `json:"prev"`
}

// Rising reports whether OBV increased on the last tick.
func (o OBVValue) Rising() bool { return o.Last > o.Prev }

// Falling reports whether OBV decreased on the last tick.
func (o OBVValue) Falling() bool { return o.Last < o.Prev }

// obv runs the OBV series over ticks and returns its last two points.
// Ticks without volume contribute zero. Returns nil when either of the last
// two ticks lacks volume, since the comparison would be meaningless.
func obv(ticks []model.PriceTick) *OBVValue {
	n := len(ticks)
	if n < 2 || !ticks[n-1].HasVolume() || !ticks[n-2].HasVolume() {
		return nil
	}

	var cur, prev float64
	for i := 1; i < n; i++ {
		prev = cur
		vol := 0.0
		if ticks[i].HasVolume() {
			vol = ticks[i].Volume
		}
		switch {
		case ticks[i].Close > ticks[i-1].Close:
			cur += vol
		case ticks[i].Close < ticks[i-1].Close:
			cur -= vol
		}
	}
	return &OBVValue{Last: cur, Prev: prev}
}
