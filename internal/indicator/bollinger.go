package indicator

// Bands are Bollinger bands around an SMA.
type Bands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// bollinger computes bands of k population standard deviations around the
// SMA of the last period closes. Returns nil with fewer than period closes.
func bollinger(closes []float64, period int, k float64) *Bands {
	if period <= 0 || len(closes) < period {
		return nil
	}
	s := NewSMA(period)
	for _, c := range closes[len(closes)-period:] {
		s.Update(c)
	}
	mid, sd := s.Value(), s.StdDev()
	return &Bands{Upper: mid + k*sd, Middle: mid, Lower: mid - k*sd}
}
