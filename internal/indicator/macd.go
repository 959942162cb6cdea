package indicator

// MACDValue is the last MACD line, signal line and histogram.
type MACDValue struct {
	Line      float64 `json:"line"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MACD tracks the fast/slow EMA difference and its signal EMA.
// The MACD line starts once the slow EMA is seeded; the signal line needs a
// further signal-1 values, so the first histogram appears after slow+signal-1
// prices.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA
	line   float64
}

// NewMACD creates a MACD with the given fast, slow and signal periods.
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fast:   NewEMA(fast),
		slow:   NewEMA(slow),
		signal: NewEMA(signal),
	}
}

func (m *MACD) Update(price float64) {
	m.fast.Update(price)
	m.slow.Update(price)
	if !m.slow.Ready() || !m.fast.Ready() {
		return
	}
	m.line = m.fast.Value() - m.slow.Value()
	m.signal.Update(m.line)
}

func (m *MACD) Ready() bool { return m.signal.Ready() }

// Value returns the current MACD triple. Zero until Ready.
func (m *MACD) Value() MACDValue {
	if !m.Ready() {
		return MACDValue{}
	}
	sig := m.signal.Value()
	return MACDValue{Line: m.line, Signal: sig, Histogram: m.line - sig}
}
