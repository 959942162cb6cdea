package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigflow/signalengine/internal/model"
)

func smallConfig() Config {
	return Config{
		FastEMA:         3,
		SlowEMA:         5,
		MACDFast:        2,
		MACDSlow:        3,
		MACDSignal:      2,
		RSIPeriod:       3,
		ATRPeriod:       2,
		BollingerPeriod: 6,
		BollingerK:      2,
		RVOLWindow:      3,
	}
}

func TestMinSamples(t *testing.T) {
	e, err := NewEngine(DefaultConfig(), Requirements{})
	require.NoError(t, err)
	assert.Equal(t, 200, e.MinSamples())

	cfg := DefaultConfig()
	cfg.TrendEMA = 300
	e, err = NewEngine(cfg, Requirements{})
	require.NoError(t, err)
	assert.Equal(t, 300, e.MinSamples())

	e, err = NewEngine(smallConfig(), Requirements{})
	require.NoError(t, err)
	assert.Equal(t, 5, e.MinSamples())

	e, err = NewEngine(smallConfig(), Requirements{Bollinger: true})
	require.NoError(t, err)
	assert.Equal(t, 6, e.MinSamples())
}

func TestCompute_InsufficientData(t *testing.T) {
	e, err := NewEngine(smallConfig(), Requirements{})
	require.NoError(t, err)

	_, err = e.Compute(closeTicks(1, 2, 3, 4))
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = e.Compute(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestCompute_CloseOnlyFeed(t *testing.T) {
	e, err := NewEngine(smallConfig(), Requirements{})
	require.NoError(t, err)

	ticks := closeTicks(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	snap, err := e.Compute(ticks)
	require.NoError(t, err)

	assert.Equal(t, 10, snap.Samples)
	assert.Equal(t, 10.0, snap.Close)
	// Linear series: EMA(3) lags by 1, EMA(5) lags by 2.
	assert.InDelta(t, 9.0, snap.FastEMA, 1e-9)
	assert.InDelta(t, 8.0, snap.SlowEMA, 1e-9)
	assert.Nil(t, snap.TrendEMA)
	assert.Equal(t, 100.0, snap.RSI)
	assert.InDelta(t, 0.5, snap.MACD.Line, 1e-9)

	assert.Nil(t, snap.OBV)
	assert.Nil(t, snap.ATR)
	assert.Nil(t, snap.RVOL)
	assert.Nil(t, snap.Bollinger)

	assert.Equal(t, 10.0, snap.Last.Close)
	assert.Equal(t, 9.0, snap.Prev.Close)
}

func TestCompute_FullFeed(t *testing.T) {
	e, err := NewEngine(smallConfig(), Requirements{Bollinger: true})
	require.NoError(t, err)

	var ticks []model.PriceTick
	for i, c := range []float64{10, 11, 12, 11, 13, 14, 15} {
		tk := model.NewTick(t0.Add(time.Duration(i)*time.Second), c).WithOHLC(c-0.5, c+1, c-1).WithVolume(100)
		ticks = append(ticks, tk)
	}
	snap, err := e.Compute(ticks)
	require.NoError(t, err)

	assert.NotNil(t, snap.OBV)
	assert.True(t, snap.OBV.Rising())
	require.NotNil(t, snap.ATR)
	assert.Greater(t, *snap.ATR, 0.0)
	require.NotNil(t, snap.RVOL)
	assert.InDelta(t, 1.0, *snap.RVOL, 1e-9)
	require.NotNil(t, snap.Bollinger)
	assert.Less(t, snap.Bollinger.Lower, snap.Bollinger.Upper)
}

func TestCompute_PureFunctionOfWindow(t *testing.T) {
	e, err := NewEngine(smallConfig(), Requirements{})
	require.NoError(t, err)

	ticks := closeTicks(5, 7, 6, 8, 9, 7, 10, 11)
	a, err := e.Compute(ticks)
	require.NoError(t, err)
	b, err := e.Compute(ticks)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// Computing over the tail gives the same result as a fresh slice copy.
	tail := append([]model.PriceTick(nil), ticks[2:]...)
	c, err := e.Compute(ticks[2:])
	require.NoError(t, err)
	d, err := e.Compute(tail)
	require.NoError(t, err)
	assert.Equal(t, c, d)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.FastEMA = 200
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.TrendEMA = 100
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MACDSlow = 10
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.BollingerK = 0
	assert.Error(t, cfg.Validate())

	_, err := NewEngine(cfg, Requirements{})
	assert.Error(t, err)
}
