package consumption

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(hour, min, sec int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, 3, 14, hour, min, sec, 0, time.UTC)
	}
}

func TestEngine_FlatRate_MatchesAnnualAverage(t *testing.T) {
	// 8760 kWh/year averages to exactly 1 kW. At 13:00 the power
	// channel's daily sine crosses zero, so with noise pinned to zero
	// the live rate must be the flat average.
	e := NewEngine(Params{AnnualPowerKWh: 8760})
	e.noise = func() float64 { return 0 }
	e.now = fixedClock(13, 0, 0)

	e.advance(e.now())

	live, err := e.GetLiveValue(ChannelPower)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, live, 1e-9)

	total, err := e.GetAggregatedValue(ChannelPower)
	require.NoError(t, err)
	assert.InDelta(t, 8760.0/(365*24*3600), total, 1e-12)
}

func TestEngine_AccumulatedTotal_NeverDecreases(t *testing.T) {
	e := NewEngine(Params{AnnualPowerKWh: 3500, AnnualGasM3: 1500, AnnualWaterM3: 100})

	channels := []Channel{ChannelPower, ChannelGas, ChannelWater}
	prev := map[Channel]float64{}

	for i := 0; i < 500; i++ {
		e.advance(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Second))
		for _, ch := range channels {
			total, err := e.GetAggregatedValue(ch)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, total, prev[ch], "total for %s decreased at tick %d", ch, i)
			prev[ch] = total

			live, err := e.GetLiveValue(ch)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, live, 0.0, "live rate for %s negative at tick %d", ch, i)
		}
	}
}

func TestEngine_LiveRate_ClampedAtZero(t *testing.T) {
	// Noise pushed far below the cycle trough must not yield a
	// negative rate.
	e := NewEngine(Params{AnnualPowerKWh: 8760})
	e.noise = func() float64 { return -5 }
	e.now = fixedClock(19, 0, 0)

	e.advance(e.now())

	live, err := e.GetLiveValue(ChannelPower)
	require.NoError(t, err)
	assert.Equal(t, 0.0, live)

	total, err := e.GetAggregatedValue(ChannelPower)
	require.NoError(t, err)
	assert.Equal(t, 0.0, total)
}

func TestEngine_UnknownChannel(t *testing.T) {
	e := NewEngine(Params{})

	_, err := e.GetLiveValue("steam")
	assert.ErrorIs(t, err, ErrUnknownChannel)

	_, err = e.GetAggregatedValue("steam")
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestEngine_StopKeepsTotals(t *testing.T) {
	e := NewEngine(Params{AnnualPowerKWh: 8760})
	e.noise = func() float64 { return 0 }
	e.now = fixedClock(13, 0, 0)

	e.advance(e.now())
	before, err := e.GetAggregatedValue(ChannelPower)
	require.NoError(t, err)
	require.Greater(t, before, 0.0)

	e.Stop()
	after, err := e.GetAggregatedValue(ChannelPower)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// Start/Stop are idempotent.
	e.Start()
	e.Start()
	e.Stop()
	e.Stop()
}

func TestFromArgs(t *testing.T) {
	e, err := FromArgs(json.RawMessage(`[{"power": 8760, "gas": 1200, "water": 80}]`))
	require.NoError(t, err)

	params := e.Params()
	assert.Equal(t, 8760.0, params.AnnualPowerKWh)
	assert.Equal(t, 1200.0, params.AnnualGasM3)
	assert.Equal(t, 80.0, params.AnnualWaterM3)

	// Empty args yield zero targets rather than an error.
	e, err = FromArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, Params{}, e.Params())

	_, err = FromArgs(json.RawMessage(`{"not":"an array"}`))
	assert.Error(t, err)
}

func TestEngine_SetAnnualTargets_NotifiesAndKeepsTotals(t *testing.T) {
	e := NewEngine(Params{AnnualPowerKWh: 8760})
	e.noise = func() float64 { return 0 }
	e.now = fixedClock(13, 0, 0)
	e.advance(e.now())

	before, err := e.GetAggregatedValue(ChannelPower)
	require.NoError(t, err)

	var gotData any
	e.OnConfigUpdate(func(data any) { gotData = data })

	next := Params{AnnualPowerKWh: 4380, AnnualGasM3: 500}
	e.SetAnnualTargets(next)

	require.NotNil(t, gotData)
	assert.Equal(t, next, gotData)
	assert.Equal(t, next, e.Params())

	after, err := e.GetAggregatedValue(ChannelPower)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
