package silo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(params Params) *Engine {
	e := NewEngine(params)
	e.jitter = func() float64 { return 0 }
	// Steps were rolled with random jitter in the constructor; redo
	// them with the pinned source.
	e.configure(e.Params())
	return e
}

func TestEngine_Defaults(t *testing.T) {
	e := NewEngine(Params{})
	params := e.Params()
	assert.Equal(t, DefaultCapacity, params.Capacity)
	assert.Equal(t, DefaultTimeToEmptySec, params.TimeToEmptySec)
	assert.Equal(t, DefaultCapacity, e.GetLevel())
	assert.Equal(t, ModeEmptying, e.Mode())
}

func TestEngine_StepUp_DerivedFromRefillTime(t *testing.T) {
	// capacity=100, timeToEmpty=60s: refill takes 6s at 1s ticks,
	// so each refilling tick adds ~16.67.
	e := newTestEngine(Params{Capacity: 100, TimeToEmptySec: 60})
	assert.InDelta(t, 100.0/6.0, e.stepUp, 1e-9)
	assert.InDelta(t, 100.0/60.0, e.stepDown, 1e-9)
}

func TestEngine_FullCycle(t *testing.T) {
	e := newTestEngine(Params{Capacity: 100, TimeToEmptySec: 60})

	// Emptying: level drops by stepDown each tick and stays in bounds.
	sawRefilling := false
	for i := 0; i < 200 && !sawRefilling; i++ {
		e.advance()
		level := e.GetLevel()
		require.GreaterOrEqual(t, level, 0.0)
		require.LessOrEqual(t, level, 100.0)
		if e.Mode() == ModeRefilling {
			sawRefilling = true
			assert.LessOrEqual(t, level, 10.0+e.stepDown)
		}
	}
	require.True(t, sawRefilling, "engine never switched to refilling")

	// Refilling: level climbs back and lands exactly on capacity.
	sawFull := false
	for i := 0; i < 20 && !sawFull; i++ {
		e.advance()
		level := e.GetLevel()
		require.GreaterOrEqual(t, level, 0.0)
		require.LessOrEqual(t, level, 100.0)
		if e.Mode() == ModeEmptying {
			sawFull = true
			assert.Equal(t, 100.0, level)
		}
	}
	require.True(t, sawFull, "engine never refilled to capacity")
}

func TestEngine_StepDown_RerolledEachCycle(t *testing.T) {
	e := newTestEngine(Params{Capacity: 100, TimeToEmptySec: 60})
	initial := e.stepDown

	// Slower emptying on the next cycle.
	e.jitter = func() float64 { return 0.1 }

	// Run through one full cycle back to emptying.
	for i := 0; i < 200; i++ {
		e.advance()
		if e.Mode() == ModeRefilling {
			break
		}
	}
	for i := 0; i < 20; i++ {
		e.advance()
		if e.Mode() == ModeEmptying {
			break
		}
	}
	require.Equal(t, ModeEmptying, e.Mode())

	assert.InDelta(t, 100.0/66.0, e.stepDown, 1e-9)
	assert.NotEqual(t, initial, e.stepDown)
}

func TestEngine_LevelNeverLeavesBounds(t *testing.T) {
	// Keep the default random jitter and hammer the state machine.
	e := NewEngine(Params{Capacity: 50, TimeToEmptySec: 30})
	for i := 0; i < 2000; i++ {
		e.advance()
		level := e.GetLevel()
		require.GreaterOrEqual(t, level, 0.0, "tick %d", i)
		require.LessOrEqual(t, level, 50.0, "tick %d", i)
	}
}

func TestEngine_OnLevelUpdate(t *testing.T) {
	e := newTestEngine(Params{Capacity: 100, TimeToEmptySec: 60})

	var got []float64
	unsubscribe := e.OnLevelUpdate(func(level float64) {
		got = append(got, level)
	})

	e.advance()
	e.advance()
	require.Len(t, got, 2)
	assert.InDelta(t, 98.33, got[0], 0.01)
	assert.InDelta(t, 96.67, got[1], 0.01)

	unsubscribe()
	e.advance()
	assert.Len(t, got, 2)
}

func TestEngine_Reconfigure_ClampsAndNotifies(t *testing.T) {
	e := newTestEngine(Params{Capacity: 100, TimeToEmptySec: 60})

	var gotData any
	e.OnConfigUpdate(func(data any) { gotData = data })

	next := Params{Capacity: 40, TimeToEmptySec: 20}
	e.Reconfigure(next)

	require.NotNil(t, gotData)
	assert.Equal(t, next, gotData)
	// Level was at 100 and must be clamped into the smaller silo.
	assert.Equal(t, 40.0, e.GetLevel())
	assert.InDelta(t, 40.0/2.0, e.stepUp, 1e-9)
}

func TestFromArgs(t *testing.T) {
	e, err := FromArgs(json.RawMessage(`[{"capacity": 50, "timeToEmpty": 30}]`))
	require.NoError(t, err)
	params := e.Params()
	assert.Equal(t, 50.0, params.Capacity)
	assert.Equal(t, 30.0, params.TimeToEmptySec)

	// Empty args fall back to defaults.
	e, err = FromArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultCapacity, e.Params().Capacity)

	_, err = FromArgs(json.RawMessage(`"garbage"`))
	assert.Error(t, err)
}
