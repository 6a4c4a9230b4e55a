// Simulates a three-channel utility meter (power, gas, water).
// Each channel follows a daily sine cycle around its annual average
// plus bounded random noise, sampled once per second.
package consumption

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/NotCoffee418/smart_device_simulator/pkg/simutils"
	"github.com/NotCoffee418/smart_device_simulator/pkg/ticker"
)

type Engine struct {
	mu       sync.RWMutex
	channels map[Channel]*channelState
	tick     *ticker.Ticker

	// Injectable for deterministic tests.
	noise func() float64 // uniform in [-noiseSpread, noiseSpread]
	now   func() time.Time

	updateFns []func(data any)
}

// NewEngine creates a stopped engine from annual consumption targets.
func NewEngine(params Params) *Engine {
	e := &Engine{
		noise: func() float64 { return (rand.Float64()*2 - 1) * noiseSpread },
		now:   time.Now,
	}
	e.channels = buildChannels(params)
	e.tick = ticker.New(ticker.DefaultInterval, e.onTick)
	return e
}

// FromArgs builds an engine from a stored args payload: a JSON array
// whose first element holds the construction parameters. An empty
// array yields an engine with all-zero targets.
func FromArgs(args json.RawMessage) (*Engine, error) {
	var paramList []Params
	if len(args) > 0 {
		if err := json.Unmarshal(args, &paramList); err != nil {
			return nil, fmt.Errorf("invalid consumption args: %w", err)
		}
	}
	var params Params
	if len(paramList) > 0 {
		params = paramList[0]
	}
	return NewEngine(params), nil
}

func buildChannels(params Params) map[Channel]*channelState {
	return map[Channel]*channelState{
		ChannelPower: {cfg: ChannelConfig{
			Annual:       params.AnnualPowerKWh,
			AvgPerSecond: params.AnnualPowerKWh / secondsInYear,
			PhaseShift:   powerPhaseShift,
			Amplitude:    powerAmplitude,
		}},
		ChannelGas: {cfg: ChannelConfig{
			Annual:       params.AnnualGasM3,
			AvgPerSecond: params.AnnualGasM3 / secondsInYear,
			PhaseShift:   gasPhaseShift,
			Amplitude:    gasAmplitude,
		}},
		ChannelWater: {cfg: ChannelConfig{
			Annual:       params.AnnualWaterM3,
			AvgPerSecond: params.AnnualWaterM3 / secondsInYear,
			PhaseShift:   waterPhaseShift,
			Amplitude:    waterAmplitude,
		}},
	}
}

// Start begins ticking. Idempotent.
func (e *Engine) Start() {
	e.tick.Start()
}

// Stop halts ticking without resetting accumulated totals. Idempotent.
func (e *Engine) Stop() {
	e.tick.Stop()
}

// GetLiveValue returns the current consumption of a channel scaled to
// an hourly rate (kW for power, m3/h for gas and water).
func (e *Engine) GetLiveValue(channel Channel) (float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	state, ok := e.channels[channel]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}
	return state.liveRate, nil
}

// GetAggregatedValue returns the total consumption of a channel since
// the engine started (kWh for power, m3 for gas and water).
func (e *Engine) GetAggregatedValue(channel Channel) (float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	state, ok := e.channels[channel]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}
	return state.total, nil
}

// Params returns the current construction parameters.
func (e *Engine) Params() Params {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Params{
		AnnualPowerKWh: e.channels[ChannelPower].cfg.Annual,
		AnnualGasM3:    e.channels[ChannelGas].cfg.Annual,
		AnnualWaterM3:  e.channels[ChannelWater].cfg.Annual,
	}
}

// SetAnnualTargets reconfigures the annual totals at runtime and
// notifies config-update listeners so persisted args stay current.
// Accumulated totals are kept; only the per-second averages change.
func (e *Engine) SetAnnualTargets(params Params) {
	e.mu.Lock()
	fresh := buildChannels(params)
	for ch, state := range e.channels {
		fresh[ch].total = state.total
		fresh[ch].liveRate = state.liveRate
	}
	e.channels = fresh
	fns := make([]func(data any), len(e.updateFns))
	copy(fns, e.updateFns)
	e.mu.Unlock()

	for _, fn := range fns {
		fn(params)
	}
}

// OnConfigUpdate registers a listener called with the new Params
// whenever the engine is reconfigured.
func (e *Engine) OnConfigUpdate(fn func(data any)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updateFns = append(e.updateFns, fn)
}

func (e *Engine) onTick(time.Time) {
	e.advance(e.now())
}

// One tick: advance every channel by one second of simulated use.
// All channels update under one lock so a tick applies fully or not at all.
func (e *Engine) advance(wall time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	secondsIntoDay := float64(wall.Hour()*3600 + wall.Minute()*60 + wall.Second())

	for _, state := range e.channels {
		cycleFactor := math.Sin(2*math.Pi*secondsIntoDay/secondsInDay + state.cfg.PhaseShift)
		instantaneous := state.cfg.AvgPerSecond * (1 + cycleFactor*state.cfg.Amplitude + e.noise())
		instantaneous = simutils.NonNegative(instantaneous)

		state.total += instantaneous
		state.liveRate = instantaneous * 3600
	}
}
