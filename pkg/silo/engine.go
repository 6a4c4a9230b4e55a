// Simulates a silo fill-level sensor as a bistable ramp: the level
// drains in randomized-duration emptying phases and refills ten times
// faster, cycling forever while the engine runs.
package silo

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/NotCoffee418/smart_device_simulator/pkg/simutils"
	"github.com/NotCoffee418/smart_device_simulator/pkg/ticker"
)

type Engine struct {
	mu sync.Mutex

	capacity        float64
	baseTimeToEmpty time.Duration
	timeToRefill    time.Duration
	stepUp          float64
	stepDown        float64
	level           float64
	mode            Mode

	tick *ticker.Ticker

	// Injectable for deterministic tests.
	jitter func() float64 // uniform in [-emptyJitter, emptyJitter]

	listeners  map[int]func(level float64)
	nextListen int
	updateFns  []func(data any)
}

// NewEngine creates a stopped engine, full and emptying. Zero or
// negative params fall back to the defaults.
func NewEngine(params Params) *Engine {
	if params.Capacity <= 0 {
		params.Capacity = DefaultCapacity
	}
	if params.TimeToEmptySec <= 0 {
		params.TimeToEmptySec = DefaultTimeToEmptySec
	}

	e := &Engine{
		jitter:    func() float64 { return (rand.Float64()*2 - 1) * emptyJitter },
		listeners: make(map[int]func(level float64)),
	}
	e.tick = ticker.New(ticker.DefaultInterval, e.onTick)
	e.configure(params)
	e.level = e.capacity
	e.mode = ModeEmptying
	return e
}

// FromArgs builds an engine from a stored args payload: a JSON array
// whose first element holds the construction parameters.
func FromArgs(args json.RawMessage) (*Engine, error) {
	var paramList []Params
	if len(args) > 0 {
		if err := json.Unmarshal(args, &paramList); err != nil {
			return nil, fmt.Errorf("invalid silo args: %w", err)
		}
	}
	var params Params
	if len(paramList) > 0 {
		params = paramList[0]
	}
	return NewEngine(params), nil
}

// configure derives the ramp steps from capacity and emptying time.
// Caller must hold e.mu (or be the constructor).
func (e *Engine) configure(params Params) {
	e.capacity = params.Capacity
	e.baseTimeToEmpty = time.Duration(params.TimeToEmptySec * float64(time.Second))
	e.timeToRefill = e.baseTimeToEmpty / refillDivisor
	interval := e.tick.Interval()
	e.stepUp = e.capacity * interval.Seconds() / e.timeToRefill.Seconds()
	e.rollStepDown()
}

// rollStepDown draws a fresh randomized emptying step. Called at
// construction and at the start of every emptying phase.
func (e *Engine) rollStepDown() {
	adjusted := time.Duration(float64(e.baseTimeToEmpty) * (1 + e.jitter()))
	e.stepDown = e.capacity * e.tick.Interval().Seconds() / adjusted.Seconds()
}

// Start begins ticking. Idempotent.
func (e *Engine) Start() {
	e.tick.Start()
}

// Stop halts ticking. Idempotent. The level keeps its last value.
func (e *Engine) Stop() {
	e.tick.Stop()
}

// GetLevel returns the current fill level rounded to two decimals.
func (e *Engine) GetLevel() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return simutils.Round2(e.level)
}

// Mode returns the current ramp direction.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Params returns the current construction parameters.
func (e *Engine) Params() Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Params{
		Capacity:       e.capacity,
		TimeToEmptySec: e.baseTimeToEmpty.Seconds(),
	}
}

// OnLevelUpdate registers a listener invoked with the rounded level
// after every tick. The returned function unsubscribes it.
func (e *Engine) OnLevelUpdate(fn func(level float64)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextListen
	e.nextListen++
	e.listeners[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

// Reconfigure changes capacity and emptying time at runtime and
// notifies config-update listeners so persisted args stay current.
// The level is clamped into the new capacity.
func (e *Engine) Reconfigure(params Params) {
	if params.Capacity <= 0 {
		params.Capacity = DefaultCapacity
	}
	if params.TimeToEmptySec <= 0 {
		params.TimeToEmptySec = DefaultTimeToEmptySec
	}

	e.mu.Lock()
	e.configure(params)
	e.level = simutils.Clamp(e.level, 0, e.capacity)
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
	e.advance()
}

// One tick of the ramp state machine. The whole transition happens
// under the lock; listeners are notified after it is released.
func (e *Engine) advance() {
	e.mu.Lock()

	switch e.mode {
	case ModeEmptying:
		e.level -= e.stepDown
		if e.level <= e.capacity*refillThreshold {
			e.mode = ModeRefilling
		}
		if e.level < 0 {
			e.level = 0
		}
	case ModeRefilling:
		e.level += e.stepUp
		if e.level >= e.capacity {
			e.level = e.capacity
			e.mode = ModeEmptying
			e.rollStepDown()
		}
	}

	rounded := simutils.Round2(e.level)
	fns := make([]func(level float64), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(rounded)
	}
}
