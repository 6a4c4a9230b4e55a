// Periodic tick driver shared by all simulation engines.
// Each engine owns one Ticker; callbacks for a single Ticker never
// overlap because they all run on the Ticker's own goroutine.
package ticker

import (
	"sync"
	"time"
)

const DefaultInterval = time.Second

type Ticker struct {
	interval time.Duration
	onTick   func(now time.Time)

	mu   sync.Mutex
	stop chan struct{}
}

// New creates a stopped ticker. A zero interval falls back to DefaultInterval.
func New(interval time.Duration, onTick func(now time.Time)) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Ticker{
		interval: interval,
		onTick:   onTick,
	}
}

func (t *Ticker) Interval() time.Duration {
	return t.interval
}

// Start begins firing ticks. Calling Start on a running ticker is a no-op.
func (t *Ticker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return
	}
	stop := make(chan struct{})
	t.stop = stop

	go func() {
		tick := time.NewTicker(t.interval)
		defer tick.Stop()
		for {
			select {
			case now := <-tick.C:
				t.onTick(now)
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts the tick loop. Calling Stop on a stopped ticker is a no-op.
// A tick already in flight finishes before the goroutine exits.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop == nil {
		return
	}
	close(t.stop)
	t.stop = nil
}

func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}
