package timectrl

import (
	"sync"
	"time"
)

// Clock is a read-only view of replay time, so consumers depend on an
// abstraction rather than the concrete controller.
type Clock interface {
	// Now returns the current replay epoch.
	Now() time.Time
}

// Mode describes how the Replay controller advances the epoch.
type Mode int

const (
	// RealTime advances one tick per wall-clock tick.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run while still
	// stepping by Tick.
	Accelerated
)

// Replay walks an epoch forward at a fixed cadence and notifies listeners
// on every step. It is how the demo binary turns an ephemeris into a feed
// of timed catalog updates.
type Replay struct {
	mu    sync.RWMutex
	Start time.Time
	Tick  time.Duration
	Mode  Mode

	current time.Time

	listeners []func(time.Time)
}

// NewReplay constructs a replay controller positioned at start.
func NewReplay(start time.Time, tick time.Duration, mode Mode) *Replay {
	return &Replay{
		Start:   start,
		Tick:    tick,
		Mode:    mode,
		current: start,
	}
}

// Now returns the current replay epoch. Implements Clock.
func (r *Replay) Now() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// AddListener registers a callback invoked on every tick. Listeners must be
// registered before Run starts.
func (r *Replay) AddListener(fn func(time.Time)) {
	r.listeners = append(r.listeners, fn)
}

// Run advances the epoch until the given span has been replayed, in a
// separate goroutine. It returns a channel that is closed when the replay
// finishes.
func (r *Replay) Run(span time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		r.mu.Lock()
		epoch := r.Start
		r.current = epoch
		r.mu.Unlock()

		var ticker *time.Ticker
		if r.Mode == RealTime {
			ticker = time.NewTicker(r.Tick)
			defer ticker.Stop()
		}

		elapsed := time.Duration(0)
		for {
			if span > 0 && elapsed >= span {
				return
			}

			if ticker != nil {
				<-ticker.C
			}
			epoch = epoch.Add(r.Tick)
			elapsed += r.Tick

			r.mu.Lock()
			r.current = epoch
			r.mu.Unlock()

			for _, fn := range r.listeners {
				fn(epoch)
			}
		}
	}()
	return done
}
