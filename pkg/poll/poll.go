// Package poll drives a client that keeps a local copy of remote state
// fresh by fetching it on an interval.
//
// The driver fetches once on Run, then again on every tick while polling is
// on. At most one fetch is in flight; ticks and manual syncs that arrive
// while one is running are dropped. A failed fetch records the error and
// keeps the previous data.
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/daviddao/potluck/pkg/clock"
)

// DefaultInterval is the polling period when none is configured.
const DefaultInterval = 10 * time.Second

// FetchFunc loads the current remote state.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// State is what the driver knows about the remote state.
type State[T any] struct {
	Data       T
	Loading    bool
	Error      string
	LastSynced time.Time
	IsPolling  bool
}

// Synced reports whether at least one fetch has succeeded.
func (s State[T]) Synced() bool { return !s.LastSynced.IsZero() }

// Option configures a Driver.
type Option[T any] func(*Driver[T])

// WithInterval sets the polling period.
func WithInterval[T any](d time.Duration) Option[T] {
	return func(dr *Driver[T]) {
		if d > 0 {
			dr.interval = d
		}
	}
}

// WithClock sets the clock used to stamp LastSynced.
func WithClock[T any](c clock.Clock) Option[T] {
	return func(dr *Driver[T]) { dr.clock = clock.OrReal(c) }
}

// OnChange registers fn to observe every state change. fn runs with the
// driver's lock held and must not call back into the driver.
func OnChange[T any](fn func(State[T])) Option[T] {
	return func(dr *Driver[T]) { dr.onChange = fn }
}

// Driver polls a FetchFunc.
type Driver[T any] struct {
	fetch    FetchFunc[T]
	interval time.Duration
	clock    clock.Clock
	onChange func(State[T])

	mu       sync.Mutex
	state    State[T]
	inFlight bool

	toggled chan struct{}
	wg      sync.WaitGroup
}

// New returns a Driver with polling enabled.
func New[T any](fetch FetchFunc[T], opts ...Option[T]) *Driver[T] {
	d := &Driver[T]{
		fetch:    fetch,
		interval: DefaultInterval,
		clock:    clock.Real{},
		toggled:  make(chan struct{}, 1),
	}
	d.state.IsPolling = true
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns a copy of the current state.
func (d *Driver[T]) State() State[T] {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Interval returns the polling period.
func (d *Driver[T]) Interval() time.Duration { return d.interval }

// Run fetches immediately and then on every tick while polling is on. It
// returns when ctx is done, after any in-flight fetch has finished.
func (d *Driver[T]) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	if !d.State().IsPolling {
		ticker.Stop()
	}

	d.launch(ctx)
	for {
		select {
		case <-ctx.Done():
			d.wg.Wait()
			return nil
		case <-d.toggled:
			if d.State().IsPolling {
				ticker.Reset(d.interval)
			} else {
				ticker.Stop()
			}
		case <-ticker.C:
			if d.State().IsPolling {
				d.launch(ctx)
			}
		}
	}
}

// TogglePolling flips polling on or off and returns the new setting.
// Turning it back on waits a full interval before the next fetch.
func (d *Driver[T]) TogglePolling() bool {
	d.mu.Lock()
	d.state.IsPolling = !d.state.IsPolling
	on := d.state.IsPolling
	d.changed()
	d.mu.Unlock()

	select {
	case d.toggled <- struct{}{}:
	default:
	}
	return on
}

// ManualSync fetches now, whether or not polling is on. It returns false
// without fetching when another fetch is already in flight.
func (d *Driver[T]) ManualSync(ctx context.Context) bool {
	if !d.begin() {
		return false
	}
	d.finish(d.fetch(ctx))
	return true
}

// launch starts a background fetch. The fetch is detached from ctx so a
// stop never interrupts it.
func (d *Driver[T]) launch(ctx context.Context) {
	if !d.begin() {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.finish(d.fetch(context.WithoutCancel(ctx)))
	}()
}

func (d *Driver[T]) begin() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inFlight {
		return false
	}
	d.inFlight = true
	d.state.Loading = true
	d.changed()
	return true
}

func (d *Driver[T]) finish(data T, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inFlight = false
	d.state.Loading = false
	if err != nil {
		d.state.Error = err.Error()
	} else {
		d.state.Data = data
		d.state.Error = ""
		d.state.LastSynced = d.clock.Now()
	}
	d.changed()
}

// changed must be called with mu held.
func (d *Driver[T]) changed() {
	if d.onChange != nil {
		d.onChange(d.state)
	}
}
