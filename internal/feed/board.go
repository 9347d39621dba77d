package feed

import (
	"context"
	"sync"
	"time"

	appLog "opsboard/internal/log"
	"opsboard/internal/model"
	"opsboard/internal/timerange"
)

// Board ties the range controller to the data adapter and owns the single
// current-snapshot slot.
//
// Every range change starts an asynchronous load tagged with the range's
// key. When a load finishes, its key is compared against the board's
// current key: a mismatch means the user has navigated away while the
// request was in flight, and the late result is discarded wholesale. The
// accepted snapshot replaces the previous one atomically; snapshots are
// never merged.
type Board struct {
	ctrl    *timerange.Controller
	adapter *Adapter

	mu      sync.Mutex
	curKey  string
	snap    *model.Snapshot
	loading bool
	lastErr error

	// inFlight tracks outstanding loads so tests and shutdown can drain
	// them.
	inFlight sync.WaitGroup
}

// State is a point-in-time view of the board for consumers (HTTP layer,
// exporters). Snapshot may be nil before the first successful load.
type State struct {
	Range    timerange.Range `json:"range"`
	Snapshot *model.Snapshot `json:"snapshot"`
	Loading  bool            `json:"loading"`
	Err      error           `json:"-"`
}

// NewBoard builds a board over an already-configured controller and
// adapter.
func NewBoard(ctrl *timerange.Controller, adapter *Adapter) *Board {
	return &Board{ctrl: ctrl, adapter: adapter}
}

// Controller exposes the underlying range controller.
func (b *Board) Controller() *timerange.Controller { return b.ctrl }

// State returns the current range, snapshot and load status.
func (b *Board) State() State {
	rng := b.ctrl.Range()
	b.mu.Lock()
	defer b.mu.Unlock()
	return State{Range: rng, Snapshot: b.snap, Loading: b.loading, Err: b.lastErr}
}

// SetRange validates the new range via the controller and, on success,
// starts an asynchronous load for it. Controller errors (invalid range,
// unsupported zoom) are returned immediately and nothing is fetched.
func (b *Board) SetRange(ctx context.Context, from, to time.Time, zoom timerange.Zoom) (timerange.Range, error) {
	rng, err := b.ctrl.SetRange(from, to, zoom)
	if err != nil {
		return rng, err
	}
	b.startLoad(ctx, rng)
	return rng, nil
}

// SetZoom switches zoom level (recomputing the default window) and starts
// a load for the resulting range.
func (b *Board) SetZoom(ctx context.Context, zoom timerange.Zoom) (timerange.Range, error) {
	rng, err := b.ctrl.SetZoom(zoom)
	if err != nil {
		return rng, err
	}
	b.startLoad(ctx, rng)
	return rng, nil
}

// Refresh re-fetches the current range. Used by the cron refresher and as
// the user-facing retry after a failed load.
func (b *Board) Refresh(ctx context.Context) {
	b.startLoad(ctx, b.ctrl.Range())
}

// Wait blocks until all in-flight loads have settled. Intended for
// shutdown and tests.
func (b *Board) Wait() { b.inFlight.Wait() }

func (b *Board) startLoad(ctx context.Context, rng timerange.Range) {
	key := rng.Key()

	b.mu.Lock()
	b.curKey = key
	b.loading = true
	b.mu.Unlock()

	b.inFlight.Add(1)
	go func() {
		defer b.inFlight.Done()

		snap, err := b.adapter.Load(ctx, rng)

		b.mu.Lock()
		defer b.mu.Unlock()

		if b.curKey != key {
			// The range changed while this request was in flight. The
			// result belongs to a window nobody is looking at anymore.
			appLog.Debug("discarding stale schedule result", "key", key, "current", b.curKey)
			return
		}

		b.loading = false
		if err != nil {
			// Keep the previous snapshot visible; surface the error so the
			// caller can offer a retry. No automatic retry loop here.
			b.lastErr = err
			appLog.Error("schedule load failed", err, "key", key)
			return
		}
		b.snap = snap
		b.lastErr = nil
	}()
}
