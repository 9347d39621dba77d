// Package action drives the per-selected-event state machine: selecting an
// event, deriving its badges, and the idempotent ensure-thread operation.
package action

import (
	"context"
	"errors"
	"strings"
	"sync"

	appLog "opsboard/internal/log"
	"opsboard/internal/model"
	"opsboard/internal/status"
)

// ErrMissingRunReference is returned when no backing run id can be
// recovered from the selected event. Surfaced to the user; never retried
// automatically.
var ErrMissingRunReference = errors.New("event has no recoverable run reference")

// ErrActionConflict is returned when ensure-thread is invoked while a
// previous invocation for the selection is still pending. The repeat call
// is a no-op, not a hard failure.
var ErrActionConflict = errors.New("ensure-thread already in progress")

// ErrNoSelection is returned when an action is triggered with no event
// selected.
var ErrNoSelection = errors.New("no event selected")

// Phase is the dispatcher's state for the current selection.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseSelected       Phase = "selected"
	PhaseActionPending  Phase = "action_pending"
	PhaseActionResolved Phase = "action_resolved"
	PhaseActionFailed   Phase = "action_failed"
)

// threadEnsurer is what the dispatcher needs from the thread client.
type threadEnsurer interface {
	EnsureThread(ctx context.Context, runID string) (string, error)
}

// Dispatcher is the selected-event state machine.
//
//	Idle -> Selected -> ActionPending -> ActionResolved
//	                                  -> ActionFailed -> (retry) ActionPending
//
// EnsureThread is serialized per selection: while a call is pending,
// repeat invocations are rejected with ErrActionConflict instead of
// issuing a second network call. Resolved thread ids are cached per run so
// the operation stays idempotent across repeated user interaction.
type Dispatcher struct {
	client threadEnsurer

	mu       sync.Mutex
	phase    Phase
	selected *model.ScheduleEvent
	threadID string
	lastErr  error

	// threads caches runID -> threadID across selections.
	threads map[string]string
}

// NewDispatcher builds an idle dispatcher.
func NewDispatcher(client threadEnsurer) *Dispatcher {
	return &Dispatcher{
		client:  client,
		phase:   PhaseIdle,
		threads: map[string]string{},
	}
}

// Select replaces the current selection. Any resolved/failed action state
// belonging to the previous selection is cleared.
//
// While an ensure-thread call is pending the selection is frozen: a
// re-select must not reset the phase, or a repeat EnsureThread would slip
// past the pending guard and issue a second concurrent call for the same
// run. Selecting during that window is a no-op.
func (d *Dispatcher) Select(ev model.ScheduleEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.phase == PhaseActionPending {
		return
	}
	evCopy := ev
	d.selected = &evCopy
	d.phase = PhaseSelected
	d.threadID = ""
	d.lastErr = nil
}

// Clear drops the selection and returns the dispatcher to idle. Like
// Select, it is a no-op while an ensure-thread call is pending.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.phase == PhaseActionPending {
		return
	}
	d.selected = nil
	d.phase = PhaseIdle
	d.threadID = ""
	d.lastErr = nil
}

// Phase returns the current state.
func (d *Dispatcher) Phase() Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

// Selected returns the current selection, or nil.
func (d *Dispatcher) Selected() *model.ScheduleEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selected == nil {
		return nil
	}
	evCopy := *d.selected
	return &evCopy
}

// ThreadID returns the resolved thread id for the current selection, if
// the action has resolved.
func (d *Dispatcher) ThreadID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.threadID
}

// Err returns the error from the last failed action, if any.
func (d *Dispatcher) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// Badge derives the selected event's badges.
func (d *Dispatcher) Badge() status.Badge {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selected == nil {
		return status.Badge{Evidence: status.EvidenceNone, Feasibility: status.FeasibilityOK}
	}
	return status.ForEvent(*d.selected)
}

// EnsureThread resolves the messaging thread for the selected event's run.
//
// Invoking it n times for the same run returns the same thread id every
// time and performs at most one thread-creating network call: resolved ids
// are cached, and concurrent invocations are rejected with
// ErrActionConflict while one is pending.
func (d *Dispatcher) EnsureThread(ctx context.Context) (string, error) {
	d.mu.Lock()
	if d.selected == nil {
		d.mu.Unlock()
		return "", ErrNoSelection
	}
	if d.phase == PhaseActionPending {
		d.mu.Unlock()
		return "", ErrActionConflict
	}

	runID, ok := RunReference(*d.selected)
	if !ok {
		d.phase = PhaseActionFailed
		d.lastErr = ErrMissingRunReference
		d.mu.Unlock()
		return "", ErrMissingRunReference
	}

	if tid, hit := d.threads[runID]; hit {
		d.phase = PhaseActionResolved
		d.threadID = tid
		d.lastErr = nil
		d.mu.Unlock()
		return tid, nil
	}

	d.phase = PhaseActionPending
	selectedID := d.selected.ID
	d.mu.Unlock()

	tid, err := d.client.EnsureThread(ctx, runID)

	d.mu.Lock()
	defer d.mu.Unlock()

	if err != nil {
		appLog.Error("ensure-thread failed", err, "run_id", runID, "event_id", selectedID)
		// Back to Selected so the user can retry.
		if d.selected != nil && d.selected.ID == selectedID {
			d.phase = PhaseSelected
			d.lastErr = err
		}
		return "", err
	}

	d.threads[runID] = tid
	if d.selected != nil && d.selected.ID == selectedID {
		d.phase = PhaseActionResolved
		d.threadID = tid
		d.lastErr = nil
	}
	appLog.Info("ensure-thread resolved", "run_id", runID, "thread_id", tid)
	return tid, nil
}

// EnsureThreadFor selects ev (unless it is already the selection) and runs
// EnsureThread. While an invocation is pending, repeat calls are rejected
// with ErrActionConflict before the selection is touched, so a double
// click cannot reset the pending state machine.
func (d *Dispatcher) EnsureThreadFor(ctx context.Context, ev model.ScheduleEvent) (string, error) {
	d.mu.Lock()
	if d.phase == PhaseActionPending {
		d.mu.Unlock()
		return "", ErrActionConflict
	}
	if d.selected == nil || d.selected.ID != ev.ID {
		evCopy := ev
		d.selected = &evCopy
		d.phase = PhaseSelected
		d.threadID = ""
		d.lastErr = nil
	}
	d.mu.Unlock()

	return d.EnsureThread(ctx)
}

// RunReference extracts the backing run id from an event. It prefers the
// metadata bag and falls back to parsing the synthetic "run-<id>" ids the
// legacy adapter produces for resources and events.
func RunReference(ev model.ScheduleEvent) (string, bool) {
	if ev.Meta != nil && ev.Meta.RunID != "" {
		return ev.Meta.RunID, true
	}
	if id, ok := parseSyntheticRunID(ev.ResourceID); ok {
		return id, true
	}
	return parseSyntheticRunID(ev.ID)
}

// parseSyntheticRunID recovers <id> from "run-<id>" or "run-<id>@<start>".
func parseSyntheticRunID(s string) (string, bool) {
	const prefix = "run-"
	if !strings.HasPrefix(s, prefix) {
		return "", false
	}
	rest := s[len(prefix):]
	if at := strings.IndexByte(rest, '@'); at >= 0 {
		rest = rest[:at]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}
