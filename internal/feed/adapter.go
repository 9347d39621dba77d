package feed

import (
	"context"
	"fmt"
	"time"

	appLog "opsboard/internal/log"
	"opsboard/internal/model"
	"opsboard/internal/timerange"
)

// Adapter loads one range of schedule data and normalizes it into a
// canonical snapshot. It prefers the modern unified feed and falls back to
// the legacy runs feed exactly once when the modern request fails at the
// protocol level (e.g. not implemented for the mode).
type Adapter struct {
	client *Client
}

// NewAdapter wraps a client.
func NewAdapter(client *Client) *Adapter {
	return &Adapter{client: client}
}

// Load fetches and normalizes the given range.
//
// Failure semantics: if the modern fetch fails, the legacy fetch is tried
// for the same range; if that also fails its error (the most recent one)
// is returned. An empty-but-successful response yields an empty snapshot
// and a nil error, so callers can always tell the two apart.
func (a *Adapter) Load(ctx context.Context, rng timerange.Range) (*model.Snapshot, error) {
	modern, err := a.client.FetchModern(ctx, rng)
	if err == nil {
		snap := &model.Snapshot{
			Resources: modern.Resources,
			Events:    expandEvents(modern.Events, rng),
			Source:    "modern",
			FetchedAt: time.Now().UTC(),
		}
		// The modern payload is already canonical shape, but invariants
		// are re-checked rather than trusted.
		if verr := snap.Validate(); verr != nil {
			return nil, fmt.Errorf("modern payload invalid: %w", verr)
		}
		appLog.Info("schedule loaded",
			"source", "modern", "mode", a.client.Mode(),
			"resources", len(snap.Resources), "events", len(snap.Events))
		return snap, nil
	}

	appLog.Warn("modern schedule fetch failed, falling back to legacy",
		"mode", a.client.Mode(), "err", err)

	legacy, lerr := a.client.FetchLegacy(ctx, rng)
	if lerr != nil {
		// Both feeds failed; surface the most recent error.
		return nil, lerr
	}

	resources, events := AdaptRuns(legacy.Runs)
	snap := &model.Snapshot{
		Resources: resources,
		Events:    events,
		Source:    "legacy",
		FetchedAt: time.Now().UTC(),
	}
	if verr := snap.Validate(); verr != nil {
		return nil, fmt.Errorf("legacy payload invalid: %w", verr)
	}
	appLog.Info("schedule loaded",
		"source", "legacy", "mode", a.client.Mode(),
		"resources", len(snap.Resources), "events", len(snap.Events))
	return snap, nil
}
