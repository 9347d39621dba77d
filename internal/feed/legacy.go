package feed

import (
	"sort"
	"strconv"
	"time"

	"opsboard/internal/model"
)

// LegacyResourceCategory is the fixed category every legacy run's derived
// resource carries.
const LegacyResourceCategory = "service_run"

// legacyResourceID derives the canonical resource id for a run.
func legacyResourceID(runID string) string { return "run-" + runID }

// eventTypeForRunStatus is the fixed legacy status mapping. It must not be
// extended without coordinating with the portal backends: downstream
// consumers key on these exact values.
func eventTypeForRunStatus(status string) model.EventType {
	switch status {
	case "completed":
		return model.EventReservation
	case "in_progress":
		return model.EventHold
	case "draft":
		return model.EventBuffer
	default:
		return model.EventReserved
	}
}

// AdaptRuns converts legacy run records into canonical resources and
// events.
//
// Mapping rules:
//   - each run yields exactly one resource (id "run-<runId>", category
//     "service_run"); runs sharing a runId merge into one resource with
//     first-seen display fields
//   - each run with a start time yields exactly one event; a missing end
//     time defaults to start + 1 hour
//   - runs without a start time yield no event
//
// The function is pure and order-independent: the input is canonically
// ordered before merging, so reordered but otherwise identical input
// produces identical output.
func AdaptRuns(runs []Run) ([]model.Resource, []model.ScheduleEvent) {
	ordered := make([]Run, len(runs))
	copy(ordered, runs)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.RunID != b.RunID {
			return a.RunID < b.RunID
		}
		at, bt := runStart(a), runStart(b)
		if !at.Equal(bt) {
			return at.Before(bt)
		}
		if a.Status != b.Status {
			return a.Status < b.Status
		}
		return a.Title < b.Title
	})

	resources := make([]model.Resource, 0, len(ordered))
	events := make([]model.ScheduleEvent, 0, len(ordered))
	seen := make(map[string]bool, len(ordered))
	eventIDs := make(map[string]int)

	for _, run := range ordered {
		resID := legacyResourceID(run.RunID)

		if !seen[resID] {
			seen[resID] = true
			resources = append(resources, model.Resource{
				ID:       resID,
				Name:     run.Title,
				Category: LegacyResourceCategory,
				Status:   run.Status,
			})
		}

		if run.StartAt == nil {
			continue
		}

		evType := eventTypeForRunStatus(run.Status)
		ev := model.ScheduleEvent{
			ID:         legacyEventID(resID, *run.StartAt, eventIDs),
			ResourceID: resID,
			Type:       evType,
			StartAt:    run.StartAt.UTC(),
			Status:     run.Status,
			Title:      run.Title,
			Meta:       &model.EventMeta{RunID: run.RunID},
		}
		if run.EndAt != nil {
			ev.EndAt = run.EndAt.UTC()
		}
		ev.Normalize()
		events = append(events, ev)
	}

	return resources, events
}

// legacyEventID builds a deterministic event id from the resource id and
// start time. Duplicate (resource, start) pairs get an ordinal suffix so
// ids stay unique within the snapshot without becoming order-dependent
// (the caller iterates in canonical order).
func legacyEventID(resID string, start time.Time, used map[string]int) string {
	base := resID + "@" + start.UTC().Format(time.RFC3339)
	n := used[base]
	used[base] = n + 1
	if n == 0 {
		return base
	}
	return base + "#" + strconv.Itoa(n+1)
}

func runStart(r Run) time.Time {
	if r.StartAt == nil {
		return time.Time{}
	}
	return r.StartAt.UTC()
}
