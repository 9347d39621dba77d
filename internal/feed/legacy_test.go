package feed

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsboard/internal/model"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestAdaptRuns(t *testing.T) {
	t.Run("maps an in-progress run to a hold event with default end", func(t *testing.T) {
		start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
		resources, events := AdaptRuns([]Run{
			{RunID: "r1", Status: "in_progress", StartAt: timePtr(start)},
		})

		require.Len(t, resources, 1)
		assert.Equal(t, "run-r1", resources[0].ID)
		assert.Equal(t, "service_run", resources[0].Category)

		require.Len(t, events, 1)
		assert.Equal(t, "run-r1", events[0].ResourceID)
		assert.Equal(t, model.EventHold, events[0].Type)
		assert.Equal(t, start, events[0].StartAt)
		assert.Equal(t, start.Add(time.Hour), events[0].EndAt)
		require.NotNil(t, events[0].Meta)
		assert.Equal(t, "r1", events[0].Meta.RunID)
	})

	t.Run("status mapping table", func(t *testing.T) {
		cases := map[string]model.EventType{
			"completed":   model.EventReservation,
			"in_progress": model.EventHold,
			"draft":       model.EventBuffer,
			"cancelled":   model.EventReserved,
			"":            model.EventReserved,
		}
		start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
		for status, want := range cases {
			_, events := AdaptRuns([]Run{
				{RunID: "r1", Status: status, StartAt: timePtr(start)},
			})
			require.Len(t, events, 1, "status %q", status)
			assert.Equal(t, want, events[0].Type, "status %q", status)
		}
	})

	t.Run("run without start yields resource but no event", func(t *testing.T) {
		resources, events := AdaptRuns([]Run{
			{RunID: "r9", Status: "draft", Title: "unscheduled"},
		})
		require.Len(t, resources, 1)
		assert.Empty(t, events)
	})

	t.Run("runs sharing a runId merge into one resource, each with its own event", func(t *testing.T) {
		early := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
		late := time.Date(2024, 2, 1, 14, 0, 0, 0, time.UTC)
		resources, events := AdaptRuns([]Run{
			{RunID: "r1", Status: "completed", Title: "afternoon pass", StartAt: timePtr(late)},
			{RunID: "r1", Status: "draft", Title: "morning pass", StartAt: timePtr(early)},
		})

		require.Len(t, resources, 1)
		// First-seen in canonical (start-ordered) order wins display fields.
		assert.Equal(t, "morning pass", resources[0].Name)

		require.Len(t, events, 2)
		assert.NotEqual(t, events[0].ID, events[1].ID)
	})

	t.Run("duplicate start times still produce unique event ids", func(t *testing.T) {
		start := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
		_, events := AdaptRuns([]Run{
			{RunID: "r1", Status: "draft", StartAt: timePtr(start)},
			{RunID: "r1", Status: "draft", StartAt: timePtr(start)},
		})
		require.Len(t, events, 2)
		assert.NotEqual(t, events[0].ID, events[1].ID)
	})

	t.Run("deterministic under input reordering", func(t *testing.T) {
		t1 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
		t2 := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
		runs := []Run{
			{RunID: "b", Status: "completed", Title: "B", StartAt: timePtr(t2)},
			{RunID: "a", Status: "in_progress", Title: "A", StartAt: timePtr(t1)},
			{RunID: "a", Status: "draft", Title: "A draft", StartAt: timePtr(t2)},
		}
		reversed := []Run{runs[2], runs[1], runs[0]}

		res1, ev1 := AdaptRuns(runs)
		res2, ev2 := AdaptRuns(reversed)

		assert.Empty(t, cmp.Diff(res1, res2))
		assert.Empty(t, cmp.Diff(ev1, ev2))
	})
}
