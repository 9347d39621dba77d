package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsboard/internal/model"
)

func TestExpandEvents(t *testing.T) {
	base := model.ScheduleEvent{
		ID:         "standing-hold",
		ResourceID: "crew-1",
		Type:       model.EventHold,
		StartAt:    testRange.From,
		EndAt:      testRange.From.Add(15 * time.Minute),
	}

	t.Run("unbounded rule is capped", func(t *testing.T) {
		// A minutely rule over the 7-day window yields ~10k occurrences.
		out := expandEvents([]modernEvent{{ScheduleEvent: base, Recurrence: "FREQ=MINUTELY"}}, testRange)
		require.Len(t, out, maxOccurrencesPerEvent)

		seen := make(map[string]bool, len(out))
		for _, ev := range out {
			assert.False(t, seen[ev.ID], "duplicate occurrence id %s", ev.ID)
			seen[ev.ID] = true
			assert.Equal(t, 15*time.Minute, ev.EndAt.Sub(ev.StartAt))
		}
		assert.True(t, out[0].StartAt.Equal(testRange.From))
	})

	t.Run("unparseable rule keeps the base event", func(t *testing.T) {
		out := expandEvents([]modernEvent{{ScheduleEvent: base, Recurrence: "FREQ=NEVERLY"}}, testRange)
		require.Len(t, out, 1)
		assert.Equal(t, base.ID, out[0].ID)
	})

	t.Run("non-recurring events pass through", func(t *testing.T) {
		out := expandEvents([]modernEvent{{ScheduleEvent: base}}, testRange)
		require.Len(t, out, 1)
		assert.Equal(t, base, out[0])
	})
}
