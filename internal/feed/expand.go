package feed

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "opsboard/internal/log"
	"opsboard/internal/model"
	"opsboard/internal/timerange"
)

const maxOccurrencesPerEvent = 1000

// expandEvents turns the modern endpoint's event list into concrete
// canonical events. Non-recurring events pass through unchanged. Events
// carrying a recurrence rule are templates: each occurrence inside the
// requested range becomes its own event with a stable derived id, and the
// template itself is not emitted.
func expandEvents(events []modernEvent, rng timerange.Range) []model.ScheduleEvent {
	out := make([]model.ScheduleEvent, 0, len(events))

	for _, ev := range events {
		if ev.Recurrence == "" {
			out = append(out, ev.ScheduleEvent)
			continue
		}
		out = append(out, expandRecurring(ev, rng)...)
	}

	return out
}

func expandRecurring(ev modernEvent, rng timerange.Range) []model.ScheduleEvent {
	r, err := rrule.StrToRRule(ev.Recurrence)
	if err != nil {
		// A bad rule should not sink the whole snapshot; keep the base
		// event so the user still sees something at the template's start.
		appLog.Error("failed to parse event recurrence", err, "event_id", ev.ID, "rrule", ev.Recurrence)
		return []model.ScheduleEvent{ev.ScheduleEvent}
	}
	r.DTStart(ev.StartAt)

	var set rrule.Set
	set.RRule(r)

	occTimes := set.Between(rng.From, rng.To, true)
	if len(occTimes) > maxOccurrencesPerEvent {
		appLog.Warn("recurrence expansion truncated",
			"event_id", ev.ID, "cap", maxOccurrencesPerEvent, "count", len(occTimes))
		occTimes = occTimes[:maxOccurrencesPerEvent]
	}

	// Preserve the template's duration on every occurrence.
	dur := ev.EndAt.Sub(ev.StartAt)
	if dur <= 0 {
		dur = model.DefaultEventDuration
	}

	out := make([]model.ScheduleEvent, 0, len(occTimes))
	for _, start := range occTimes {
		occ := ev.ScheduleEvent
		occ.ID = ev.ID + "@" + start.UTC().Format(time.RFC3339)
		occ.StartAt = start
		occ.EndAt = start.Add(dur)
		out = append(out, occ)
	}
	return out
}
