// Package export serializes a schedule snapshot as an iCalendar feed so
// external calendar clients can subscribe to the board.
package export

import (
	"errors"

	ical "github.com/arran4/golang-ical"

	"opsboard/internal/model"
)

// ICS renders the snapshot's events as VEVENTs. Event ids are already
// stable and deterministic, so they double as UIDs: a client re-fetching
// the feed sees the same UID for the same source record.
func ICS(snap *model.Snapshot) (string, error) {
	if snap == nil {
		return "", errors.New("no snapshot loaded")
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//opsboard//schedule//EN")

	resources := snap.ResourceIndex()

	for _, ev := range snap.Events {
		ve := cal.AddEvent(ev.ID)
		ve.SetStartAt(ev.StartAt)
		ve.SetEndAt(ev.EndAt)

		summary := ev.Title
		if summary == "" {
			summary = string(ev.Type)
		}
		ve.SetSummary(summary)

		if res, ok := resources[ev.ResourceID]; ok && res.Name != "" {
			ve.SetDescription(res.Name)
		}
		ve.SetProperty(ical.ComponentPropertyCategories, string(ev.Type))
		if ev.Status != "" {
			ve.SetProperty(ical.ComponentPropertyStatus, ev.Status)
		}
	}

	return cal.Serialize(), nil
}
