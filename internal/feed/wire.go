package feed

import (
	"time"

	"opsboard/internal/model"
)

// wireMeta is the meta block both schedule endpoints return.
type wireMeta struct {
	Count     int    `json:"count"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// modernEvent is a canonical-shape event as served by the modern endpoint,
// plus the optional recurrence rule the canonical model does not carry.
type modernEvent struct {
	model.ScheduleEvent

	// Recurrence is an optional RRULE string. When present the event is a
	// template: it is expanded into concrete occurrences within the
	// requested range and the template itself is not emitted.
	Recurrence string `json:"recurrence,omitempty"`
}

// modernPayload is the modern endpoint's response shape.
type modernPayload struct {
	Resources []model.Resource `json:"resources"`
	Events    []modernEvent    `json:"events"`
	Meta      wireMeta         `json:"meta"`
}

// Run is a legacy run record. StartAt/EndAt are optional on the wire.
type Run struct {
	RunID   string     `json:"runId"`
	Title   string     `json:"title"`
	Status  string     `json:"status"`
	StartAt *time.Time `json:"startAt,omitempty"`
	EndAt   *time.Time `json:"endAt,omitempty"`
}

// legacyPayload is the legacy endpoint's response shape.
type legacyPayload struct {
	Runs   []Run `json:"runs"`
	Portal *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"portal,omitempty"`
	Meta wireMeta `json:"meta"`
}
