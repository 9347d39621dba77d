package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType is the canonical kind of a schedule event. Both backend feeds
// are normalized into this enumeration; nothing downstream branches on the
// raw wire status.
type EventType string

const (
	EventReservation EventType = "reservation"
	EventHold        EventType = "hold"
	EventBuffer      EventType = "buffer"
	EventReserved    EventType = "reserved"
)

// DefaultEventDuration is applied when a source record carries a start
// time but no end time.
const DefaultEventDuration = time.Hour

// Resource is a schedulable entity displayed as a timeline track
// (a crew, a vehicle, a service run).
type Resource struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Status   string `json:"status,omitempty"`
}

// EventMeta is the optional metadata bag attached to an event. RunID links
// the event back to the run that produced it; the two status fields feed
// badge derivation.
type EventMeta struct {
	RunID             string
	EvidenceStatus    string
	FeasibilityStatus string
}

type metaStatus struct {
	Status string `json:"status,omitempty"`
}

// wireEventMeta is the on-the-wire shape of EventMeta. The backends nest
// the status fields under evidence/feasibility objects; some older feeds
// flatten them into single keys, so decoding accepts both.
type wireEventMeta struct {
	RunID       string      `json:"runId,omitempty"`
	Evidence    *metaStatus `json:"evidence,omitempty"`
	Feasibility *metaStatus `json:"feasibility,omitempty"`

	EvidenceStatus    string `json:"evidenceStatus,omitempty"`
	FeasibilityStatus string `json:"feasibilityStatus,omitempty"`
}

func (m *EventMeta) UnmarshalJSON(data []byte) error {
	var w wireEventMeta
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.RunID = w.RunID
	m.EvidenceStatus = w.EvidenceStatus
	if w.Evidence != nil && w.Evidence.Status != "" {
		m.EvidenceStatus = w.Evidence.Status
	}
	m.FeasibilityStatus = w.FeasibilityStatus
	if w.Feasibility != nil && w.Feasibility.Status != "" {
		m.FeasibilityStatus = w.Feasibility.Status
	}
	return nil
}

// MarshalJSON always emits the nested shape.
func (m EventMeta) MarshalJSON() ([]byte, error) {
	w := wireEventMeta{RunID: m.RunID}
	if m.EvidenceStatus != "" {
		w.Evidence = &metaStatus{Status: m.EvidenceStatus}
	}
	if m.FeasibilityStatus != "" {
		w.Feasibility = &metaStatus{Status: m.FeasibilityStatus}
	}
	return json.Marshal(w)
}

// ScheduleEvent is an interval on a resource's timeline.
//
// IDs are stable and deterministic for a given source record: re-fetching
// identical data must produce identical IDs so that consumers can diff
// snapshots and the ensure-thread action stays idempotent.
type ScheduleEvent struct {
	ID            string     `json:"id"`
	ResourceID    string     `json:"resourceId"`
	Type          EventType  `json:"eventType"`
	StartAt       time.Time  `json:"startAt"`
	EndAt         time.Time  `json:"endAt"`
	Status        string     `json:"status,omitempty"`
	Title         string     `json:"title,omitempty"`
	IsReservation bool       `json:"isReservation"`
	Meta          *EventMeta `json:"meta,omitempty"`
}

// Normalize fills derivable fields: a missing EndAt becomes
// StartAt + DefaultEventDuration, and IsReservation tracks the event type.
func (e *ScheduleEvent) Normalize() {
	if e.EndAt.IsZero() && !e.StartAt.IsZero() {
		e.EndAt = e.StartAt.Add(DefaultEventDuration)
	}
	e.IsReservation = e.Type == EventReservation
}

// Validate checks the per-event invariants.
func (e *ScheduleEvent) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event has empty id")
	}
	if e.StartAt.IsZero() {
		return fmt.Errorf("event %s has no start time", e.ID)
	}
	if e.EndAt.Before(e.StartAt) {
		return fmt.Errorf("event %s ends %s before it starts %s",
			e.ID, e.EndAt.Format(time.RFC3339), e.StartAt.Format(time.RFC3339))
	}
	return nil
}

// Snapshot is one fully-normalized result of a range fetch. Snapshots are
// immutable once published: a new fetch replaces the whole snapshot, it
// never patches the previous one.
type Snapshot struct {
	Resources []Resource      `json:"resources"`
	Events    []ScheduleEvent `json:"events"`

	// Source records which feed produced this snapshot ("modern" or
	// "legacy").
	Source string `json:"source"`

	FetchedAt time.Time `json:"fetchedAt"`
}

// ResourceIndex returns a lookup of resources by ID.
func (s *Snapshot) ResourceIndex() map[string]Resource {
	idx := make(map[string]Resource, len(s.Resources))
	for _, r := range s.Resources {
		idx[r.ID] = r
	}
	return idx
}

// Validate normalizes and checks every event, and rejects duplicate IDs
// within the snapshot. Events referencing a missing resource are tolerated
// here; grouping buckets them under "other" later.
func (s *Snapshot) Validate() error {
	seenRes := make(map[string]bool, len(s.Resources))
	for _, r := range s.Resources {
		if r.ID == "" {
			return fmt.Errorf("resource has empty id")
		}
		if seenRes[r.ID] {
			return fmt.Errorf("duplicate resource id %q", r.ID)
		}
		seenRes[r.ID] = true
	}

	seenEv := make(map[string]bool, len(s.Events))
	for i := range s.Events {
		ev := &s.Events[i]
		ev.Normalize()
		if err := ev.Validate(); err != nil {
			return err
		}
		if seenEv[ev.ID] {
			return fmt.Errorf("duplicate event id %q", ev.ID)
		}
		seenEv[ev.ID] = true
	}
	return nil
}
