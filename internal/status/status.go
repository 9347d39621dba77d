// Package status derives evidence and feasibility badge tiers from raw
// event metadata. All functions are pure.
package status

import "opsboard/internal/model"

// EvidenceTier describes how much completion proof has been attached to a
// run, ordered none < partial < complete < confirmed.
type EvidenceTier string

const (
	EvidenceNone      EvidenceTier = "none"
	EvidencePartial   EvidenceTier = "partial"
	EvidenceComplete  EvidenceTier = "complete"
	EvidenceConfirmed EvidenceTier = "confirmed"
)

// FeasibilityTier describes whether a scheduled event is at risk, ordered
// ok < risky < blocked.
type FeasibilityTier string

const (
	FeasibilityOK      FeasibilityTier = "ok"
	FeasibilityRisky   FeasibilityTier = "risky"
	FeasibilityBlocked FeasibilityTier = "blocked"
)

var evidenceRank = map[EvidenceTier]int{
	EvidenceNone:      0,
	EvidencePartial:   1,
	EvidenceComplete:  2,
	EvidenceConfirmed: 3,
}

var feasibilityRank = map[FeasibilityTier]int{
	FeasibilityOK:      0,
	FeasibilityRisky:   1,
	FeasibilityBlocked: 2,
}

// Evidence maps a raw evidence status to its tier. Unknown or absent
// statuses default to none.
func Evidence(raw string) EvidenceTier {
	t := EvidenceTier(raw)
	if _, ok := evidenceRank[t]; ok {
		return t
	}
	return EvidenceNone
}

// Feasibility maps a raw feasibility status to its tier. Unknown or absent
// statuses default to ok.
func Feasibility(raw string) FeasibilityTier {
	t := FeasibilityTier(raw)
	if _, ok := feasibilityRank[t]; ok {
		return t
	}
	return FeasibilityOK
}

// Badge is the pair of derived tiers shown for an event or a rollup.
type Badge struct {
	Evidence    EvidenceTier    `json:"evidence"`
	Feasibility FeasibilityTier `json:"feasibility"`
}

// ForEvent derives the badge for a single event from its metadata bag.
func ForEvent(ev model.ScheduleEvent) Badge {
	b := Badge{Evidence: EvidenceNone, Feasibility: FeasibilityOK}
	if ev.Meta != nil {
		b.Evidence = Evidence(ev.Meta.EvidenceStatus)
		b.Feasibility = Feasibility(ev.Meta.FeasibilityStatus)
	}
	return b
}

// Aggregate rolls several events up into one worst-case badge: the lowest
// evidence tier and the highest feasibility severity win. An empty input
// yields the defaults (none, ok).
func Aggregate(events []model.ScheduleEvent) Badge {
	out := Badge{Evidence: EvidenceNone, Feasibility: FeasibilityOK}
	for i, ev := range events {
		b := ForEvent(ev)
		if i == 0 || evidenceRank[b.Evidence] < evidenceRank[out.Evidence] {
			out.Evidence = b.Evidence
		}
		if feasibilityRank[b.Feasibility] > feasibilityRank[out.Feasibility] {
			out.Feasibility = b.Feasibility
		}
	}
	return out
}
