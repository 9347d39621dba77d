package grouping

import "opsboard/internal/model"

// OtherCategory is the catch-all bucket for resources without a category
// and for orphaned events whose resource reference is missing from the
// snapshot.
const OtherCategory = "other"

// Bucket is one ordered category group.
type Bucket struct {
	Category  string           `json:"category"`
	Resources []model.Resource `json:"resources"`
}

// ByCategory groups resources into ordered buckets. Every resource lands
// in exactly one bucket; resources without a category land in "other".
//
// Ordering is stable under repeated calls with identical input: buckets
// appear in first-seen category order with "other" always last, and each
// bucket preserves input order.
func ByCategory(resources []model.Resource) []Bucket {
	byCat := make(map[string]*Bucket)
	order := make([]string, 0)

	for _, r := range resources {
		cat := r.Category
		if cat == "" {
			cat = OtherCategory
		}
		b, ok := byCat[cat]
		if !ok {
			b = &Bucket{Category: cat}
			byCat[cat] = b
			if cat != OtherCategory {
				order = append(order, cat)
			}
		}
		b.Resources = append(b.Resources, r)
	}

	out := make([]Bucket, 0, len(byCat))
	for _, cat := range order {
		out = append(out, *byCat[cat])
	}
	if other, ok := byCat[OtherCategory]; ok {
		out = append(out, *other)
	}
	return out
}

// OrphanEvents returns the events whose resource reference is missing from
// the snapshot. Orphans are tolerated, not dropped: the board displays
// them under the "other" bucket.
func OrphanEvents(snap *model.Snapshot) []model.ScheduleEvent {
	if snap == nil {
		return nil
	}
	idx := snap.ResourceIndex()
	var orphans []model.ScheduleEvent
	for _, ev := range snap.Events {
		if _, ok := idx[ev.ResourceID]; !ok {
			orphans = append(orphans, ev)
		}
	}
	return orphans
}
