package timerange

import "time"

// Zoom is a named time resolution. Each zoom level fixes a default visible
// window length and a snapping granularity for range boundaries.
type Zoom string

const (
	Zoom15Min Zoom = "15m"
	ZoomHour  Zoom = "1h"
	ZoomDay   Zoom = "day"
	ZoomWeek  Zoom = "week"
	ZoomMonth Zoom = "month"
)

// zoomOrder lists all zoom levels from finest to coarsest.
var zoomOrder = []Zoom{Zoom15Min, ZoomHour, ZoomDay, ZoomWeek, ZoomMonth}

// Valid reports whether z is a known zoom level.
func (z Zoom) Valid() bool {
	for _, known := range zoomOrder {
		if z == known {
			return true
		}
	}
	return false
}

// Zooms returns all known zoom levels, finest first.
func Zooms() []Zoom {
	out := make([]Zoom, len(zoomOrder))
	copy(out, zoomOrder)
	return out
}

// ZoomsForMode returns the built-in allow-list and initial zoom for an
// operating mode. Config may override the allow-list; these are the
// defaults when it does not.
func ZoomsForMode(mode string) (allowed []Zoom, initial Zoom, ok bool) {
	switch mode {
	case "contractor":
		return []Zoom{Zoom15Min, ZoomHour, ZoomDay, ZoomWeek}, ZoomDay, true
	case "resident":
		return []Zoom{ZoomHour, ZoomDay, ZoomWeek}, ZoomDay, true
	case "portal":
		return []Zoom{ZoomDay, ZoomWeek, ZoomMonth}, ZoomWeek, true
	default:
		return nil, "", false
	}
}

// Snap floors t to the zoom's snapping granularity, evaluated in loc.
// weekStart only matters for ZoomWeek.
func Snap(t time.Time, z Zoom, loc *time.Location, weekStart time.Weekday) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)

	switch z {
	case Zoom15Min:
		return time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), lt.Minute()-lt.Minute()%15, 0, 0, loc)
	case ZoomHour:
		return time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), 0, 0, 0, loc)
	case ZoomDay:
		return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	case ZoomWeek:
		day := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
		back := (int(day.Weekday()) - int(weekStart) + 7) % 7
		return day.AddDate(0, 0, -back)
	case ZoomMonth:
		return time.Date(lt.Year(), lt.Month(), 1, 0, 0, 0, 0, loc)
	default:
		return lt
	}
}

// WindowEnd returns the end of the zoom's default visible window starting
// at from. Day-based windows use AddDate so DST transitions keep the
// boundary on a calendar day.
func WindowEnd(from time.Time, z Zoom) time.Time {
	switch z {
	case Zoom15Min:
		return from.Add(6 * time.Hour)
	case ZoomHour:
		return from.AddDate(0, 0, 1)
	case ZoomDay:
		return from.AddDate(0, 0, 7)
	case ZoomWeek:
		return from.AddDate(0, 0, 28)
	case ZoomMonth:
		return from.AddDate(0, 3, 0)
	default:
		return from
	}
}
