package timerange

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrInvalidRange is returned when a requested range has from after to.
// This is a caller error; the prior range is left untouched.
var ErrInvalidRange = errors.New("invalid range: from is after to")

// ErrUnsupportedZoom is returned when a requested zoom level is not in the
// active mode's allow-list. The prior range is left untouched.
var ErrUnsupportedZoom = errors.New("unsupported zoom for mode")

// Range is a visible window plus the zoom level that produced it.
// From <= To always holds for ranges produced by a Controller.
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
	Zoom Zoom      `json:"zoom"`
}

// Key returns a canonical string identity for the range. In-flight fetches
// are tagged with this key so late results for a superseded range can be
// recognized and discarded.
func (r Range) Key() string {
	return r.From.UTC().Format(time.RFC3339) + "|" + r.To.UTC().Format(time.RFC3339) + "|" + string(r.Zoom)
}

// Controller owns the current {from, to, zoom} triple for one operating
// mode and validates and normalizes every transition. Safe for concurrent
// use.
type Controller struct {
	mode      string
	loc       *time.Location
	weekStart time.Weekday
	allowed   map[Zoom]bool

	mu  sync.Mutex
	cur Range
}

// Options configures a Controller.
type Options struct {
	// Mode selects the built-in zoom allow-list ("contractor", "resident",
	// "portal") unless AllowedZooms overrides it.
	Mode string

	// AllowedZooms, if non-empty, replaces the mode's built-in allow-list.
	AllowedZooms []Zoom

	// InitialZoom, if set, overrides the mode's built-in initial zoom. It
	// must be in the allow-list.
	InitialZoom Zoom

	// Location is the display timezone used for snapping. Defaults to UTC.
	Location *time.Location

	// WeekStart controls week snapping. Defaults to Monday.
	WeekStart time.Weekday

	// Now anchors the initial window. Defaults to time.Now.
	Now time.Time
}

// NewController builds a controller with an initial default window anchored
// at opts.Now, snapped to the initial zoom.
func NewController(opts Options) (*Controller, error) {
	defAllowed, defInitial, ok := ZoomsForMode(opts.Mode)
	if !ok && len(opts.AllowedZooms) == 0 {
		return nil, fmt.Errorf("unknown mode %q and no explicit zoom allow-list", opts.Mode)
	}

	allowed := opts.AllowedZooms
	if len(allowed) == 0 {
		allowed = defAllowed
	}
	initial := opts.InitialZoom
	if initial == "" {
		initial = defInitial
	}
	if initial == "" {
		initial = allowed[0]
	}

	allowedSet := make(map[Zoom]bool, len(allowed))
	for _, z := range allowed {
		if !z.Valid() {
			return nil, fmt.Errorf("unknown zoom level %q in allow-list", z)
		}
		allowedSet[z] = true
	}
	if !allowedSet[initial] {
		return nil, fmt.Errorf("initial zoom %q is not in the allow-list", initial)
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	weekStart := opts.WeekStart
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	c := &Controller{
		mode:      opts.Mode,
		loc:       loc,
		weekStart: weekStart,
		allowed:   allowedSet,
	}
	from := Snap(now, initial, loc, weekStart)
	c.cur = Range{From: from, To: WindowEnd(from, initial), Zoom: initial}
	return c, nil
}

// Mode returns the operating mode this controller was built for.
func (c *Controller) Mode() string { return c.mode }

// Range returns the current range.
func (c *Controller) Range() Range {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

// SetRange validates and stores a new range. from and to are snapped to
// the zoom's granularity; to is additionally kept at or after from even
// when snapping would collapse the window.
func (c *Controller) SetRange(from, to time.Time, zoom Zoom) (Range, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.allowed[zoom] {
		return c.cur, fmt.Errorf("%w: zoom %q, mode %q", ErrUnsupportedZoom, zoom, c.mode)
	}
	if from.After(to) {
		return c.cur, fmt.Errorf("%w: from=%s to=%s",
			ErrInvalidRange, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	sf := Snap(from, zoom, c.loc, c.weekStart)
	st := Snap(to, zoom, c.loc, c.weekStart)
	if st.Before(sf) {
		// Snapping floors both ends; a sub-granularity window can only
		// collapse to equal ends, never invert. Guard anyway.
		st = sf
	}

	c.cur = Range{From: sf, To: st, Zoom: zoom}
	return c.cur, nil
}

// SetZoom switches the zoom level without an explicit window. The new
// window is the zoom's default length centered on the previous range's
// start, then snapped.
func (c *Controller) SetZoom(zoom Zoom) (Range, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.allowed[zoom] {
		return c.cur, fmt.Errorf("%w: zoom %q, mode %q", ErrUnsupportedZoom, zoom, c.mode)
	}

	center := c.cur.From
	half := WindowEnd(center, zoom).Sub(center) / 2
	from := Snap(center.Add(-half), zoom, c.loc, c.weekStart)
	c.cur = Range{From: from, To: WindowEnd(from, zoom), Zoom: zoom}
	return c.cur, nil
}
