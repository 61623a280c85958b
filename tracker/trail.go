// Package tracker keeps the live picture: one tracked point per station
// or object, each with a bounded, continuously expiring position history.
package tracker

import (
	"time"

	"github.com/PolaricServer/aprsd-go/aprs"
)

// TrailItem is one historical position.  Items in a trail are ordered by
// decreasing timestamp.
type TrailItem struct {
	Time   time.Time
	Pos    aprs.Position
	Speed  int
	Course int
	Path   string
}

// Trail defaults.  Subclasses of TrackerPoint override them through
// NewTrail.
const (
	DefaultMaxAge   = 30 * time.Minute
	DefaultMaxPause = 10 * time.Minute
)

// Trail is the decimated position history of one tracked point, newest
// first.  It is not internally synchronized; the owning point's lock
// serializes all access.
type Trail struct {
	items    []TrailItem
	maxAge   time.Duration
	maxPause time.Duration
	expired  bool
	color    int
}

func NewTrail(maxAge, maxPause time.Duration) *Trail {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if maxPause <= 0 {
		maxPause = DefaultMaxPause
	}
	return &Trail{maxAge: maxAge, maxPause: maxPause}
}

func (t *Trail) Len() int { return len(t.items) }

// Color is the palette index assigned when the first segment was added.
func (t *Trail) Color() int { return t.color }

// ItemsExpired reports whether the whole trail was dropped because the
// point paused too long.
func (t *Trail) ItemsExpired() bool { return t.expired }

func (t *Trail) Newest() (TrailItem, bool) {
	if len(t.items) == 0 {
		return TrailItem{}, false
	}
	return t.items[0], true
}

func (t *Trail) Oldest() (TrailItem, bool) {
	if len(t.items) == 0 {
		return TrailItem{}, false
	}
	return t.items[len(t.items)-1], true
}

// Items returns a copy, newest first.
func (t *Trail) Items() []TrailItem {
	return append([]TrailItem(nil), t.items...)
}

// Add prepends an item assumed newer than everything present.
func (t *Trail) Add(it TrailItem) {
	t.items = append([]TrailItem{it}, t.items...)
	t.expired = false
}

// Insert places an out-of-order item at its timestamp position, scanning
// from the newest end.
func (t *Trail) Insert(it TrailItem) {
	i := 0
	for i < len(t.items) && t.items[i].Time.After(it.Time) {
		i++
	}
	t.items = append(t.items, TrailItem{})
	copy(t.items[i+1:], t.items[i:])
	t.items[i] = it
	t.expired = false
}

func (t *Trail) Clear() {
	t.items = nil
}

// CleanUp enforces the trail bounds: when the newest item is older than
// maxPause the whole trail is dropped and marked expired; otherwise items
// older than maxAge are trimmed from the tail.  It reports whether
// anything was removed.
func (t *Trail) CleanUp(now time.Time) bool {
	if len(t.items) == 0 {
		return false
	}
	if now.Sub(t.items[0].Time) > t.maxPause {
		t.items = nil
		t.expired = true
		return true
	}
	removed := false
	for len(t.items) > 0 && now.Sub(t.items[len(t.items)-1].Time) > t.maxAge {
		t.items = t.items[:len(t.items)-1]
		removed = true
	}
	return removed
}
