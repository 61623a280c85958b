package tracker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/PolaricServer/aprsd-go/aprs"
)

// Movement and timing constants for trail decimation.
const (
	minDistMeters    = 10.0            // minimum movement to keep a trail point
	downsampleWindow = 5 * time.Second // updates closer than this are dropped
	futureSkew       = 10 * time.Second
	nonMovingWindow  = 4 * time.Minute // changing flag holds this long
	infraResetAfter  = 7 * 24 * time.Hour

	stationExpire = 2 * time.Hour
	objectExpire  = 12 * time.Hour
)

// ChangeFunc receives a change notification for a point.  It is called
// synchronously from the update path and must not call back into the
// point.
type ChangeFunc func(ident string)

// Shared is the state every point in a database uses: the tag counters,
// the route graph, the change notifier and the trail color allocator.
// It is dependency-passed at construction, never ambient.
type Shared struct {
	Tags   *TagRegistry
	Routes *RouteTable
	Notify ChangeFunc

	colorSeq atomic.Int32
}

// trailPalette is the number of distinct trail colors the map layer
// renders; allocation just cycles.
const trailPalette = 12

func (s *Shared) nextColor() int {
	return int(s.colorSeq.Add(1)-1) % trailPalette
}

// Update is one position report applied to a point.
type Update struct {
	Time     time.Time
	Pos      aprs.Position
	Speed    int // knots, aprs.Unknown if absent
	Course   int
	Altitude int
	Path     string
	Table    byte
	Symbol   byte
	Descr    string
}

// TrackerPoint is the common state of everything shown on the map.  All
// mutation is serialized by the per-point lock; points are spatially
// independent so there is no cross-point contention.
type TrackerPoint struct {
	mu     sync.Mutex
	ident  string
	shared *Shared

	pos    aprs.Position
	hasPos bool
	table  byte
	symbol byte
	course int
	speed  int
	alt    int
	path   string

	descr string
	alias string
	icon  string
	tags  map[string]struct{}

	trail       *Trail
	updated     time.Time
	lastChanged time.Time
	changing    bool
	expired     bool
	expireAfter time.Duration
}

func newTrackerPoint(ident string, shared *Shared, expireAfter time.Duration) TrackerPoint {
	return TrackerPoint{
		ident:       ident,
		shared:      shared,
		course:      aprs.Unknown,
		speed:       aprs.Unknown,
		alt:         aprs.Unknown,
		tags:        map[string]struct{}{},
		trail:       NewTrail(0, 0),
		expireAfter: expireAfter,
	}
}

func (p *TrackerPoint) Ident() string { return p.ident }

func (p *TrackerPoint) Position() (aprs.Position, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos, p.hasPos
}

func (p *TrackerPoint) Updated() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updated
}

func (p *TrackerPoint) Symbol() (table, symbol byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.table, p.symbol
}

func (p *TrackerPoint) Description() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.descr
}

func (p *TrackerPoint) SetDescription(d string) {
	p.mu.Lock()
	p.descr = d
	p.mu.Unlock()
}

func (p *TrackerPoint) SetAlias(a string) {
	p.mu.Lock()
	p.alias = a
	p.mu.Unlock()
}

func (p *TrackerPoint) Alias() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alias
}

func (p *TrackerPoint) SetIcon(icon string) {
	p.mu.Lock()
	p.icon = icon
	p.mu.Unlock()
}

// AddTag tags the point and bumps the shared usage counter.
func (p *TrackerPoint) AddTag(tag string) {
	p.mu.Lock()
	_, had := p.tags[tag]
	p.tags[tag] = struct{}{}
	p.mu.Unlock()
	if !had {
		p.shared.Tags.inc(tag)
	}
}

func (p *TrackerPoint) RemoveTag(tag string) {
	p.mu.Lock()
	_, had := p.tags[tag]
	delete(p.tags, tag)
	p.mu.Unlock()
	if had {
		p.shared.Tags.dec(tag)
	}
}

func (p *TrackerPoint) HasTag(tag string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.tags[tag]
	return ok
}

// Touch stamps the point as heard without moving it.  Reports that carry
// no position still reset the expiry clock.
func (p *TrackerPoint) Touch(t time.Time) {
	p.mu.Lock()
	if t.After(p.updated) {
		p.updated = t
	}
	p.mu.Unlock()
}

// Trail returns a copy of the trail items, newest first.
func (p *TrackerPoint) Trail() []TrailItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.trail.Items()
}

func (p *TrackerPoint) TrailColor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.trail.Color()
}

// Apply processes one position report.  It returns the previous position,
// for the owning database's spatial bookkeeping.
func (p *TrackerPoint) Apply(u Update) (prev aprs.Position) {
	p.mu.Lock()
	prev = p.pos
	if !p.saveToTrail(u) {
		p.mu.Unlock()
		return prev
	}
	p.pos = u.Pos
	p.hasPos = true
	p.updated = u.Time
	p.speed = u.Speed
	p.course = u.Course
	if u.Altitude != aprs.Unknown {
		p.alt = u.Altitude
	}
	p.path = u.Path
	if u.Table != 0 {
		p.table, p.symbol = u.Table, u.Symbol
	}
	if u.Descr != "" {
		p.descr = u.Descr
	}
	p.mu.Unlock()
	return prev
}

// saveToTrail decides what the report means for the history.  It returns
// whether the current position should move.
//
// The rules: reports from the future are dropped; the first report is a
// baseline and always accepted; reports within the downsample window of
// the last one are dropped; reports older than the current position are
// backfilled into the trail without moving the point; otherwise the
// previous position is pushed into the trail when the point moved far
// enough.  The trail records where the point was, not where it is.
func (p *TrackerPoint) saveToTrail(u Update) bool {
	if u.Time.After(time.Now().Add(futureSkew)) {
		return false
	}
	if !p.hasPos {
		// No baseline to decimate against.
		return true
	}
	dt := u.Time.Sub(p.updated)
	if dt > -downsampleWindow && dt < downsampleWindow {
		return false
	}
	if dt < 0 {
		p.trail.Insert(TrailItem{Time: u.Time, Pos: u.Pos, Speed: u.Speed, Course: u.Course, Path: u.Path})
		p.setChangingLocked()
		return false
	}
	if p.pos.Distance(u.Pos) >= minDistMeters {
		if p.trail.Len() == 0 {
			p.trail.color = p.shared.nextColor()
		}
		p.trail.Add(TrailItem{Time: p.updated, Pos: p.pos, Speed: p.speed, Course: p.course, Path: p.path})
		if oldest, ok := p.trail.Oldest(); ok && p.shared.Routes != nil {
			p.shared.Routes.RemoveOldEdges(p.ident, oldest.Time)
		}
		p.setChangingLocked()
	}
	return true
}

func (p *TrackerPoint) setChangingLocked() {
	p.changing = true
	p.lastChanged = time.Now()
	if p.shared.Notify != nil {
		p.shared.Notify(p.ident)
	}
}

// IsChanging re-evaluates the moving state: once the non-moving window
// has elapsed since the last change the flag drops, with one final
// notification so subscribers see the point settle.
func (p *TrackerPoint) IsChanging() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.changing && time.Since(p.lastChanged) > nonMovingWindow {
		p.changing = false
		if p.shared.Notify != nil {
			p.shared.Notify(p.ident)
		}
	}
	return p.changing
}

// CleanUp enforces the trail bounds; the owning database calls it
// periodically.
func (p *TrackerPoint) CleanUp(now time.Time) {
	p.mu.Lock()
	if p.trail.CleanUp(now) {
		p.setChangingLocked()
	}
	p.mu.Unlock()
}

// Expired reports whether the point has gone silent for longer than its
// expiry period.  The flag is monotonic: once a point has expired it
// stays expired until the database garbage-collects it.
func (p *TrackerPoint) Expired() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.expiredLocked()
}

func (p *TrackerPoint) expiredLocked() bool {
	if p.expired {
		return true
	}
	if !p.updated.IsZero() && time.Since(p.updated) > p.expireAfter {
		p.expired = true
	}
	return p.expired
}

func (p *TrackerPoint) expire() {
	p.mu.Lock()
	p.expired = true
	p.mu.Unlock()
}

// Visible is the inverse of Expired.
func (p *TrackerPoint) Visible() bool { return !p.Expired() }

// Point is a tracked entity: a station heard on the air or an object
// someone placed.
type Point interface {
	Ident() string
	Position() (aprs.Position, bool)
	Updated() time.Time
	Expired() bool
	Visible() bool
	Apply(u Update) aprs.Position
	CleanUp(now time.Time)
	IsChanging() bool
}

// Station is a point with its own transmitter.  Its identity is the
// callsign.  Infrastructure roles (igate, digipeater) are sticky but
// reset when not reconfirmed for a week.
type Station struct {
	TrackerPoint

	igate     bool
	wideDigi  bool
	infraSeen time.Time
}

func NewStation(call string, shared *Shared) *Station {
	return &Station{TrackerPoint: newTrackerPoint(call, shared, stationExpire)}
}

// SetInfra marks the station as infrastructure after it was seen acting
// as an igate or digipeater.
func (s *Station) SetInfra(igate, wideDigi bool) {
	s.mu.Lock()
	s.igate = s.igate || igate
	s.wideDigi = s.wideDigi || wideDigi
	s.infraSeen = time.Now()
	s.mu.Unlock()
}

// Infra returns the infrastructure roles, dropping them when the last
// confirmation is older than a week.
func (s *Station) Infra() (igate, wideDigi bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.infraSeen.IsZero() && time.Since(s.infraSeen) > infraResetAfter {
		s.igate = false
		s.wideDigi = false
	}
	return s.igate, s.wideDigi
}

// AprsObject is a point placed and owned by another station.  Its
// identity is "name@owner".  A killed object is expired immediately.
type AprsObject struct {
	TrackerPoint
	owner string
}

func NewObject(name, owner string, shared *Shared) *AprsObject {
	return &AprsObject{
		TrackerPoint: newTrackerPoint(name+"@"+owner, shared, objectExpire),
		owner:        owner,
	}
}

func (o *AprsObject) Owner() string { return o.owner }

// Kill expires the object in response to a kill report from its owner.
func (o *AprsObject) Kill() { o.expire() }
