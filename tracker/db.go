package tracker

import (
	"strings"
	"sync"
	"time"

	"github.com/PolaricServer/aprsd-go/aprs"
)

// Database is the station-db collaborator the core talks to.  Points are
// created on first reference, mutated on every report, and logically
// deleted by expiry until garbage collection removes them.
type Database interface {
	GetItem(id string) Point
	UpdateItem(p Point, prev aprs.Position)
	GetRoutes() *RouteTable
	GetOwnObjects() []string
}

// InMemoryDB is the in-process Database.  It also serves as the
// PointResolver for f/ filters.
type InMemoryDB struct {
	mu     sync.RWMutex
	points map[string]Point
	own    map[string]bool
	shared *Shared
}

func NewInMemoryDB(shared *Shared) *InMemoryDB {
	if shared == nil {
		shared = &Shared{}
	}
	if shared.Tags == nil {
		shared.Tags = NewTagRegistry()
	}
	if shared.Routes == nil {
		shared.Routes = NewRouteTable()
	}
	return &InMemoryDB{
		points: map[string]Point{},
		own:    map[string]bool{},
		shared: shared,
	}
}

func (d *InMemoryDB) Shared() *Shared { return d.shared }

func (d *InMemoryDB) GetItem(id string) Point {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.points[id]
}

// GetStation returns the station for a callsign, creating it on first
// reference.
func (d *InMemoryDB) GetStation(call string) *Station {
	call = strings.ToUpper(call)
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.points[call]; ok {
		if s, ok := p.(*Station); ok {
			return s
		}
	}
	s := NewStation(call, d.shared)
	d.points[call] = s
	return s
}

// GetObject returns the object with identity name@owner, creating it on
// first reference.
func (d *InMemoryDB) GetObject(name, owner string) *AprsObject {
	id := name + "@" + strings.ToUpper(owner)
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.points[id]; ok {
		if o, ok := p.(*AprsObject); ok {
			return o
		}
	}
	o := NewObject(name, strings.ToUpper(owner), d.shared)
	d.points[id] = o
	return o
}

// UpdateItem is the post-update hook.  The in-memory implementation keeps
// no spatial index, so there is nothing to reindex; it only forwards the
// change notification.
func (d *InMemoryDB) UpdateItem(p Point, prev aprs.Position) {
	if d.shared.Notify != nil {
		d.shared.Notify(p.Ident())
	}
}

func (d *InMemoryDB) GetRoutes() *RouteTable { return d.shared.Routes }

// SetOwnObject exempts an object of ours from expiry.
func (d *InMemoryDB) SetOwnObject(id string) {
	d.mu.Lock()
	d.own[id] = true
	d.mu.Unlock()
}

func (d *InMemoryDB) GetOwnObjects() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.own))
	for id := range d.own {
		out = append(out, id)
	}
	return out
}

// PointPosition satisfies filter.PointResolver.
func (d *InMemoryDB) PointPosition(ident string) (aprs.Position, bool) {
	p := d.GetItem(strings.ToUpper(ident))
	if p == nil {
		return aprs.Position{}, false
	}
	return p.Position()
}

// Count returns the number of live points.
func (d *InMemoryDB) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.points)
}

// CleanUp trims every trail and garbage-collects expired points.  Our own
// objects are exempt from removal.
func (d *InMemoryDB) CleanUp(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, p := range d.points {
		p.CleanUp(now)
		if p.Expired() && !d.own[id] {
			delete(d.points, id)
		}
	}
}

// Run drives periodic cleanup until the context tells it to stop.
func (d *InMemoryDB) Run(done <-chan struct{}, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case now := <-t.C:
			d.CleanUp(now)
		}
	}
}
