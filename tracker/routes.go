package tracker

import (
	"sync"
	"time"
)

type edge struct {
	From, To string
}

// RouteTable is the traffic-flow graph: one edge per digipeater hop seen,
// stamped with the time it was last observed.  Infrastructure detection
// reads it; trail pruning removes edges older than a point's trail.
type RouteTable struct {
	mu    sync.Mutex
	edges map[edge]time.Time
}

func NewRouteTable() *RouteTable {
	return &RouteTable{edges: map[edge]time.Time{}}
}

// AddEdge records that traffic flowed from one station to another.
func (r *RouteTable) AddEdge(from, to string, at time.Time) {
	if from == "" || to == "" || from == to {
		return
	}
	r.mu.Lock()
	if prev, ok := r.edges[edge{from, to}]; !ok || at.After(prev) {
		r.edges[edge{from, to}] = at
	}
	r.mu.Unlock()
}

// RemoveOldEdges drops edges touching node that were last seen before the
// cutoff, typically the oldest timestamp remaining in the node's trail.
func (r *RouteTable) RemoveOldEdges(node string, before time.Time) {
	r.mu.Lock()
	for e, at := range r.edges {
		if (e.From == node || e.To == node) && at.Before(before) {
			delete(r.edges, e)
		}
	}
	r.mu.Unlock()
}

// Neighbors returns the stations node has direct edges to or from.
func (r *RouteTable) Neighbors(node string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	for e := range r.edges {
		if e.From == node {
			seen[e.To] = true
		}
		if e.To == node {
			seen[e.From] = true
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	return out
}

func (r *RouteTable) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.edges)
}
