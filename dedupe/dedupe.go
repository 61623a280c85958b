// Package dedupe rejects recently seen packets so they are not relayed
// twice.  Duplicates are keyed on source, destination and report but never
// the digipeater path, which changes on every hop.
package dedupe

import (
	"hash/fnv"
	"sync"

	"github.com/PolaricServer/aprsd-go/aprs"
)

// DefaultCapacity is the number of distinct tokens a generation holds
// before it is rotated out.
const DefaultCapacity = 5000

// Filter is a two-generation approximate membership filter.  Tokens are
// stored as 64-bit hashes; an unrelated token can collide and be dropped,
// with a very small probability.  There is no time-based expiry; rotation
// on capacity is the only reclamation.
//
// Contains answers true only when the token is present in both the current
// and the previous generation.  This errs toward false negatives right
// after a rotation rather than false positives; callers must tolerate the
// occasional re-delivered packet.
type Filter struct {
	mu   sync.Mutex
	cap  int
	cur  map[uint64]struct{}
	prev map[uint64]struct{}
}

func New(capacity int) *Filter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Filter{
		cap:  capacity,
		cur:  make(map[uint64]struct{}, capacity),
		prev: make(map[uint64]struct{}, capacity),
	}
}

// Key derives the duplicate token for a packet.
func Key(p *aprs.Packet) string {
	return p.From + ">" + p.To + ":" + p.Report
}

// Add records a token.  When the current generation is full it becomes the
// previous generation and a fresh one takes its place.
func (f *Filter) Add(token string) {
	h := hashToken(token)

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cur[h]; ok {
		return
	}
	if len(f.cur) >= f.cap {
		f.prev = f.cur
		f.cur = make(map[uint64]struct{}, f.cap)
	}
	f.cur[h] = struct{}{}
}

// Contains reports whether the token is present in both generations.
func (f *Filter) Contains(token string) bool {
	h := hashToken(token)

	f.mu.Lock()
	defer f.mu.Unlock()
	_, inCur := f.cur[h]
	_, inPrev := f.prev[h]
	return inCur && inPrev
}

func hashToken(token string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(token))
	return h.Sum64()
}
