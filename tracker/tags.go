package tracker

import "sync"

// TagRegistry counts how many points carry each tag.  It is shared by
// every point in a database and has its own lock, independent of any one
// point's lock, because many points mutate the same counters.
type TagRegistry struct {
	mu  sync.Mutex
	use map[string]int
}

func NewTagRegistry() *TagRegistry {
	return &TagRegistry{use: map[string]int{}}
}

func (t *TagRegistry) inc(tag string) {
	t.mu.Lock()
	t.use[tag]++
	t.mu.Unlock()
}

func (t *TagRegistry) dec(tag string) {
	t.mu.Lock()
	if t.use[tag] > 0 {
		t.use[tag]--
	}
	if t.use[tag] == 0 {
		delete(t.use, tag)
	}
	t.mu.Unlock()
}

// Count returns how many points currently carry the tag.
func (t *TagRegistry) Count(tag string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.use[tag]
}

// Tags returns every tag in use.
func (t *TagRegistry) Tags() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.use))
	for tag := range t.use {
		out = append(out, tag)
	}
	return out
}
