package transfer

import (
	"sort"
	"sync"
	"time"

	"github.com/nclack/mirror/internal/model"
)

// Tracker is the set of source paths whose transfer started but has not been
// verified and deleted yet.
type Tracker struct {
	mu    sync.RWMutex
	paths map[string]time.Time
}

func NewTracker() *Tracker {
	return &Tracker{paths: make(map[string]time.Time)}
}

// Add marks path as in flight. A path already present keeps its first start time.
func (t *Tracker) Add(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.paths[path]; !ok {
		t.paths[path] = time.Now()
	}
}

func (t *Tracker) Remove(path string) {
	t.mu.Lock()
	delete(t.paths, path)
	t.mu.Unlock()
}

func (t *Tracker) Has(path string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.paths[path]
	return ok
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.paths)
}

func (t *Tracker) Paths() []string {
	t.mu.RLock()
	paths := make([]string, 0, len(t.paths))
	for p := range t.paths {
		paths = append(paths, p)
	}
	t.mu.RUnlock()

	sort.Strings(paths)
	return paths
}

func (t *Tracker) Snapshot() []model.OutstandingEntry {
	t.mu.RLock()
	entries := make([]model.OutstandingEntry, 0, len(t.paths))
	for p, started := range t.paths {
		entries = append(entries, model.OutstandingEntry{Path: p, StartedAt: started})
	}
	t.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries
}
