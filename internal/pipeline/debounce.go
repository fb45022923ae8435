package pipeline

import (
	"context"
	"sync"
	"time"
)

// Debouncer remembers when each path was first seen and suppresses repeats
// until the entry is older than timeout.
type Debouncer struct {
	mu      sync.Mutex
	timeout time.Duration
	history map[string]time.Time
	now     func() time.Time
}

func NewDebouncer(timeout time.Duration) *Debouncer {
	return &Debouncer{
		timeout: timeout,
		history: make(map[string]time.Time),
		now:     time.Now,
	}
}

// ShouldHandle is true the first time path is seen inside the window.
// An entry past its timeout never suppresses, swept or not.
func (d *Debouncer) ShouldHandle(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if seen, ok := d.history[path]; ok && now.Sub(seen) < d.timeout {
		return false
	}

	d.history[path] = now
	return true
}

// Forget drops path so its next notification is handled.
func (d *Debouncer) Forget(path string) {
	d.mu.Lock()
	delete(d.history, path)
	d.mu.Unlock()
}

// Sweep evicts expired entries and returns how many were removed.
func (d *Debouncer) Sweep() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	removed := 0
	for path, seen := range d.history {
		if now.Sub(seen) >= d.timeout {
			delete(d.history, path)
			removed++
		}
	}

	return removed
}

func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.history)
}

// Run sweeps every interval until ctx is done.
func (d *Debouncer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Sweep()
		}
	}
}
