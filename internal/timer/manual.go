package timer

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Scheduler whose clock only moves when Advance is called.
// Actions run synchronously on the goroutine calling Advance.
type Manual struct {
	mu      sync.Mutex
	elapsed time.Duration
	seq     int
	pending map[int]manualEntry
}

type manualEntry struct {
	at  time.Duration
	seq int
	fn  func()
}

// NewManual returns an empty manual scheduler.
func NewManual() *Manual {
	return &Manual{pending: make(map[int]manualEntry)}
}

// After registers fn to run once the manual clock passes d from now.
func (m *Manual) After(d time.Duration, fn func()) (Cancel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := m.seq
	m.pending[id] = manualEntry{at: m.elapsed + d, seq: id, fn: fn}
	return func() {
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()
	}, nil
}

// Advance moves the clock by d and runs every action that became due, in
// deadline order. It returns the number of actions run.
func (m *Manual) Advance(d time.Duration) int {
	m.mu.Lock()
	m.elapsed += d
	var due []manualEntry
	for id, e := range m.pending {
		if e.at <= m.elapsed {
			due = append(due, e)
			delete(m.pending, id)
		}
	}
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at != due[j].at {
			return due[i].at < due[j].at
		}
		return due[i].seq < due[j].seq
	})
	for _, e := range due {
		e.fn()
	}
	return len(due)
}

// Pending reports how many actions are still scheduled.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
