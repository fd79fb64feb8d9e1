// internal/store/memory.go
//
// In-memory implementation of the Store interface.
// Used in development/testing, or when durability is not required.
//
// Characteristics:
//   - Keeps a deep copy of the last saved snapshot.
//   - Concurrency-safe via RWMutex (concurrent loads allowed, saves exclusive).
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sync"

	"github.com/xuantien37/telegram-guess-number-bot/internal/player"
)

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu      sync.RWMutex              // guards records
	records map[string]*player.Record // keyed by Record.ID
	saves   int
}

// Memory is a Store that keeps snapshots in process.
type Memory interface {
	Store
	// Saves reports how many successful Save calls were made.
	Saves() int
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Memory {
	return &memory{records: make(map[string]*player.Record)}
}

// Load returns a copy of the last saved snapshot.
func (m *memory) Load(ctx context.Context) (map[string]*player.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneAll(m.records), nil
}

// Save replaces the snapshot with a copy of records.
func (m *memory) Save(ctx context.Context, records map[string]*player.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = cloneAll(records)
	m.saves++
	return nil
}

func (m *memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

func cloneAll(in map[string]*player.Record) map[string]*player.Record {
	out := make(map[string]*player.Record, len(in))
	for id, r := range in {
		out[id] = r.Clone()
	}
	return out
}
