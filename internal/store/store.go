// Package store persists player records.
//
// The engine treats persistence as an opaque key-value snapshot: Load once at
// start, Save the whole mapping after every mutating operation.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xuantien37/telegram-guess-number-bot/internal/player"
)

// Store defines the persistence interface for player records.
// Implementations may be backed by memory, SQLite, Postgres or object storage.
type Store interface {
	// Load returns every stored record keyed by player id.
	Load(ctx context.Context) (map[string]*player.Record, error)

	// Save persists the full mapping. Last write wins.
	Save(ctx context.Context, records map[string]*player.Record) error
}

// encodeRecord serialises one record for row-oriented backends.
func encodeRecord(r *player.Record) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode record %s: %w", r.ID, err)
	}
	return b, nil
}

// decodeRecord parses one record. Unknown fields are ignored and missing ones
// stay zero; id is authoritative over whatever the payload says.
func decodeRecord(id string, b []byte) (*player.Record, error) {
	var r player.Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	r.ID = id
	r.Normalize()
	return &r, nil
}
