// internal/store/sqlite.go
//
// SQLite-backed Store.
// Responsibilities:
//   - Opening SQLite database with safe defaults (WAL, busy timeout).
//   - Applying embedded migrations (idempotent, recorded in _migrations).
//   - Upserting player records as JSON documents.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/xuantien37/telegram-guess-number-bot/internal/player"
)

// migration is one schema step, applied once in slice order.
type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{"001_players", `
		CREATE TABLE IF NOT EXISTS players (
			id         TEXT PRIMARY KEY,
			data       TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`},
	{"002_players_updated_idx", `
		CREATE INDEX IF NOT EXISTS players_updated_at ON players(updated_at);`},
}

// SQLite stores one row per player.
type SQLite struct {
	db *sql.DB
}

/**
 * OpenSQLite opens (and creates if missing) a SQLite database file and
 * applies pending migrations.
 *
 * - Ensures parent directory exists for relative paths (e.g. ./data/players.db).
 * - Configures busy timeout and WAL journaling mode.
 */
func OpenSQLite(path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

/**
 * migrate applies embedded migrations.
 *
 * - Uses a _migrations table to track applied steps.
 * - Each step runs inside its own transaction.
 */
func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	for _, m := range migrations {
		var done int
		err := db.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, m.name).Scan(&done)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", m.name, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, m.name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", m.name, err)
		}
		log.Info().Str("migration", m.name).Msg("applied")
	}
	return nil
}

// Load reads every player row. Rows that fail to decode are skipped and logged.
func (s *SQLite) Load(ctx context.Context) (map[string]*player.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM players`)
	if err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*player.Record)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		rec, err := decodeRecord(id, []byte(data))
		if err != nil {
			log.Warn().Err(err).Str("player", id).Msg("skip unreadable player row")
			continue
		}
		out[id] = rec
	}
	return out, rows.Err()
}

// Save upserts every record in a single transaction.
func (s *SQLite) Save(ctx context.Context, records map[string]*player.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO players (id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for id, r := range records {
		b, err := encodeRecord(r)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, id, string(b), now); err != nil {
			return fmt.Errorf("upsert %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Close releases the database handle.
func (s *SQLite) Close() error { return s.db.Close() }
