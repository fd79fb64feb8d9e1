// db.go
//
// Store selection for the guess-number server.
// Responsibilities:
//   - Map STORE_DRIVER onto a store.Store implementation.
//   - Return a close func so main can release connections on shutdown.
//
// Drivers:
//   memory   → in-process only, lost on restart.
//   sqlite   → SQLITE_PATH (default ./data/players.db), WAL, embedded migrations.
//   postgres → DATABASE_URL via gorm, players table auto-migrated.
//   s3       → one JSON object at S3_BUCKET/S3_KEY (S3_ENDPOINT for MinIO etc.).

package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/xuantien37/telegram-guess-number-bot/internal/config"
	"github.com/xuantien37/telegram-guess-number-bot/internal/store"
)

/**
 * openStore opens the configured player store.
 *
 * @param cfg Parsed configuration (driver + connection settings).
 * @returns the store and a func that releases it.
 */
func openStore(ctx context.Context, cfg config.Config) (store.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn().Msg("memory store: player data will not survive a restart")
		return store.NewMemoryStore(), noop, nil

	case config.DriverSQLite:
		st, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("sqlite store ready")
		return st, st.Close, nil

	case config.DriverPostgres:
		st, err := store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Msg("postgres store ready")
		return st, st.Close, nil

	case config.DriverS3:
		st, err := store.OpenS3(ctx, store.S3Options{
			Bucket:          cfg.S3.Bucket,
			Key:             cfg.S3.Key,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("bucket", cfg.S3.Bucket).Str("key", cfg.S3.Key).Msg("s3 store ready")
		return st, noop, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
