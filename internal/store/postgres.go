package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/xuantien37/telegram-guess-number-bot/internal/player"
)

// playerRow is the gorm model for one persisted record.
type playerRow struct {
	ID        string    `gorm:"primaryKey"`
	Data      string    `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (playerRow) TableName() string { return "players" }

// Postgres stores records through gorm.
type Postgres struct {
	db *gorm.DB
}

// OpenPostgres connects with dsn and migrates the players table.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.AutoMigrate(&playerRow{}); err != nil {
		return nil, fmt.Errorf("migrate players: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Load reads every row; undecodable rows are skipped and logged.
func (p *Postgres) Load(ctx context.Context) (map[string]*player.Record, error) {
	var rows []playerRow
	if err := p.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	out := make(map[string]*player.Record, len(rows))
	for _, row := range rows {
		rec, err := decodeRecord(row.ID, []byte(row.Data))
		if err != nil {
			log.Warn().Err(err).Str("player", row.ID).Msg("skip unreadable player row")
			continue
		}
		out[row.ID] = rec
	}
	return out, nil
}

// Save upserts every record in one transaction.
func (p *Postgres) Save(ctx context.Context, records map[string]*player.Record) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]playerRow, 0, len(records))
	for id, r := range records {
		b, err := encodeRecord(r)
		if err != nil {
			return err
		}
		rows = append(rows, playerRow{ID: id, Data: string(b)})
	}
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).Create(&rows).Error
	})
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
