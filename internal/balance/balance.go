// internal/balance/balance.go
//
// Game balance tables.
//
// Responsibilities:
//   - Decode the YAML balance file (levels, shop, quests, daily rules).
//   - Validate it by building the runtime tables.
//   - Fall back to the embedded defaults when no file is configured.
//
// Balance file:
//   levels:  rows of {level, min_score, low, high, attempts, penalty}
//   shop:    items of {id, name, price, category, hint_kind, bonus, uses}
//   quests:  rows of {id, family, goal, reward}
//   daily:   {base, increment, cap_multiplier}

package balance

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xuantien37/telegram-guess-number-bot/assets"
	"github.com/xuantien37/telegram-guess-number-bot/internal/daily"
	"github.com/xuantien37/telegram-guess-number-bot/internal/progression"
	"github.com/xuantien37/telegram-guess-number-bot/internal/quest"
	"github.com/xuantien37/telegram-guess-number-bot/internal/shop"
)

// File mirrors the YAML document.
type File struct {
	Levels []progression.Level `yaml:"levels"`
	Shop   []shop.Item         `yaml:"shop"`
	Quests []quest.Quest       `yaml:"quests"`
	Daily  daily.Rules         `yaml:"daily"`
}

// Balance holds validated runtime tables.
type Balance struct {
	Levels  *progression.Table
	Catalog *shop.Catalog
	Quests  *quest.Tracker
	Daily   daily.Rules
}

// Parse decodes and validates a balance document. Unknown keys are rejected.
func Parse(data []byte) (*Balance, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("balance: decode: %w", err)
	}
	return Build(f)
}

// Build validates f.
func Build(f File) (*Balance, error) {
	levels, err := progression.NewTable(f.Levels)
	if err != nil {
		return nil, err
	}
	catalog, err := shop.NewCatalog(f.Shop)
	if err != nil {
		return nil, err
	}
	quests, err := quest.NewTracker(f.Quests)
	if err != nil {
		return nil, err
	}
	if f.Daily.Base <= 0 || f.Daily.Increment < 0 || f.Daily.CapMultiplier < 0 {
		return nil, fmt.Errorf("balance: invalid daily rules %+v", f.Daily)
	}
	return &Balance{Levels: levels, Catalog: catalog, Quests: quests, Daily: f.Daily}, nil
}

// Default returns the embedded balance.
func Default() (*Balance, error) {
	data, err := assets.Balance()
	if err != nil {
		return nil, fmt.Errorf("balance: read embedded: %w", err)
	}
	return Parse(data)
}

// Load reads path, or the embedded defaults when path is empty.
func Load(path string) (*Balance, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	return Parse(data)
}
