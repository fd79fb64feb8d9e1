// internal/shop/shop.go
//
// Item catalog and purchase transaction.
// Responsibilities:
//   - Hold the fixed catalog (price + category per item).
//   - Purchase: validate id and funds, deduct price, credit inventory or bonus charges.
//   - Map hint kinds to the hint items that unlock them.
//
// Notes:
//   - Guard-rail errors leave the record untouched.
package shop

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gosimple/slug"

	"github.com/xuantien37/telegram-guess-number-bot/internal/player"
)

// Category groups catalog items by how they are used.
type Category string

const (
	CategoryGame  Category = "game"  // consumed during or at the end of a session
	CategoryHint  Category = "hint"  // reveals information about the secret
	CategoryBonus Category = "bonus" // grants timed charges instead of stock
)

// Well-known item ids the engine consumes directly.
const (
	ItemExtraAttempt    = "extra_attempt"
	ItemChangeSecret    = "change_secret"
	ItemStreakProtector = "streak_protector"
	ItemHintParity      = "hint_parity"
	ItemHintRange       = "hint_range"
	ItemDoublePoints    = "double_points"
)

// Hint kinds.
const (
	HintParity = "parity"
	HintRange  = "range"
)

// HintKinds lists hint kinds in the order a bare /hint tries them.
var HintKinds = []string{HintParity, HintRange}

var (
	// ErrUnknownItem is returned for ids missing from the catalog.
	ErrUnknownItem = errors.New("unknown item")
	// ErrInsufficientFunds is returned when the score is below the price.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Item is one catalog entry.
type Item struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Price    int      `yaml:"price" json:"price"`
	Category Category `yaml:"category" json:"category"`
	HintKind string   `yaml:"hint_kind,omitempty" json:"hint_kind,omitempty"` // hint items only
	Bonus    string   `yaml:"bonus,omitempty" json:"bonus,omitempty"`         // bonus items only
	Uses     int      `yaml:"uses,omitempty" json:"uses,omitempty"`           // charges granted per purchase
}

// Catalog is the immutable set of purchasable items.
type Catalog struct {
	items map[string]Item
	hints map[string]Item // hint kind -> item
}

// NewCatalog validates items and indexes them.
func NewCatalog(items []Item) (*Catalog, error) {
	c := &Catalog{items: make(map[string]Item, len(items)), hints: make(map[string]Item)}
	for _, it := range items {
		if it.ID == "" {
			return nil, errors.New("shop: item without id")
		}
		if _, dup := c.items[it.ID]; dup {
			return nil, fmt.Errorf("shop: duplicate item %q", it.ID)
		}
		if it.Price <= 0 {
			return nil, fmt.Errorf("shop: item %q must have a positive price", it.ID)
		}
		switch it.Category {
		case CategoryGame:
		case CategoryHint:
			if it.HintKind != HintParity && it.HintKind != HintRange {
				return nil, fmt.Errorf("shop: hint item %q has unsupported hint_kind %q", it.ID, it.HintKind)
			}
			c.hints[it.HintKind] = it
		case CategoryBonus:
			if it.Bonus == "" || it.Uses <= 0 {
				return nil, fmt.Errorf("shop: bonus item %q needs bonus and uses", it.ID)
			}
		default:
			return nil, fmt.Errorf("shop: item %q has unknown category %q", it.ID, it.Category)
		}
		c.items[it.ID] = it
	}
	return c, nil
}

// Lookup returns the item for id.
func (c *Catalog) Lookup(id string) (Item, bool) {
	it, ok := c.items[id]
	return it, ok
}

// HintItem returns the item that unlocks hint kind.
func (c *Catalog) HintItem(kind string) (Item, bool) {
	it, ok := c.hints[kind]
	return it, ok
}

// Items lists the catalog ordered by price, then id.
func (c *Catalog) Items() []Item {
	out := make([]Item, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Purchase buys one unit of id for rec.
// Bonus items refresh the bonus charges; every other category adds one to the inventory.
func (c *Catalog) Purchase(rec *player.Record, id string) (Item, error) {
	it, ok := c.items[id]
	if !ok {
		return Item{}, ErrUnknownItem
	}
	if rec.Score < it.Price {
		return Item{}, ErrInsufficientFunds
	}
	rec.AddScore(-it.Price)
	if it.Category == CategoryBonus {
		rec.GrantBonus(it.Bonus, it.Uses)
	} else {
		rec.Give(it.ID, 1)
	}
	return it, nil
}

// NormalizeID maps what a player typed ("Streak Protector", "streak-protector")
// onto the catalog id form.
func NormalizeID(s string) string {
	return strings.ReplaceAll(slug.Make(s), "-", "_")
}
