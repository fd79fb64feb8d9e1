// internal/player/record.go
//
// Player profile held by the record store.
// Responsibilities:
//   - Fixed-shape record: score, win/loss counters, streaks, inventory, bonuses, quests, daily streak.
//   - Lazy creation through Book.Get (all counters zeroed).
//   - Small mutators that keep the invariants (score >= 0, counts >= 0).
//
// Records are mutated only by the engine packages; transport code reads copies.
package player

import "sort"

// Record is the persisted profile of one player.
// Fields missing from stored data decode to their zero value.
type Record struct {
	ID              string         `json:"id"`
	Score           int            `json:"score"`
	Wins            int            `json:"wins"`
	Losses          int            `json:"losses"`
	GamesPlayed     int            `json:"games_played"`
	PvPWins         int            `json:"pvp_wins"`
	PvPLosses       int            `json:"pvp_losses"`
	CurrentStreak   int            `json:"current_streak"`
	MaxStreak       int            `json:"max_streak"`
	Inventory       map[string]int `json:"inventory"`
	ActiveBonuses   map[string]int `json:"active_bonuses"`
	QuestProgress   map[string]int `json:"quest_progress"`
	CompletedQuests []string       `json:"completed_quests"`
	LastRewardDate  string         `json:"last_reward_date,omitempty"` // YYYY-MM-DD, "" when never claimed
	RewardStreak    int            `json:"reward_streak"`
}

// New returns a zeroed record for id.
func New(id string) *Record {
	r := &Record{ID: id}
	r.Normalize()
	return r
}

// Normalize fills nil maps and clamps values that must never be negative.
// Called on every record coming out of a store.
func (r *Record) Normalize() {
	if r.Inventory == nil {
		r.Inventory = make(map[string]int)
	}
	if r.ActiveBonuses == nil {
		r.ActiveBonuses = make(map[string]int)
	}
	if r.QuestProgress == nil {
		r.QuestProgress = make(map[string]int)
	}
	if r.Score < 0 {
		r.Score = 0
	}
	for k, v := range r.Inventory {
		if v <= 0 {
			delete(r.Inventory, k)
		}
	}
	for k, v := range r.ActiveBonuses {
		if v <= 0 {
			delete(r.ActiveBonuses, k)
		}
	}
	r.CompletedQuests = dedupe(r.CompletedQuests)
}

// AddScore applies delta, flooring the result at zero.
func (r *Record) AddScore(delta int) {
	r.Score += delta
	if r.Score < 0 {
		r.Score = 0
	}
}

// Count reports how many of item the player holds.
func (r *Record) Count(item string) int { return r.Inventory[item] }

// Give adds n units of item.
func (r *Record) Give(item string, n int) {
	if n <= 0 {
		return
	}
	r.Inventory[item] += n
}

// Take consumes one unit of item. It reports false, and changes nothing,
// when the player holds none.
func (r *Record) Take(item string) bool {
	if r.Inventory[item] <= 0 {
		return false
	}
	r.Inventory[item]--
	if r.Inventory[item] == 0 {
		delete(r.Inventory, item)
	}
	return true
}

// HasCompleted reports whether quest id was already rewarded.
func (r *Record) HasCompleted(id string) bool {
	for _, q := range r.CompletedQuests {
		if q == id {
			return true
		}
	}
	return false
}

// MarkCompleted adds id to the completed set. It returns false if id was already there.
func (r *Record) MarkCompleted(id string) bool {
	if r.HasCompleted(id) {
		return false
	}
	r.CompletedQuests = append(r.CompletedQuests, id)
	sort.Strings(r.CompletedQuests)
	return true
}

// RecordWin bumps the win counters and the streak.
func (r *Record) RecordWin() {
	r.Wins++
	r.GamesPlayed++
	r.CurrentStreak++
	if r.CurrentStreak > r.MaxStreak {
		r.MaxStreak = r.CurrentStreak
	}
}

// RecordLoss bumps the loss counters. The streak is reset unless keepStreak is set.
func (r *Record) RecordLoss(keepStreak bool) {
	r.Losses++
	r.GamesPlayed++
	if !keepStreak {
		r.CurrentStreak = 0
	}
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := *r
	c.Inventory = copyMap(r.Inventory)
	c.ActiveBonuses = copyMap(r.ActiveBonuses)
	c.QuestProgress = copyMap(r.QuestProgress)
	c.CompletedQuests = append([]string(nil), r.CompletedQuests...)
	return &c
}

func copyMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// BonusUses returns the remaining uses of an active bonus.
func (r *Record) BonusUses(bonus string) int { return r.ActiveBonuses[bonus] }

// GrantBonus adds uses to an active bonus.
func (r *Record) GrantBonus(bonus string, uses int) {
	if uses <= 0 {
		return
	}
	r.ActiveBonuses[bonus] += uses
}

// SpendBonus consumes one use, dropping the entry when it reaches zero.
func (r *Record) SpendBonus(bonus string) {
	if r.ActiveBonuses[bonus] <= 1 {
		delete(r.ActiveBonuses, bonus)
		return
	}
	r.ActiveBonuses[bonus]--
}
