// Package quest tracks cumulative progress toward long-running objectives.
//
// Each quest belongs to a family (the counter that feeds it). Progress is capped
// at the goal and the reward is paid exactly once, when the quest first reaches
// its goal.
package quest

import (
	"errors"
	"fmt"
	"sort"

	"github.com/xuantien37/telegram-guess-number-bot/internal/player"
)

// Families fed by the engine.
const (
	FamilyWins        = "wins"
	FamilyGames       = "games"
	FamilyWinStreak   = "win_streak"
	FamilyDailyStreak = "daily_streak"
	FamilyPvPWins     = "pvp_wins"
)

// Quest is a named objective.
type Quest struct {
	ID     string `yaml:"id" json:"id"`
	Family string `yaml:"family" json:"family"`
	Goal   int    `yaml:"goal" json:"goal"`
	Reward int    `yaml:"reward" json:"reward"`
}

// Completion reports a quest that was just rewarded.
type Completion struct {
	QuestID string `json:"quest_id"`
	Reward  int    `json:"reward"`
}

// Tracker indexes quests by family.
type Tracker struct {
	quests   []Quest
	byFamily map[string][]Quest
}

// NewTracker validates quests. An empty list is allowed.
func NewTracker(quests []Quest) (*Tracker, error) {
	t := &Tracker{byFamily: make(map[string][]Quest)}
	seen := make(map[string]bool, len(quests))
	for _, q := range quests {
		if q.ID == "" || q.Family == "" {
			return nil, errors.New("quest: id and family are required")
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("quest: duplicate id %q", q.ID)
		}
		if q.Goal <= 0 || q.Reward < 0 {
			return nil, fmt.Errorf("quest: %q needs a positive goal and non-negative reward", q.ID)
		}
		seen[q.ID] = true
		t.quests = append(t.quests, q)
		t.byFamily[q.Family] = append(t.byFamily[q.Family], q)
	}
	sort.Slice(t.quests, func(i, j int) bool { return t.quests[i].ID < t.quests[j].ID })
	return t, nil
}

// Quests lists every quest ordered by id.
func (t *Tracker) Quests() []Quest { return append([]Quest(nil), t.quests...) }

// RecordProgress adds delta to every quest of family and pays out the ones that
// reach their goal. Non-positive deltas are ignored.
func (t *Tracker) RecordProgress(rec *player.Record, family string, delta int) []Completion {
	if delta <= 0 {
		return nil
	}
	return t.apply(rec, family, func(cur int) int { return cur + delta })
}

// RecordStreak raises progress of every quest in family to value when value is
// higher. Streak quests therefore track the best run seen, not the sum.
func (t *Tracker) RecordStreak(rec *player.Record, family string, value int) []Completion {
	return t.apply(rec, family, func(cur int) int {
		if value > cur {
			return value
		}
		return cur
	})
}

func (t *Tracker) apply(rec *player.Record, family string, next func(int) int) []Completion {
	var done []Completion
	for _, q := range t.byFamily[family] {
		if rec.HasCompleted(q.ID) {
			continue
		}
		p := next(rec.QuestProgress[q.ID])
		if p > q.Goal {
			p = q.Goal
		}
		rec.QuestProgress[q.ID] = p
		if p == q.Goal && rec.MarkCompleted(q.ID) {
			rec.AddScore(q.Reward)
			done = append(done, Completion{QuestID: q.ID, Reward: q.Reward})
		}
	}
	return done
}
