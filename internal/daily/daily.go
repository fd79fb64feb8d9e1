package daily

import (
	"errors"
	"time"

	"github.com/xuantien37/telegram-guess-number-bot/internal/player"
)

// ErrAlreadyClaimedToday is returned on a second claim within one calendar day.
var ErrAlreadyClaimedToday = errors.New("daily reward already claimed today")

// Rules parameterise the reward curve.
type Rules struct {
	Base          int `yaml:"base" json:"base"`
	Increment     int `yaml:"increment" json:"increment"`
	CapMultiplier int `yaml:"cap_multiplier" json:"cap_multiplier"`
}

// Result describes a successful claim.
type Result struct {
	Reward int    `json:"reward"`
	Streak int    `json:"streak"`
	Date   string `json:"date"`
}

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Reward returns base + min(streak*increment, base*capMultiplier).
func (r Rules) Reward(streak int) int {
	bonus := streak * r.Increment
	if limit := r.Base * r.CapMultiplier; bonus > limit {
		bonus = limit
	}
	return r.Base + bonus
}

// Claim pays the daily reward for today. The streak continues only when the
// previous claim was on the preceding calendar day.
func Claim(rec *player.Record, today time.Time, rules Rules) (Result, error) {
	key := DateKey(today)
	if rec.LastRewardDate == key {
		return Result{}, ErrAlreadyClaimedToday
	}
	if rec.LastRewardDate == DateKey(today.UTC().AddDate(0, 0, -1)) {
		rec.RewardStreak++
	} else {
		rec.RewardStreak = 1
	}
	reward := rules.Reward(rec.RewardStreak)
	rec.AddScore(reward)
	rec.LastRewardDate = key
	return Result{Reward: reward, Streak: rec.RewardStreak, Date: key}, nil
}
