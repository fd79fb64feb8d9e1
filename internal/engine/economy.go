package engine

import (
	"context"

	"github.com/xuantien37/telegram-guess-number-bot/internal/daily"
	"github.com/xuantien37/telegram-guess-number-bot/internal/quest"
	"github.com/xuantien37/telegram-guess-number-bot/internal/shop"
)

// PurchaseResult reports a completed purchase.
type PurchaseResult struct {
	Item      shop.Item `json:"item"`
	Score     int       `json:"score"`
	Owned     int       `json:"owned"`
	BonusUses int       `json:"bonus_uses,omitempty"`
}

// Purchase buys one item with score points.
func (e *Engine) Purchase(ctx context.Context, id, itemID string) (PurchaseResult, error) {
	e.mu.Lock()
	defer e.unlock(ctx)

	rec := e.players.Get(id)
	it, err := e.opts.Catalog.Purchase(rec, itemID)
	if err != nil {
		return PurchaseResult{}, err
	}
	e.log.Info().Str("player", id).Str("item", it.ID).Int("price", it.Price).Msg("item purchased")
	e.save(ctx)

	res := PurchaseResult{Item: it, Score: rec.Score, Owned: rec.Count(it.ID)}
	if it.Bonus != "" {
		res.BonusUses = rec.BonusUses(it.Bonus)
	}
	return res, nil
}

// DailyResult reports a daily claim and any quest it completed.
type DailyResult struct {
	daily.Result
	Score  int                `json:"score"`
	Quests []quest.Completion `json:"quests,omitempty"`
}

// ClaimDaily pays the once-per-day reward.
func (e *Engine) ClaimDaily(ctx context.Context, id string) (DailyResult, error) {
	e.mu.Lock()
	defer e.unlock(ctx)

	rec := e.players.Get(id)
	r, err := daily.Claim(rec, e.opts.Clock.Now(), e.opts.Daily)
	if err != nil {
		return DailyResult{}, err
	}
	res := DailyResult{Result: r}
	res.Quests = e.streak(rec, quest.FamilyDailyStreak, r.Streak)
	res.Score = rec.Score
	e.log.Info().Str("player", id).Int("reward", r.Reward).Int("streak", r.Streak).Msg("daily claimed")
	e.save(ctx)
	return res, nil
}
