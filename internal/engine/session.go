package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xuantien37/telegram-guess-number-bot/internal/game"
	"github.com/xuantien37/telegram-guess-number-bot/internal/notify"
	"github.com/xuantien37/telegram-guess-number-bot/internal/progression"
	"github.com/xuantien37/telegram-guess-number-bot/internal/quest"
	"github.com/xuantien37/telegram-guess-number-bot/internal/shop"
)

// Outcome of a guess.
type Outcome string

const (
	OutcomeContinue Outcome = "continue"
	OutcomeWon      Outcome = "won"
	OutcomeLost     Outcome = "lost"
)

// SessionView is what a player may see of a session. The secret is omitted.
type SessionView struct {
	Level        int           `json:"level"`
	Low          int           `json:"low"`
	High         int           `json:"high"`
	MaxAttempts  int           `json:"max_attempts"`
	AttemptsUsed int           `json:"attempts_used"`
	HintsUsed    []string      `json:"hints_used,omitempty"`
	Timeout      time.Duration `json:"timeout"`
}

func viewOf(s *game.Session) SessionView {
	v := SessionView{Level: s.Level, Low: s.Low, High: s.High, MaxAttempts: s.MaxAttempts, AttemptsUsed: s.AttemptsUsed}
	for k, used := range s.HintsUsed {
		if used {
			v.HintsUsed = append(v.HintsUsed, k)
		}
	}
	sort.Strings(v.HintsUsed)
	return v
}

// StartSession opens a single-player game at the player's current level.
func (e *Engine) StartSession(ctx context.Context, id string) (SessionView, error) {
	e.mu.Lock()
	defer e.unlock(ctx)

	if _, ok := e.sessions[id]; ok {
		return SessionView{}, ErrAlreadyActive
	}
	rec := e.players.Get(id)
	level := e.opts.Levels.LevelFor(rec.Score)
	d := e.opts.Levels.DifficultyFor(level)
	s := game.NewSession(id, level, d, e.draw(d), e.opts.Clock.Now())

	sid := s.ID
	cancel, err := e.opts.Scheduler.After(e.opts.SessionTimeout, func() { e.expireSession(id, sid) })
	if err != nil {
		return SessionView{}, fmt.Errorf("schedule session timeout: %w", err)
	}
	s.Arm(cancel)
	e.sessions[id] = s

	e.log.Info().Str("player", id).Str("session", sid).Int("level", level).Msg("session started")
	v := viewOf(s)
	v.Timeout = e.opts.SessionTimeout
	return v, nil
}

// GuessResult describes one single-player guess.
type GuessResult struct {
	Direction    game.Direction     `json:"direction"`
	Outcome      Outcome            `json:"outcome"`
	AttemptsUsed int                `json:"attempts_used"`
	AttemptsLeft int                `json:"attempts_left"`
	Points       int                `json:"points,omitempty"`    // awarded on a win
	Doubled      bool               `json:"doubled,omitempty"`   // double_points bonus applied
	Penalty      int                `json:"penalty,omitempty"`   // deducted on a loss
	Protected    bool               `json:"protected,omitempty"` // streak protector consumed
	Secret       int                `json:"secret,omitempty"`    // revealed once the game ends
	Score        int                `json:"score"`
	Quests       []quest.Completion `json:"quests,omitempty"`
}

// SubmitGuess applies a guess to the player's session.
func (e *Engine) SubmitGuess(ctx context.Context, id, text string) (GuessResult, error) {
	e.mu.Lock()
	defer e.unlock(ctx)

	s, ok := e.sessions[id]
	if !ok {
		return GuessResult{}, ErrNoActiveSession
	}
	v, err := game.ParseGuess(text)
	if err != nil {
		return GuessResult{}, err
	}

	dir := s.Guess(v)
	res := GuessResult{
		Direction:    dir,
		Outcome:      OutcomeContinue,
		AttemptsUsed: s.AttemptsUsed,
		AttemptsLeft: s.AttemptsLeft(),
	}
	rec := e.players.Get(id)

	switch {
	case dir == game.DirCorrect:
		e.endSession(s)
		pts := progression.PointsFor(s.AttemptsUsed, s.MaxAttempts, rec.CurrentStreak, s.Level)
		pts, res.Doubled = progression.ApplyDoubleBonus(rec, pts)
		rec.AddScore(pts)
		rec.RecordWin()
		res.Outcome, res.Points, res.Secret = OutcomeWon, pts, s.Secret
		res.Quests = append(res.Quests, e.progress(rec, quest.FamilyWins, 1)...)
		res.Quests = append(res.Quests, e.progress(rec, quest.FamilyGames, 1)...)
		res.Quests = append(res.Quests, e.streak(rec, quest.FamilyWinStreak, rec.CurrentStreak)...)
		e.log.Info().Str("player", id).Int("points", pts).Int("attempts", s.AttemptsUsed).Msg("session won")

	case s.Exhausted():
		e.endSession(s)
		res.Protected = rec.Take(shop.ItemStreakProtector)
		if !res.Protected {
			res.Penalty = s.Penalty
			rec.AddScore(-s.Penalty)
		}
		rec.RecordLoss(res.Protected)
		res.Outcome, res.Secret = OutcomeLost, s.Secret
		res.Quests = e.progress(rec, quest.FamilyGames, 1)
		e.log.Info().Str("player", id).Int("penalty", res.Penalty).Bool("protected", res.Protected).Msg("session lost")

	default:
		res.Score = rec.Score
		return res, nil
	}

	res.Score = rec.Score
	e.save(ctx)
	return res, nil
}

// Forfeit abandons the session without touching any counter. The secret is
// returned so it can be revealed.
func (e *Engine) Forfeit(ctx context.Context, id string) (int, error) {
	e.mu.Lock()
	defer e.unlock(ctx)

	s, ok := e.sessions[id]
	if !ok {
		return 0, ErrNoActiveSession
	}
	e.endSession(s)
	e.log.Info().Str("player", id).Msg("session forfeited")
	return s.Secret, nil
}

// HintResult carries the answer of a hint. Only the field matching Kind is set.
type HintResult struct {
	Kind   string `json:"kind"`
	Parity string `json:"parity,omitempty"`
	Low    int    `json:"low,omitempty"`
	High   int    `json:"high,omitempty"`
}

// UseHint consumes one hint item of kind and reveals information about the secret.
// Each kind can be used once per session. An empty kind picks the first kind the
// player owns and has not used in this session.
func (e *Engine) UseHint(ctx context.Context, id, kind string) (HintResult, error) {
	e.mu.Lock()
	defer e.unlock(ctx)

	s, ok := e.sessions[id]
	if !ok {
		return HintResult{}, ErrNoActiveSession
	}
	if kind == "" {
		kind = e.ownedHint(id, s)
	}
	it, ok := e.opts.Catalog.HintItem(kind)
	if !ok || s.HintsUsed[kind] {
		return HintResult{}, ErrNoHintAvailable
	}
	rec := e.players.Get(id)
	if !rec.Take(it.ID) {
		return HintResult{}, ErrNoHintAvailable
	}
	s.HintsUsed[kind] = true

	res := HintResult{Kind: kind}
	switch kind {
	case shop.HintParity:
		res.Parity = s.ParityHint()
	case shop.HintRange:
		res.Low, res.High = s.RangeHint()
	}
	e.save(ctx)
	return res, nil
}

func (e *Engine) ownedHint(id string, s *game.Session) string {
	rec := e.players.Get(id)
	for _, kind := range shop.HintKinds {
		it, ok := e.opts.Catalog.HintItem(kind)
		if ok && !s.HintsUsed[kind] && rec.Count(it.ID) > 0 {
			return kind
		}
	}
	return ""
}

// ItemResult reports the session after an item was used.
type ItemResult struct {
	Item         string `json:"item"`
	MaxAttempts  int    `json:"max_attempts"`
	AttemptsLeft int    `json:"attempts_left"`
}

// UseItem applies an in-game item (extra_attempt or change_secret) to the
// running session.
func (e *Engine) UseItem(ctx context.Context, id, itemID string) (ItemResult, error) {
	e.mu.Lock()
	defer e.unlock(ctx)

	s, ok := e.sessions[id]
	if !ok {
		return ItemResult{}, ErrNoActiveSession
	}
	it, ok := e.opts.Catalog.Lookup(itemID)
	if !ok {
		return ItemResult{}, ErrUnknownItem
	}
	if it.ID != shop.ItemExtraAttempt && it.ID != shop.ItemChangeSecret {
		return ItemResult{}, ErrNotUsable
	}
	rec := e.players.Get(id)
	if !rec.Take(it.ID) {
		return ItemResult{}, ErrOutOfStock
	}

	switch it.ID {
	case shop.ItemExtraAttempt:
		s.MaxAttempts++
	case shop.ItemChangeSecret:
		s.Redraw(e.draw(progression.Difficulty{Low: s.Low, High: s.High}))
	}
	e.log.Debug().Str("player", id).Str("item", it.ID).Msg("item used")
	e.save(ctx)
	return ItemResult{Item: it.ID, MaxAttempts: s.MaxAttempts, AttemptsLeft: s.AttemptsLeft()}, nil
}

// endSession unregisters s and cancels its timeout.
func (e *Engine) endSession(s *game.Session) {
	delete(e.sessions, s.Player)
	s.Disarm()
}

// expireSession is the timeout callback. It does nothing unless session sid is
// still the player's registered session.
func (e *Engine) expireSession(id, sid string) {
	ctx := context.Background()
	e.mu.Lock()
	defer e.unlock(ctx)

	s, ok := e.sessions[id]
	if !ok || s.ID != sid {
		e.log.Debug().Str("player", id).Str("session", sid).Msg("stale session timeout ignored")
		return
	}
	// The timer already fired; drop the handle instead of cancelling it.
	s.Arm(nil)
	delete(e.sessions, id)

	rec := e.players.Get(id)
	rec.RecordLoss(false)
	e.progress(rec, quest.FamilyGames, 1)
	e.emit(id, notify.KindSessionTimeout, map[string]any{
		"secret":        s.Secret,
		"attempts_used": s.AttemptsUsed,
	})
	e.log.Info().Str("player", id).Str("session", sid).Msg("session timed out")
	e.save(ctx)
}
