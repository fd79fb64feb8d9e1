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
)

// ChallengeInfo describes a pending challenge.
type ChallengeInfo struct {
	ID       string        `json:"id"`
	Proposer string        `json:"proposer"`
	Target   string        `json:"target"`
	Expires  time.Duration `json:"expires_in"`
}

// MatchInfo describes a match that just started.
type MatchInfo struct {
	ID          string        `json:"id"`
	Challenger  string        `json:"challenger"`
	Opponent    string        `json:"opponent"`
	Level       int           `json:"level"`
	Low         int           `json:"low"`
	High        int           `json:"high"`
	MaxAttempts int           `json:"max_attempts"`
	Timeout     time.Duration `json:"timeout"`
}

// Propose sends a challenge from challenger to opponent.
func (e *Engine) Propose(ctx context.Context, challenger, opponent string) (ChallengeInfo, error) {
	e.mu.Lock()
	defer e.unlock(ctx)

	if challenger == opponent {
		return ChallengeInfo{}, ErrSelfChallenge
	}
	if e.matchOf[challenger] != "" || e.matchOf[opponent] != "" {
		return ChallengeInfo{}, ErrAlreadyInMatch
	}
	for _, c := range e.challenges {
		if c.Proposer == challenger && c.Target == opponent {
			return ChallengeInfo{}, ErrDuplicateChallenge
		}
	}

	e.seq++
	c := game.NewChallenge(challenger, opponent, e.seq, e.opts.Clock.Now())
	cid := c.ID
	cancel, err := e.opts.Scheduler.After(e.opts.ChallengeTTL, func() { e.expireChallenge(cid) })
	if err != nil {
		return ChallengeInfo{}, fmt.Errorf("schedule challenge expiry: %w", err)
	}
	c.Arm(cancel)
	e.challenges[cid] = c
	e.players.Get(challenger)
	e.players.Get(opponent)

	e.emit(opponent, notify.KindChallengeReceived, map[string]any{
		"challenge":  cid,
		"from":       challenger,
		"expires_in": e.opts.ChallengeTTL.String(),
	})
	e.log.Info().Str("challenger", challenger).Str("opponent", opponent).Str("challenge", cid).Msg("challenge proposed")
	return ChallengeInfo{ID: cid, Proposer: challenger, Target: opponent, Expires: e.opts.ChallengeTTL}, nil
}

// Accept starts a match from the oldest challenge addressed to opponent.
// The match is played at the lower of the two players' levels.
func (e *Engine) Accept(ctx context.Context, opponent string) (MatchInfo, error) {
	e.mu.Lock()
	defer e.unlock(ctx)

	c := e.oldestChallengeFor(opponent)
	if c == nil {
		return MatchInfo{}, ErrNoPendingChallenge
	}
	if e.matchOf[c.Proposer] != "" || e.matchOf[opponent] != "" {
		return MatchInfo{}, ErrAlreadyInMatch
	}

	a, b := e.players.Get(c.Proposer), e.players.Get(opponent)
	level := min(e.opts.Levels.LevelFor(a.Score), e.opts.Levels.LevelFor(b.Score))
	d := e.opts.Levels.DifficultyFor(level)
	m := game.NewMatch(c.Proposer, opponent, level, d, e.draw(d), e.opts.Clock.Now())

	mid := m.ID
	cancel, err := e.opts.Scheduler.After(e.opts.MatchTimeout, func() { e.expireMatch(mid) })
	if err != nil {
		return MatchInfo{}, fmt.Errorf("schedule match timeout: %w", err)
	}
	m.Arm(cancel)

	delete(e.challenges, c.ID)
	c.Close(game.ChallengeAccepted)
	e.matches[mid] = m
	e.matchOf[m.Challenger] = mid
	e.matchOf[m.Opponent] = mid

	info := MatchInfo{
		ID:          mid,
		Challenger:  m.Challenger,
		Opponent:    m.Opponent,
		Level:       m.Level,
		Low:         m.Low,
		High:        m.High,
		MaxAttempts: m.MaxAttempts,
		Timeout:     e.opts.MatchTimeout,
	}
	e.emit(m.Challenger, notify.KindChallengeAccepted, map[string]any{
		"match":        mid,
		"opponent":     opponent,
		"level":        m.Level,
		"low":          m.Low,
		"high":         m.High,
		"max_attempts": m.MaxAttempts,
	})
	e.log.Info().Str("match", mid).Str("challenger", m.Challenger).Str("opponent", opponent).Int("level", level).Msg("match started")
	return info, nil
}

func (e *Engine) oldestChallengeFor(target string) *game.Challenge {
	var best *game.Challenge
	for _, c := range e.challenges {
		if c.Target == target && (best == nil || c.Seq < best.Seq) {
			best = c
		}
	}
	return best
}

// Cancel withdraws every pending challenge proposed by challenger and returns
// the players they were addressed to.
func (e *Engine) Cancel(ctx context.Context, challenger string) ([]string, error) {
	e.mu.Lock()
	defer e.unlock(ctx)

	var targets []string
	for id, c := range e.challenges {
		if c.Proposer != challenger {
			continue
		}
		delete(e.challenges, id)
		c.Close(game.ChallengeCancelled)
		targets = append(targets, c.Target)
		e.emit(c.Target, notify.KindChallengeCancelled, map[string]any{"challenge": id, "from": challenger})
	}
	if len(targets) == 0 {
		return nil, ErrNoPendingChallenge
	}
	e.log.Info().Str("challenger", challenger).Strs("targets", targets).Msg("challenges cancelled")
	return targets, nil
}

// Pending lists challenges addressed to target, oldest first.
func (e *Engine) Pending(ctx context.Context, target string) []ChallengeInfo {
	e.mu.Lock()
	defer e.unlock(ctx)

	var cs []*game.Challenge
	for _, c := range e.challenges {
		if c.Target == target {
			cs = append(cs, c)
		}
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].Seq < cs[j].Seq })
	now := e.opts.Clock.Now()
	out := make([]ChallengeInfo, 0, len(cs))
	for _, c := range cs {
		left := e.opts.ChallengeTTL - now.Sub(c.CreatedAt)
		if left < 0 {
			left = 0
		}
		out = append(out, ChallengeInfo{ID: c.ID, Proposer: c.Proposer, Target: c.Target, Expires: left})
	}
	return out
}

// MatchGuessResult describes one guess inside a match.
type MatchGuessResult struct {
	MatchID      string             `json:"match_id"`
	Direction    game.Direction     `json:"direction"`
	Outcome      Outcome            `json:"outcome"`
	AttemptsUsed int                `json:"attempts_used"`
	AttemptsLeft int                `json:"attempts_left"`
	Points       int                `json:"points,omitempty"`
	Secret       int                `json:"secret,omitempty"`
	Quests       []quest.Completion `json:"quests,omitempty"`
}

// SubmitMatchGuess applies a guess to the player's match. The first correct
// guess wins. A spent budget only blocks further guesses from that side; the
// match stays active until a win or the match timeout.
func (e *Engine) SubmitMatchGuess(ctx context.Context, id, text string) (MatchGuessResult, error) {
	e.mu.Lock()
	defer e.unlock(ctx)

	mid, ok := e.matchOf[id]
	if !ok {
		return MatchGuessResult{}, ErrNoActiveMatch
	}
	m := e.matches[mid]
	v, err := game.ParseGuess(text)
	if err != nil {
		return MatchGuessResult{}, err
	}
	dir, err := m.Guess(id, v)
	if err != nil {
		return MatchGuessResult{}, err
	}

	res := MatchGuessResult{
		MatchID:      mid,
		Direction:    dir,
		Outcome:      OutcomeContinue,
		AttemptsUsed: m.Attempts[id],
		AttemptsLeft: m.AttemptsLeft(id),
	}
	other := m.Other(id)

	switch {
	case dir == game.DirCorrect:
		e.closeMatch(m, id)
		winner, loser := e.players.Get(id), e.players.Get(other)
		pts := progression.PvPAward(m.Attempts[id], m.MaxAttempts, m.Level)
		winner.AddScore(pts)
		winner.PvPWins++
		loser.PvPLosses++
		res.Outcome, res.Points, res.Secret = OutcomeWon, pts, m.Secret
		res.Quests = e.progress(winner, quest.FamilyPvPWins, 1)
		e.emit(other, notify.KindMatchLost, map[string]any{
			"match":    mid,
			"winner":   id,
			"secret":   m.Secret,
			"attempts": m.Attempts[id],
		})
		e.log.Info().Str("match", mid).Str("winner", id).Int("points", pts).Msg("match won")
		e.save(ctx)

	default:
		e.emit(other, notify.KindOpponentGuessed, map[string]any{
			"match":         mid,
			"attempts_used": m.Attempts[id],
			"attempts_left": m.AttemptsLeft(id),
		})
	}
	return res, nil
}

// closeMatch resolves m and frees both players.
func (e *Engine) closeMatch(m *game.Match, winner string) {
	m.Resolve(winner)
	delete(e.matches, m.ID)
	delete(e.matchOf, m.Challenger)
	delete(e.matchOf, m.Opponent)
}

// expireMatch is the match timeout callback. Both players lose.
func (e *Engine) expireMatch(mid string) {
	ctx := context.Background()
	e.mu.Lock()
	defer e.unlock(ctx)

	m, ok := e.matches[mid]
	if !ok || m.State != game.MatchActive {
		e.log.Debug().Str("match", mid).Msg("stale match timeout ignored")
		return
	}
	m.Arm(nil)
	e.closeMatch(m, "")
	for _, p := range []string{m.Challenger, m.Opponent} {
		e.players.Get(p).PvPLosses++
		e.emit(p, notify.KindMatchTimeout, map[string]any{"match": mid, "secret": m.Secret})
	}
	e.log.Info().Str("match", mid).Msg("match timed out")
	e.save(ctx)
}

// expireChallenge is the challenge TTL callback.
func (e *Engine) expireChallenge(cid string) {
	ctx := context.Background()
	e.mu.Lock()
	defer e.unlock(ctx)

	c, ok := e.challenges[cid]
	if !ok {
		return
	}
	delete(e.challenges, cid)
	c.Arm(nil)
	c.Close(game.ChallengeExpired)
	e.emit(c.Proposer, notify.KindChallengeExpired, map[string]any{"challenge": cid, "to": c.Target})
	e.log.Debug().Str("challenge", cid).Msg("challenge expired")
}
