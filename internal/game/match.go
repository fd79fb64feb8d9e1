package game

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/xuantien37/telegram-guess-number-bot/internal/progression"
)

var (
	// ErrNotParticipant is returned when a player outside the match guesses.
	ErrNotParticipant = errors.New("player is not in this match")
	// ErrNoAttemptsLeft is returned when a side has spent its budget.
	ErrNoAttemptsLeft = errors.New("no attempts left in this match")
)

// NewChallenge creates a proposed challenge.
func NewChallenge(proposer, target string, seq uint64, now time.Time) *Challenge {
	return &Challenge{
		ID:        uuid.NewString(),
		Proposer:  proposer,
		Target:    target,
		State:     ChallengeProposed,
		CreatedAt: now,
		Seq:       seq,
	}
}

// Arm stores the cancel handle of the challenge expiry.
func (c *Challenge) Arm(cancel func()) { c.cancel = cancel }

// Close moves the challenge to a terminal state and cancels its expiry.
func (c *Challenge) Close(state ChallengeState) {
	c.State = state
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// NewMatch creates an active match between challenger and opponent.
func NewMatch(challenger, opponent string, level int, d progression.Difficulty, secret int, now time.Time) *Match {
	return &Match{
		ID:          uuid.NewString(),
		Challenger:  challenger,
		Opponent:    opponent,
		Secret:      secret,
		Low:         d.Low,
		High:        d.High,
		Level:       level,
		MaxAttempts: d.MaxAttempts,
		Attempts:    map[string]int{challenger: 0, opponent: 0},
		State:       MatchActive,
		StartedAt:   now,
	}
}

// Involves reports whether p plays in the match.
func (m *Match) Involves(p string) bool { return p == m.Challenger || p == m.Opponent }

// Other returns the opponent of p.
func (m *Match) Other(p string) string {
	if p == m.Challenger {
		return m.Opponent
	}
	return m.Challenger
}

// Guess records an attempt by p.
func (m *Match) Guess(p string, v int) (Direction, error) {
	if !m.Involves(p) {
		return "", ErrNotParticipant
	}
	if m.Attempts[p] >= m.MaxAttempts {
		return "", ErrNoAttemptsLeft
	}
	m.Attempts[p]++
	return compare(m.Secret, v), nil
}

// AttemptsLeft returns p's remaining budget.
func (m *Match) AttemptsLeft(p string) int {
	if left := m.MaxAttempts - m.Attempts[p]; left > 0 {
		return left
	}
	return 0
}

// Arm stores the cancel handle of the match timeout.
func (m *Match) Arm(cancel func()) { m.cancel = cancel }

// Resolve ends the match with winner ("" for none) and cancels the timeout.
func (m *Match) Resolve(winner string) {
	m.State = MatchResolved
	m.Winner = winner
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}
