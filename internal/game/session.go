// internal/game/session.go
//
// Single-player session state transitions.
// Responsibilities:
//   - Count guesses and answer higher/lower/correct.
//   - Report budget exhaustion (the engine decides the outcome).
//   - Produce parity and range hints.
//   - Own the cancel handle of the session's timeout.
//
// Notes:
//   - Sessions are not safe for concurrent use; the engine serialises access.
package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/xuantien37/telegram-guess-number-bot/internal/progression"
)

// rangeHintDivisor sets the half-width of a range hint as a fraction of the span.
const rangeHintDivisor = 4

// NewSession constructs a session for player at level with the given secret.
func NewSession(player string, level int, d progression.Difficulty, secret int, now time.Time) *Session {
	return &Session{
		ID:          uuid.NewString(),
		Player:      player,
		Secret:      secret,
		Low:         d.Low,
		High:        d.High,
		Level:       level,
		MaxAttempts: d.MaxAttempts,
		Penalty:     d.Penalty,
		HintsUsed:   make(map[string]bool),
		StartedAt:   now,
	}
}

// Guess records one attempt and compares it with the secret.
func (s *Session) Guess(v int) Direction {
	s.AttemptsUsed++
	return compare(s.Secret, v)
}

// AttemptsLeft returns the remaining budget.
func (s *Session) AttemptsLeft() int {
	if left := s.MaxAttempts - s.AttemptsUsed; left > 0 {
		return left
	}
	return 0
}

// Exhausted reports whether the budget is spent.
func (s *Session) Exhausted() bool { return s.AttemptsUsed >= s.MaxAttempts }

// ParityHint returns "even" or "odd".
func (s *Session) ParityHint() string {
	if s.Secret%2 == 0 {
		return "even"
	}
	return "odd"
}

// RangeHint returns an interval centred on the secret, a quarter of the span
// wide on each side, clipped to the session range.
func (s *Session) RangeHint() (lo, hi int) {
	half := (s.High - s.Low + 1) / rangeHintDivisor
	lo, hi = s.Secret-half, s.Secret+half
	if lo < s.Low {
		lo = s.Low
	}
	if hi > s.High {
		hi = s.High
	}
	return lo, hi
}

// Redraw replaces the secret and forgets consumed hints, since they described
// the old number.
func (s *Session) Redraw(secret int) {
	s.Secret = secret
	s.HintsUsed = make(map[string]bool)
}

// Arm stores the cancel handle of the session timeout.
func (s *Session) Arm(cancel func()) { s.cancel = cancel }

// Disarm cancels the pending timeout, if any.
func (s *Session) Disarm() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
