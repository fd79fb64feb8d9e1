// internal/game/types.go
//
// State for the entities the engine owns.
// Defines:
//   - Direction: the answer to a guess (higher/lower/correct).
//   - Session: one single-player game in progress.
//   - Match: one head-to-head contest sharing a secret.
//   - Challenge: a pending proposal to start a Match.

package game

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Direction tells the player where the secret lies relative to a guess.
//   - "higher":  the secret is above the guess.
//   - "lower":   the secret is below the guess.
//   - "correct": the guess matched.
type Direction string

const (
	DirHigher  Direction = "higher"
	DirLower   Direction = "lower"
	DirCorrect Direction = "correct"
)

// ErrInvalidInput is returned for guesses that are not base-10 integers.
var ErrInvalidInput = errors.New("guess must be a whole number")

// ParseGuess reads a guess typed by a player.
func ParseGuess(text string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, ErrInvalidInput
	}
	return v, nil
}

func compare(secret, guess int) Direction {
	switch {
	case guess < secret:
		return DirHigher
	case guess > secret:
		return DirLower
	default:
		return DirCorrect
	}
}

// Session holds the state of one single-player game.
type Session struct {
	ID           string          // Unique id, used to discard stale timeouts.
	Player       string          // Owner.
	Secret       int             // The number to guess.
	Low, High    int             // Inclusive range shown to the player.
	Level        int             // Level the difficulty was taken from.
	MaxAttempts  int             // Guess budget.
	AttemptsUsed int             // Guesses made so far.
	Penalty      int             // Points lost if the budget runs out.
	HintsUsed    map[string]bool // Hint kinds already consumed.
	StartedAt    time.Time

	cancel func()
}

// ChallengeState is the lifecycle of a Challenge.
type ChallengeState string

const (
	ChallengeProposed  ChallengeState = "proposed"
	ChallengeAccepted  ChallengeState = "accepted"
	ChallengeCancelled ChallengeState = "cancelled"
	ChallengeExpired   ChallengeState = "expired"
)

// Challenge is a proposal from Proposer to Target.
type Challenge struct {
	ID        string
	Proposer  string
	Target    string
	State     ChallengeState
	CreatedAt time.Time
	Seq       uint64 // creation order; lower is older

	cancel func()
}

// MatchState is the lifecycle of a Match.
type MatchState string

const (
	MatchActive   MatchState = "active"
	MatchResolved MatchState = "resolved"
)

// Match holds a two-player contest.
type Match struct {
	ID          string
	Challenger  string
	Opponent    string
	Secret      int
	Low, High   int
	Level       int
	MaxAttempts int            // budget for each side
	Attempts    map[string]int // per-player guesses
	State       MatchState
	Winner      string // empty when nobody won
	StartedAt   time.Time

	cancel func()
}
