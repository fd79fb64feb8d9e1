// Package notify carries outbound events from the engine to players.
//
// The engine emits structured notifications (a kind plus data fields); a
// transport decides how to render and deliver them.
package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Kind names an outbound event.
type Kind string

const (
	KindSessionTimeout     Kind = "session_timeout"
	KindQuestCompleted     Kind = "quest_completed"
	KindChallengeReceived  Kind = "challenge_received"
	KindChallengeAccepted  Kind = "challenge_accepted"
	KindChallengeCancelled Kind = "challenge_cancelled"
	KindChallengeExpired   Kind = "challenge_expired"
	KindOpponentGuessed    Kind = "opponent_guessed"
	KindMatchLost          Kind = "match_lost"
	KindMatchTimeout       Kind = "match_timeout"
)

// Notification is one event addressed to a player.
type Notification struct {
	Player string         `json:"player"`
	Kind   Kind           `json:"kind"`
	Data   map[string]any `json:"data,omitempty"`
}

// Notifier delivers notifications. Implementations must not call back into the engine synchronously.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, x := range m {
		x.Notify(ctx, n)
	}
}

// Log writes notifications to a zerolog logger.
type Log struct{ Logger zerolog.Logger }

// Notify implements Notifier.
func (l Log) Notify(_ context.Context, n Notification) {
	l.Logger.Debug().Str("player", n.Player).Str("kind", string(n.Kind)).Interface("data", n.Data).Msg("notify")
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu  sync.Mutex
	all []Notification
}

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, n)
}

// All returns a copy of everything recorded.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.all...)
}

// For returns notifications addressed to player.
func (r *Recorder) For(player string) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.all {
		if n.Player == player {
			out = append(out, n)
		}
	}
	return out
}

// Count returns how many notifications of kind player received.
func (r *Recorder) Count(player string, kind Kind) int {
	n := 0
	for _, x := range r.For(player) {
		if x.Kind == kind {
			n++
		}
	}
	return n
}
