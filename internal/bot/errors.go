package bot

import (
	"errors"

	"github.com/xuantien37/telegram-guess-number-bot/internal/engine"
)

// userMessages maps guard-rail errors to replies.
var userMessages = []struct {
	err error
	msg string
}{
	{engine.ErrInvalidInput, "Send a whole number."},
	{engine.ErrAlreadyActive, "You already have a game in progress."},
	{engine.ErrNoActiveSession, "No game in progress. Send /play to start."},
	{engine.ErrNoHintAvailable, "No hint available. Buy one in the /shop or try another kind."},
	{engine.ErrNotUsable, "That item cannot be used during a game."},
	{engine.ErrOutOfStock, "You do not own that item."},
	{engine.ErrUnknownItem, "There is no such item. See /shop."},
	{engine.ErrInsufficientFunds, "Not enough points."},
	{engine.ErrAlreadyClaimedToday, "You already claimed today's reward."},
	{engine.ErrSelfChallenge, "You cannot challenge yourself."},
	{engine.ErrDuplicateChallenge, "You already challenged that player."},
	{engine.ErrNoPendingChallenge, "No pending challenge."},
	{engine.ErrNoActiveMatch, "No match in progress."},
	{engine.ErrAlreadyInMatch, "One of you is already in a match."},
	{engine.ErrNoAttemptsLeft, "You are out of attempts. Wait for your opponent."},
}

func (h *Handler) fail(player string, err error) []string {
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return lines(m.msg)
		}
	}
	h.log.Error().Err(err).Str("player", player).Msg("command failed")
	return lines("Something went wrong. Please try again.")
}
