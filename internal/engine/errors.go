package engine

import (
	"errors"

	"github.com/xuantien37/telegram-guess-number-bot/internal/daily"
	"github.com/xuantien37/telegram-guess-number-bot/internal/game"
	"github.com/xuantien37/telegram-guess-number-bot/internal/shop"
)

// Guard-rail errors. None of them changes state.
var (
	ErrAlreadyActive      = errors.New("a game is already in progress")
	ErrNoActiveSession    = errors.New("no game in progress")
	ErrNoHintAvailable    = errors.New("no hint available")
	ErrNotUsable          = errors.New("item cannot be used during a game")
	ErrOutOfStock         = errors.New("item not in inventory")
	ErrSelfChallenge      = errors.New("cannot challenge yourself")
	ErrDuplicateChallenge = errors.New("challenge already pending")
	ErrNoPendingChallenge = errors.New("no pending challenge")
	ErrNoActiveMatch      = errors.New("no match in progress")
	ErrAlreadyInMatch     = errors.New("a match is already in progress")

	ErrInvalidInput        = game.ErrInvalidInput
	ErrNoAttemptsLeft      = game.ErrNoAttemptsLeft
	ErrUnknownItem         = shop.ErrUnknownItem
	ErrInsufficientFunds   = shop.ErrInsufficientFunds
	ErrAlreadyClaimedToday = daily.ErrAlreadyClaimedToday
)
