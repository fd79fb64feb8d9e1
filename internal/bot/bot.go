// internal/bot/bot.go
//
// Chat command handler.
// Turns one inbound message (player id + text) into engine calls and returns
// the reply lines. Commands start with "/"; anything else is a guess, routed
// to the player's match first and to the single-player session otherwise.

package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/xuantien37/telegram-guess-number-bot/internal/engine"
	"github.com/xuantien37/telegram-guess-number-bot/internal/game"
	"github.com/xuantien37/telegram-guess-number-bot/internal/quest"
	"github.com/xuantien37/telegram-guess-number-bot/internal/shop"
)

const defaultTop = 10

// Handler dispatches messages to the engine.
type Handler struct {
	e    *engine.Engine
	help []string
	log  zerolog.Logger
}

// New returns a handler. help is shown for /start and /help.
func New(e *engine.Engine, help []string, logger zerolog.Logger) *Handler {
	return &Handler{e: e, help: help, log: logger.With().Str("component", "bot").Logger()}
}

// Handle processes one message and returns the replies for the sender.
func (h *Handler) Handle(ctx context.Context, player, text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if !strings.HasPrefix(text, "/") {
		return h.guess(ctx, player, text)
	}

	fields := strings.Fields(text)
	cmd := strings.ToLower(fields[0])
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i] // "/play@SomeBot"
	}
	arg := ""
	if len(fields) > 1 {
		arg = strings.Join(fields[1:], " ")
	}
	h.log.Debug().Str("player", player).Str("cmd", cmd).Msg("command")

	switch cmd {
	case "/start", "/help":
		return h.help
	case "/play":
		return h.play(ctx, player)
	case "/forfeit":
		return h.forfeit(ctx, player)
	case "/hint":
		return h.hint(ctx, player, arg)
	case "/use":
		return h.use(ctx, player, arg)
	case "/shop":
		return h.shop()
	case "/buy":
		return h.buy(ctx, player, arg)
	case "/stats":
		return h.stats(ctx, player)
	case "/daily":
		return h.daily(ctx, player)
	case "/quests":
		return h.quests(ctx, player)
	case "/top":
		return h.top(ctx, arg)
	case "/challenge":
		return h.challenge(ctx, player, arg)
	case "/accept":
		return h.accept(ctx, player)
	case "/cancel":
		return h.cancel(ctx, player)
	case "/pending":
		return h.pending(ctx, player)
	default:
		return lines("Unknown command. Send /help.")
	}
}

func lines(s ...string) []string { return s }

func (h *Handler) play(ctx context.Context, player string) []string {
	v, err := h.e.StartSession(ctx, player)
	if err != nil {
		return h.fail(player, err)
	}
	return lines(
		fmt.Sprintf("Level %d: guess a number between %d and %d.", v.Level, v.Low, v.High),
		fmt.Sprintf("You have %d attempts and %s.", v.MaxAttempts, v.Timeout),
	)
}

func (h *Handler) guess(ctx context.Context, player, text string) []string {
	m, err := h.e.SubmitMatchGuess(ctx, player, text)
	if err == nil {
		return matchReply(m)
	}
	if !errors.Is(err, engine.ErrNoActiveMatch) {
		return h.fail(player, err)
	}

	g, err := h.e.SubmitGuess(ctx, player, text)
	if err != nil {
		return h.fail(player, err)
	}
	switch g.Outcome {
	case engine.OutcomeWon:
		out := []string{fmt.Sprintf("Correct! The number was %d. +%d points (score %d).", g.Secret, g.Points, g.Score)}
		if g.Doubled {
			out = append(out, "Double points applied.")
		}
		return append(out, questLines(g.Quests)...)
	case engine.OutcomeLost:
		out := []string{fmt.Sprintf("Out of attempts. The number was %d.", g.Secret)}
		if g.Protected {
			out = append(out, "Your streak protector saved your streak.")
		} else {
			out = append(out, fmt.Sprintf("-%d points (score %d).", g.Penalty, g.Score))
		}
		return append(out, questLines(g.Quests)...)
	default:
		return lines(fmt.Sprintf("%s. %d attempts left.", directionText(g.Direction), g.AttemptsLeft))
	}
}

func matchReply(m engine.MatchGuessResult) []string {
	switch m.Outcome {
	case engine.OutcomeWon:
		return append(lines(fmt.Sprintf("You won the match! The number was %d. +%d points.", m.Secret, m.Points)), questLines(m.Quests)...)
	default:
		return lines(fmt.Sprintf("[match] %s. %d attempts left.", directionText(m.Direction), m.AttemptsLeft))
	}
}

func directionText(d game.Direction) string {
	switch d {
	case game.DirHigher:
		return "Higher"
	case game.DirLower:
		return "Lower"
	default:
		return "Correct"
	}
}

func questLines(done []quest.Completion) []string {
	var out []string
	for _, c := range done {
		out = append(out, fmt.Sprintf("Quest %s completed! +%d points.", c.QuestID, c.Reward))
	}
	return out
}

func (h *Handler) forfeit(ctx context.Context, player string) []string {
	secret, err := h.e.Forfeit(ctx, player)
	if err != nil {
		return h.fail(player, err)
	}
	return lines(fmt.Sprintf("You gave up. The number was %d.", secret))
}

func (h *Handler) hint(ctx context.Context, player, arg string) []string {
	res, err := h.e.UseHint(ctx, player, strings.ToLower(arg))
	if err != nil {
		return h.fail(player, err)
	}
	if res.Kind == shop.HintParity {
		return lines(fmt.Sprintf("The number is %s.", res.Parity))
	}
	return lines(fmt.Sprintf("The number is between %d and %d.", res.Low, res.High))
}

func (h *Handler) use(ctx context.Context, player, arg string) []string {
	if arg == "" {
		return lines("Usage: /use extra_attempt|change_secret")
	}
	res, err := h.e.UseItem(ctx, player, shop.NormalizeID(arg))
	if err != nil {
		return h.fail(player, err)
	}
	if res.Item == shop.ItemChangeSecret {
		return lines("A new number was drawn. Hints used so far no longer apply.")
	}
	return lines(fmt.Sprintf("One more attempt. %d attempts left.", res.AttemptsLeft))
}

func (h *Handler) shop() []string {
	out := []string{"Shop:"}
	for _, it := range h.e.Catalog() {
		name := it.Name
		if name == "" {
			name = it.ID
		}
		out = append(out, fmt.Sprintf("%s - %s: %d points", it.ID, name, it.Price))
	}
	return append(out, "Buy with /buy <item>.")
}

func (h *Handler) buy(ctx context.Context, player, arg string) []string {
	if arg == "" {
		return lines("Usage: /buy <item>")
	}
	res, err := h.e.Purchase(ctx, player, shop.NormalizeID(arg))
	if err != nil {
		return h.fail(player, err)
	}
	if res.BonusUses > 0 {
		return lines(fmt.Sprintf("Bought %s. %d uses active. Score %d.", res.Item.ID, res.BonusUses, res.Score))
	}
	return lines(fmt.Sprintf("Bought %s. You own %d. Score %d.", res.Item.ID, res.Owned, res.Score))
}

func (h *Handler) stats(ctx context.Context, player string) []string {
	p := h.e.Profile(ctx, player)
	r := p.Record
	out := lines(
		fmt.Sprintf("Score %d, level %d.", r.Score, p.Level),
		fmt.Sprintf("Games %d: %d won, %d lost. Streak %d (best %d).", r.GamesPlayed, r.Wins, r.Losses, r.CurrentStreak, r.MaxStreak),
		fmt.Sprintf("PvP: %d won, %d lost.", r.PvPWins, r.PvPLosses),
	)
	if len(r.Inventory) > 0 {
		out = append(out, "Inventory: "+formatCounts(r.Inventory))
	}
	if len(r.ActiveBonuses) > 0 {
		out = append(out, "Bonuses: "+formatCounts(r.ActiveBonuses))
	}
	if p.Session != nil {
		out = append(out, fmt.Sprintf("Game in progress: %d-%d, %d/%d attempts used.", p.Session.Low, p.Session.High, p.Session.AttemptsUsed, p.Session.MaxAttempts))
	}
	if p.MatchID != "" {
		out = append(out, "Match in progress.")
	}
	return out
}

func (h *Handler) daily(ctx context.Context, player string) []string {
	res, err := h.e.ClaimDaily(ctx, player)
	if err != nil {
		return h.fail(player, err)
	}
	out := lines(fmt.Sprintf("Daily reward: +%d points (day %d in a row). Score %d.", res.Reward, res.Streak, res.Score))
	return append(out, questLines(res.Quests)...)
}

func (h *Handler) quests(ctx context.Context, player string) []string {
	out := []string{"Quests:"}
	for _, q := range h.e.Quests(ctx, player) {
		mark := " "
		if q.Completed {
			mark = "x"
		}
		out = append(out, fmt.Sprintf("[%s] %s %d/%d (+%d)", mark, q.ID, q.Progress, q.Goal, q.Reward))
	}
	return out
}

func (h *Handler) top(ctx context.Context, arg string) []string {
	n := defaultTop
	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v <= 0 {
			return lines("Usage: /top [count]")
		}
		n = v
	}
	recs := h.e.Leaderboard(ctx, n)
	if len(recs) == 0 {
		return lines("Nobody has played yet.")
	}
	out := []string{"Leaderboard:"}
	for i, r := range recs {
		out = append(out, fmt.Sprintf("%d. %s - %d", i+1, r.ID, r.Score))
	}
	return out
}

func (h *Handler) challenge(ctx context.Context, player, arg string) []string {
	opponent := strings.TrimPrefix(arg, "@")
	if opponent == "" {
		return lines("Usage: /challenge <player>")
	}
	c, err := h.e.Propose(ctx, player, opponent)
	if err != nil {
		return h.fail(player, err)
	}
	return lines(fmt.Sprintf("Challenge sent to %s. It expires in %s.", c.Target, c.Expires))
}

func (h *Handler) accept(ctx context.Context, player string) []string {
	m, err := h.e.Accept(ctx, player)
	if err != nil {
		return h.fail(player, err)
	}
	return lines(
		fmt.Sprintf("Match against %s started at level %d.", m.Challenger, m.Level),
		fmt.Sprintf("Guess a number between %d and %d. You each have %d attempts and %s.", m.Low, m.High, m.MaxAttempts, m.Timeout),
	)
}

func (h *Handler) cancel(ctx context.Context, player string) []string {
	targets, err := h.e.Cancel(ctx, player)
	if err != nil {
		return h.fail(player, err)
	}
	return lines("Challenge withdrawn: " + strings.Join(targets, ", "))
}

func (h *Handler) pending(ctx context.Context, player string) []string {
	cs := h.e.Pending(ctx, player)
	if len(cs) == 0 {
		return lines("No pending challenges.")
	}
	out := []string{"Pending challenges:"}
	for _, c := range cs {
		out = append(out, fmt.Sprintf("%s (expires in %s)", c.Proposer, c.Expires))
	}
	return out
}

func formatCounts(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s x%d", k, m[k]))
	}
	return strings.Join(parts, ", ")
}
