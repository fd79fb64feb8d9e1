// internal/engine/engine.go
//
// Session/state engine.
// Responsibilities:
//   - Own every mutable entity: player records, sessions, challenges, matches.
//   - Serialise all mutations (player commands and timeout callbacks) through one lock.
//   - Save the player mapping after every mutating operation.
//   - Queue notifications while locked and deliver them after unlocking.
//
// Notes:
//   - Timeout callbacks carry the id of the entity they guard and act only if
//     that exact entity is still registered. Resolving an entity removes it and
//     cancels its timer in the same critical section, so exactly one terminal
//     outcome is ever recorded.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/xuantien37/telegram-guess-number-bot/internal/daily"
	"github.com/xuantien37/telegram-guess-number-bot/internal/game"
	"github.com/xuantien37/telegram-guess-number-bot/internal/notify"
	"github.com/xuantien37/telegram-guess-number-bot/internal/player"
	"github.com/xuantien37/telegram-guess-number-bot/internal/progression"
	"github.com/xuantien37/telegram-guess-number-bot/internal/quest"
	"github.com/xuantien37/telegram-guess-number-bot/internal/shop"
	"github.com/xuantien37/telegram-guess-number-bot/internal/store"
	"github.com/xuantien37/telegram-guess-number-bot/internal/timer"
)

// Default durations.
const (
	DefaultSessionTimeout = 5 * time.Minute
	DefaultMatchTimeout   = 10 * time.Minute
	DefaultChallengeTTL   = 2 * time.Minute
)

// Options wires the engine to its tables and collaborators.
// Levels, Catalog, Quests and Scheduler are required.
type Options struct {
	Levels    *progression.Table
	Catalog   *shop.Catalog
	Quests    *quest.Tracker
	Daily     daily.Rules
	Store     store.Store     // default: in-memory
	Scheduler timer.Scheduler // session, match and challenge deadlines
	Notifier  notify.Notifier // default: log only
	Clock     clockwork.Clock // default: real clock
	Rand      progression.Source
	Logger    zerolog.Logger

	SessionTimeout time.Duration
	MatchTimeout   time.Duration // must exceed SessionTimeout
	ChallengeTTL   time.Duration
	TrimEdges      bool // keep secrets away from the outer tenth of the range
}

// Engine is the single writer for all game state.
type Engine struct {
	opts Options
	log  zerolog.Logger

	mu         sync.Mutex
	players    player.Book
	sessions   map[string]*game.Session   // by player
	matches    map[string]*game.Match     // by match id
	matchOf    map[string]string          // player -> match id
	challenges map[string]*game.Challenge // by challenge id
	seq        uint64
	outbox     []notify.Notification
}

// New validates opts, loads the player mapping and returns a ready engine.
// A store that fails to load is logged and the engine starts empty.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Levels == nil || opts.Catalog == nil || opts.Quests == nil {
		return nil, errors.New("engine: levels, catalog and quests are required")
	}
	if opts.Scheduler == nil {
		return nil, errors.New("engine: scheduler is required")
	}
	if opts.Store == nil {
		opts.Store = store.NewMemoryStore()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Rand == nil {
		opts.Rand = progression.CryptoSource{}
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Log{Logger: opts.Logger}
	}
	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = DefaultSessionTimeout
	}
	if opts.MatchTimeout <= 0 {
		opts.MatchTimeout = DefaultMatchTimeout
	}
	if opts.ChallengeTTL <= 0 {
		opts.ChallengeTTL = DefaultChallengeTTL
	}
	if opts.MatchTimeout <= opts.SessionTimeout {
		return nil, fmt.Errorf("engine: match timeout %s must exceed session timeout %s", opts.MatchTimeout, opts.SessionTimeout)
	}

	e := &Engine{
		opts:       opts,
		log:        opts.Logger.With().Str("component", "engine").Logger(),
		players:    player.Book{},
		sessions:   make(map[string]*game.Session),
		matches:    make(map[string]*game.Match),
		matchOf:    make(map[string]string),
		challenges: make(map[string]*game.Challenge),
	}

	recs, err := opts.Store.Load(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("load players failed, starting empty")
		recs = nil
	}
	for id, r := range recs {
		if r == nil {
			continue
		}
		r.ID = id
		r.Normalize()
		e.players[id] = r
	}
	e.log.Info().Int("players", len(e.players)).Msg("engine ready")
	return e, nil
}

// unlock releases the lock and delivers the notifications queued under it.
func (e *Engine) unlock(ctx context.Context) {
	notes := e.outbox
	e.outbox = nil
	e.mu.Unlock()
	for _, n := range notes {
		e.opts.Notifier.Notify(ctx, n)
	}
}

func (e *Engine) emit(playerID string, kind notify.Kind, data map[string]any) {
	e.outbox = append(e.outbox, notify.Notification{Player: playerID, Kind: kind, Data: data})
}

// save persists the mapping. Failures are logged; memory stays authoritative.
func (e *Engine) save(ctx context.Context) {
	if err := e.opts.Store.Save(ctx, e.players); err != nil {
		e.log.Error().Err(err).Msg("save players failed")
	}
}

func (e *Engine) draw(d progression.Difficulty) int {
	return progression.Draw(e.opts.Rand, d, e.opts.TrimEdges)
}

// progress feeds a quest family and announces completions.
func (e *Engine) progress(rec *player.Record, family string, delta int) []quest.Completion {
	done := e.opts.Quests.RecordProgress(rec, family, delta)
	e.announce(rec.ID, done)
	return done
}

func (e *Engine) streak(rec *player.Record, family string, value int) []quest.Completion {
	done := e.opts.Quests.RecordStreak(rec, family, value)
	e.announce(rec.ID, done)
	return done
}

func (e *Engine) announce(playerID string, done []quest.Completion) {
	for _, c := range done {
		e.log.Info().Str("player", playerID).Str("quest", c.QuestID).Int("reward", c.Reward).Msg("quest completed")
		e.emit(playerID, notify.KindQuestCompleted, map[string]any{"quest": c.QuestID, "reward": c.Reward})
	}
}

// Profile is a read-only view of a player.
type Profile struct {
	Record  *player.Record `json:"record"`
	Level   int            `json:"level"`
	Session *SessionView   `json:"session,omitempty"`
	MatchID string         `json:"match_id,omitempty"`
}

// Profile returns a copy of the player's record, creating it on first reference.
func (e *Engine) Profile(ctx context.Context, id string) Profile {
	e.mu.Lock()
	defer e.unlock(ctx)
	rec := e.players.Get(id)
	p := Profile{Record: rec.Clone(), Level: e.opts.Levels.LevelFor(rec.Score), MatchID: e.matchOf[id]}
	if s, ok := e.sessions[id]; ok {
		v := viewOf(s)
		p.Session = &v
	}
	return p
}

// Leaderboard returns the top players by score.
func (e *Engine) Leaderboard(ctx context.Context, limit int) []*player.Record {
	e.mu.Lock()
	defer e.unlock(ctx)
	return e.players.Top(limit)
}

// Catalog lists purchasable items.
func (e *Engine) Catalog() []shop.Item { return e.opts.Catalog.Items() }

// QuestStatus pairs a quest with a player's progress on it.
type QuestStatus struct {
	quest.Quest
	Progress  int  `json:"progress"`
	Completed bool `json:"completed"`
}

// Quests returns the player's progress on every quest.
func (e *Engine) Quests(ctx context.Context, id string) []QuestStatus {
	e.mu.Lock()
	defer e.unlock(ctx)
	rec := e.players.Get(id)
	qs := e.opts.Quests.Quests()
	out := make([]QuestStatus, 0, len(qs))
	for _, q := range qs {
		out = append(out, QuestStatus{Quest: q, Progress: rec.QuestProgress[q.ID], Completed: rec.HasCompleted(q.ID)})
	}
	return out
}

// Close cancels every pending timer and saves once more. In-flight sessions,
// matches and challenges are dropped without outcome.
func (e *Engine) Close(ctx context.Context) {
	e.mu.Lock()
	defer e.unlock(ctx)
	for id, s := range e.sessions {
		s.Disarm()
		delete(e.sessions, id)
	}
	for id, m := range e.matches {
		m.Resolve("")
		delete(e.matches, id)
	}
	e.matchOf = make(map[string]string)
	for id, c := range e.challenges {
		c.Close(game.ChallengeCancelled)
		delete(e.challenges, id)
	}
	e.save(ctx)
}
