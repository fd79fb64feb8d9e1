package engine

import (
	"context"
	"errors"
	"testing"
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

// fixedSecret makes every draw over a range starting at 1 return the same value.
type fixedSecret int

func (f fixedSecret) Intn(n int) int { return (int(f) - 1) % n }

// racyScheduler hands out cancel funcs that do nothing, so actions fire even
// after the entity they guard was resolved.
type racyScheduler struct{ *timer.Manual }

func (r racyScheduler) After(d time.Duration, fn func()) (timer.Cancel, error) {
	if _, err := r.Manual.After(d, fn); err != nil {
		return nil, err
	}
	return func() {}, nil
}

type failingStore struct{ saves int }

func (f *failingStore) Load(context.Context) (map[string]*player.Record, error) {
	return nil, errors.New("disk on fire")
}

func (f *failingStore) Save(context.Context, map[string]*player.Record) error {
	f.saves++
	return errors.New("disk on fire")
}

type harness struct {
	e     *Engine
	sched *timer.Manual
	notes *notify.Recorder
	store store.Memory
	clock *clockwork.FakeClock
}

func testLevels(t *testing.T) *progression.Table {
	t.Helper()
	tbl, err := progression.NewTable([]progression.Level{
		{Level: 1, MinScore: 0, Difficulty: progression.Difficulty{Low: 1, High: 50, MaxAttempts: 7, Penalty: 5}},
		{Level: 2, MinScore: 100, Difficulty: progression.Difficulty{Low: 1, High: 100, MaxAttempts: 7, Penalty: 10}},
		{Level: 3, MinScore: 300, Difficulty: progression.Difficulty{Low: 1, High: 200, MaxAttempts: 6, Penalty: 15}},
		{Level: 4, MinScore: 600, Difficulty: progression.Difficulty{Low: 1, High: 400, MaxAttempts: 6, Penalty: 20}},
		{Level: 5, MinScore: 1000, Difficulty: progression.Difficulty{Low: 1, High: 500, MaxAttempts: 5, Penalty: 25}},
	})
	if err != nil {
		t.Fatalf("levels: %v", err)
	}
	return tbl
}

func testCatalog(t *testing.T) *shop.Catalog {
	t.Helper()
	c, err := shop.NewCatalog([]shop.Item{
		{ID: shop.ItemHintParity, Price: 20, Category: shop.CategoryHint, HintKind: shop.HintParity},
		{ID: shop.ItemHintRange, Price: 40, Category: shop.CategoryHint, HintKind: shop.HintRange},
		{ID: shop.ItemExtraAttempt, Price: 30, Category: shop.CategoryGame},
		{ID: shop.ItemChangeSecret, Price: 50, Category: shop.CategoryGame},
		{ID: shop.ItemStreakProtector, Price: 60, Category: shop.CategoryGame},
		{ID: shop.ItemDoublePoints, Price: 80, Category: shop.CategoryBonus, Bonus: progression.BonusDoublePoints, Uses: 3},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

func noQuests(t *testing.T) *quest.Tracker {
	t.Helper()
	tr, err := quest.NewTracker(nil)
	if err != nil {
		t.Fatalf("quests: %v", err)
	}
	return tr
}

// newHarness builds an engine whose secrets are always 41 (when the range
// allows it). seed records are saved to the store before the engine loads.
func newHarness(t *testing.T, mod func(*Options), seed ...*player.Record) *harness {
	t.Helper()
	h := &harness{
		sched: timer.NewManual(),
		notes: &notify.Recorder{},
		store: store.NewMemoryStore(),
		clock: clockwork.NewFakeClockAt(time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)),
	}
	if len(seed) > 0 {
		m := make(map[string]*player.Record, len(seed))
		for _, r := range seed {
			r.Normalize()
			m[r.ID] = r
		}
		if err := h.store.Save(context.Background(), m); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	opts := Options{
		Levels:    testLevels(t),
		Catalog:   testCatalog(t),
		Quests:    noQuests(t),
		Daily:     daily.Rules{Base: 20, Increment: 5, CapMultiplier: 2},
		Store:     h.store,
		Scheduler: h.sched,
		Notifier:  h.notes,
		Clock:     h.clock,
		Rand:      fixedSecret(41),
		Logger:    zerolog.Nop(),
	}
	if mod != nil {
		mod(&opts)
	}
	e, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	h.e = e
	return h
}

func (h *harness) record(t *testing.T, id string) *player.Record {
	t.Helper()
	return h.e.Profile(context.Background(), id).Record
}

func withScore(id string, score int) *player.Record {
	r := player.New(id)
	r.Score = score
	return r
}

func TestWinningSequence(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	v, err := h.e.StartSession(ctx, "alice")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if v.Level != 1 || v.Low != 1 || v.High != 50 || v.MaxAttempts != 7 {
		t.Fatalf("view = %+v", v)
	}

	want := []game.Direction{game.DirHigher, game.DirHigher, game.DirLower, game.DirLower, game.DirCorrect}
	var last GuessResult
	for i, g := range []string{"25", "40", "45", "42", "41"} {
		res, err := h.e.SubmitGuess(ctx, "alice", g)
		if err != nil {
			t.Fatalf("guess %s: %v", g, err)
		}
		if res.Direction != want[i] {
			t.Fatalf("guess %s: direction %s, want %s", g, res.Direction, want[i])
		}
		last = res
	}
	if last.Outcome != OutcomeWon || last.Points != 50 || last.Score != 50 {
		t.Fatalf("result = %+v", last)
	}

	r := h.record(t, "alice")
	if r.Score != 50 || r.Wins != 1 || r.GamesPlayed != 1 || r.CurrentStreak != 1 || r.MaxStreak != 1 {
		t.Fatalf("record = %+v", r)
	}
	if h.sched.Pending() != 0 {
		t.Fatalf("timeout still pending after win")
	}
	if h.store.Saves() == 0 {
		t.Fatal("win was not saved")
	}
	if _, err := h.e.SubmitGuess(ctx, "alice", "41"); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("guess after win: %v", err)
	}
}

func TestSessionGuards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	if _, err := h.e.SubmitGuess(ctx, "alice", "1"); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("guess without session: %v", err)
	}
	if _, err := h.e.Forfeit(ctx, "alice"); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("forfeit without session: %v", err)
	}
	if _, err := h.e.StartSession(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := h.e.StartSession(ctx, "alice"); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("second start: %v", err)
	}
	for _, bad := range []string{"abc", "", "4.5", "12a"} {
		if _, err := h.e.SubmitGuess(ctx, "alice", bad); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("guess %q: %v", bad, err)
		}
	}
	p := h.e.Profile(ctx, "alice")
	if p.Session == nil || p.Session.AttemptsUsed != 0 {
		t.Fatalf("invalid input changed session: %+v", p.Session)
	}
}

func TestLossPenaltyFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, withScore("alice", 3))

	if _, err := h.e.StartSession(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	var res GuessResult
	for i := 0; i < 7; i++ {
		var err error
		res, err = h.e.SubmitGuess(ctx, "alice", "1")
		if err != nil {
			t.Fatalf("guess %d: %v", i, err)
		}
	}
	if res.Outcome != OutcomeLost || res.Penalty != 5 || res.Secret != 41 {
		t.Fatalf("result = %+v", res)
	}
	r := h.record(t, "alice")
	if r.Score != 0 || r.Losses != 1 || r.GamesPlayed != 1 || r.CurrentStreak != 0 {
		t.Fatalf("record = %+v", r)
	}
	if h.sched.Pending() != 0 {
		t.Fatal("timeout still pending after loss")
	}
}

func TestStreakProtectorWaivesPenalty(t *testing.T) {
	ctx := context.Background()
	seed := withScore("alice", 50)
	seed.CurrentStreak = 2
	seed.MaxStreak = 2
	seed.Inventory = map[string]int{shop.ItemStreakProtector: 1}
	h := newHarness(t, nil, seed)

	if _, err := h.e.StartSession(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	var res GuessResult
	for i := 0; i < 7; i++ {
		res, _ = h.e.SubmitGuess(ctx, "alice", "50")
	}
	if res.Outcome != OutcomeLost || !res.Protected || res.Penalty != 0 {
		t.Fatalf("result = %+v", res)
	}
	r := h.record(t, "alice")
	if r.Score != 50 || r.CurrentStreak != 2 || r.Count(shop.ItemStreakProtector) != 0 || r.Losses != 1 {
		t.Fatalf("record = %+v", r)
	}
}

func TestSessionTimeout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, withScore("alice", 40))

	if _, err := h.e.StartSession(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.sched.Advance(4 * time.Minute)
	if _, err := h.e.SubmitGuess(ctx, "alice", "10"); err != nil {
		t.Fatalf("guess: %v", err)
	}
	// The deadline runs from the start, not from the last guess.
	h.sched.Advance(time.Minute)

	if _, err := h.e.SubmitGuess(ctx, "alice", "41"); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("guess after timeout: %v", err)
	}
	r := h.record(t, "alice")
	if r.Score != 40 || r.Losses != 1 || r.GamesPlayed != 1 || r.CurrentStreak != 0 {
		t.Fatalf("record = %+v", r)
	}
	if n := h.notes.Count("alice", notify.KindSessionTimeout); n != 1 {
		t.Fatalf("timeout notifications = %d", n)
	}
}

func TestTimeoutAfterWinIsNoop(t *testing.T) {
	ctx := context.Background()
	sched := racyScheduler{timer.NewManual()}
	h := newHarness(t, func(o *Options) { o.Scheduler = sched })

	if _, err := h.e.StartSession(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if res, _ := h.e.SubmitGuess(ctx, "alice", "41"); res.Outcome != OutcomeWon {
		t.Fatalf("expected win, got %+v", res)
	}
	before := h.record(t, "alice")

	if fired := sched.Advance(time.Hour); fired != 1 {
		t.Fatalf("fired = %d", fired)
	}
	after := h.record(t, "alice")
	if after.Score != before.Score || after.Losses != 0 || after.Wins != 1 || after.GamesPlayed != 1 {
		t.Fatalf("stale timeout mutated record: %+v", after)
	}
	if n := h.notes.Count("alice", notify.KindSessionTimeout); n != 0 {
		t.Fatalf("stale timeout notified %d times", n)
	}
}

// heldScheduler runs actions on a real gocron scheduler but parks each one
// after it fires until release is closed.
type heldScheduler struct {
	*timer.Cron
	fired    chan struct{}
	release  chan struct{}
	finished chan struct{}
}

func (h heldScheduler) After(d time.Duration, fn func()) (timer.Cancel, error) {
	return h.Cron.After(d, func() {
		h.fired <- struct{}{}
		<-h.release
		fn()
		h.finished <- struct{}{}
	})
}

func TestWinWhileTimeoutJobRuns(t *testing.T) {
	ctx := context.Background()
	cron, err := timer.NewCron(clockwork.NewRealClock())
	if err != nil {
		t.Fatalf("cron: %v", err)
	}
	defer func() { _ = cron.Shutdown() }()

	sched := heldScheduler{
		Cron:     cron,
		fired:    make(chan struct{}, 1),
		release:  make(chan struct{}),
		finished: make(chan struct{}, 1),
	}
	h := newHarness(t, func(o *Options) {
		o.Scheduler = sched
		o.SessionTimeout = 20 * time.Millisecond
		o.MatchTimeout = time.Minute
	})

	if _, err := h.e.StartSession(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-sched.fired:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout job never fired")
	}

	// The job is running, so cancelling it from the win path must not wait on it.
	type result struct {
		res GuessResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := h.e.SubmitGuess(ctx, "alice", "41")
		done <- result{res, err}
	}()
	var got result
	select {
	case got = <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("win blocked on the running timeout job")
	}
	if got.err != nil || got.res.Outcome != OutcomeWon {
		t.Fatalf("guess = %+v, %v", got.res, got.err)
	}

	close(sched.release)
	select {
	case <-sched.finished:
	case <-time.After(3 * time.Second):
		t.Fatal("stale timeout callback did not return")
	}

	r := h.record(t, "alice")
	if r.Wins != 1 || r.Losses != 0 {
		t.Fatalf("record = %+v", r)
	}
	if n := h.notes.Count("alice", notify.KindSessionTimeout); n != 0 {
		t.Fatalf("timeout notifications = %d", n)
	}
}

func TestStaleTimeoutSparesNewSession(t *testing.T) {
	ctx := context.Background()
	sched := racyScheduler{timer.NewManual()}
	h := newHarness(t, func(o *Options) { o.Scheduler = sched })

	if _, err := h.e.StartSession(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	sched.Advance(time.Minute)
	if _, err := h.e.Forfeit(ctx, "alice"); err != nil {
		t.Fatalf("forfeit: %v", err)
	}
	if _, err := h.e.StartSession(ctx, "alice"); err != nil {
		t.Fatalf("restart: %v", err)
	}
	// First session's deadline passes; the second is still running.
	sched.Advance(4 * time.Minute)

	p := h.e.Profile(ctx, "alice")
	if p.Session == nil {
		t.Fatal("new session was destroyed by the old timeout")
	}
	if p.Record.Losses != 0 {
		t.Fatalf("losses = %d", p.Record.Losses)
	}
}

func TestForfeitChangesNoCounters(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, withScore("alice", 30))

	if _, err := h.e.StartSession(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	secret, err := h.e.Forfeit(ctx, "alice")
	if err != nil || secret != 41 {
		t.Fatalf("forfeit = %d, %v", secret, err)
	}
	r := h.record(t, "alice")
	if r.Score != 30 || r.Losses != 0 || r.GamesPlayed != 0 {
		t.Fatalf("record = %+v", r)
	}
	if h.sched.Pending() != 0 {
		t.Fatal("timeout still pending after forfeit")
	}
}

func TestHints(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, withScore("alice", 99))

	if _, err := h.e.UseHint(ctx, "alice", shop.HintParity); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("hint without session: %v", err)
	}
	if _, err := h.e.StartSession(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := h.e.UseHint(ctx, "alice", shop.HintParity); !errors.Is(err, ErrNoHintAvailable) {
		t.Fatalf("hint without item: %v", err)
	}
	if _, err := h.e.Purchase(ctx, "alice", shop.ItemHintParity); err != nil {
		t.Fatalf("buy parity: %v", err)
	}
	if _, err := h.e.Purchase(ctx, "alice", shop.ItemHintParity); err != nil {
		t.Fatalf("buy parity again: %v", err)
	}
	res, err := h.e.UseHint(ctx, "alice", shop.HintParity)
	if err != nil || res.Parity != "odd" {
		t.Fatalf("parity = %+v, %v", res, err)
	}
	if _, err := h.e.UseHint(ctx, "alice", shop.HintParity); !errors.Is(err, ErrNoHintAvailable) {
		t.Fatalf("second parity in one session: %v", err)
	}
	if got := h.record(t, "alice").Count(shop.ItemHintParity); got != 1 {
		t.Fatalf("parity stock = %d, want 1 (second use refused)", got)
	}

	if _, err := h.e.Purchase(ctx, "alice", shop.ItemHintRange); err != nil {
		t.Fatalf("buy range: %v", err)
	}
	res, err = h.e.UseHint(ctx, "alice", shop.HintRange)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	// 50/4 = 12 on each side of 41, clipped at 50.
	if res.Low != 29 || res.High != 50 {
		t.Fatalf("range = [%d,%d]", res.Low, res.High)
	}
	if _, err := h.e.UseHint(ctx, "alice", "colour"); !errors.Is(err, ErrNoHintAvailable) {
		t.Fatalf("unknown hint: %v", err)
	}
}

func TestBareHintUsesOwnedKind(t *testing.T) {
	ctx := context.Background()
	seed := withScore("alice", 0)
	seed.Inventory = map[string]int{shop.ItemHintRange: 1}
	h := newHarness(t, nil, seed)

	if _, err := h.e.StartSession(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	res, err := h.e.UseHint(ctx, "alice", "")
	if err != nil || res.Kind != shop.HintRange {
		t.Fatalf("bare hint = %+v, %v", res, err)
	}
	if _, err := h.e.UseHint(ctx, "alice", ""); !errors.Is(err, ErrNoHintAvailable) {
		t.Fatalf("bare hint with nothing left: %v", err)
	}
}

func TestUseItem(t *testing.T) {
	ctx := context.Background()
	seed := withScore("alice", 0)
	seed.Inventory = map[string]int{
		shop.ItemExtraAttempt:    1,
		shop.ItemChangeSecret:    1,
		shop.ItemStreakProtector: 1,
		shop.ItemHintParity:      1,
	}
	h := newHarness(t, nil, seed)

	if _, err := h.e.UseItem(ctx, "alice", shop.ItemExtraAttempt); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("use without session: %v", err)
	}
	if _, err := h.e.StartSession(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}

	res, err := h.e.UseItem(ctx, "alice", shop.ItemExtraAttempt)
	if err != nil || res.MaxAttempts != 8 || res.AttemptsLeft != 8 {
		t.Fatalf("extra attempt = %+v, %v", res, err)
	}
	if _, err := h.e.UseItem(ctx, "alice", shop.ItemExtraAttempt); !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("second extra attempt: %v", err)
	}

	if _, err := h.e.UseHint(ctx, "alice", shop.HintParity); err != nil {
		t.Fatalf("parity: %v", err)
	}
	if _, err := h.e.UseItem(ctx, "alice", shop.ItemChangeSecret); err != nil {
		t.Fatalf("change secret: %v", err)
	}
	if p := h.e.Profile(ctx, "alice"); len(p.Session.HintsUsed) != 0 {
		t.Fatalf("hints survived a new secret: %v", p.Session.HintsUsed)
	}

	cases := []struct {
		item string
		want error
	}{
		{shop.ItemStreakProtector, ErrNotUsable},
		{shop.ItemHintRange, ErrNotUsable},
		{"golden_ticket", ErrUnknownItem},
	}
	for _, c := range cases {
		if _, err := h.e.UseItem(ctx, "alice", c.item); !errors.Is(err, c.want) {
			t.Errorf("use %s: got %v, want %v", c.item, err, c.want)
		}
	}
	if got := h.record(t, "alice").Count(shop.ItemStreakProtector); got != 1 {
		t.Fatalf("protector consumed by refused use: %d", got)
	}
}

func TestPurchaseGuards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, withScore("alice", 25))

	if _, err := h.e.Purchase(ctx, "alice", "golden_ticket"); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("unknown: %v", err)
	}
	if _, err := h.e.Purchase(ctx, "alice", shop.ItemHintRange); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("too expensive: %v", err)
	}
	if r := h.record(t, "alice"); r.Score != 25 || len(r.Inventory) != 0 {
		t.Fatalf("failed purchase changed record: %+v", r)
	}
	res, err := h.e.Purchase(ctx, "alice", shop.ItemHintParity)
	if err != nil || res.Score != 5 || res.Owned != 1 {
		t.Fatalf("purchase = %+v, %v", res, err)
	}
}

func TestDoublePointsBonus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, withScore("alice", 80))

	res, err := h.e.Purchase(ctx, "alice", shop.ItemDoublePoints)
	if err != nil || res.BonusUses != 3 || res.Score != 0 {
		t.Fatalf("purchase = %+v, %v", res, err)
	}
	if _, err := h.e.StartSession(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	g, err := h.e.SubmitGuess(ctx, "alice", "41")
	if err != nil {
		t.Fatalf("guess: %v", err)
	}
	if !g.Doubled || g.Points != 180 {
		t.Fatalf("result = %+v", g)
	}
	if r := h.record(t, "alice"); r.BonusUses(progression.BonusDoublePoints) != 2 || r.Score != 180 {
		t.Fatalf("record = %+v", r)
	}
}

func TestClaimDaily(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	res, err := h.e.ClaimDaily(ctx, "alice")
	if err != nil || res.Reward != 25 || res.Streak != 1 || res.Date != "2026-10-16" {
		t.Fatalf("first claim = %+v, %v", res, err)
	}
	if _, err := h.e.ClaimDaily(ctx, "alice"); !errors.Is(err, ErrAlreadyClaimedToday) {
		t.Fatalf("second claim: %v", err)
	}
	if r := h.record(t, "alice"); r.Score != 25 {
		t.Fatalf("score after refused claim = %d", r.Score)
	}

	h.clock.Advance(24 * time.Hour)
	res, err = h.e.ClaimDaily(ctx, "alice")
	if err != nil || res.Streak != 2 || res.Reward != 30 || res.Score != 55 {
		t.Fatalf("next day = %+v, %v", res, err)
	}
}

func TestQuestRewardPaidOnce(t *testing.T) {
	ctx := context.Background()
	tr, err := quest.NewTracker([]quest.Quest{
		{ID: "first_win", Family: quest.FamilyWins, Goal: 1, Reward: 10},
		{ID: "streak_2", Family: quest.FamilyWinStreak, Goal: 2, Reward: 15},
	})
	if err != nil {
		t.Fatalf("tracker: %v", err)
	}
	h := newHarness(t, func(o *Options) { o.Quests = tr })

	var quests int
	for i := 0; i < 3; i++ {
		if _, err := h.e.StartSession(ctx, "alice"); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		res, err := h.e.SubmitGuess(ctx, "alice", "41")
		if err != nil {
			t.Fatalf("guess %d: %v", i, err)
		}
		quests += len(res.Quests)
	}
	if quests != 2 {
		t.Fatalf("completions = %d, want 2", quests)
	}
	if n := h.notes.Count("alice", notify.KindQuestCompleted); n != 2 {
		t.Fatalf("quest notifications = %d", n)
	}
	// First-guess wins climb levels 1, 2, 3 with streaks 0, 1, 2: 90+185+280, plus 10+15.
	if r := h.record(t, "alice"); r.Score != 580 {
		t.Fatalf("score = %d", r.Score)
	}
}

func TestPvPWin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, withScore("alice", 150), withScore("bob", 120))

	if _, err := h.e.Propose(ctx, "alice", "bob"); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if n := h.notes.Count("bob", notify.KindChallengeReceived); n != 1 {
		t.Fatalf("challenge notifications = %d", n)
	}
	m, err := h.e.Accept(ctx, "bob")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if m.Level != 2 || m.Low != 1 || m.High != 100 || m.Challenger != "alice" {
		t.Fatalf("match = %+v", m)
	}
	if h.sched.Pending() != 1 {
		t.Fatalf("pending timers = %d, want only the match timeout", h.sched.Pending())
	}

	var res MatchGuessResult
	for _, g := range []string{"10", "30", "41"} {
		if res, err = h.e.SubmitMatchGuess(ctx, "alice", g); err != nil {
			t.Fatalf("guess %s: %v", g, err)
		}
	}
	// (100 - 30) * 2 = 140, times 3/2.
	if res.Outcome != OutcomeWon || res.Points != 210 || res.AttemptsUsed != 3 {
		t.Fatalf("result = %+v", res)
	}
	a, b := h.record(t, "alice"), h.record(t, "bob")
	if a.PvPWins != 1 || a.Score != 360 || b.PvPLosses != 1 || b.Score != 120 {
		t.Fatalf("alice=%+v bob=%+v", a, b)
	}
	if h.notes.Count("bob", notify.KindMatchLost) != 1 {
		t.Fatal("loser not notified")
	}
	if h.sched.Pending() != 0 {
		t.Fatal("match timeout still pending")
	}
	if _, err := h.e.SubmitMatchGuess(ctx, "bob", "41"); !errors.Is(err, ErrNoActiveMatch) {
		t.Fatalf("guess after resolution: %v", err)
	}
	h.sched.Advance(time.Hour)
	if b := h.record(t, "bob"); b.PvPLosses != 1 {
		t.Fatalf("timeout fired after resolution: %+v", b)
	}
}

func TestPvPGuards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	if _, err := h.e.Propose(ctx, "alice", "alice"); !errors.Is(err, ErrSelfChallenge) {
		t.Fatalf("self: %v", err)
	}
	if _, err := h.e.Accept(ctx, "bob"); !errors.Is(err, ErrNoPendingChallenge) {
		t.Fatalf("accept nothing: %v", err)
	}
	if _, err := h.e.Cancel(ctx, "alice"); !errors.Is(err, ErrNoPendingChallenge) {
		t.Fatalf("cancel nothing: %v", err)
	}
	if _, err := h.e.SubmitMatchGuess(ctx, "alice", "1"); !errors.Is(err, ErrNoActiveMatch) {
		t.Fatalf("guess without match: %v", err)
	}
	if _, err := h.e.Propose(ctx, "alice", "bob"); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := h.e.Propose(ctx, "alice", "bob"); !errors.Is(err, ErrDuplicateChallenge) {
		t.Fatalf("duplicate: %v", err)
	}
	if _, err := h.e.Propose(ctx, "bob", "alice"); err != nil {
		t.Fatalf("reverse direction is a different pair: %v", err)
	}
	if _, err := h.e.Accept(ctx, "bob"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := h.e.Propose(ctx, "carol", "alice"); !errors.Is(err, ErrAlreadyInMatch) {
		t.Fatalf("propose to busy player: %v", err)
	}
	if _, err := h.e.Accept(ctx, "alice"); !errors.Is(err, ErrAlreadyInMatch) {
		t.Fatalf("accept while in match: %v", err)
	}
	if _, err := h.e.SubmitMatchGuess(ctx, "alice", "x"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad match guess: %v", err)
	}
}

func TestAcceptTakesOldestChallenge(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	for _, from := range []string{"carol", "alice", "dave"} {
		if _, err := h.e.Propose(ctx, from, "bob"); err != nil {
			t.Fatalf("propose from %s: %v", from, err)
		}
	}
	pending := h.e.Pending(ctx, "bob")
	if len(pending) != 3 || pending[0].Proposer != "carol" || pending[2].Proposer != "dave" {
		t.Fatalf("pending = %+v", pending)
	}
	m, err := h.e.Accept(ctx, "bob")
	if err != nil || m.Challenger != "carol" {
		t.Fatalf("accept = %+v, %v", m, err)
	}
	if h.notes.Count("carol", notify.KindChallengeAccepted) != 1 {
		t.Fatal("challenger not told about acceptance")
	}
}

func TestCancelWithdrawsAllChallenges(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	for _, to := range []string{"bob", "carol"} {
		if _, err := h.e.Propose(ctx, "alice", to); err != nil {
			t.Fatalf("propose to %s: %v", to, err)
		}
	}
	targets, err := h.e.Cancel(ctx, "alice")
	if err != nil || len(targets) != 2 {
		t.Fatalf("cancel = %v, %v", targets, err)
	}
	for _, to := range []string{"bob", "carol"} {
		if h.notes.Count(to, notify.KindChallengeCancelled) != 1 {
			t.Errorf("%s not notified", to)
		}
	}
	if h.sched.Pending() != 0 {
		t.Fatalf("expiry timers left: %d", h.sched.Pending())
	}
	if _, err := h.e.Accept(ctx, "bob"); !errors.Is(err, ErrNoPendingChallenge) {
		t.Fatalf("accept cancelled: %v", err)
	}
}

func TestChallengeExpires(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	if _, err := h.e.Propose(ctx, "alice", "bob"); err != nil {
		t.Fatalf("propose: %v", err)
	}
	h.sched.Advance(DefaultChallengeTTL)
	if _, err := h.e.Accept(ctx, "bob"); !errors.Is(err, ErrNoPendingChallenge) {
		t.Fatalf("accept expired: %v", err)
	}
	if h.notes.Count("alice", notify.KindChallengeExpired) != 1 {
		t.Fatal("proposer not told about expiry")
	}
	if _, err := h.e.Propose(ctx, "alice", "bob"); err != nil {
		t.Fatalf("re-propose after expiry: %v", err)
	}
}

func TestMatchTimeout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	if _, err := h.e.Propose(ctx, "alice", "bob"); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := h.e.Accept(ctx, "bob"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	h.sched.Advance(DefaultSessionTimeout)
	if p := h.e.Profile(ctx, "alice"); p.MatchID == "" {
		t.Fatal("match ended at the single-player timeout")
	}
	h.sched.Advance(DefaultMatchTimeout - DefaultSessionTimeout)

	for _, id := range []string{"alice", "bob"} {
		r := h.record(t, id)
		if r.PvPLosses != 1 || r.PvPWins != 0 {
			t.Errorf("%s = %+v", id, r)
		}
		if h.notes.Count(id, notify.KindMatchTimeout) != 1 {
			t.Errorf("%s not notified", id)
		}
	}
	if _, err := h.e.SubmitMatchGuess(ctx, "alice", "41"); !errors.Is(err, ErrNoActiveMatch) {
		t.Fatalf("guess after timeout: %v", err)
	}
}

func TestMatchBudgets(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	if _, err := h.e.Propose(ctx, "alice", "bob"); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := h.e.Accept(ctx, "bob"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	for i := 0; i < 7; i++ {
		if _, err := h.e.SubmitMatchGuess(ctx, "alice", "1"); err != nil {
			t.Fatalf("alice guess %d: %v", i, err)
		}
	}
	if _, err := h.e.SubmitMatchGuess(ctx, "alice", "41"); !errors.Is(err, ErrNoAttemptsLeft) {
		t.Fatalf("guess past budget: %v", err)
	}
	if n := h.notes.Count("bob", notify.KindOpponentGuessed); n != 7 {
		t.Fatalf("opponent updates = %d", n)
	}

	for i := 0; i < 7; i++ {
		res, err := h.e.SubmitMatchGuess(ctx, "bob", "50")
		if err != nil {
			t.Fatalf("bob guess %d: %v", i, err)
		}
		if res.Outcome != OutcomeContinue {
			t.Fatalf("bob guess %d outcome = %s", i, res.Outcome)
		}
	}
	if _, err := h.e.SubmitMatchGuess(ctx, "bob", "41"); !errors.Is(err, ErrNoAttemptsLeft) {
		t.Fatalf("bob guess past budget: %v", err)
	}

	// Both budgets are spent but the match only ends at the timeout.
	for _, id := range []string{"alice", "bob"} {
		if p := h.e.Profile(ctx, id); p.MatchID == "" {
			t.Fatalf("%s left the match before the timeout", id)
		}
		if r := h.record(t, id); r.PvPLosses != 0 {
			t.Fatalf("%s losses = %d before the timeout", id, r.PvPLosses)
		}
	}
	if h.sched.Pending() == 0 {
		t.Fatal("match timeout not pending")
	}

	h.sched.Advance(DefaultMatchTimeout)
	for _, id := range []string{"alice", "bob"} {
		if r := h.record(t, id); r.PvPLosses != 1 || r.PvPWins != 0 {
			t.Errorf("%s = %+v", id, r)
		}
		if h.notes.Count(id, notify.KindMatchTimeout) != 1 {
			t.Errorf("%s not notified", id)
		}
		if p := h.e.Profile(ctx, id); p.MatchID != "" {
			t.Errorf("%s still in match %s", id, p.MatchID)
		}
	}
}

func TestStoreFailuresAreNotFatal(t *testing.T) {
	ctx := context.Background()
	fs := &failingStore{}
	h := newHarness(t, func(o *Options) { o.Store = fs })

	if _, err := h.e.StartSession(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	res, err := h.e.SubmitGuess(ctx, "alice", "41")
	if err != nil || res.Outcome != OutcomeWon {
		t.Fatalf("guess = %+v, %v", res, err)
	}
	if fs.saves == 0 {
		t.Fatal("save was never attempted")
	}
	if r := h.record(t, "alice"); r.Wins != 1 {
		t.Fatalf("in-memory state rolled back: %+v", r)
	}
}

func TestStateSurvivesReload(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	if _, err := h.e.StartSession(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := h.e.SubmitGuess(ctx, "alice", "41"); err != nil {
		t.Fatalf("guess: %v", err)
	}

	again, err := New(ctx, Options{
		Levels:    testLevels(t),
		Catalog:   testCatalog(t),
		Quests:    noQuests(t),
		Store:     h.store,
		Scheduler: timer.NewManual(),
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if r := again.Profile(ctx, "alice").Record; r.Score != 90 || r.Wins != 1 {
		t.Fatalf("reloaded = %+v", r)
	}
	top := again.Leaderboard(ctx, 10)
	if len(top) != 1 || top[0].ID != "alice" {
		t.Fatalf("leaderboard = %+v", top)
	}
}

func TestNewRejectsShortMatchTimeout(t *testing.T) {
	_, err := New(context.Background(), Options{
		Levels:         testLevels(t),
		Catalog:        testCatalog(t),
		Quests:         noQuests(t),
		Scheduler:      timer.NewManual(),
		SessionTimeout: time.Minute,
		MatchTimeout:   time.Minute,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Fatal("expected error for missing tables")
	}
}

func TestScoreNeverNegative(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, withScore("alice", 12))

	for round := 0; round < 5; round++ {
		if _, err := h.e.StartSession(ctx, "alice"); err != nil {
			t.Fatalf("start: %v", err)
		}
		for i := 0; i < 7; i++ {
			_, _ = h.e.SubmitGuess(ctx, "alice", "2")
		}
		_, _ = h.e.Purchase(ctx, "alice", shop.ItemHintParity)
		if r := h.record(t, "alice"); r.Score < 0 {
			t.Fatalf("round %d: score %d", round, r.Score)
		}
	}
	if r := h.record(t, "alice"); r.Score != 0 || r.Losses != 5 {
		t.Fatalf("record = %+v", r)
	}
}
