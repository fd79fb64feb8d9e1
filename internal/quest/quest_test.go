package quest

import (
	"testing"

	"github.com/xuantien37/telegram-guess-number-bot/internal/player"
)

func newTracker(t *testing.T) *Tracker {
	t.Helper()
	tr, err := NewTracker([]Quest{
		{ID: "first_win", Family: FamilyWins, Goal: 1, Reward: 10},
		{ID: "win_3", Family: FamilyWins, Goal: 3, Reward: 100},
		{ID: "streak_4", Family: FamilyWinStreak, Goal: 4, Reward: 40},
	})
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	return tr
}

func TestRecordProgressRewardsOnce(t *testing.T) {
	tr := newTracker(t)
	r := player.New("p")

	done := tr.RecordProgress(r, FamilyWins, 1)
	if len(done) != 1 || done[0].QuestID != "first_win" || r.Score != 10 {
		t.Fatalf("first call: done=%v score=%d", done, r.Score)
	}
	for i := 0; i < 10; i++ {
		tr.RecordProgress(r, FamilyWins, 1)
	}
	if r.Score != 110 {
		t.Fatalf("score = %d, want 110 (each reward once)", r.Score)
	}
	if r.QuestProgress["win_3"] != 3 {
		t.Fatalf("progress should be capped at goal, got %d", r.QuestProgress["win_3"])
	}
	if !r.HasCompleted("first_win") || !r.HasCompleted("win_3") {
		t.Fatalf("completed = %v", r.CompletedQuests)
	}
}

func TestRecordProgressOvershootCaps(t *testing.T) {
	tr := newTracker(t)
	r := player.New("p")
	done := tr.RecordProgress(r, FamilyWins, 50)
	if len(done) != 2 {
		t.Fatalf("expected both win quests to complete, got %v", done)
	}
	if r.QuestProgress["first_win"] != 1 || r.QuestProgress["win_3"] != 3 {
		t.Fatalf("progress = %v", r.QuestProgress)
	}
}

func TestRecordProgressIgnoresOtherFamiliesAndBadDelta(t *testing.T) {
	tr := newTracker(t)
	r := player.New("p")
	if done := tr.RecordProgress(r, FamilyGames, 5); done != nil {
		t.Fatalf("unexpected completions %v", done)
	}
	if done := tr.RecordProgress(r, FamilyWins, 0); done != nil {
		t.Fatalf("zero delta completed %v", done)
	}
	if len(r.QuestProgress) != 0 {
		t.Fatalf("progress touched: %v", r.QuestProgress)
	}
}

func TestRecordStreakKeepsBest(t *testing.T) {
	tr := newTracker(t)
	r := player.New("p")
	tr.RecordStreak(r, FamilyWinStreak, 3)
	tr.RecordStreak(r, FamilyWinStreak, 1)
	if r.QuestProgress["streak_4"] != 3 {
		t.Fatalf("progress = %d, want 3", r.QuestProgress["streak_4"])
	}
	done := tr.RecordStreak(r, FamilyWinStreak, 4)
	if len(done) != 1 || r.Score != 40 {
		t.Fatalf("done=%v score=%d", done, r.Score)
	}
	if again := tr.RecordStreak(r, FamilyWinStreak, 9); again != nil {
		t.Fatalf("completed twice: %v", again)
	}
}

func TestNewTrackerValidation(t *testing.T) {
	bad := [][]Quest{
		{{ID: "", Family: "x", Goal: 1}},
		{{ID: "a", Family: "", Goal: 1}},
		{{ID: "a", Family: "x", Goal: 0}},
		{{ID: "a", Family: "x", Goal: 1, Reward: -1}},
		{{ID: "a", Family: "x", Goal: 1}, {ID: "a", Family: "y", Goal: 1}},
	}
	for i, qs := range bad {
		if _, err := NewTracker(qs); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}
