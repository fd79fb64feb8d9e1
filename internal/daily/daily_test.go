package daily

import (
	"errors"
	"testing"
	"time"

	"github.com/xuantien37/telegram-guess-number-bot/internal/player"
)

var rules = Rules{Base: 20, Increment: 5, CapMultiplier: 2}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestClaimTwiceSameDay(t *testing.T) {
	r := player.New("p")
	if _, err := Claim(r, day("2024-03-10 08:00"), rules); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	score := r.Score
	_, err := Claim(r, day("2024-03-10 23:59"), rules)
	if !errors.Is(err, ErrAlreadyClaimedToday) {
		t.Fatalf("expected ErrAlreadyClaimedToday, got %v", err)
	}
	if r.Score != score {
		t.Fatalf("score changed on rejected claim: %d -> %d", score, r.Score)
	}
}

func TestClaimStreakContinuesAndResets(t *testing.T) {
	r := player.New("p")
	steps := []struct {
		at         string
		wantStreak int
		wantReward int
	}{
		{"2024-02-28 10:00", 1, 25},
		{"2024-02-29 01:00", 2, 30},
		{"2024-03-01 22:00", 3, 35},
		{"2024-03-03 09:00", 1, 25}, // gap of one day
	}
	for _, s := range steps {
		res, err := Claim(r, day(s.at), rules)
		if err != nil {
			t.Fatalf("claim %s: %v", s.at, err)
		}
		if res.Streak != s.wantStreak || res.Reward != s.wantReward {
			t.Fatalf("claim %s: got streak %d reward %d, want %d/%d", s.at, res.Streak, res.Reward, s.wantStreak, s.wantReward)
		}
	}
	if r.Score != 25+30+35+25 || r.LastRewardDate != "2024-03-03" {
		t.Fatalf("score=%d last=%s", r.Score, r.LastRewardDate)
	}
}

func TestRewardIsCapped(t *testing.T) {
	if got := rules.Reward(8); got != 60 {
		t.Fatalf("Reward(8) = %d, want 60", got)
	}
	if got := rules.Reward(100); got != 60 {
		t.Fatalf("Reward(100) = %d, want capped 60", got)
	}
}

func TestDateKeyUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	local := time.Date(2024, 5, 2, 3, 0, 0, 0, loc)
	if got := DateKey(local); got != "2024-05-01" {
		t.Fatalf("DateKey = %s", got)
	}
}
