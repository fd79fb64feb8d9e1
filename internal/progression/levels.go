// internal/progression/levels.go
//
// Score → level → difficulty mapping.
// Responsibilities:
//   - Stepped score thresholds partition the score axis into levels.
//   - Each level maps to exactly one difficulty tuple (range, attempts, penalty).
//
// Notes:
//   - Tables are built once from the balance file and never mutated afterwards.
//   - Lookups are total: unknown levels fall back to the highest defined level.
package progression

import (
	"errors"
	"fmt"
	"sort"
)

// Difficulty is the fixed tuple a level maps to.
type Difficulty struct {
	Low         int `yaml:"low" json:"low"`           // inclusive lower bound of the secret
	High        int `yaml:"high" json:"high"`         // inclusive upper bound of the secret
	MaxAttempts int `yaml:"attempts" json:"attempts"` // guesses allowed per session
	Penalty     int `yaml:"penalty" json:"penalty"`   // points lost on an exhausted session
}

// Span returns the number of integers in the range.
func (d Difficulty) Span() int { return d.High - d.Low + 1 }

// Level is one row of the progression table.
type Level struct {
	Level      int `yaml:"level"`
	MinScore   int `yaml:"min_score"`
	Difficulty `yaml:",inline"`
}

// Table holds the level rows ordered by MinScore.
type Table struct {
	levels []Level
}

// NewTable validates rows and returns a table.
// The first row must start at score 0 so that every non-negative score has a level.
func NewTable(rows []Level) (*Table, error) {
	if len(rows) == 0 {
		return nil, errors.New("progression: no levels defined")
	}
	sorted := append([]Level(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinScore < sorted[j].MinScore })

	if sorted[0].MinScore != 0 {
		return nil, fmt.Errorf("progression: lowest threshold is %d, want 0", sorted[0].MinScore)
	}
	for i, l := range sorted {
		if l.Low > l.High {
			return nil, fmt.Errorf("progression: level %d has empty range %d-%d", l.Level, l.Low, l.High)
		}
		if l.MaxAttempts <= 0 {
			return nil, fmt.Errorf("progression: level %d needs at least one attempt", l.Level)
		}
		if l.Penalty < 0 {
			return nil, fmt.Errorf("progression: level %d has negative penalty", l.Level)
		}
		if i > 0 {
			prev := sorted[i-1]
			if l.MinScore == prev.MinScore {
				return nil, fmt.Errorf("progression: duplicate threshold %d", l.MinScore)
			}
			if l.Level <= prev.Level {
				return nil, fmt.Errorf("progression: level %d does not increase over %d", l.Level, prev.Level)
			}
		}
	}
	return &Table{levels: sorted}, nil
}

// LevelFor maps a score to its level. Negative scores are treated as zero.
func (t *Table) LevelFor(score int) int {
	lvl := t.levels[0].Level
	for _, l := range t.levels {
		if score >= l.MinScore {
			lvl = l.Level
		}
	}
	return lvl
}

// DifficultyFor returns the tuple for level, or the highest level's tuple when
// level is not defined.
func (t *Table) DifficultyFor(level int) Difficulty {
	for _, l := range t.levels {
		if l.Level == level {
			return l.Difficulty
		}
	}
	return t.levels[len(t.levels)-1].Difficulty
}

// Levels returns a copy of the rows, lowest first.
func (t *Table) Levels() []Level { return append([]Level(nil), t.levels...) }
