// internal/timer/timer.go
//
// Cancellable one-shot actions.
// Responsibilities:
//   - Scheduler interface used by the engine for session, match and challenge deadlines.
//   - Cron: gocron-backed implementation (one-time jobs, removed on cancel).
//   - Manual: deterministic implementation driven by Advance, for tests and tooling.
//
// Notes:
//   - Cancel never blocks on a running action. Callers that race a firing action
//     must make the action itself idempotent (the engine checks entity identity).
package timer

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// Cancel stops a pending action. Calling it more than once is harmless.
type Cancel func()

// Scheduler runs fn once after d.
type Scheduler interface {
	After(d time.Duration, fn func()) (Cancel, error)
}

// Cron schedules actions as gocron one-time jobs.
type Cron struct {
	s     gocron.Scheduler
	clock clockwork.Clock
}

// NewCron starts a gocron scheduler bound to clock.
func NewCron(clock clockwork.Clock) (*Cron, error) {
	s, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}
	s.Start()
	return &Cron{s: s, clock: clock}, nil
}

// After registers fn as a one-time job d from now.
func (c *Cron) After(d time.Duration, fn func()) (Cancel, error) {
	start := gocron.OneTimeJobStartImmediately()
	if d > 0 {
		start = gocron.OneTimeJobStartDateTime(c.clock.Now().Add(d))
	}
	j, err := c.s.NewJob(gocron.OneTimeJob(start), gocron.NewTask(fn))
	if err != nil {
		return nil, fmt.Errorf("schedule job: %w", err)
	}
	id := j.ID()
	return func() { _ = c.s.RemoveJob(id) }, nil
}

// Pending reports how many jobs are registered.
func (c *Cron) Pending() int { return len(c.s.Jobs()) }

// Shutdown stops the scheduler and drops pending jobs.
func (c *Cron) Shutdown() error { return c.s.Shutdown() }
