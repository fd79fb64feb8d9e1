package timer

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestCronRunsOneTimeJob(t *testing.T) {
	c, err := NewCron(clockwork.NewRealClock())
	if err != nil {
		t.Fatalf("new cron: %v", err)
	}
	defer func() { _ = c.Shutdown() }()

	done := make(chan struct{})
	if _, err := c.After(20*time.Millisecond, func() { close(done) }); err != nil {
		t.Fatalf("after: %v", err)
	}
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestCronCancelRemovesJob(t *testing.T) {
	c, err := NewCron(clockwork.NewRealClock())
	if err != nil {
		t.Fatalf("new cron: %v", err)
	}
	defer func() { _ = c.Shutdown() }()

	ran := make(chan struct{}, 1)
	cancel, err := c.After(200*time.Millisecond, func() { ran <- struct{}{} })
	if err != nil {
		t.Fatalf("after: %v", err)
	}
	cancel()
	select {
	case <-ran:
		t.Fatal("cancelled job ran")
	case <-time.After(500 * time.Millisecond):
	}
}
