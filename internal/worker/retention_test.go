package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/overlay-relay/internal/config"
)

type fakePruner struct {
	before time.Time
	calls  int
	err    error
}

func (f *fakePruner) PruneOverlayEvents(_ context.Context, before time.Time) (int64, error) {
	f.calls++
	f.before = before
	return 3, f.err
}

func TestRetentionRunOnceUsesMaxAge(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 18, 4, 0, 0, 0, time.UTC))
	pruner := &fakePruner{}
	job, err := NewRetentionJob(pruner, &config.RetentionConfig{Cron: "0 4 * * *", MaxAge: 48 * time.Hour}, clock, discardLogger())
	if err != nil {
		t.Fatalf("NewRetentionJob: %v", err)
	}

	job.RunOnce()

	want := time.Date(2026, 10, 16, 4, 0, 0, 0, time.UTC)
	if pruner.calls != 1 || !pruner.before.Equal(want) {
		t.Errorf("pruned before %v (%d calls), want %v", pruner.before, pruner.calls, want)
	}

	pruner.err = errors.New("db down")
	job.RunOnce()
	if pruner.calls != 2 {
		t.Errorf("calls = %d", pruner.calls)
	}
}

func TestRetentionRejectsBadSchedule(t *testing.T) {
	_, err := NewRetentionJob(&fakePruner{}, &config.RetentionConfig{Cron: "every tuesday", MaxAge: time.Hour}, clockwork.NewFakeClock(), discardLogger())
	if err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestRetentionStartStop(t *testing.T) {
	job, err := NewRetentionJob(&fakePruner{}, &config.RetentionConfig{Cron: "@daily", MaxAge: time.Hour}, clockwork.NewFakeClock(), discardLogger())
	if err != nil {
		t.Fatalf("NewRetentionJob: %v", err)
	}
	job.Start()
	job.Stop()
}
