package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/overlay-relay/internal/config"
	"github.com/robfig/cron/v3"
)

// HistoryPruner deletes overlay history older than a cutoff
type HistoryPruner interface {
	PruneOverlayEvents(ctx context.Context, before time.Time) (int64, error)
}

// RetentionJob prunes overlay history on a cron schedule
type RetentionJob struct {
	cron   *cron.Cron
	pruner HistoryPruner
	maxAge time.Duration
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewRetentionJob schedules pruning according to cfg.Cron
func NewRetentionJob(
	pruner HistoryPruner,
	cfg *config.RetentionConfig,
	clock clockwork.Clock,
	logger *slog.Logger,
) (*RetentionJob, error) {
	j := &RetentionJob{
		cron:   cron.New(),
		pruner: pruner,
		maxAge: cfg.MaxAge,
		clock:  clock,
		logger: logger,
	}
	if _, err := j.cron.AddFunc(cfg.Cron, j.RunOnce); err != nil {
		return nil, fmt.Errorf("scheduling retention %q: %w", cfg.Cron, err)
	}
	return j, nil
}

// Start begins the schedule
func (j *RetentionJob) Start() {
	j.logger.Info("retention job started", "max_age", j.maxAge)
	j.cron.Start()
}

// Stop halts the schedule and waits for a running prune to finish
func (j *RetentionJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("retention job stopped")
}

// RunOnce prunes everything older than maxAge
func (j *RetentionJob) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := j.clock.Now().Add(-j.maxAge)
	deleted, err := j.pruner.PruneOverlayEvents(ctx, cutoff)
	if err != nil {
		j.logger.Error("failed to prune overlay history", "cutoff", cutoff, "error", err)
		return
	}
	j.logger.Info("pruned overlay history", "cutoff", cutoff, "deleted", deleted)
}
