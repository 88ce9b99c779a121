package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/convflow/convflow/pkg/statestore"
	"github.com/robfig/cron/v3"
)

// Janitor runs the state store maintenance operations on a cron schedule.
type Janitor struct {
	logger *slog.Logger
	states *statestore.Store
	cron   *cron.Cron
}

func NewJanitor(logger *slog.Logger, states *statestore.Store) *Janitor {
	return &Janitor{
		logger: logger,
		states: states,
		cron:   cron.New(),
	}
}

func (j *Janitor) Start(ctx context.Context, schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}

	_, err := j.cron.AddFunc(schedule, func() {
		j.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule maintenance: %w", err)
	}

	j.cron.Start()
	j.logger.InfoContext(ctx, "Janitor started", "schedule", schedule)

	return nil
}

// RunOnce performs one maintenance pass: expired durable rows first, then
// cache entries whose durable counterpart is gone.
func (j *Janitor) RunOnce(ctx context.Context) {
	expired, err := j.states.CleanupExpired(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to clean up expired session states", "error", err)
	}

	orphaned, err := j.states.ReconcileCache(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to reconcile cache entries", "error", err)
	}

	j.logger.InfoContext(ctx, "Maintenance pass finished", "expired", expired, "orphaned", orphaned)
}

func (j *Janitor) Stop() {
	stopCtx := j.cron.Stop()
	<-stopCtx.Done()
}
