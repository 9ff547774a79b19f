package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/idbridge/pkg/async"
	"github.com/platinummonkey/idbridge/pkg/observability"
)

// SubjectLister enumerates every bound external subject
type SubjectLister interface {
	ListSubjects(ctx context.Context) ([]string, error)
}

// Sweeper periodically reconciles every known subject. Webhooks can be
// missed, the sweep is the backstop that repairs any drift they leave
// behind.
type Sweeper struct {
	store    SubjectLister
	rec      *Reconciler
	schedule string
	workers  int
	cron     *cron.Cron
	logger   *observability.Logger
}

// NewSweeper creates a sweeper on the given cron schedule
func NewSweeper(store SubjectLister, rec *Reconciler, schedule string, workers int, logger *observability.Logger) *Sweeper {
	if workers <= 0 {
		workers = 4
	}
	return &Sweeper{
		store:    store,
		rec:      rec,
		schedule: schedule,
		workers:  workers,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start registers the cron entry and begins scheduling
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.RunSweep(ctx); err != nil {
			s.logger.WithError(err).Error("scheduled role sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule role sweep %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.WithField("schedule", s.schedule).Info("role sweep scheduled")
	return nil
}

// Stop halts scheduling and waits for a running sweep entry to return
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// RunSweep reconciles every subject once, fanning out across the worker
// pool. Per-subject failures are logged and do not stop the sweep.
func (s *Sweeper) RunSweep(ctx context.Context) error {
	start := time.Now()

	subjects, err := s.store.ListSubjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list subjects for sweep: %w", err)
	}

	pool := async.NewWorkerPool(ctx, s.workers, "sweep reconcile", time.Minute)
	for _, subjectID := range subjects {
		subjectID := subjectID
		if err := pool.Submit(func(taskCtx context.Context) error {
			_, err := s.rec.Reconcile(taskCtx, subjectID)
			return err
		}); err != nil {
			break
		}
	}
	if err := pool.Shutdown(10 * time.Minute); err != nil {
		return fmt.Errorf("role sweep did not finish: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"subjects": len(subjects),
		"elapsed":  time.Since(start).String(),
	}).Info("role sweep complete")
	return nil
}
