// Package scheduler drives the periodic dispatch and offer expiry runs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/wilesp/plumbflow-platform/internal/dispatch"
)

// Runner is the dispatch work the scheduler triggers
type Runner interface {
	RunCycle(ctx context.Context) (dispatch.CycleStats, error)
	ExpireOffers(ctx context.Context) (int, error)
}

type Scheduler struct {
	cron          *cron.Cron
	runner        Runner
	dispatchEvery time.Duration
	expiryEvery   time.Duration
	logger        *zap.Logger
	wg            sync.WaitGroup
}

func New(runner Runner, dispatchEvery, expiryEvery time.Duration, logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger.Sugar()}

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner:        runner,
		dispatchEvery: dispatchEvery,
		expiryEvery:   expiryEvery,
		logger:        logger,
	}
}

// Start registers both jobs and starts the cron. One dispatch cycle runs
// right away so pending jobs do not wait for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(every(s.dispatchEvery), func() { s.runDispatch(ctx) }); err != nil {
		return fmt.Errorf("schedule dispatch: %w", err)
	}
	if _, err := s.cron.AddFunc(every(s.expiryEvery), func() { s.runExpiry(ctx) }); err != nil {
		return fmt.Errorf("schedule expiry: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.Duration("dispatch_interval", s.dispatchEvery),
		zap.Duration("expiry_interval", s.expiryEvery),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runDispatch(ctx)
	}()

	return nil
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runDispatch(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, s.dispatchEvery)
	defer cancel()

	stats, err := s.runner.RunCycle(runCtx)
	if err != nil {
		s.logger.Error("dispatch cycle failed", zap.Error(err))
		return
	}
	if stats.Skipped {
		s.logger.Debug("dispatch cycle skipped, lock held")
	}
}

func (s *Scheduler) runExpiry(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, s.expiryEvery)
	defer cancel()

	if _, err := s.runner.ExpireOffers(runCtx); err != nil {
		s.logger.Error("offer expiry failed", zap.Error(err))
	}
}

func every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}

// cronLogger routes cron's own logging through zap
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
