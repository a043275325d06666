// Package scheduler runs the periodic mission sweep on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Veraticus/spice-quest/internal/common"
	"github.com/Veraticus/spice-quest/internal/engine"
	"github.com/Veraticus/spice-quest/internal/metrics"
)

// DefaultSchedule sweeps every fifteen minutes.
const DefaultSchedule = "@every 15m"

// Sweeper evaluates every user with open missions.
type Sweeper interface {
	SweepAll(ctx context.Context) (engine.SweepStats, error)
}

// Scheduler triggers sweeps. Overlapping runs are skipped.
type Scheduler struct {
	ctx     context.Context
	cron    *cron.Cron
	sweeper Sweeper
	metrics *metrics.Collector
	cancel  context.CancelFunc
	entry   cron.EntryID
	mu      sync.Mutex
}

// New registers the sweep job at schedule, a standard five field cron
// expression or an @every descriptor. The scheduler is not started.
func New(sweeper Sweeper, collector *metrics.Collector, schedule string) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	logger := slogLogger{}
	s := &Scheduler{
		cron: cron.New(cron.WithLogger(logger), cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
		sweeper: sweeper,
		metrics: collector,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	id, err := s.cron.AddFunc(schedule, func() {
		_, _ = s.RunOnce(s.ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: sweep schedule %q: %w", common.ErrInvalidConfig, schedule, err)
	}
	s.entry = id
	return s, nil
}

// Start begins running sweeps in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("Mission sweep scheduler started", "next", s.Next())
}

// Stop prevents new sweeps and waits for a running one to finish or for
// ctx to end, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

// Next returns when the sweep runs next, or the zero time if the scheduler
// is not running.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// RunOnce performs a single sweep and records its outcome.
func (s *Scheduler) RunOnce(ctx context.Context) (engine.SweepStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	stats, err := s.sweeper.SweepAll(ctx)

	result := "ok"
	switch {
	case err != nil:
		result = "error"
		common.LogError(err, "Mission sweep aborted", nil)
	case stats.Errors > 0:
		result = "partial"
	}
	s.metrics.Swept(result, time.Since(start))
	return stats, err
}

// slogLogger adapts cron's logger interface to slog.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
