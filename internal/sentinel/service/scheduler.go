package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler drives Monitor.Tick on a fixed interval. A tick that is still
// running when the next one fires makes the next one skip, so passes never
// overlap.
type Scheduler struct {
	cron     *cron.Cron
	tick     func(ctx context.Context) error
	interval time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
}

// NewScheduler wraps tick. Intervals under a second are raised to one
// second, the cron resolution.
func NewScheduler(tick func(ctx context.Context) error, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval < time.Second {
		interval = time.Second
	}
	cronLog := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		tick:     tick,
		interval: interval,
		logger:   logger,
	}
}

// MonitorTick adapts Monitor.Tick for the scheduler.
func MonitorTick(m *Monitor) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, _, err := m.Tick(ctx)
		return err
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, func() {
		if err := s.tick(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("tick failed", zap.Error(err))
		}
	}); err != nil {
		s.cancel()
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop cancels the running tick's context and waits for it to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
}
