package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Interval runs Job on every boundary of Every (UTC aligned), until the context is done.
// A run that is still going when the next boundary passes delays that tick; runs never overlap.
type Interval struct {
	Every  time.Duration
	Job    func(ctx context.Context) error
	Logger *zap.Logger

	// JobTimeout bounds each run; zero means no bound.
	JobTimeout time.Duration
}

// Start launches the schedule in the background and returns a channel closed when it stops.
func (s *Interval) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.run(ctx)
	}()
	return done
}

func (s *Interval) run(ctx context.Context) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if s.Every <= 0 {
		logger.Warn("scheduler disabled: non-positive interval")
		return
	}

	// Wait until the next aligned boundary
	now := time.Now().UTC()
	next := now.Truncate(s.Every).Add(s.Every)
	first := time.NewTimer(time.Until(next))
	defer first.Stop()

	select {
	case <-ctx.Done():
		return
	case <-first.C:
	}

	// Then run once every interval
	ticker := time.NewTicker(s.Every)
	defer ticker.Stop()

	for {
		s.runOnce(ctx, logger)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Interval) runOnce(ctx context.Context, logger *zap.Logger) {
	runCtx := ctx
	if s.JobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.JobTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := s.Job(runCtx); err != nil {
		logger.Warn("scheduled job failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return
	}
	logger.Debug("scheduled job finished", zap.Duration("elapsed", time.Since(start)))
}
