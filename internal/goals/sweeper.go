package goals

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically re-evaluates every active goal.
type Sweeper struct {
	service  *Service
	logger   *zap.Logger
	interval time.Duration
}

// NewSweeper creates a sweeper that runs every interval.
func NewSweeper(service *Service, logger *zap.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		service:  service,
		logger:   logger.Named("sweeper"),
		interval: interval,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Starting goal sweep loop", zap.Duration("interval", s.interval))
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping goal sweep loop...")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.service.SweepActive(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("Goal sweep failed", zap.Error(err))
	}
}
