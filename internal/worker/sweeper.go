// Package worker runs the background loops that move queued jobs toward a
// terminal status: a periodic sweeper over every partition and a reactive
// per-partition drainer.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gatherly/pushpipe/internal/queue"
	"github.com/gatherly/pushpipe/internal/store"
)

// Sweeper periodically drains every partition, picking up jobs whose wake
// signal was lost (process restart, full wake buffer) and jobs left queued
// by transient send failures.
type Sweeper struct {
	stores   *store.Registry
	queue    *queue.Service
	interval time.Duration
	budget   time.Duration
	logger   *zap.Logger
}

func NewSweeper(
	stores *store.Registry,
	q *queue.Service,
	interval, budget time.Duration,
	logger *zap.Logger,
) *Sweeper {
	return &Sweeper{stores: stores, queue: q, interval: interval, budget: budget, logger: logger}
}

// Run ticks every interval and drains each partition under a shared time
// budget. Stops cleanly when ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started",
		zap.Duration("interval", s.interval), zap.Duration("budget", s.budget))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep drains partitions sequentially. The budget bounds the whole pass so
// a slow partition cannot push the sweep past the next tick.
func (s *Sweeper) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	for _, id := range s.stores.Order() {
		if sweepCtx.Err() != nil {
			s.logger.Warn("sweep budget exhausted", zap.String("partition", string(id)))
			return
		}
		if err := s.queue.Drain(sweepCtx, id); err != nil {
			s.logger.Error("sweep drain error",
				zap.String("partition", string(id)), zap.Error(err))
		}
	}
}
