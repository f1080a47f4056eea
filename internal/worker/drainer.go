package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/gatherly/pushpipe/internal/domain"
	"github.com/gatherly/pushpipe/internal/queue"
	"github.com/gatherly/pushpipe/internal/store"
)

// Drainer reacts to enqueue wake signals: one goroutine per partition
// blocks on the partition's wake channel and drains as soon as new work
// arrives, keeping enqueue-to-send latency low between sweeper ticks.
type Drainer struct {
	stores *store.Registry
	queue  *queue.Service
	logger *zap.Logger
}

func NewDrainer(stores *store.Registry, q *queue.Service, logger *zap.Logger) *Drainer {
	return &Drainer{stores: stores, queue: q, logger: logger}
}

// Run blocks until ctx is cancelled and every partition loop has exited.
func (d *Drainer) Run(ctx context.Context) {
	d.logger.Info("drainer started", zap.Int("partitions", len(d.stores.Order())))

	var wg sync.WaitGroup
	for _, id := range d.stores.Order() {
		wg.Add(1)
		go func(id domain.PartitionID) {
			defer wg.Done()
			d.loop(ctx, id)
		}(id)
	}
	wg.Wait()
	d.logger.Info("drainer stopped")
}

func (d *Drainer) loop(ctx context.Context, id domain.PartitionID) {
	wake := d.queue.Wake(id)
	for {
		select {
		case <-ctx.Done():
			return
		case <-wake:
			if err := d.queue.Drain(ctx, id); err != nil {
				d.logger.Error("drain error",
					zap.String("partition", string(id)), zap.Error(err))
			}
		}
	}
}
