package provisioning

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultBatchSize = 100
	defaultInterval  = 5 * time.Second
)

// Relay moves committed outbox events to a Publisher.
type Relay struct {
	uow       UnitOfWork
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

// NewRelay returns a relay polling every interval. interval <= 0 uses 5s and batchSize <= 0 uses 100.
func NewRelay(uow UnitOfWork, publisher Publisher, interval time.Duration, batchSize int, logger *zap.Logger) *Relay {
	if interval <= 0 {
		interval = defaultInterval
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		uow:       uow,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce claims one batch, publishes it, and marks it sent in the same transaction.
// A publish failure rolls back so the batch is retried on the next tick.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	sent := 0
	err := r.uow(ctx, func(s Store) error {
		events, err := s.ClaimUnsent(ctx, r.batchSize)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		if err := r.publisher.Publish(ctx, events); err != nil {
			return err
		}
		ids := make([]uuid.UUID, len(events))
		for i, e := range events {
			ids[i] = e.ID
		}
		if err := s.MarkSent(ctx, ids, r.now()); err != nil {
			return err
		}
		sent = len(events)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return sent, nil
}

// Run drains the outbox until ctx is cancelled. Full batches are followed immediately by another pass.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		n, err := r.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Warn("provisioning relay pass failed", zap.Error(err))
		} else if n > 0 {
			r.logger.Debug("provisioning events relayed", zap.Int("count", n))
		}
		if n == r.batchSize {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
