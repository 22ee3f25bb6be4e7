package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"liquidityArb/internal/model"
)

// RetrySink retries a failing sink with exponential backoff.
type RetrySink struct {
	next       Sink
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

func NewRetrySink(next Sink, maxRetries int, baseDelay time.Duration, logger *zap.Logger) *RetrySink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetrySink{next: next, maxRetries: maxRetries, baseDelay: baseDelay, logger: logger}
}

func (r *RetrySink) PutOpportunities(ctx context.Context, opps []model.ArbitrageOpportunity) error {
	attempt := 0
	return withRetry(ctx, r.maxRetries, r.baseDelay, func(ctx context.Context) error {
		attempt++
		err := r.next.PutOpportunities(ctx, opps)
		if err != nil {
			r.logger.Warn("sink write failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	})
}

func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}
