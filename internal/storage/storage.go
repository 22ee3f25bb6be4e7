package storage

import (
	"context"
	"errors"
	"fmt"

	"liquidityArb/internal/model"
)

// Sink receives the opportunities of one scan.
type Sink interface {
	PutOpportunities(ctx context.Context, opps []model.ArbitrageOpportunity) error
}

// MultiSink writes to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) PutOpportunities(ctx context.Context, opps []model.ArbitrageOpportunity) error {
	var errs []error
	for i, sink := range m {
		if err := sink.PutOpportunities(ctx, opps); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// FilterSink forwards only the opportunities accepted by Keep.
type FilterSink struct {
	Next Sink
	Keep func(model.ArbitrageOpportunity) bool
}

func (f FilterSink) PutOpportunities(ctx context.Context, opps []model.ArbitrageOpportunity) error {
	kept := make([]model.ArbitrageOpportunity, 0, len(opps))
	for _, opp := range opps {
		if f.Keep == nil || f.Keep(opp) {
			kept = append(kept, opp)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return f.Next.PutOpportunities(ctx, kept)
}
