package matching

import (
	"context"
	"errors"

	"github.com/storelink/backend/internal/domain/matching"
	"github.com/storelink/backend/internal/domain/order"
	"github.com/storelink/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// OutcomeStatus classifies what AutoMap did with one order
type OutcomeStatus string

const (
	OutcomeMapped  OutcomeStatus = "mapped"
	OutcomeSkipped OutcomeStatus = "skipped"
)

// Outcome is the per-order result of an auto-map attempt. Skips carry the
// reason; successful maps carry the committed transition.
type Outcome struct {
	Status     OutcomeStatus
	SkipReason matching.SkipReason
	Applied    *MappingApplied
	Candidates []matching.Candidate
}

// AutoMapper resolves one order against the customer store and commits the
// mapping only when exactly one candidate reaches the auto-accept confidence.
// Ambiguity and sub-threshold matches are skips, never errors: a missed
// auto-map is recoverable through the manual flow, a wrong one is not.
type AutoMapper struct {
	resolver *matching.Resolver
	ledger   *Ledger
	logger   *zap.Logger
}

// NewAutoMapper creates an auto-mapper
func NewAutoMapper(resolver *matching.Resolver, ledger *Ledger, logger *zap.Logger) *AutoMapper {
	return &AutoMapper{resolver: resolver, ledger: ledger, logger: logger}
}

// AutoMap attempts to map o using the given method (auto for single-order
// runs, batch for reconciliation sweeps). actor is recorded as the mapping's
// author.
func (a *AutoMapper) AutoMap(ctx context.Context, o *order.Order, method order.MappingMethod, actor string) (Outcome, error) {
	if o.IsMapped() {
		return Outcome{Status: OutcomeSkipped, SkipReason: matching.SkipAlreadyMapped}, nil
	}

	res, err := a.resolver.Resolve(ctx, o)
	if err != nil {
		return Outcome{}, err
	}
	if res.Empty() {
		return Outcome{Status: OutcomeSkipped, SkipReason: matching.SkipNoMatch}, nil
	}
	if res.Ambiguous {
		a.logger.Debug("ambiguous candidates, leaving order for manual review",
			zap.String("order_no", o.OrderNo),
			zap.Int("candidates", len(res.Candidates)))
		return Outcome{Status: OutcomeSkipped, SkipReason: matching.SkipAmbiguous, Candidates: res.Candidates}, nil
	}

	best := res.Best()
	if best.Confidence < matching.AutoAcceptConfidence {
		return Outcome{Status: OutcomeSkipped, SkipReason: matching.SkipNoMatch, Candidates: res.Candidates}, nil
	}

	applied, err := a.ledger.Commit(ctx, o.ID, best.CustomerID, method, best.Confidence, actor)
	if err != nil {
		if errors.Is(err, shared.ErrMappingConflict) {
			// Another writer got there first. Their mapping stands.
			return Outcome{Status: OutcomeSkipped, SkipReason: matching.SkipAlreadyMapped}, nil
		}
		return Outcome{}, err
	}

	a.logger.Info("order auto-mapped",
		zap.String("order_no", o.OrderNo),
		zap.String("customer_id", best.CustomerID.String()),
		zap.Float64("confidence", best.Confidence))

	return Outcome{Status: OutcomeMapped, Applied: applied, Candidates: res.Candidates}, nil
}
