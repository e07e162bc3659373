package matching

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/storelink/backend/internal/domain/customer"
	"github.com/storelink/backend/internal/domain/order"
	"github.com/storelink/backend/internal/domain/shared"
)

// Confidence levels assigned by the resolver. Phone equality is the
// authoritative signal; name agreement upgrades a lone phone match.
const (
	ConfidencePhoneMatch   = 0.9
	ConfidencePhoneAndName = 1.0
	AutoAcceptConfidence   = 0.9
)

// Candidate is one scored match for an order
type Candidate struct {
	CustomerID   uuid.UUID
	CustomerName string
	Confidence   float64
	NameMatched  bool
}

// Resolution is the outcome of resolving one order against the customer
// store. Ambiguous means more than one customer shares the order's canonical
// phone, which blocks auto-acceptance regardless of name agreement.
type Resolution struct {
	Candidates []Candidate
	Ambiguous  bool
}

// Empty returns true when no candidate was found
func (r Resolution) Empty() bool {
	return len(r.Candidates) == 0
}

// Best returns the highest-confidence candidate. Only meaningful when the
// resolution is non-empty and unambiguous.
func (r Resolution) Best() Candidate {
	return r.Candidates[0]
}

// CandidateFinder is the slice of the customer store the resolver needs
type CandidateFinder interface {
	FindByCanonicalPhone(ctx context.Context, phone string) ([]customer.Customer, error)
}

// Resolver scores customer candidates for an order. It deliberately performs
// no fuzzy phone matching: an incorrect financial link is worse than leaving
// an order unmapped.
type Resolver struct {
	customers CandidateFinder
	region    string
}

// NewResolver creates a resolver. region is the default phone prefix for
// local numbers (empty = DefaultRegion).
func NewResolver(customers CandidateFinder, region string) *Resolver {
	return &Resolver{customers: customers, region: region}
}

// Region returns the default phone prefix the resolver normalizes with
func (r *Resolver) Region() string {
	return r.region
}

// Resolve returns the scored candidate list for an order. A phone that fails
// normalization yields an empty resolution (name-only matching is never used
// for auto-acceptance).
func (r *Resolver) Resolve(ctx context.Context, o *order.Order) (Resolution, error) {
	phone, err := NormalizePhone(o.CustomerPhoneRaw, r.region)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidPhone) {
			return Resolution{}, nil
		}
		return Resolution{}, err
	}

	matches, err := r.customers.FindByCanonicalPhone(ctx, phone)
	if err != nil {
		return Resolution{}, err
	}
	if len(matches) == 0 {
		return Resolution{}, nil
	}

	orderName := NormalizeName(o.CustomerNameRaw)
	ambiguous := len(matches) > 1
	candidates := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		c := Candidate{
			CustomerID:   m.ID,
			CustomerName: m.Name,
			Confidence:   ConfidencePhoneMatch,
		}
		if orderName != "" && orderName == NormalizeName(m.Name) {
			c.NameMatched = true
			// Name agreement upgrades confidence only when the phone
			// matched a single customer. Customers sharing a canonical
			// phone keep equal confidence and the set stays ambiguous;
			// a shared number is not a signal the name can override.
			if !ambiguous {
				c.Confidence = ConfidencePhoneAndName
			}
		}
		candidates = append(candidates, c)
	}

	return Resolution{
		Candidates: candidates,
		Ambiguous:  ambiguous,
	}, nil
}
