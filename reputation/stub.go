// Package reputation implements ports.ReputationReader: a flat stub
// acceptable per spec.md §4.5, and a caching decorator for any real
// external reputation oracle.
package reputation

import (
	"context"

	"github.com/aegis402/clearinghouse/domain"
	"github.com/shopspring/decimal"
)

// Stub returns a flat reputation factor for every agent, satisfying
// spec.md §4.5's requirement that a stub returning 1.0 be an acceptable
// implementation.
type Stub struct {
	Flat decimal.Decimal
}

// NewStub returns a Stub defaulting to rho=1.0.
func NewStub() *Stub {
	return &Stub{Flat: decimal.NewFromInt(1)}
}

func (s *Stub) Reputation(ctx context.Context, agentID, address string) (domain.Reputation, error) {
	return domain.NewReputation(s.Flat), nil
}
