package mocks

import (
	"context"
	"sync"

	"github.com/aegis402/clearinghouse/domain"
	"github.com/shopspring/decimal"
)

// Reputation is a fake ports.ReputationReader returning a flat factor
// unless an override is set for a specific agent_id or address.
type Reputation struct {
	mu        sync.Mutex
	flat      decimal.Decimal
	overrides map[string]decimal.Decimal
	Err       error
}

// NewReputation returns a fake reader with a flat default factor (1.0 if
// unset via SetFlat).
func NewReputation() *Reputation {
	return &Reputation{flat: decimal.NewFromInt(1), overrides: make(map[string]decimal.Decimal)}
}

func (r *Reputation) SetFlat(rho decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flat = rho
}

func (r *Reputation) SetOverride(key string, rho decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[key] = rho
}

func (r *Reputation) Reputation(ctx context.Context, agentID, address string) (domain.Reputation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return domain.Reputation{}, r.Err
	}
	key := agentID
	if key == "" || key == "0" {
		key = address
	}
	if rho, ok := r.overrides[key]; ok {
		return domain.NewReputation(rho), nil
	}
	return domain.NewReputation(r.flat), nil
}
