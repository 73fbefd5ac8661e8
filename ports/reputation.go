package ports

import (
	"context"

	"github.com/aegis402/clearinghouse/domain"
)

// ReputationReader returns a bounded reputation factor for an agent
// (spec.md §4.5). agentID is preferred when it is not "0"; address is the
// fallback. A stub returning a flat 1.0 must be an acceptable
// implementation.
type ReputationReader interface {
	Reputation(ctx context.Context, agentID, address string) (domain.Reputation, error)
}
