package core

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"github.com/aegis402/clearinghouse/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// QuoteCandidate is one ranked merchant result (spec.md §4.4.2 output
// shape).
type QuoteCandidate struct {
	Address           string
	Endpoint          string
	AvailableCapacity *big.Int
	RepFactor         decimal.Decimal
	Skills            []string
}

// Quote implements spec.md §4.4.2. It performs no writes, so unlike the
// other operations it does not take Core's single-writer lock — concurrent
// Quotes, and a Quote concurrent with a state-changing operation, are both
// fine. Per-merchant reads fan out with a bounded errgroup; a failure on
// one merchant drops it from the result without failing the call.
func (c *Core) Quote(ctx context.Context, skill string, price *big.Int) ([]QuoteCandidate, error) {
	candidates := c.reg.MerchantsBySkill(skill)
	if len(candidates) == 0 {
		return nil, nil
	}

	var mu sync.Mutex
	results := make([]QuoteCandidate, 0, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for _, addr := range candidates {
		addr := addr
		g.Go(func() error {
			state, err := c.credit.GetMerchant(gctx, addr)
			if err != nil {
				c.log.Warn("quote: get_merchant failed, dropping candidate", "merchant", addr, "err", err)
				return nil
			}
			capacity := new(big.Int).Sub(state.Limit, state.Exposure)
			if capacity.Cmp(price) < 0 {
				return nil
			}

			m := c.reg.Merchant(addr)
			agentID := ""
			if m != nil {
				agentID = m.AgentID
			}
			rho, err := c.rep.Reputation(gctx, agentID, addr)
			if err != nil {
				c.log.Warn("quote: reputation lookup failed, dropping candidate", "merchant", addr, "err", err)
				return nil
			}

			var skills []string
			if m != nil {
				for s := range m.Skills {
					skills = append(skills, s)
				}
			}

			mu.Lock()
			results = append(results, QuoteCandidate{
				Address:           addr,
				Endpoint:          state.Endpoint,
				AvailableCapacity: capacity,
				RepFactor:         rho.Decimal(),
				Skills:            skills,
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.Wrap(domain.ErrLedger, "quote fan-out failed", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		// capacity_i/price > capacity_j/price  <=>  capacity_i*price_j... but
		// price is the same constant for both sides here, so plain capacity
		// descending is equivalent and avoids a spurious cross-multiplication.
		return results[i].AvailableCapacity.Cmp(results[j].AvailableCapacity) > 0
	})

	return results, nil
}
