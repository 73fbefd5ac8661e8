package core

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/aegis402/clearinghouse/domain"
	"github.com/shopspring/decimal"
)

// SubscribeRequest is the input to Subscribe (spec.md §4.4.1): the
// merchant-supplied fields plus the payer address and amount recovered
// from an externally-verified stake payment.
type SubscribeRequest struct {
	Endpoint     string
	Skills       []string
	AgentID      string
	MerchantAddr string
	StakeAmount  *big.Int
}

// SubscribeResult mirrors the §4.4.1 step 7 success shape, or carries a
// failure message on abort.
type SubscribeResult struct {
	Success     bool
	Merchant    string
	Stake       *big.Int
	CreditLimit *big.Int
	Message     string
}

// Subscribe runs spec.md §4.4.1 verbatim: read reputation, compute
// credit_limit = floor(stake * rho), approve + subscribe_for + (bounded
// delay) + set_credit_limit on the credit contract, then commit the
// Registry entry and extend the Chain Watcher's watch-set. Any failure in
// steps 3-5 aborts without mutating the Registry.
func (c *Core) Subscribe(ctx context.Context, req SubscribeRequest) (SubscribeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	agentID := req.AgentID
	if agentID == "" {
		agentID = "0"
	}

	rho, err := c.rep.Reputation(ctx, agentID, req.MerchantAddr)
	if err != nil {
		return SubscribeResult{}, domain.Wrap(domain.ErrLedger, "reputation lookup failed", err)
	}

	creditLimit := rho.CreditLimit(decimal.NewFromBigInt(req.StakeAmount, 0)).BigInt()

	if _, err := c.credit.Approve(ctx, req.StakeAmount); err != nil {
		return abortSubscribe(fmt.Sprintf("approve failed: %v", err)), nil
	}
	allowance, err := c.credit.Allowance(ctx)
	if err != nil {
		return abortSubscribe(fmt.Sprintf("allowance check failed: %v", err)), nil
	}
	if allowance.Cmp(req.StakeAmount) < 0 {
		return abortSubscribe("allowance below stake amount after approval"), nil
	}

	state, err := c.credit.GetMerchant(ctx, req.MerchantAddr)
	if err != nil {
		return abortSubscribe(fmt.Sprintf("get_merchant failed: %v", err)), nil
	}
	if !state.Active {
		if _, err := c.credit.SubscribeFor(ctx, req.MerchantAddr, req.StakeAmount, agentID, req.Endpoint, req.Skills); err != nil {
			return abortSubscribe(fmt.Sprintf("subscribe_for failed: %v", err)), nil
		}
	}

	if c.cfg.SettlingDelay > 0 {
		select {
		case <-ctx.Done():
			return SubscribeResult{}, ctx.Err()
		case <-time.After(c.cfg.SettlingDelay):
		}
	}

	if _, err := c.credit.SetCreditLimit(ctx, req.MerchantAddr, creditLimit); err != nil {
		return abortSubscribe(fmt.Sprintf("set_credit_limit failed: %v", err)), nil
	}

	skillSet := make(map[string]struct{}, len(req.Skills))
	for _, s := range req.Skills {
		skillSet[s] = struct{}{}
	}
	addr := domain.NormalizeAddress(req.MerchantAddr)
	c.reg.PutMerchant(&domain.Merchant{
		Address:      addr,
		AgentID:      agentID,
		Endpoint:     req.Endpoint,
		Skills:       skillSet,
		Stake:        new(big.Int).Set(req.StakeAmount),
		CreditLimit:  creditLimit,
		Exposure:     zero(),
		Active:       true,
		RegisteredAt: time.Now(),
	})

	if c.watcher != nil {
		c.watcher.Watch(addr)
	}

	c.log.Info("subscribed merchant", "merchant", addr, "stake", req.StakeAmount.String(), "credit_limit", creditLimit.String(), "rho_permille", rho.Permille())

	return SubscribeResult{
		Success:     true,
		Merchant:    addr,
		Stake:       req.StakeAmount,
		CreditLimit: creditLimit,
		Message:     fmt.Sprintf("Subscribed with repFactor %s", rho.Decimal().String()),
	}, nil
}

func abortSubscribe(reason string) SubscribeResult {
	return SubscribeResult{Success: false, Message: reason}
}
