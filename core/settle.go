package core

import (
	"context"
	"fmt"

	"github.com/aegis402/clearinghouse/domain"
)

// SettleResult mirrors spec.md §4.4.4's response shape.
type SettleResult struct {
	Success  bool
	Merchant string
	Amount   string
	Message  string
}

// Settle implements spec.md §4.4.4. It is caller-agnostic by design (see
// SPEC_FULL.md §9 Open Question 3): any holder of tx_hash may settle.
func (c *Core) Settle(ctx context.Context, txHash string) (SettleResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.reg.Payment(txHash)
	if p == nil {
		return SettleResult{}, domain.NewError(domain.ErrNotFound, "Payment record not found")
	}
	if p.Status != domain.PaymentPending {
		return SettleResult{}, domain.NewError(domain.ErrIllegalTransition, fmt.Sprintf("Payment already %s", p.Status))
	}

	if _, err := c.credit.ClearExposure(ctx, p.Merchant, p.Amount); err != nil {
		return SettleResult{}, domain.Wrap(domain.ErrLedger, "clear_exposure failed", err)
	}

	c.reg.SetPaymentStatus(txHash, domain.PaymentSettled)
	c.reg.AdjustExposure(p.Merchant, negate(p.Amount))

	c.log.Info("settled payment", "tx_hash", txHash, "merchant", p.Merchant, "amount", p.Amount.String())

	return SettleResult{Success: true, Merchant: p.Merchant, Amount: p.Amount.String()}, nil
}
