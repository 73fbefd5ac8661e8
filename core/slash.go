package core

import (
	"context"
	"fmt"
	"time"

	"github.com/aegis402/clearinghouse/domain"
)

// SlashResult mirrors spec.md §4.4.5's success shape.
type SlashResult struct {
	Success       bool
	Merchant      string
	Client        string
	SlashedAmount string
	RefundTx      string
}

// Slash implements spec.md §4.4.5. clientAddr is the address that paid the
// anti-griefing bond gating this call and must equal the payment's
// original client.
func (c *Core) Slash(ctx context.Context, txHash, clientAddr string) (SlashResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.reg.Payment(txHash)
	if p == nil {
		return SlashResult{}, domain.NewError(domain.ErrNotFound, "Payment record not found")
	}
	if p.Status != domain.PaymentPending {
		return SlashResult{}, domain.NewError(domain.ErrIllegalTransition, fmt.Sprintf("Payment already %s", p.Status))
	}
	if time.Now().Before(p.Deadline) {
		wait := int(time.Until(p.Deadline).Seconds())
		return SlashResult{}, domain.NewError(domain.ErrIllegalTransition, fmt.Sprintf("Deadline not yet passed. Wait %d seconds", wait))
	}
	if domain.NormalizeAddress(p.Client) != domain.NormalizeAddress(clientAddr) {
		return SlashResult{}, domain.NewError(domain.ErrIllegalTransition, "Only the original client can slash")
	}

	receipt, err := c.credit.Slash(ctx, p.Merchant, clientAddr, p.Amount)
	if err != nil {
		return SlashResult{}, domain.Wrap(domain.ErrLedger, "slash failed", err)
	}

	c.reg.SetPaymentStatus(txHash, domain.PaymentSlashed)
	c.reg.AdjustExposure(p.Merchant, negate(p.Amount))
	c.reg.AdjustStake(p.Merchant, negate(p.Amount))

	c.log.Info("slashed merchant", "tx_hash", txHash, "merchant", p.Merchant, "client", clientAddr, "amount", p.Amount.String())

	return SlashResult{
		Success:       true,
		Merchant:      p.Merchant,
		Client:        domain.NormalizeAddress(clientAddr),
		SlashedAmount: p.Amount.String(),
		RefundTx:      receipt.TxHash,
	}, nil
}
