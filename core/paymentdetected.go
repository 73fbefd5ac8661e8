package core

import (
	"context"

	"github.com/aegis402/clearinghouse/domain"
	"github.com/aegis402/clearinghouse/ports"
)

// PaymentDetected implements spec.md §4.4.3. It is invoked by the Chain
// Watcher's callback (via OnTransferDetected) and is idempotent on
// transfer.TxHash.
func (c *Core) PaymentDetected(ctx context.Context, t ports.Transfer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if domain.NormalizeAddress(t.From) == domain.NormalizeAddress(c.cfg.ClearinghouseAddress) {
		c.log.Debug("payment detected: dropping self-initiated transfer", "tx_hash", t.TxHash)
		return
	}

	to := domain.NormalizeAddress(t.To)
	m := c.reg.Merchant(to)
	if m == nil {
		c.log.Debug("payment detected: no merchant at recipient, dropping", "tx_hash", t.TxHash, "to", to)
		return
	}

	if c.reg.HasPayment(t.TxHash) {
		c.log.Debug("payment detected: duplicate tx_hash, dropping", "tx_hash", t.TxHash)
		return
	}

	if _, err := c.credit.RecordPayment(ctx, to, t.Amount); err != nil {
		c.log.Warn("payment detected: record_payment failed, merchant under-collateralized for this payment", "tx_hash", t.TxHash, "merchant", to, "amount", t.Amount.String(), "err", err)
		return
	}

	p := &domain.Payment{
		TxHash:    t.TxHash,
		Merchant:  to,
		Client:    domain.NormalizeAddress(t.From),
		Amount:    t.Amount,
		Deadline:  t.Timestamp.Add(c.cfg.DefaultDeadline),
		Status:    domain.PaymentPending,
		CreatedAt: t.Timestamp,
	}
	c.reg.PutPayment(p)
	c.reg.AdjustExposure(to, t.Amount)

	c.log.Info("payment detected", "tx_hash", t.TxHash, "merchant", to, "client", p.Client, "amount", t.Amount.String(), "deadline", p.Deadline)
}
