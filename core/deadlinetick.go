package core

import (
	"context"
	"time"

	"github.com/aegis402/clearinghouse/domain"
)

// DeadlineTick implements spec.md §4.4.6: scan pending payments past their
// deadline and clear their exposure on-ledger. Failures are logged and
// retried on the next tick — this call never returns an error for a
// per-payment failure, only logs it.
func (c *Core) DeadlineTick(ctx context.Context) {
	now := time.Now()
	pending := c.reg.PendingPayments()

	for _, p := range pending {
		if now.Before(p.Deadline) {
			continue
		}
		c.expireOne(ctx, p)
	}
}

func (c *Core) expireOne(ctx context.Context, p *domain.Payment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-read under the lock: Settle or Slash may have landed between the
	// unlocked scan above and here (spec.md §4.4.6's documented race).
	current := c.reg.Payment(p.TxHash)
	if current == nil || current.Status != domain.PaymentPending {
		return
	}

	if _, err := c.credit.ClearExposure(ctx, current.Merchant, current.Amount); err != nil {
		c.log.Warn("deadline tick: clear_exposure failed, will retry next tick", "tx_hash", current.TxHash, "err", err)
		return
	}

	c.reg.SetPaymentStatus(current.TxHash, domain.PaymentExpired)
	c.reg.AdjustExposure(current.Merchant, negate(current.Amount))

	c.log.Info("payment expired", "tx_hash", current.TxHash, "merchant", current.Merchant, "amount", current.Amount.String())
}
