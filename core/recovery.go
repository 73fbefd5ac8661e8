package core

import (
	"context"
	"math/big"
	"sort"
	"time"

	"github.com/aegis402/clearinghouse/domain"
	"github.com/aegis402/clearinghouse/ports"
)

// RecoveryResult summarizes one Recovery pass for logging/operator visibility.
type RecoveryResult struct {
	MerchantsSeeded   int
	PaymentsRecovered int
	EventsSkipped     int
}

// Recovery implements spec.md §4.4.7: rebuild the in-memory Registry from
// the credit contract's historical event log after a restart. It is safe
// to call repeatedly against an already-loaded registry — PutMerchant and
// HasPayment dedup keep it idempotent, and RecomputeExposure re-derives
// each merchant's exposure from its own pending payments rather than
// accumulating deltas across runs.
//
// A per-event failure is logged and the scan continues; Recovery never
// aborts on one bad event (spec.md §7's RecoveryError policy).
func (c *Core) Recovery(ctx context.Context, fromBlock, toBlock uint64) RecoveryResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	var res RecoveryResult

	subs, err := c.credit.QueryEvents(ctx, ports.EventSubscribed, fromBlock, toBlock)
	if err != nil {
		c.log.Warn("recovery: query subscribed events failed", "err", err)
	}

	seeded := make(map[string]bool)
	for _, ev := range subs {
		addr := domain.NormalizeAddress(ev.Merchant)
		if seeded[addr] {
			continue
		}
		state, err := c.credit.GetMerchant(ctx, addr)
		if err != nil {
			c.log.Warn("recovery: get_merchant failed, skipping", "merchant", addr, "err", err)
			res.EventsSkipped++
			continue
		}
		if !state.Active {
			continue
		}
		skills, err := c.credit.GetMerchantSkills(ctx, addr)
		if err != nil {
			c.log.Warn("recovery: get_merchant_skills failed, skipping", "merchant", addr, "err", err)
			res.EventsSkipped++
			continue
		}
		skillSet := make(map[string]struct{}, len(skills))
		for _, s := range skills {
			skillSet[s] = struct{}{}
		}
		agentID := ev.AgentID
		if agentID == "" {
			agentID = state.AgentID
		}
		c.reg.PutMerchant(&domain.Merchant{
			Address:      addr,
			AgentID:      agentID,
			Endpoint:     state.Endpoint,
			Skills:       skillSet,
			Stake:        state.Stake,
			CreditLimit:  state.Limit,
			Exposure:     zero(),
			Active:       true,
			RegisteredAt: time.Unix(ev.Timestamp, 0),
		})
		if c.watcher != nil {
			c.watcher.Watch(addr)
		}
		seeded[addr] = true
		res.MerchantsSeeded++
	}

	incs, err := c.credit.QueryEvents(ctx, ports.EventExposureIncreased, fromBlock, toBlock)
	if err != nil {
		c.log.Warn("recovery: query exposure_increased events failed", "err", err)
	}

	byMerchant := make(map[string][]ports.Event)
	for _, ev := range incs {
		addr := domain.NormalizeAddress(ev.Merchant)
		byMerchant[addr] = append(byMerchant[addr], ev)
	}

	for addr, events := range byMerchant {
		m := c.reg.Merchant(addr)
		if m == nil {
			// Merchant was never seen Active in a Subscribed event within
			// this window (or is no longer active) — nothing to attribute.
			res.EventsSkipped += len(events)
			continue
		}

		// Most-recent-first so attribution fills from the live exposure
		// downward and a partially-fitting older event is dropped rather
		// than truncated.
		sort.Slice(events, func(i, j int) bool { return events[i].Block > events[j].Block })

		state, err := c.credit.GetMerchant(ctx, addr)
		if err != nil {
			c.log.Warn("recovery: get_merchant failed during attribution, skipping merchant", "merchant", addr, "err", err)
			res.EventsSkipped += len(events)
			continue
		}

		budget := new(big.Int).Set(state.Exposure)
		for _, ev := range events {
			if budget.Sign() <= 0 {
				res.EventsSkipped++
				continue
			}
			if ev.Amount.Cmp(budget) > 0 {
				// Doesn't fit whole — never attribute a partial amount.
				res.EventsSkipped++
				continue
			}
			if err := c.recoverOnePayment(ctx, addr, ev); err != nil {
				c.log.Warn("recovery: failed to recover payment, skipping", "merchant", addr, "tx_hash", ev.TxHash, "err", err)
				res.EventsSkipped++
				continue
			}
			budget.Sub(budget, ev.Amount)
			res.PaymentsRecovered++
		}

		c.reg.RecomputeExposure(addr)
	}

	c.log.Info("recovery complete", "merchants_seeded", res.MerchantsSeeded, "payments_recovered", res.PaymentsRecovered, "events_skipped", res.EventsSkipped)
	return res
}

// recoverOnePayment reattributes a single ExposureIncreased event to its
// originating Transfer (Open Question 1: key by the Transfer's own hash
// when found, else fall back to the record event's hash with the
// clearinghouse's own address as a placeholder client).
func (c *Core) recoverOnePayment(ctx context.Context, merchant string, ev ports.Event) error {
	txHash := ev.TxHash
	client := domain.NormalizeAddress(c.cfg.ClearinghouseAddress)

	if transfer, err := c.ledger.FindTransfer(ctx, merchant, ev.Amount, ev.Block, c.cfg.RecoveryLookbackBlocks); err == nil && transfer != nil {
		txHash = transfer.TxHash
		client = domain.NormalizeAddress(transfer.From)
	}

	if c.reg.HasPayment(txHash) {
		return nil
	}

	c.reg.PutPayment(&domain.Payment{
		TxHash:    txHash,
		Merchant:  merchant,
		Client:    client,
		Amount:    ev.Amount,
		Deadline:  time.Unix(ev.Timestamp, 0).Add(c.cfg.DefaultDeadline),
		Status:    domain.PaymentPending,
		CreatedAt: time.Unix(ev.Timestamp, 0),
	})
	return nil
}
