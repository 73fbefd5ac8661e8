// Package mocks provides in-memory fakes for every ports capability
// interface, in the spirit of ThorbenD-atomic-dvp-go's adapters/mock
// package: simple, slog-instrumented, with Simulate* helpers tests use to
// inject ledger-side events.
package mocks

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/aegis402/clearinghouse/domain"
	"github.com/aegis402/clearinghouse/ports"
)

// Ledger is a fake ports.LedgerView backed by an in-memory transfer log.
type Ledger struct {
	mu        sync.Mutex
	head      uint64
	transfers []ports.Transfer
}

// NewLedger returns an empty fake ledger at head block 0.
func NewLedger() *Ledger {
	return &Ledger{}
}

// SimulateTransfer appends a Transfer at the current head+1 and advances
// the head, mimicking a new block landing.
func (l *Ledger) SimulateTransfer(txHash, from, to string, amount *big.Int) ports.Transfer {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.head++
	t := ports.Transfer{
		TxHash:    txHash,
		From:      domain.NormalizeAddress(from),
		To:        domain.NormalizeAddress(to),
		Amount:    new(big.Int).Set(amount),
		Block:     l.head,
		Timestamp: time.Now(),
	}
	l.transfers = append(l.transfers, t)
	slog.Info("mock ledger: transfer recorded", "tx_hash", txHash, "to", t.To, "amount", amount.String())
	return t
}

func (l *Ledger) HeadBlock(ctx context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head, nil
}

func (l *Ledger) Transfers(ctx context.Context, fromBlock, toBlock uint64, to map[string]struct{}) ([]ports.Transfer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []ports.Transfer
	for _, t := range l.transfers {
		if t.Block <= fromBlock || t.Block > toBlock {
			continue
		}
		if _, watched := to[t.To]; !watched {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (l *Ledger) FindTransfer(ctx context.Context, to string, amount *big.Int, endBlock uint64, lookback uint64) (*ports.Transfer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	to = domain.NormalizeAddress(to)
	var low uint64
	if endBlock > lookback {
		low = endBlock - lookback
	}
	var best *ports.Transfer
	for i := range l.transfers {
		t := l.transfers[i]
		if t.To != to || t.Amount.Cmp(amount) != 0 {
			continue
		}
		if t.Block < low || t.Block > endBlock {
			continue
		}
		if best == nil || t.Block > best.Block {
			best = &t
		}
	}
	if best == nil {
		return nil, fmt.Errorf("mock ledger: no transfer found to %s for %s", to, amount.String())
	}
	return best, nil
}
