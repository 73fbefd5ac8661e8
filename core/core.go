// Package core implements the Clearing Core state machine: Subscribe,
// Quote, Settle, Slash, PaymentDetected, DeadlineTick, and Recovery
// (spec.md §4.4). It is the single writer of registry.Registry — every
// state-changing operation holds Core.mu for its full critical section,
// including the on-ledger calls it makes along the way (spec.md §5).
package core

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/aegis402/clearinghouse/ports"
	"github.com/aegis402/clearinghouse/registry"
)

// Config holds the operational parameters spec.md §6 lists as recognized
// environment options, to the extent they govern Core behavior rather than
// transport/adapter wiring.
type Config struct {
	// ClearinghouseAddress is the clearinghouse's own agent address on the
	// value ledger — transfers it originates are self-initiated stake
	// forwarding and are dropped by PaymentDetected (spec.md §4.4.3 step 1).
	ClearinghouseAddress string

	// DefaultDeadline is D, the default payment delivery deadline.
	DefaultDeadline time.Duration

	// SettlingDelay is the bounded pause Subscribe takes between
	// subscribe_for and set_credit_limit (spec.md §4.4.1 step 5).
	SettlingDelay time.Duration

	// RecoveryLookbackBlocks is the lookback window FindTransfer uses when
	// reattributing an ExposureIncreased event during Recovery.
	RecoveryLookbackBlocks uint64

	// EventChunkBlocks records the default chunk size (2,000 blocks) for
	// event block-range scans. Core does not read it: the creditmgr and
	// ledger adapters take their chunk size through their own constructors.
	EventChunkBlocks uint64
}

// DefaultConfig returns the defaults named in spec.md §4.1, §4.4.1, §4.4.3.
func DefaultConfig() Config {
	return Config{
		DefaultDeadline:        3600 * time.Second,
		SettlingDelay:          2 * time.Second,
		RecoveryLookbackBlocks: 5,
		EventChunkBlocks:       2000,
	}
}

// Core is the Clearing Core. It depends only on the narrow ports
// interfaces (spec.md §9's capability-set design note), never on a
// concrete adapter, so tests wire it against mocks.
type Core struct {
	mu sync.Mutex

	reg     *registry.Registry
	ledger  ports.LedgerView
	credit  ports.CreditOps
	rep     ports.ReputationReader
	watcher ports.ChainWatcher

	cfg Config
	log *slog.Logger
}

// New builds a Core over the given collaborators. watcher may be nil if
// the caller drives PaymentDetected itself (e.g. in tests).
func New(reg *registry.Registry, ledger ports.LedgerView, credit ports.CreditOps, rep ports.ReputationReader, watcher ports.ChainWatcher, cfg Config, log *slog.Logger) *Core {
	if log == nil {
		log = slog.Default()
	}
	return &Core{reg: reg, ledger: ledger, credit: credit, rep: rep, watcher: watcher, cfg: cfg, log: log}
}

// Registry exposes the underlying registry for read-only callers (the
// /merchants and /health HTTP handlers).
func (c *Core) Registry() *registry.Registry { return c.reg }

func zero() *big.Int { return big.NewInt(0) }

func negate(n *big.Int) *big.Int { return new(big.Int).Neg(n) }

// OnTransferDetected implements ports.PaymentObserver — the Chain
// Watcher's callback boundary into the Core (spec.md §2 data flow).
func (c *Core) OnTransferDetected(ctx context.Context, t ports.Transfer) {
	c.PaymentDetected(ctx, t)
}
