package watcher

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/aegis402/clearinghouse/mocks"
	"github.com/aegis402/clearinghouse/ports"
)

type recordingObserver struct {
	mu   sync.Mutex
	seen []ports.Transfer
}

func (o *recordingObserver) OnTransferDetected(ctx context.Context, t ports.Transfer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, t)
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.seen)
}

func TestWatcher_ForwardsTransfersToWatchedAddresses(t *testing.T) {
	ledger := mocks.NewLedger()
	obs := &recordingObserver{}
	w := New(ledger, obs, 5*time.Millisecond, nil)
	w.Watch("0xmerchant")

	ledger.SimulateTransfer("0xtx1", "0xclient", "0xmerchant", big.NewInt(100))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	deadline := time.Now().Add(200 * time.Millisecond)
	for obs.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if obs.count() != 1 {
		t.Fatalf("expected 1 transfer delivered, got %d", obs.count())
	}
}

func TestWatcher_IgnoresTransfersToUnwatchedAddresses(t *testing.T) {
	ledger := mocks.NewLedger()
	obs := &recordingObserver{}
	w := New(ledger, obs, 5*time.Millisecond, nil)
	w.Watch("0xmerchant")

	ledger.SimulateTransfer("0xtx1", "0xclient", "0xother", big.NewInt(100))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(50 * time.Millisecond)

	if obs.count() != 0 {
		t.Fatalf("expected 0 transfers delivered, got %d", obs.count())
	}
}

func TestWatcher_DoesNotRedeliverAcrossTicks(t *testing.T) {
	ledger := mocks.NewLedger()
	obs := &recordingObserver{}
	w := New(ledger, obs, 5*time.Millisecond, nil)
	w.Watch("0xmerchant")

	ledger.SimulateTransfer("0xtx1", "0xclient", "0xmerchant", big.NewInt(100))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(100 * time.Millisecond)

	if obs.count() != 1 {
		t.Fatalf("expected exactly 1 delivery across multiple ticks, got %d", obs.count())
	}
}

func TestWatcher_SeedLastBlockSkipsAlreadyRecoveredHistory(t *testing.T) {
	ledger := mocks.NewLedger()
	ledger.SimulateTransfer("0xtx1", "0xclient", "0xmerchant", big.NewInt(100))

	obs := &recordingObserver{}
	w := New(ledger, obs, 5*time.Millisecond, nil)
	w.Watch("0xmerchant")
	w.SeedLastBlock(1)

	ledger.SimulateTransfer("0xtx2", "0xclient", "0xmerchant", big.NewInt(200))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	deadline := time.Now().Add(200 * time.Millisecond)
	for obs.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if obs.count() != 1 {
		t.Fatalf("expected only the post-seed transfer delivered, got %d", obs.count())
	}
	if obs.seen[0].TxHash != "0xtx2" {
		t.Fatalf("expected tx2 to be the one delivered, got %s", obs.seen[0].TxHash)
	}
}
