package ports

import (
	"context"
	"math/big"
	"time"
)

// Transfer is an attributed Transfer(from,to,amount) event observed on the
// value ledger. The clearing core keys everything it derives from a
// Transfer on TxHash — see domain.Payment.
type Transfer struct {
	TxHash    string
	From      string
	To        string
	Amount    *big.Int
	Block     uint64
	Timestamp time.Time
}

// LedgerView is the read-only polling contract over the value asset's
// Transfer log (spec.md §4.2, Ledger Adapter). Implementations own their
// own RPC connection handle.
type LedgerView interface {
	// HeadBlock returns the current head block number.
	HeadBlock(ctx context.Context) (uint64, error)

	// Transfers returns Transfer events in the range (fromBlock, toBlock]
	// (fromBlock excluded, toBlock included) whose recipient is in `to`. Implementations are
	// free to query in smaller chunks internally; callers see one slice.
	Transfers(ctx context.Context, fromBlock, toBlock uint64, to map[string]struct{}) ([]Transfer, error)

	// FindTransfer scans [endBlock-lookback, endBlock] for the latest
	// Transfer to `to` with exactly `amount`, used only by Recovery to
	// reattribute an ExposureIncreased event to its originating Transfer.
	FindTransfer(ctx context.Context, to string, amount *big.Int, endBlock uint64, lookback uint64) (*Transfer, error)
}
