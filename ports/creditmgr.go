package ports

import (
	"context"
	"math/big"
)

// MerchantState is the on-ledger credit-contract view of a merchant,
// returned by CreditOps.GetMerchant.
type MerchantState struct {
	Stake    *big.Int
	Limit    *big.Int
	Exposure *big.Int
	AgentID  string
	Endpoint string
	Active   bool
}

// EventKind discriminates the credit contract's historical event log
// (spec.md §6: Subscribed, ExposureIncreased, ExposureCleared, Slashed).
type EventKind string

const (
	EventSubscribed        EventKind = "Subscribed"
	EventExposureIncreased EventKind = "ExposureIncreased"
	EventExposureCleared   EventKind = "ExposureCleared"
	EventSlashed           EventKind = "Slashed"
)

// Event is one decoded credit-contract log entry, as returned by
// CreditOps.QueryEvents for Recovery.
type Event struct {
	Kind      EventKind
	Merchant  string
	Client    string // only set for Slashed
	AgentID   string // only set for Subscribed
	Amount    *big.Int
	TxHash    string
	Block     uint64
	Timestamp int64
}

// Receipt is returned by every CreditOps write.
type Receipt struct {
	TxHash string
	Block  uint64
}

// CreditOps is the typed wrapper around the on-ledger credit contract
// (spec.md §4.1, Credit Manager Adapter). All writes go through the
// clearinghouse's single agent key and return a receipt; transient RPC
// failures surface as a *domain.Error of kind ErrLedger and are never
// retried internally (spec.md §4.1, §7).
type CreditOps interface {
	GetMerchant(ctx context.Context, addr string) (*MerchantState, error)
	GetMerchantSkills(ctx context.Context, addr string) ([]string, error)

	SubscribeFor(ctx context.Context, addr string, stake *big.Int, agentID, endpoint string, skills []string) (*Receipt, error)
	SetCreditLimit(ctx context.Context, addr string, limit *big.Int) (*Receipt, error)
	RecordPayment(ctx context.Context, addr string, amount *big.Int) (*Receipt, error)
	ClearExposure(ctx context.Context, addr string, amount *big.Int) (*Receipt, error)
	Slash(ctx context.Context, addr, client string, amount *big.Int) (*Receipt, error)

	// Approve authorizes the credit contract to pull `amount` from the
	// clearinghouse's own account, as required before SubscribeFor
	// (spec.md §4.4.1 step 3).
	Approve(ctx context.Context, amount *big.Int) (*Receipt, error)
	Allowance(ctx context.Context) (*big.Int, error)

	// QueryEvents performs a chunked historical read with the retry/split
	// rules of spec.md §4.1: fixed-size ranges (default 2,000 blocks),
	// halved once on error with a single retry, then skip-and-log. Failures
	// in one chunk must not abort the overall call.
	QueryEvents(ctx context.Context, kind EventKind, fromBlock, toBlock uint64) ([]Event, error)
}
