// Package creditmgr implements ports.CreditOps against the on-ledger credit
// contract and its backing asset token, both reached through a generic
// bind.BoundContract rather than an abigen-generated binding — the contract
// is a clearinghouse-internal deployment with no published Go package, so
// the adapter carries its own ABI (abi.go) the way a hand-rolled EVM client
// reaches a contract it doesn't control the source of.
package creditmgr

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/aegis402/clearinghouse/domain"
	"github.com/aegis402/clearinghouse/ports"
)

// Adapter is the concrete ports.CreditOps. signer produces fresh
// *bind.TransactOpts per call, signed by the clearinghouse's single agent
// key (spec.md §5's single-agent-key invariant) — kept as a func rather
// than a cached value because bind.TransactOpts carries a per-tx nonce that
// must advance across calls.
type Adapter struct {
	client           *ethclient.Client
	credit           *bind.BoundContract
	asset            *bind.BoundContract
	creditABI        abi.ABI
	creditAddrCached common.Address
	assetAddr        common.Address

	signer      func(ctx context.Context) (*bind.TransactOpts, error)
	chunkSize   uint64
	headerCache map[uint64]uint64
}

// New returns a creditmgr Adapter bound to creditAddr's contract, pulling
// the approve/allowance calls against assetAddr's ERC-20 surface. signer
// must return a fresh, correctly-nonced *bind.TransactOpts on every call.
func New(client *ethclient.Client, creditAddr, assetAddr common.Address, signer func(ctx context.Context) (*bind.TransactOpts, error), chunkSize uint64) (*Adapter, error) {
	creditABI, err := abi.JSON(strings.NewReader(creditContractABI))
	if err != nil {
		return nil, fmt.Errorf("creditmgr: parse credit abi: %w", err)
	}
	assetABI, err := abi.JSON(strings.NewReader(assetTokenABI))
	if err != nil {
		return nil, fmt.Errorf("creditmgr: parse asset abi: %w", err)
	}
	if chunkSize == 0 {
		chunkSize = 2000
	}
	return &Adapter{
		client:           client,
		credit:           bind.NewBoundContract(creditAddr, creditABI, client, client, client),
		asset:            bind.NewBoundContract(assetAddr, assetABI, client, client, client),
		creditABI:        creditABI,
		creditAddrCached: creditAddr,
		assetAddr:        assetAddr,
		signer:           signer,
		chunkSize:        chunkSize,
		headerCache:      make(map[uint64]uint64),
	}, nil
}

func (a *Adapter) GetMerchant(ctx context.Context, addr string) (*ports.MerchantState, error) {
	var out []interface{}
	err := a.credit.Call(&bind.CallOpts{Context: ctx}, &out, "getMerchant", common.HexToAddress(addr))
	if err != nil {
		return nil, domain.Wrap(domain.ErrLedger, "get_merchant failed", err)
	}
	return &ports.MerchantState{
		Stake:    out[0].(*big.Int),
		Limit:    out[1].(*big.Int),
		Exposure: out[2].(*big.Int),
		AgentID:  out[3].(string),
		Endpoint: out[4].(string),
		Active:   out[5].(bool),
	}, nil
}

func (a *Adapter) GetMerchantSkills(ctx context.Context, addr string) ([]string, error) {
	var out []interface{}
	err := a.credit.Call(&bind.CallOpts{Context: ctx}, &out, "getMerchantSkills", common.HexToAddress(addr))
	if err != nil {
		return nil, domain.Wrap(domain.ErrLedger, "get_merchant_skills failed", err)
	}
	return out[0].([]string), nil
}

func (a *Adapter) SubscribeFor(ctx context.Context, addr string, stake *big.Int, agentID, endpoint string, skills []string) (*ports.Receipt, error) {
	return a.send(ctx, a.credit, "subscribe_for", "subscribeFor", common.HexToAddress(addr), stake, agentID, endpoint, skills)
}

func (a *Adapter) SetCreditLimit(ctx context.Context, addr string, limit *big.Int) (*ports.Receipt, error) {
	return a.send(ctx, a.credit, "set_credit_limit", "setCreditLimit", common.HexToAddress(addr), limit)
}

func (a *Adapter) RecordPayment(ctx context.Context, addr string, amount *big.Int) (*ports.Receipt, error) {
	return a.send(ctx, a.credit, "record_payment", "recordPayment", common.HexToAddress(addr), amount)
}

func (a *Adapter) ClearExposure(ctx context.Context, addr string, amount *big.Int) (*ports.Receipt, error) {
	return a.send(ctx, a.credit, "clear_exposure", "clearExposure", common.HexToAddress(addr), amount)
}

func (a *Adapter) Slash(ctx context.Context, addr, client string, amount *big.Int) (*ports.Receipt, error) {
	return a.send(ctx, a.credit, "slash", "slash", common.HexToAddress(addr), common.HexToAddress(client), amount)
}

func (a *Adapter) Approve(ctx context.Context, amount *big.Int) (*ports.Receipt, error) {
	return a.send(ctx, a.asset, "approve", "approve", a.creditAddrCached, amount)
}

func (a *Adapter) Allowance(ctx context.Context) (*big.Int, error) {
	opts, err := a.signer(ctx)
	if err != nil {
		return nil, domain.Wrap(domain.ErrLedger, "allowance: derive owner", err)
	}
	var out []interface{}
	err = a.asset.Call(&bind.CallOpts{Context: ctx}, &out, "allowance", opts.From, a.creditAddrCached)
	if err != nil {
		return nil, domain.Wrap(domain.ErrLedger, "allowance failed", err)
	}
	return out[0].(*big.Int), nil
}

// send signs and submits a state-changing call, waiting for it to be mined
// before returning a Receipt — the single agent key never fires two writes
// concurrently because core.Core's mutex already serializes callers
// (spec.md §5).
func (a *Adapter) send(ctx context.Context, contract *bind.BoundContract, opName, method string, args ...interface{}) (*ports.Receipt, error) {
	opts, err := a.signer(ctx)
	if err != nil {
		return nil, domain.Wrap(domain.ErrLedger, opName+": sign", err)
	}
	tx, err := contract.Transact(opts, method, args...)
	if err != nil {
		return nil, domain.Wrap(domain.ErrLedger, opName+" failed", err)
	}
	receipt, err := bind.WaitMined(ctx, a.client, tx)
	if err != nil {
		return nil, domain.Wrap(domain.ErrLedger, opName+": wait_mined", err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return nil, domain.NewError(domain.ErrLedger, opName+" reverted")
	}
	return &ports.Receipt{TxHash: tx.Hash().Hex(), Block: receipt.BlockNumber.Uint64()}, nil
}

// QueryEvents implements the chunked historical read with spec.md §4.1's
// retry/split rules: fixed-size ranges, halved once on error with a single
// retry, then skip-and-log so one bad chunk never aborts the whole scan.
func (a *Adapter) QueryEvents(ctx context.Context, kind ports.EventKind, fromBlock, toBlock uint64) ([]ports.Event, error) {
	eventName := string(kind)
	topic, ok := a.creditABI.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("creditmgr: unknown event kind %s", kind)
	}

	var out []ports.Event
	for start := fromBlock; start <= toBlock; {
		end := start + a.chunkSize - 1
		if end > toBlock {
			end = toBlock
		}
		logs, err := a.fetchLogsWithRetry(ctx, topic.ID, start, end)
		if err != nil {
			// Already retried once at half width inside fetchLogsWithRetry;
			// skip this range and continue rather than aborting the scan.
			slog.Warn("creditmgr: query_events chunk failed, skipping range", "event", eventName, "from", start, "to", end, "err", err)
			start = end + 1
			continue
		}
		for _, lg := range logs {
			ev, err := a.decodeEvent(kind, lg)
			if err != nil {
				continue
			}
			ts, err := a.blockTimestamp(ctx, lg.BlockNumber)
			if err != nil {
				continue
			}
			ev.Timestamp = ts
			out = append(out, ev)
		}
		start = end + 1
	}
	return out, nil
}

func (a *Adapter) fetchLogsWithRetry(ctx context.Context, topic common.Hash, fromBlock, toBlock uint64) ([]types.Log, error) {
	logs, err := a.fetchLogs(ctx, topic, fromBlock, toBlock)
	if err == nil {
		return logs, nil
	}
	if toBlock <= fromBlock {
		return nil, err
	}
	mid := fromBlock + (toBlock-fromBlock)/2
	first, err1 := a.fetchLogs(ctx, topic, fromBlock, mid)
	if err1 != nil {
		return nil, err1
	}
	second, err2 := a.fetchLogs(ctx, topic, mid+1, toBlock)
	if err2 != nil {
		return nil, err2
	}
	return append(first, second...), nil
}

func (a *Adapter) fetchLogs(ctx context.Context, topic common.Hash, fromBlock, toBlock uint64) ([]types.Log, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{a.creditAddrCached},
		Topics:    [][]common.Hash{{topic}},
	}
	return a.client.FilterLogs(ctx, q)
}

func (a *Adapter) blockTimestamp(ctx context.Context, block uint64) (int64, error) {
	if ts, ok := a.headerCache[block]; ok {
		return int64(ts), nil
	}
	header, err := a.client.HeaderByNumber(ctx, new(big.Int).SetUint64(block))
	if err != nil {
		return 0, fmt.Errorf("creditmgr: header_by_number %d: %w", block, err)
	}
	a.headerCache[block] = header.Time
	return int64(header.Time), nil
}

func (a *Adapter) decodeEvent(kind ports.EventKind, lg types.Log) (ports.Event, error) {
	vals := make(map[string]interface{})
	if err := a.creditABI.UnpackIntoMap(vals, string(kind), lg.Data); err != nil {
		return ports.Event{}, err
	}
	ev := ports.Event{
		Kind:   kind,
		TxHash: lg.TxHash.Hex(),
		Block:  lg.BlockNumber,
	}
	if len(lg.Topics) > 1 {
		ev.Merchant = domain.NormalizeAddress(common.HexToAddress(lg.Topics[1].Hex()).Hex())
	}
	switch kind {
	case ports.EventSubscribed:
		ev.AgentID, _ = vals["agentId"].(string)
		ev.Amount, _ = vals["stake"].(*big.Int)
	case ports.EventExposureIncreased, ports.EventExposureCleared:
		ev.Amount, _ = vals["amount"].(*big.Int)
	case ports.EventSlashed:
		if len(lg.Topics) > 2 {
			ev.Client = domain.NormalizeAddress(common.HexToAddress(lg.Topics[2].Hex()).Hex())
		}
		ev.Amount, _ = vals["amount"].(*big.Int)
	}
	return ev, nil
}
