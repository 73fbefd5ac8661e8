// Package ledger implements ports.LedgerView against a live EVM chain: the
// value asset is an ERC-20-shaped token and "a transfer landed" means its
// Transfer(address,address,uint256) log topic fired with a watched
// recipient.
package ledger

import (
	"context"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/aegis402/clearinghouse/domain"
	"github.com/aegis402/clearinghouse/ports"
)

// transferSig is the topic0 for the standard ERC-20 Transfer event.
var transferSig = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// Adapter is the concrete ports.LedgerView, holding its own *ethclient.Client
// per spec.md §4.2's "implementations own their own RPC connection handle."
type Adapter struct {
	client    *ethclient.Client
	asset     common.Address
	chunkSize uint64

	headerCache map[uint64]time.Time
}

// New returns a ledger Adapter watching Transfer logs emitted by asset.
// chunkSize defaults to 2,000 blocks if zero (spec.md §4.1's default window,
// reused here for the Ledger Adapter's own historical scans).
func New(client *ethclient.Client, asset common.Address, chunkSize uint64) *Adapter {
	if chunkSize == 0 {
		chunkSize = 2000
	}
	return &Adapter{client: client, asset: asset, chunkSize: chunkSize, headerCache: make(map[uint64]time.Time)}
}

func (a *Adapter) HeadBlock(ctx context.Context) (uint64, error) {
	head, err := a.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("ledger: head block: %w", err)
	}
	return head, nil
}

// Transfers implements the (fromBlock, toBlock] scan in bounded chunks, per
// the chunking discipline spec.md §4.1 establishes for event queries.
func (a *Adapter) Transfers(ctx context.Context, fromBlock, toBlock uint64, to map[string]struct{}) ([]ports.Transfer, error) {
	if toBlock <= fromBlock {
		return nil, nil
	}
	var out []ports.Transfer
	for start := fromBlock + 1; start <= toBlock; start += a.chunkSize {
		end := start + a.chunkSize - 1
		if end > toBlock {
			end = toBlock
		}
		logs, err := a.filterRange(ctx, start, end)
		if err != nil {
			return nil, err
		}
		for _, lg := range logs {
			t, ok := decodeTransfer(lg)
			if !ok {
				continue
			}
			if _, watched := to[t.To]; !watched {
				continue
			}
			ts, err := a.blockTimestamp(ctx, lg.BlockNumber)
			if err != nil {
				return nil, err
			}
			t.Timestamp = ts
			out = append(out, t)
		}
	}
	return out, nil
}

// FindTransfer implements Recovery's narrow reattribution query (spec.md
// §4.4.7 step 3 / SPEC_FULL.md §9 Open Question 1): the latest matching
// Transfer within [endBlock-lookback, endBlock], or nil if none matches.
func (a *Adapter) FindTransfer(ctx context.Context, to string, amount *big.Int, endBlock, lookback uint64) (*ports.Transfer, error) {
	var low uint64
	if endBlock > lookback {
		low = endBlock - lookback
	}
	logs, err := a.filterRange(ctx, low, endBlock)
	if err != nil {
		return nil, err
	}
	want := domain.NormalizeAddress(to)

	var best *ports.Transfer
	for _, lg := range logs {
		t, ok := decodeTransfer(lg)
		if !ok || t.To != want || t.Amount.Cmp(amount) != 0 {
			continue
		}
		if best == nil || t.Block > best.Block {
			cp := t
			best = &cp
		}
	}
	if best == nil {
		return nil, nil
	}
	ts, err := a.blockTimestamp(ctx, best.Block)
	if err != nil {
		return nil, err
	}
	best.Timestamp = ts
	return best, nil
}

func (a *Adapter) filterRange(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{a.asset},
		Topics:    [][]common.Hash{{transferSig}},
	}
	logs, err := a.client.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ledger: filter_logs [%d,%d]: %w", fromBlock, toBlock, err)
	}
	return logs, nil
}

func (a *Adapter) blockTimestamp(ctx context.Context, block uint64) (time.Time, error) {
	if ts, ok := a.headerCache[block]; ok {
		return ts, nil
	}
	header, err := a.client.HeaderByNumber(ctx, new(big.Int).SetUint64(block))
	if err != nil {
		return time.Time{}, fmt.Errorf("ledger: header_by_number %d: %w", block, err)
	}
	ts := time.Unix(int64(header.Time), 0)
	a.headerCache[block] = ts
	return ts, nil
}

// decodeTransfer unpacks a standard ERC-20 Transfer(address,address,uint256)
// log: indexed from/to in Topics[1]/Topics[2], value in Data.
func decodeTransfer(lg types.Log) (ports.Transfer, bool) {
	if len(lg.Topics) != 3 || lg.Topics[0] != transferSig {
		return ports.Transfer{}, false
	}
	from := common.HexToAddress(lg.Topics[1].Hex())
	to := common.HexToAddress(lg.Topics[2].Hex())
	amount := new(big.Int).SetBytes(lg.Data)
	return ports.Transfer{
		TxHash: lg.TxHash.Hex(),
		From:   domain.NormalizeAddress(from.Hex()),
		To:     domain.NormalizeAddress(to.Hex()),
		Amount: amount,
		Block:  lg.BlockNumber,
	}, true
}
