package mocks

import (
	"context"
	"log/slog"
	"math/big"
	"strconv"
	"sync"

	"github.com/aegis402/clearinghouse/domain"
	"github.com/aegis402/clearinghouse/ports"
)

type creditAccount struct {
	stake    *big.Int
	limit    *big.Int
	exposure *big.Int
	agentID  string
	endpoint string
	active   bool
	skills   []string
}

// CreditManager is a fake ports.CreditOps that enforces the same
// invariants the real on-ledger contract would (record_payment fails over
// credit, clear_exposure/slash fail over exposure or stake), and records
// every write as an Event so Recovery can be exercised against it.
type CreditManager struct {
	mu        sync.Mutex
	accounts  map[string]*creditAccount
	events    []ports.Event
	allowance *big.Int
	nextBlock uint64
	txSeq     int
	FailNext  map[string]error // keyed by op name, consumed once
}

func NewCreditManager() *CreditManager {
	return &CreditManager{
		accounts:  make(map[string]*creditAccount),
		allowance: big.NewInt(0),
		FailNext:  make(map[string]error),
	}
}

func (c *CreditManager) maybeFail(op string) error {
	if err, ok := c.FailNext[op]; ok {
		delete(c.FailNext, op)
		return err
	}
	return nil
}

func (c *CreditManager) nextTxHash() string {
	c.txSeq++
	c.nextBlock++
	return "creditmgr-tx-" + strconv.Itoa(c.txSeq)
}

func (c *CreditManager) GetMerchant(ctx context.Context, addr string) (*ports.MerchantState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.maybeFail("GetMerchant"); err != nil {
		return nil, err
	}
	addr = domain.NormalizeAddress(addr)
	a, ok := c.accounts[addr]
	if !ok {
		return &ports.MerchantState{Stake: big.NewInt(0), Limit: big.NewInt(0), Exposure: big.NewInt(0), Active: false}, nil
	}
	return &ports.MerchantState{
		Stake:    new(big.Int).Set(a.stake),
		Limit:    new(big.Int).Set(a.limit),
		Exposure: new(big.Int).Set(a.exposure),
		AgentID:  a.agentID,
		Endpoint: a.endpoint,
		Active:   a.active,
	}, nil
}

func (c *CreditManager) GetMerchantSkills(ctx context.Context, addr string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.maybeFail("GetMerchantSkills"); err != nil {
		return nil, err
	}
	a, ok := c.accounts[domain.NormalizeAddress(addr)]
	if !ok {
		return nil, nil
	}
	out := make([]string, len(a.skills))
	copy(out, a.skills)
	return out, nil
}

func (c *CreditManager) SubscribeFor(ctx context.Context, addr string, stake *big.Int, agentID, endpoint string, skills []string) (*ports.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.maybeFail("SubscribeFor"); err != nil {
		return nil, err
	}
	addr = domain.NormalizeAddress(addr)
	if a, ok := c.accounts[addr]; ok && a.active {
		return nil, domain.NewError(domain.ErrLedger, "merchant already active")
	}
	c.accounts[addr] = &creditAccount{
		stake:    new(big.Int).Set(stake),
		limit:    big.NewInt(0),
		exposure: big.NewInt(0),
		agentID:  agentID,
		endpoint: endpoint,
		active:   true,
		skills:   skills,
	}
	tx := c.nextTxHash()
	c.events = append(c.events, ports.Event{Kind: ports.EventSubscribed, Merchant: addr, AgentID: agentID, Amount: new(big.Int).Set(stake), TxHash: tx, Block: c.nextBlock})
	slog.Info("mock creditmgr: subscribed", "merchant", addr, "stake", stake.String())
	return &ports.Receipt{TxHash: tx, Block: c.nextBlock}, nil
}

func (c *CreditManager) SetCreditLimit(ctx context.Context, addr string, limit *big.Int) (*ports.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.maybeFail("SetCreditLimit"); err != nil {
		return nil, err
	}
	addr = domain.NormalizeAddress(addr)
	a, ok := c.accounts[addr]
	if !ok || !a.active {
		return nil, domain.NewError(domain.ErrLedger, "merchant not active")
	}
	a.limit = new(big.Int).Set(limit)
	tx := c.nextTxHash()
	return &ports.Receipt{TxHash: tx, Block: c.nextBlock}, nil
}

func (c *CreditManager) RecordPayment(ctx context.Context, addr string, amount *big.Int) (*ports.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.maybeFail("RecordPayment"); err != nil {
		return nil, err
	}
	addr = domain.NormalizeAddress(addr)
	a, ok := c.accounts[addr]
	if !ok || !a.active {
		return nil, domain.NewError(domain.ErrLedger, "merchant not active")
	}
	next := new(big.Int).Add(a.exposure, amount)
	if next.Cmp(a.limit) > 0 {
		return nil, domain.NewError(domain.ErrLedger, "record_payment exceeds credit limit")
	}
	a.exposure = next
	tx := c.nextTxHash()
	c.events = append(c.events, ports.Event{Kind: ports.EventExposureIncreased, Merchant: addr, Amount: new(big.Int).Set(amount), TxHash: tx, Block: c.nextBlock})
	return &ports.Receipt{TxHash: tx, Block: c.nextBlock}, nil
}

func (c *CreditManager) ClearExposure(ctx context.Context, addr string, amount *big.Int) (*ports.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.maybeFail("ClearExposure"); err != nil {
		return nil, err
	}
	addr = domain.NormalizeAddress(addr)
	a, ok := c.accounts[addr]
	if !ok {
		return nil, domain.NewError(domain.ErrLedger, "merchant not found")
	}
	if amount.Cmp(a.exposure) > 0 {
		return nil, domain.NewError(domain.ErrLedger, "clear_exposure amount exceeds exposure")
	}
	a.exposure = new(big.Int).Sub(a.exposure, amount)
	tx := c.nextTxHash()
	c.events = append(c.events, ports.Event{Kind: ports.EventExposureCleared, Merchant: addr, Amount: new(big.Int).Set(amount), TxHash: tx, Block: c.nextBlock})
	return &ports.Receipt{TxHash: tx, Block: c.nextBlock}, nil
}

func (c *CreditManager) Slash(ctx context.Context, addr, client string, amount *big.Int) (*ports.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.maybeFail("Slash"); err != nil {
		return nil, err
	}
	addr = domain.NormalizeAddress(addr)
	a, ok := c.accounts[addr]
	if !ok {
		return nil, domain.NewError(domain.ErrLedger, "merchant not found")
	}
	if amount.Cmp(a.stake) > 0 || amount.Cmp(a.exposure) > 0 {
		return nil, domain.NewError(domain.ErrLedger, "slash amount exceeds stake or exposure")
	}
	a.stake = new(big.Int).Sub(a.stake, amount)
	a.exposure = new(big.Int).Sub(a.exposure, amount)
	tx := c.nextTxHash()
	c.events = append(c.events, ports.Event{Kind: ports.EventSlashed, Merchant: addr, Client: domain.NormalizeAddress(client), Amount: new(big.Int).Set(amount), TxHash: tx, Block: c.nextBlock})
	return &ports.Receipt{TxHash: tx, Block: c.nextBlock}, nil
}

func (c *CreditManager) Approve(ctx context.Context, amount *big.Int) (*ports.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.maybeFail("Approve"); err != nil {
		return nil, err
	}
	c.allowance = new(big.Int).Set(amount)
	tx := c.nextTxHash()
	return &ports.Receipt{TxHash: tx, Block: c.nextBlock}, nil
}

func (c *CreditManager) Allowance(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.maybeFail("Allowance"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(c.allowance), nil
}

func (c *CreditManager) QueryEvents(ctx context.Context, kind ports.EventKind, fromBlock, toBlock uint64) ([]ports.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.maybeFail("QueryEvents"); err != nil {
		return nil, err
	}
	var out []ports.Event
	for _, e := range c.events {
		if e.Kind == kind && e.Block >= fromBlock && e.Block <= toBlock {
			out = append(out, e)
		}
	}
	return out, nil
}
