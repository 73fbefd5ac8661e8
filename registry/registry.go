// Package registry holds the clearinghouse's in-memory merchant and
// payment tables and the skill index derived from them. It is pure state:
// every mutation crosses through the Clearing Core's single-writer
// boundary (spec.md §4.3, §5), so Registry itself only needs to guard
// against concurrent reads racing a write, not against concurrent writers.
package registry

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/aegis402/clearinghouse/domain"
)

// Registry is the three in-memory maps from spec.md §4.3: merchants,
// payments, and the skill index. All address keys are lowercased.
type Registry struct {
	mu        sync.RWMutex
	merchants map[string]*domain.Merchant
	payments  map[string]*domain.Payment
	skillIdx  map[string]map[string]struct{}
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		merchants: make(map[string]*domain.Merchant),
		payments:  make(map[string]*domain.Payment),
		skillIdx:  make(map[string]map[string]struct{}),
	}
}

// PutMerchant inserts or overwrites a merchant entry and keeps the skill
// index consistent with it (invariant 4). Callers must hold the Clearing
// Core's write lock.
func (r *Registry) PutMerchant(m *domain.Merchant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	addr := domain.NormalizeAddress(m.Address)
	m.Address = addr

	if old, ok := r.merchants[addr]; ok {
		for s := range old.Skills {
			if set, ok := r.skillIdx[s]; ok {
				delete(set, addr)
			}
		}
	}

	r.merchants[addr] = m
	if m.Active {
		for s := range m.Skills {
			set, ok := r.skillIdx[s]
			if !ok {
				set = make(map[string]struct{})
				r.skillIdx[s] = set
			}
			set[addr] = struct{}{}
		}
	}
}

// Merchant returns a deep copy of the merchant at addr, or nil if absent.
func (r *Registry) Merchant(addr string) *domain.Merchant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.merchants[domain.NormalizeAddress(addr)]
	if !ok {
		return nil
	}
	return m.Clone()
}

// MerchantsBySkill returns the lowercased addresses currently offering
// skill, per the skill index (invariant 4 / P6).
func (r *Registry) MerchantsBySkill(skill string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.skillIdx[skill]
	out := make([]string, 0, len(set))
	for addr := range set {
		out = append(out, addr)
	}
	return out
}

// AdjustExposure applies delta (positive or negative) to a merchant's local
// exposure. It panics if the result would violate invariant 1
// (0 <= exposure <= credit_limit) — per spec.md §7, an invariant violation
// is a programmer error and must be impossible by construction.
func (r *Registry) AdjustExposure(addr string, delta *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.merchants[domain.NormalizeAddress(addr)]
	if !ok {
		panic(fmt.Sprintf("registry: AdjustExposure on unknown merchant %s", addr))
	}
	next := new(big.Int).Add(m.Exposure, delta)
	if next.Sign() < 0 {
		panic(fmt.Sprintf("registry: exposure would go negative for %s", addr))
	}
	if next.Cmp(m.CreditLimit) > 0 {
		panic(fmt.Sprintf("registry: exposure would exceed credit limit for %s", addr))
	}
	m.Exposure = next
}

// AdjustStake applies delta to a merchant's stake (used by Slash, which
// decrements it). It panics if the result would go negative.
func (r *Registry) AdjustStake(addr string, delta *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.merchants[domain.NormalizeAddress(addr)]
	if !ok {
		panic(fmt.Sprintf("registry: AdjustStake on unknown merchant %s", addr))
	}
	next := new(big.Int).Add(m.Stake, delta)
	if next.Sign() < 0 {
		panic(fmt.Sprintf("registry: stake would go negative for %s", addr))
	}
	m.Stake = next
}

// SetCreditLimit overwrites a merchant's credit_limit field directly.
// Subscribe does not use it: it writes the credit limit through PutMerchant.
func (r *Registry) SetCreditLimit(addr string, limit *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.merchants[domain.NormalizeAddress(addr)]
	if !ok {
		panic(fmt.Sprintf("registry: SetCreditLimit on unknown merchant %s", addr))
	}
	m.CreditLimit = new(big.Int).Set(limit)
}

// RecomputeExposure sets a merchant's exposure field to the sum of its own
// pending payments, independent of any delta history. Recovery uses this
// instead of AdjustExposure so that re-running Recovery against an
// already-loaded registry is idempotent rather than double-counting.
func (r *Registry) RecomputeExposure(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	addr = domain.NormalizeAddress(addr)
	m, ok := r.merchants[addr]
	if !ok {
		panic(fmt.Sprintf("registry: RecomputeExposure on unknown merchant %s", addr))
	}
	sum := new(big.Int)
	for _, p := range r.payments {
		if p.Merchant == addr && p.Status == domain.PaymentPending {
			sum.Add(sum, p.Amount)
		}
	}
	if sum.Cmp(m.CreditLimit) > 0 {
		panic(fmt.Sprintf("registry: recomputed exposure exceeds credit limit for %s", addr))
	}
	m.Exposure = sum
}

// HasPayment reports whether tx_hash is already present (used for the
// idempotence check in PaymentDetected and Recovery — P3).
func (r *Registry) HasPayment(txHash string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.payments[txHash]
	return ok
}

// PutPayment inserts a new payment. It panics if txHash already exists —
// P3 (tx_hash uniqueness) must never be violated by the single writer.
func (r *Registry) PutPayment(p *domain.Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.payments[p.TxHash]; exists {
		panic(fmt.Sprintf("registry: duplicate payment tx_hash %s", p.TxHash))
	}
	r.payments[p.TxHash] = p
}

// Payment returns a deep copy of the payment keyed by txHash, or nil.
func (r *Registry) Payment(txHash string) *domain.Payment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[txHash]
	if !ok {
		return nil
	}
	return p.Clone()
}

// SetPaymentStatus transitions a payment to a new status. It panics if the
// payment is already terminal (P4) or absent — callers must check first.
func (r *Registry) SetPaymentStatus(txHash string, status domain.PaymentStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[txHash]
	if !ok {
		panic(fmt.Sprintf("registry: SetPaymentStatus on unknown payment %s", txHash))
	}
	if p.Status.IsTerminal() {
		panic(fmt.Sprintf("registry: payment %s is already terminal (%s)", txHash, p.Status))
	}
	p.Status = status
}

// PendingPayments returns deep copies of every payment currently pending,
// for the Deadline Scheduler's sweep.
func (r *Registry) PendingPayments() []*domain.Payment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Payment, 0)
	for _, p := range r.payments {
		if p.Status == domain.PaymentPending {
			out = append(out, p.Clone())
		}
	}
	return out
}

// ExposureOf sums the amounts of every pending payment for merchant addr —
// the independent recomputation of invariant 2 used by tests.
func (r *Registry) ExposureOf(addr string) *big.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr = domain.NormalizeAddress(addr)
	sum := new(big.Int)
	for _, p := range r.payments {
		if p.Merchant == addr && p.Status == domain.PaymentPending {
			sum.Add(sum, p.Amount)
		}
	}
	return sum
}

// Merchants returns deep copies of every merchant, for /merchants.
func (r *Registry) Merchants() []*domain.Merchant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Merchant, 0, len(r.merchants))
	for _, m := range r.merchants {
		out = append(out, m.Clone())
	}
	return out
}
