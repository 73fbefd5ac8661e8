package domain

import (
	"math/big"
	"time"
)

// PaymentStatus is the lifecycle state of a Payment. Terminal states
// (Settled, Slashed, Expired) are permanent — P4.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSettled PaymentStatus = "settled"
	PaymentSlashed PaymentStatus = "slashed"
	PaymentExpired PaymentStatus = "expired"
)

// IsTerminal reports whether status can never change again.
func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentPending
}

// Payment is one observed client->merchant transfer on the value ledger.
// TxHash is the unique primary key (P3).
type Payment struct {
	TxHash    string
	Merchant  string // lowercased address
	Client    string // lowercased address
	Amount    *big.Int
	Deadline  time.Time
	Status    PaymentStatus
	CreatedAt time.Time
}

// Clone returns a deep copy safe to hand outside the single-writer boundary.
func (p *Payment) Clone() *Payment {
	cp := *p
	cp.Amount = new(big.Int).Set(p.Amount)
	return &cp
}
