package domain

import "github.com/shopspring/decimal"

// RhoMinPermille and RhoMaxPermille bound the reputation factor at permille
// (thousandths) precision: 500 == 0.500, 3000 == 3.000.
const (
	RhoMinPermille int64 = 500
	RhoMaxPermille int64 = 3000
)

var (
	rhoMin = decimal.NewFromInt(RhoMinPermille).Div(decimal.NewFromInt(1000))
	rhoMax = decimal.NewFromInt(RhoMaxPermille).Div(decimal.NewFromInt(1000))
)

// Reputation wraps the reputation factor rho as a decimal so that clamping
// and credit-limit arithmetic never goes through floating point, and
// exposes a permille integer for the on-ledger-reproducible wire format
// (Open Question 2 in SPEC_FULL.md §9).
type Reputation struct {
	rho decimal.Decimal
}

// NewReputation clamps rho to [rho_min, rho_max] and wraps it.
func NewReputation(rho decimal.Decimal) Reputation {
	if rho.LessThan(rhoMin) {
		rho = rhoMin
	}
	if rho.GreaterThan(rhoMax) {
		rho = rhoMax
	}
	return Reputation{rho: rho}
}

// ReputationFromPermille reconstructs a clamped Reputation from its wire
// (permille) representation.
func ReputationFromPermille(permille int64) Reputation {
	return NewReputation(decimal.NewFromInt(permille).Div(decimal.NewFromInt(1000)))
}

// Decimal returns the clamped factor as a decimal.Decimal.
func (r Reputation) Decimal() decimal.Decimal {
	return r.rho
}

// Permille returns the clamped factor truncated to an integer permille,
// never rounded up, so stored credit limits never exceed what the raw
// factor would have produced.
func (r Reputation) Permille() int64 {
	return r.rho.Mul(decimal.NewFromInt(1000)).Truncate(0).IntPart()
}

// CreditLimit computes floor(stake * rho) as specified in spec.md §4.4.1
// step 2, using the permille-truncated factor so the result is
// deterministic and reproducible from on-ledger state alone.
func (r Reputation) CreditLimit(stake decimal.Decimal) decimal.Decimal {
	permilleFactor := decimal.NewFromInt(r.Permille()).Div(decimal.NewFromInt(1000))
	return stake.Mul(permilleFactor).Truncate(0)
}
