package domain

import (
	"math/big"
	"strings"
	"time"
)

// Merchant is a service agent that has locked collateral with the
// clearinghouse and is eligible to be discovered by clients via Quote.
//
// Address is always stored lowercased; NormalizeAddress must be used by
// every caller that derives a registry key from a raw address string.
type Merchant struct {
	Address      string
	AgentID      string
	Endpoint     string
	Skills       map[string]struct{}
	Stake        *big.Int
	CreditLimit  *big.Int
	Exposure     *big.Int
	Active       bool
	RegisteredAt time.Time
}

// NormalizeAddress lowercases an address so it can be used as a registry
// key without case-variant duplicates (spec invariant: all address keys are
// lowercased).
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Capacity returns credit_limit - exposure for this merchant.
func (m *Merchant) Capacity() *big.Int {
	return new(big.Int).Sub(m.CreditLimit, m.Exposure)
}

// HasSkill reports whether the merchant offers the given skill tag.
func (m *Merchant) HasSkill(skill string) bool {
	_, ok := m.Skills[skill]
	return ok
}

// Clone returns a deep copy safe to hand to a caller outside the
// single-writer boundary.
func (m *Merchant) Clone() *Merchant {
	skills := make(map[string]struct{}, len(m.Skills))
	for s := range m.Skills {
		skills[s] = struct{}{}
	}
	return &Merchant{
		Address:      m.Address,
		AgentID:      m.AgentID,
		Endpoint:     m.Endpoint,
		Skills:       skills,
		Stake:        new(big.Int).Set(m.Stake),
		CreditLimit:  new(big.Int).Set(m.CreditLimit),
		Exposure:     new(big.Int).Set(m.Exposure),
		Active:       m.Active,
		RegisteredAt: m.RegisteredAt,
	}
}
