package registry

import (
	"math/big"
	"testing"
	"time"

	"github.com/aegis402/clearinghouse/domain"
)

func newMerchant(addr string, limit int64) *domain.Merchant {
	return &domain.Merchant{
		Address:      addr,
		Skills:       map[string]struct{}{"x": {}},
		Stake:        big.NewInt(limit),
		CreditLimit:  big.NewInt(limit),
		Exposure:     big.NewInt(0),
		Active:       true,
		RegisteredAt: time.Now(),
	}
}

func TestPutMerchant_SkillIndexConsistency(t *testing.T) {
	r := New()
	r.PutMerchant(newMerchant("0xABC", 100))

	addrs := r.MerchantsBySkill("x")
	if len(addrs) != 1 || addrs[0] != "0xabc" {
		t.Fatalf("expected lowercased address in skill index, got %v", addrs)
	}
}

func TestPutMerchant_Overwrite_RemovesStaleSkills(t *testing.T) {
	r := New()
	m := newMerchant("0xabc", 100)
	r.PutMerchant(m)

	m2 := newMerchant("0xabc", 100)
	m2.Skills = map[string]struct{}{"y": {}}
	r.PutMerchant(m2)

	if got := r.MerchantsBySkill("x"); len(got) != 0 {
		t.Fatalf("expected skill x to be cleared, got %v", got)
	}
	if got := r.MerchantsBySkill("y"); len(got) != 1 {
		t.Fatalf("expected skill y to be indexed, got %v", got)
	}
}

func TestAdjustExposure_PanicsOnOverCredit(t *testing.T) {
	r := New()
	r.PutMerchant(newMerchant("0xabc", 100))

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when exposure exceeds credit limit")
		}
	}()
	r.AdjustExposure("0xabc", big.NewInt(101))
}

func TestAdjustExposure_PanicsOnNegative(t *testing.T) {
	r := New()
	r.PutMerchant(newMerchant("0xabc", 100))

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when exposure goes negative")
		}
	}()
	r.AdjustExposure("0xabc", big.NewInt(-1))
}

func TestPutPayment_DuplicateTxHashPanics(t *testing.T) {
	r := New()
	p := &domain.Payment{TxHash: "tx1", Merchant: "0xabc", Amount: big.NewInt(1), Status: domain.PaymentPending}
	r.PutPayment(p)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate tx_hash")
		}
	}()
	r.PutPayment(&domain.Payment{TxHash: "tx1", Merchant: "0xabc", Amount: big.NewInt(1), Status: domain.PaymentPending})
}

func TestSetPaymentStatus_PanicsOnAlreadyTerminal(t *testing.T) {
	r := New()
	p := &domain.Payment{TxHash: "tx1", Merchant: "0xabc", Amount: big.NewInt(1), Status: domain.PaymentSettled}
	r.PutPayment(p)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when transitioning out of a terminal status")
		}
	}()
	r.SetPaymentStatus("tx1", domain.PaymentExpired)
}

func TestRecomputeExposure_DerivesFromPendingPayments(t *testing.T) {
	r := New()
	r.PutMerchant(newMerchant("0xabc", 100))
	r.PutPayment(&domain.Payment{TxHash: "tx1", Merchant: "0xabc", Amount: big.NewInt(40), Status: domain.PaymentPending})
	r.PutPayment(&domain.Payment{TxHash: "tx2", Merchant: "0xabc", Amount: big.NewInt(30), Status: domain.PaymentSettled})

	r.RecomputeExposure("0xABC")

	m := r.Merchant("0xabc")
	if m.Exposure.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("expected exposure 40, got %s", m.Exposure.String())
	}
}

func TestRecomputeExposure_IdempotentAcrossReruns(t *testing.T) {
	r := New()
	r.PutMerchant(newMerchant("0xabc", 100))
	r.PutPayment(&domain.Payment{TxHash: "tx1", Merchant: "0xabc", Amount: big.NewInt(40), Status: domain.PaymentPending})

	r.RecomputeExposure("0xabc")
	r.RecomputeExposure("0xabc")

	m := r.Merchant("0xabc")
	if m.Exposure.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("expected exposure to stay 40 across reruns, got %s", m.Exposure.String())
	}
}

func TestRecomputeExposure_PanicsOverCreditLimit(t *testing.T) {
	r := New()
	r.PutMerchant(newMerchant("0xabc", 100))
	r.PutPayment(&domain.Payment{TxHash: "tx1", Merchant: "0xabc", Amount: big.NewInt(150), Status: domain.PaymentPending})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when recomputed exposure exceeds credit limit")
		}
	}()
	r.RecomputeExposure("0xabc")
}

func TestExposureOf_MatchesPendingSum(t *testing.T) {
	r := New()
	r.PutPayment(&domain.Payment{TxHash: "tx1", Merchant: "0xabc", Amount: big.NewInt(10), Status: domain.PaymentPending})
	r.PutPayment(&domain.Payment{TxHash: "tx2", Merchant: "0xabc", Amount: big.NewInt(5), Status: domain.PaymentSettled})
	r.PutPayment(&domain.Payment{TxHash: "tx3", Merchant: "0xabc", Amount: big.NewInt(20), Status: domain.PaymentPending})

	got := r.ExposureOf("0xABC")
	if got.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("expected exposure 30, got %s", got.String())
	}
}
