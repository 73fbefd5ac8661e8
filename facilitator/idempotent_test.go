package facilitator

import (
	"errors"
	"testing"
	"time"

	"github.com/aegis402/clearinghouse/ports"
)

type fakeFacilitator struct {
	settleCalls int
	result      ports.SettleResult
	err         error
}

func (f *fakeFacilitator) Verify(submission ports.PaymentSubmission) (ports.VerifyResult, error) {
	return ports.VerifyResult{IsValid: true}, nil
}

func (f *fakeFacilitator) Settle(submission ports.PaymentSubmission) (ports.SettleResult, error) {
	f.settleCalls++
	if f.err != nil {
		return ports.SettleResult{}, f.err
	}
	return f.result, nil
}

func TestIdempotent_DedupsRetriedSettleForSamePayload(t *testing.T) {
	inner := &fakeFacilitator{result: ports.SettleResult{Success: true, Transaction: "0xtx1"}}
	i := NewIdempotent(inner, WithTTL(time.Minute))

	submission := ports.PaymentSubmission{Requirements: ports.PaymentRequirements{PayTo: "0xmerchant"}}

	r1, err := i.Settle(submission)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r2, err := i.Settle(submission)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inner.settleCalls != 1 {
		t.Fatalf("expected the inner facilitator to settle once, got %d calls", inner.settleCalls)
	}
	if r1.Transaction != r2.Transaction {
		t.Fatalf("expected the retried call to return the cached result: %s vs %s", r1.Transaction, r2.Transaction)
	}
}

func TestIdempotent_DistinctPayloadsSettleIndependently(t *testing.T) {
	inner := &fakeFacilitator{result: ports.SettleResult{Success: true, Transaction: "0xtx1"}}
	i := NewIdempotent(inner, WithTTL(time.Minute))

	a := ports.PaymentSubmission{Requirements: ports.PaymentRequirements{PayTo: "0xmerchant-a"}}
	b := ports.PaymentSubmission{Requirements: ports.PaymentRequirements{PayTo: "0xmerchant-b"}}

	if _, err := i.Settle(a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := i.Settle(b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inner.settleCalls != 2 {
		t.Fatalf("expected two distinct settlements, got %d calls", inner.settleCalls)
	}
}

func TestIdempotent_NeverCachesAFailure(t *testing.T) {
	inner := &fakeFacilitator{err: errors.New("gateway timeout")}
	i := NewIdempotent(inner, WithTTL(time.Minute))

	submission := ports.PaymentSubmission{Requirements: ports.PaymentRequirements{PayTo: "0xmerchant"}}

	if _, err := i.Settle(submission); err == nil {
		t.Fatal("expected error to propagate")
	}
	if _, err := i.Settle(submission); err == nil {
		t.Fatal("expected error to propagate again")
	}
	if inner.settleCalls != 2 {
		t.Fatalf("expected the inner facilitator to be retried after a failure, got %d calls", inner.settleCalls)
	}
}
