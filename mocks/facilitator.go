package mocks

import (
	"sync"

	"github.com/aegis402/clearinghouse/ports"
)

// Facilitator is a fake ports.Facilitator whose Verify/Settle outcomes are
// scripted by the test via SetVerifyResult/SetSettleResult.
type Facilitator struct {
	mu            sync.Mutex
	verifyResult  ports.VerifyResult
	verifyErr     error
	settleResult  ports.SettleResult
	settleErr     error
	SettleCalls   int
}

func NewFacilitator() *Facilitator {
	return &Facilitator{
		verifyResult: ports.VerifyResult{IsValid: true, Payer: "0xclient"},
		settleResult: ports.SettleResult{Success: true, Transaction: "0xsettletx", Payer: "0xclient"},
	}
}

func (f *Facilitator) SetVerifyResult(res ports.VerifyResult, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyResult, f.verifyErr = res, err
}

func (f *Facilitator) SetSettleResult(res ports.SettleResult, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settleResult, f.settleErr = res, err
}

func (f *Facilitator) Verify(sub ports.PaymentSubmission) (ports.VerifyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifyResult, f.verifyErr
}

func (f *Facilitator) Settle(sub ports.PaymentSubmission) (ports.SettleResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SettleCalls++
	return f.settleResult, f.settleErr
}
