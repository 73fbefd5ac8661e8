package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aegis402/clearinghouse/core"
	"github.com/aegis402/clearinghouse/mocks"
	"github.com/aegis402/clearinghouse/ports"
	"github.com/aegis402/clearinghouse/registry"
)

func newTestAPI(t *testing.T) (*API, *mocks.Facilitator, *core.Core) {
	t.Helper()
	reg := registry.New()
	ledger := mocks.NewLedger()
	credit := mocks.NewCreditManager()
	rep := mocks.NewReputation()
	fac := mocks.NewFacilitator()

	log := slog.New(slog.NewTextHandler(nopWriter{}, nil))
	c := core.New(reg, ledger, credit, rep, nil, core.DefaultConfig(), log)
	reqCfg := RequirementsConfig{
		Network:           "base-sepolia",
		Asset:             "0xasset",
		PayTo:             "0xclearinghouse",
		MinStakeAmount:    "1000",
		SlashBondAmount:   "100",
		MaxTimeoutSeconds: 3600,
	}
	return New(c, fac, reqCfg, "0xcredit"), fac, c
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestHandleSubscribe_HappyPath(t *testing.T) {
	api, fac, _ := newTestAPI(t)
	fac.SetVerifyResult(ports.VerifyResult{IsValid: true, Payer: "0xmerchant"}, nil)
	fac.SetSettleResult(ports.SettleResult{Success: true, Transaction: "0xtx1"}, nil)

	body, _ := json.Marshal(subscribeRequest{
		Endpoint: "https://merchant.example/api",
		Skills:   []string{"translate"},
		AgentID:  "agent-1",
		PaymentRequirements: ports.PaymentRequirements{
			MaxAmountRequired: "1000",
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/subscribe", bytes.NewReader(body))
	w := httptest.NewRecorder()
	api.handleSubscribe(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp subscribeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Merchant != "0xmerchant" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHandleSubscribe_PaymentInvalid_Returns402(t *testing.T) {
	api, fac, _ := newTestAPI(t)
	fac.SetVerifyResult(ports.VerifyResult{IsValid: false, InvalidReason: "bad signature"}, nil)

	body, _ := json.Marshal(subscribeRequest{
		PaymentRequirements: ports.PaymentRequirements{MaxAmountRequired: "1000"},
	})
	req := httptest.NewRequest(http.MethodPost, "/subscribe", bytes.NewReader(body))
	w := httptest.NewRecorder()
	api.handleSubscribe(w, req)

	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", w.Code, w.Body.String())
	}
	var resp paymentRequiredResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.X402Version != 1 || len(resp.Accepts) != 1 {
		t.Fatalf("unexpected 402 body: %+v", resp)
	}
	if resp.Accepts[0].Extra.Purpose != "stake" || resp.Accepts[0].Scheme != "exact" {
		t.Fatalf("unexpected requirement: %+v", resp.Accepts[0])
	}
}

func TestHandleSubscribe_MalformedAmount_Returns400(t *testing.T) {
	api, fac, _ := newTestAPI(t)
	fac.SetVerifyResult(ports.VerifyResult{IsValid: true, Payer: "0xmerchant"}, nil)

	body, _ := json.Marshal(subscribeRequest{
		PaymentRequirements: ports.PaymentRequirements{MaxAmountRequired: "not-a-number"},
	})
	req := httptest.NewRequest(http.MethodPost, "/subscribe", bytes.NewReader(body))
	w := httptest.NewRecorder()
	api.handleSubscribe(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleQuote_ReturnsCandidates(t *testing.T) {
	api, fac, c := newTestAPI(t)
	fac.SetVerifyResult(ports.VerifyResult{IsValid: true, Payer: "0xmerchant"}, nil)
	fac.SetSettleResult(ports.SettleResult{Success: true}, nil)

	if _, err := c.Subscribe(context.Background(), core.SubscribeRequest{
		Endpoint:     "https://merchant.example",
		Skills:       []string{"translate"},
		MerchantAddr: "0xmerchant",
		StakeAmount:  big.NewInt(1000),
	}); err != nil {
		t.Fatalf("subscribe setup failed: %v", err)
	}

	body, _ := json.Marshal(quoteRequest{Skill: "translate", Price: "10"})
	req := httptest.NewRequest(http.MethodPost, "/quote", bytes.NewReader(body))
	w := httptest.NewRecorder()
	api.handleQuote(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp quoteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Merchants) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(resp.Merchants))
	}
}

func TestHandleSettle_PaymentNotFound_Returns400(t *testing.T) {
	api, _, _ := newTestAPI(t)

	body, _ := json.Marshal(settleRequest{TxHash: "0xdoesnotexist"})
	req := httptest.NewRequest(http.MethodPost, "/settle", bytes.NewReader(body))
	w := httptest.NewRecorder()
	api.handleSettle(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleSlash_BondInvalid_Returns402(t *testing.T) {
	api, fac, _ := newTestAPI(t)
	fac.SetVerifyResult(ports.VerifyResult{IsValid: false, InvalidReason: "no bond posted"}, nil)

	body, _ := json.Marshal(slashRequest{TxHash: "0xtx1"})
	req := httptest.NewRequest(http.MethodPost, "/slash", bytes.NewReader(body))
	w := httptest.NewRecorder()
	api.handleSlash(w, req)

	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", w.Code, w.Body.String())
	}
	var resp paymentRequiredResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Accepts) != 1 || resp.Accepts[0].Extra.Purpose != "slash_bond" {
		t.Fatalf("unexpected 402 body: %+v", resp)
	}
}

func TestHandleHealth_ReturnsOK(t *testing.T) {
	api, _, _ := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	api.handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Agent == "" || resp.CreditManager == "" || resp.Timestamp == "" {
		t.Fatalf("expected agent/credit_manager/timestamp to be populated: %+v", resp)
	}
}

func TestHandleMerchants_ListsSubscribed(t *testing.T) {
	api, fac, c := newTestAPI(t)
	fac.SetVerifyResult(ports.VerifyResult{IsValid: true, Payer: "0xmerchant"}, nil)
	fac.SetSettleResult(ports.SettleResult{Success: true}, nil)

	if _, err := c.Subscribe(context.Background(), core.SubscribeRequest{
		Endpoint:     "https://merchant.example",
		MerchantAddr: "0xmerchant",
		StakeAmount:  big.NewInt(1000),
	}); err != nil {
		t.Fatalf("subscribe setup failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/merchants", nil)
	w := httptest.NewRecorder()
	api.handleMerchants(w, req)

	var resp merchantsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Merchants) != 1 {
		t.Fatalf("expected 1 merchant, got %d", len(resp.Merchants))
	}
}
