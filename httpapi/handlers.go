package httpapi

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/aegis402/clearinghouse/core"
	"github.com/aegis402/clearinghouse/domain"
	"github.com/aegis402/clearinghouse/ports"
)

// API wires core.Core and a ports.Facilitator into the six HTTP routes
// spec.md §6 names.
type API struct {
	core          *core.Core
	facilitator   ports.Facilitator
	reqCfg        RequirementsConfig
	creditManager string
}

// New returns an API over the given collaborators. reqCfg and
// creditManagerAddr populate the 402 and /health responses with values
// core.Core itself has no reason to carry.
func New(c *core.Core, facilitator ports.Facilitator, reqCfg RequirementsConfig, creditManagerAddr string) *API {
	return &API{core: c, facilitator: facilitator, reqCfg: reqCfg, creditManager: creditManagerAddr}
}

func (a *API) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewError(domain.ErrValidation, "malformed request body"))
		return
	}

	submission := ports.PaymentSubmission{
		Payload:      req.PaymentPayload,
		Requirements: req.PaymentRequirements,
	}
	verify, err := a.facilitator.Verify(submission)
	if err != nil {
		writeError(w, domain.Wrap(domain.ErrVerificationFailed, "stake payment verification failed", err))
		return
	}
	if !verify.IsValid {
		writePaymentRequired(w, []ports.PaymentRequirements{a.stakeRequirements("/subscribe")}, verify.InvalidReason)
		return
	}

	stakeAmount, ok := new(big.Int).SetString(req.PaymentRequirements.MaxAmountRequired, 10)
	if !ok {
		writeError(w, domain.NewError(domain.ErrValidation, "max_amount_required is not a valid integer"))
		return
	}

	settle, err := a.facilitator.Settle(submission)
	if err != nil {
		writeError(w, domain.Wrap(domain.ErrSettlementFailed, "stake payment settlement failed", err))
		return
	}
	if !settle.Success {
		writeError(w, domain.NewError(domain.ErrSettlementFailed, settle.ErrorReason))
		return
	}

	result, err := a.core.Subscribe(r.Context(), core.SubscribeRequest{
		Endpoint:     req.Endpoint,
		Skills:       req.Skills,
		AgentID:      req.AgentID,
		MerchantAddr: verify.Payer,
		StakeAmount:  stakeAmount,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if !result.Success {
		writeError(w, domain.NewError(domain.ErrLedger, result.Message))
		return
	}

	writeJSON(w, http.StatusOK, subscribeResponse{
		Success:     result.Success,
		Merchant:    result.Merchant,
		Stake:       result.Stake.String(),
		CreditLimit: result.CreditLimit.String(),
		Message:     result.Message,
	})
}

func (a *API) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewError(domain.ErrValidation, "malformed request body"))
		return
	}
	if req.Skill == "" {
		writeError(w, domain.NewError(domain.ErrValidation, "skill is required"))
		return
	}
	price, ok := new(big.Int).SetString(req.Price, 10)
	if !ok {
		writeError(w, domain.NewError(domain.ErrValidation, "price must be a valid integer"))
		return
	}

	candidates, err := a.core.Quote(r.Context(), req.Skill, price)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]quoteCandidateJSON, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, quoteCandidateJSON{
			Address:           c.Address,
			Endpoint:          c.Endpoint,
			AvailableCapacity: c.AvailableCapacity.String(),
			RepFactor:         c.RepFactor.String(),
			Skills:            c.Skills,
		})
	}
	writeJSON(w, http.StatusOK, quoteResponse{Merchants: out})
}

func (a *API) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewError(domain.ErrValidation, "malformed request body"))
		return
	}
	if req.TxHash == "" {
		writeError(w, domain.NewError(domain.ErrValidation, "tx_hash is required"))
		return
	}

	result, err := a.core.Settle(r.Context(), req.TxHash)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, settleResponse{
		Success:  result.Success,
		Merchant: result.Merchant,
		Amount:   result.Amount,
	})
}

func (a *API) handleSlash(w http.ResponseWriter, r *http.Request) {
	var req slashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewError(domain.ErrValidation, "malformed request body"))
		return
	}
	if req.TxHash == "" {
		writeError(w, domain.NewError(domain.ErrValidation, "tx_hash is required"))
		return
	}

	submission := ports.PaymentSubmission{
		Payload:      req.PaymentPayload,
		Requirements: req.PaymentRequirements,
	}
	verify, err := a.facilitator.Verify(submission)
	if err != nil {
		writeError(w, domain.Wrap(domain.ErrVerificationFailed, "slash bond verification failed", err))
		return
	}
	if !verify.IsValid {
		writePaymentRequired(w, []ports.PaymentRequirements{a.slashBondRequirements("/slash")}, verify.InvalidReason)
		return
	}

	settle, err := a.facilitator.Settle(submission)
	if err != nil {
		writeError(w, domain.Wrap(domain.ErrSettlementFailed, "slash bond settlement failed", err))
		return
	}
	if !settle.Success {
		writeError(w, domain.NewError(domain.ErrSettlementFailed, settle.ErrorReason))
		return
	}

	result, err := a.core.Slash(r.Context(), req.TxHash, verify.Payer)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, slashResponse{
		Success:       result.Success,
		Merchant:      result.Merchant,
		Client:        result.Client,
		SlashedAmount: result.SlashedAmount,
		RefundTx:      result.RefundTx,
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Agent:         a.reqCfg.PayTo,
		CreditManager: a.creditManager,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleMerchants(w http.ResponseWriter, r *http.Request) {
	merchants := a.core.Registry().Merchants()
	out := make([]merchantJSON, 0, len(merchants))
	for _, m := range merchants {
		skills := make([]string, 0, len(m.Skills))
		for s := range m.Skills {
			skills = append(skills, s)
		}
		out = append(out, merchantJSON{
			Address:     m.Address,
			Endpoint:    m.Endpoint,
			Skills:      skills,
			Stake:       m.Stake.String(),
			CreditLimit: m.CreditLimit.String(),
			Exposure:    m.Exposure.String(),
			Active:      m.Active,
		})
	}
	writeJSON(w, http.StatusOK, merchantsResponse{Merchants: out})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps a domain.Error's Kind to a status code per spec.md §6/§7:
// every kind the Core or facilitator calls can surface is a 400 to the
// caller, the sole exception being PaymentRequired's 402. Anything else (a
// panic-worthy invariant violation never reaches here — it panics in
// registry before unwinding to the HTTP boundary) is treated the same way
// as a validation failure.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if domain.KindOf(err) == domain.ErrPaymentRequired {
		status = http.StatusPaymentRequired
	}

	var de *domain.Error
	msg := err.Error()
	if errors.As(err, &de) {
		msg = de.Message
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// writePaymentRequired writes the 402 body spec.md §6 mandates: the x402
// requirement objects the caller must satisfy, plus why its last attempt
// (if any) fell short.
func writePaymentRequired(w http.ResponseWriter, accepts []ports.PaymentRequirements, reason string) {
	writeJSON(w, http.StatusPaymentRequired, paymentRequiredResponse{
		X402Version: 1,
		Accepts:     accepts,
		Error:       reason,
	})
}
