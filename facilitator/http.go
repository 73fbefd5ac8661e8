// Package facilitator implements ports.Facilitator: a thin JSON/HTTP
// client against an x402 facilitator service (spec.md §6), plus an
// idempotency decorator for the Settle leg.
package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aegis402/clearinghouse/ports"
)

// HTTPFacilitator calls a remote facilitator's /verify and /settle
// endpoints over plain JSON, per spec.md §6's Facilitator contract.
type HTTPFacilitator struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New returns an HTTPFacilitator against baseURL, authenticating with
// apiKey via a bearer Authorization header.
func New(baseURL, apiKey string) *HTTPFacilitator {
	return &HTTPFacilitator{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type verifyResponse struct {
	IsValid       bool   `json:"is_valid"`
	Payer         string `json:"payer,omitempty"`
	InvalidReason string `json:"invalid_reason,omitempty"`
}

type settleResponse struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction,omitempty"`
	Payer       string `json:"payer,omitempty"`
	ErrorReason string `json:"error_reason,omitempty"`
}

func (f *HTTPFacilitator) Verify(submission ports.PaymentSubmission) (ports.VerifyResult, error) {
	var resp verifyResponse
	if err := f.post(context.Background(), "/verify", submission, &resp); err != nil {
		return ports.VerifyResult{}, err
	}
	return ports.VerifyResult{
		IsValid:       resp.IsValid,
		Payer:         resp.Payer,
		InvalidReason: resp.InvalidReason,
	}, nil
}

func (f *HTTPFacilitator) Settle(submission ports.PaymentSubmission) (ports.SettleResult, error) {
	var resp settleResponse
	if err := f.post(context.Background(), "/settle", submission, &resp); err != nil {
		return ports.SettleResult{}, err
	}
	return ports.SettleResult{
		Success:     resp.Success,
		Transaction: resp.Transaction,
		Payer:       resp.Payer,
		ErrorReason: resp.ErrorReason,
	}, nil
}

func (f *HTTPFacilitator) post(ctx context.Context, path string, body, out interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("facilitator: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("facilitator: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("facilitator: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("facilitator: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("facilitator: %s returned %d: %s", path, resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("facilitator: decode response: %w", err)
	}
	return nil
}
