package httpapi

import "github.com/aegis402/clearinghouse/ports"

// subscribeRequest is the JSON body for POST /subscribe (spec.md §6).
type subscribeRequest struct {
	Endpoint            string                    `json:"endpoint"`
	Skills              []string                  `json:"skills"`
	AgentID             string                    `json:"agent_id"`
	PaymentPayload      map[string]any            `json:"payment_payload"`
	PaymentRequirements ports.PaymentRequirements `json:"requirements"`
}

type subscribeResponse struct {
	Success     bool   `json:"success"`
	Merchant    string `json:"merchant"`
	Stake       string `json:"stake"`
	CreditLimit string `json:"credit_limit"`
	Message     string `json:"message"`
}

// quoteRequest is the JSON body for POST /quote (spec.md §6).
type quoteRequest struct {
	Skill string `json:"skill"`
	Price string `json:"price"`
}

type quoteResponse struct {
	Merchants []quoteCandidateJSON `json:"merchants"`
}

type quoteCandidateJSON struct {
	Address           string   `json:"address"`
	Endpoint          string   `json:"endpoint"`
	AvailableCapacity string   `json:"available_capacity"`
	RepFactor         string   `json:"rep_factor"`
	Skills            []string `json:"skills"`
}

type settleRequest struct {
	TxHash string `json:"tx_hash"`
}

type settleResponse struct {
	Success  bool   `json:"success"`
	Merchant string `json:"merchant"`
	Amount   string `json:"amount"`
	Message  string `json:"message,omitempty"`
}

type slashRequest struct {
	TxHash              string                    `json:"tx_hash"`
	PaymentPayload      map[string]any            `json:"payment_payload"`
	PaymentRequirements ports.PaymentRequirements `json:"requirements"`
}

type slashResponse struct {
	Success       bool   `json:"success"`
	Merchant      string `json:"merchant"`
	Client        string `json:"client"`
	SlashedAmount string `json:"slashed_amount"`
	RefundTx      string `json:"refund_tx"`
}

type healthResponse struct {
	Status        string `json:"status"`
	Agent         string `json:"agent"`
	CreditManager string `json:"credit_manager"`
	Timestamp     string `json:"timestamp"`
}

type merchantJSON struct {
	Address     string   `json:"address"`
	Endpoint    string   `json:"endpoint"`
	Skills      []string `json:"skills"`
	Stake       string   `json:"stake"`
	CreditLimit string   `json:"credit_limit"`
	Exposure    string   `json:"exposure"`
	Active      bool     `json:"active"`
}

type merchantsResponse struct {
	Merchants []merchantJSON `json:"merchants"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// paymentRequiredResponse is the 402 body spec.md §6 mandates: the x402
// requirement objects a caller must satisfy before retrying, alongside why
// the attempt just made didn't satisfy them.
type paymentRequiredResponse struct {
	X402Version int                         `json:"x402Version"`
	Accepts     []ports.PaymentRequirements `json:"accepts"`
	Error       string                      `json:"error"`
}
