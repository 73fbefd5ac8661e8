package ports

// PaymentRequirements describes a single x402 payment requirement returned
// on a 402 response (spec.md §6).
type PaymentRequirements struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	Asset             string `json:"asset"`
	PayTo             string `json:"pay_to"`
	MaxAmountRequired string `json:"max_amount_required"`
	Resource          string `json:"resource"`
	Description       string `json:"description"`
	MaxTimeoutSeconds int    `json:"max_timeout_seconds"`
	Extra             Extra  `json:"extra"`
}

// Extra carries the purpose discriminator spec.md §6 requires on every
// PaymentRequirements object.
type Extra struct {
	Purpose string `json:"purpose"` // "stake" or "slash_bond"
}

// PaymentSubmission is the single typed carrier for the x402 payload a
// client embeds in /subscribe or /slash (spec.md §9's "single parser"
// design note, replacing untyped JSON pockets).
type PaymentSubmission struct {
	Payload      map[string]any      `json:"payment_payload"`
	Requirements PaymentRequirements `json:"requirements"`
}

// VerifyResult is returned by Facilitator.Verify.
type VerifyResult struct {
	IsValid       bool
	Payer         string
	InvalidReason string
}

// SettleResult is returned by Facilitator.Settle.
type SettleResult struct {
	Success     bool
	Transaction string
	Payer       string
	ErrorReason string
}

// Facilitator is the external collaborator that verifies and settles
// x402-gated payments (spec.md §6). The core never talks to a chain to
// check a client's payment proof directly — it always goes through this
// contract.
type Facilitator interface {
	Verify(submission PaymentSubmission) (VerifyResult, error)
	Settle(submission PaymentSubmission) (SettleResult, error)
}
