package httpapi

import "github.com/aegis402/clearinghouse/ports"

// RequirementsConfig carries the operator-side values a 402 response's
// accepts array is built from (spec.md §6's payment requirement object) —
// values the API layer has no other way to reach, since core.Core only
// knows the clearinghouse address, not the asset, network, or bond sizes.
type RequirementsConfig struct {
	Network           string
	Asset             string
	PayTo             string
	MinStakeAmount    string
	SlashBondAmount   string
	MaxTimeoutSeconds int
}

func (a *API) stakeRequirements(resource string) ports.PaymentRequirements {
	return ports.PaymentRequirements{
		Scheme:            "exact",
		Network:           a.reqCfg.Network,
		Asset:             a.reqCfg.Asset,
		PayTo:             a.reqCfg.PayTo,
		MaxAmountRequired: a.reqCfg.MinStakeAmount,
		Resource:          resource,
		Description:       "merchant stake required to subscribe",
		MaxTimeoutSeconds: a.reqCfg.MaxTimeoutSeconds,
		Extra:             ports.Extra{Purpose: "stake"},
	}
}

func (a *API) slashBondRequirements(resource string) ports.PaymentRequirements {
	return ports.PaymentRequirements{
		Scheme:            "exact",
		Network:           a.reqCfg.Network,
		Asset:             a.reqCfg.Asset,
		PayTo:             a.reqCfg.PayTo,
		MaxAmountRequired: a.reqCfg.SlashBondAmount,
		Resource:          resource,
		Description:       "bond required to dispute an undelivered payment",
		MaxTimeoutSeconds: a.reqCfg.MaxTimeoutSeconds,
		Extra:             ports.Extra{Purpose: "slash_bond"},
	}
}
