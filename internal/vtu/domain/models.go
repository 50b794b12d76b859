package domain

import (
	"errors"
	"strings"

	providerdomain "github.com/boijelux-1st/doublea/internal/provider/domain"
)

var (
	// ErrValidation is fatal: bad caller input, no adapter is attempted.
	ErrValidation = errors.New("invalid_purchase_request")

	// Recoverable adapter failures. The orchestrator records them and moves
	// to the next provider in the chain.
	ErrNetwork           = errors.New("provider_unreachable")
	ErrUpstreamRejected  = errors.New("provider_rejected")
	ErrMalformedResponse = errors.New("provider_malformed_response")

	// ErrExhausted is fatal for the call: every provider in the chain was
	// attempted and none succeeded.
	ErrExhausted = errors.New("all_providers_exhausted")
)

// Recoverable reports whether the orchestrator may continue to the next
// provider after err.
func Recoverable(err error) bool {
	return errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrUpstreamRejected) ||
		errors.Is(err, ErrMalformedResponse)
}

// PurchaseRequest is the normalized purchase a caller submits. Amounts are
// naira (major units); adapters convert to the upstream's native unit.
type PurchaseRequest struct {
	Kind      providerdomain.Capability `json:"kind"`
	Network   string                    `json:"network"`
	Recipient string                    `json:"recipient"`
	Amount    int64                     `json:"amount"`
	PlanID    string                    `json:"plan_id,omitempty"`
}

// Validate enforces the fields every adapter depends on.
func (r PurchaseRequest) Validate() error {
	switch r.Kind {
	case providerdomain.CapabilityAirtime:
	case providerdomain.CapabilityData:
		if strings.TrimSpace(r.PlanID) == "" {
			return ErrValidation
		}
	default:
		return ErrValidation
	}
	if strings.TrimSpace(r.Network) == "" || strings.TrimSpace(r.Recipient) == "" {
		return ErrValidation
	}
	if r.Amount <= 0 {
		return ErrValidation
	}
	return nil
}

// PurchaseResult is the normalized outcome of one provider attempt. Success
// false with a nil error is a business-level rejection the orchestrator
// treats as "try next".
type PurchaseResult struct {
	Success    bool   `json:"success"`
	Provider   string `json:"provider"`
	UpstreamID string `json:"upstream_id,omitempty"`
	Message    string `json:"message"`
	Amount     int64  `json:"amount,omitempty"`
}
