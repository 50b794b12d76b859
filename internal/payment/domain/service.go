package domain

import (
	"context"
	"errors"
	"net/http"
)

type Service interface {
	// InitializePayment starts a checkout. With a gateway hint the named
	// gateway must be active; without one, active gateways are tried in
	// priority order until one succeeds.
	InitializePayment(ctx context.Context, gatewayHint string, req PaymentInitRequest) (*PaymentInitResult, error)

	// VerifyPayment asks the gateway that owns the reference (or each
	// active gateway in order if ownership is unknown) for its status.
	VerifyPayment(ctx context.Context, reference string) (*VerificationResult, error)

	// HandleWebhook identifies, verifies, and routes one inbound webhook.
	HandleWebhook(ctx context.Context, rawBody []byte, headers http.Header) (*WebhookAck, error)
}

var (
	ErrValidation           = errors.New("invalid_payment_request")
	ErrNetwork              = errors.New("gateway_unreachable")
	ErrUpstreamRejected     = errors.New("gateway_rejected")
	ErrMalformedResponse    = errors.New("gateway_malformed_response")
	ErrExhausted            = errors.New("all_gateways_exhausted")
	ErrInvalidSignature     = errors.New("invalid_signature")
	ErrUnrecognizedSource   = errors.New("unrecognized_webhook_source")
	ErrEventIgnored         = errors.New("event_ignored")
	ErrEventAlreadyHandled  = errors.New("event_already_processed")
	ErrVerificationMismatch = errors.New("verification_mismatch")
)

// Recoverable reports whether the initialization loop may try the next
// gateway after err.
func Recoverable(err error) bool {
	return errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrUpstreamRejected) ||
		errors.Is(err, ErrMalformedResponse)
}
