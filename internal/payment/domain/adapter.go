package domain

import (
	"context"
	"time"
)

// Gateway is one payment processor's protocol adapter. Amount unit
// conversion and response-field normalization happen inside implementations
// and nowhere else.
type Gateway interface {
	Name() string

	Initialize(ctx context.Context, req PaymentInitRequest) (*PaymentInitResult, error)

	// Verify queries the gateway for the authoritative status of a
	// reference. Used for user-triggered confirmation and as a fallback for
	// delayed webhooks.
	Verify(ctx context.Context, reference string) (*VerificationResult, error)

	// VerifyWebhookSignature checks the gateway's signature scheme over the
	// exact raw body. A missing signature is never valid.
	VerifyWebhookSignature(rawBody []byte, signature string) bool

	// ParseWebhook decodes a gateway-specific webhook payload. Only called
	// after the signature has been verified.
	ParseWebhook(rawBody []byte) (*WebhookEvent, error)
}

// GatewayCredentials is the resolved secret material an adapter needs.
type GatewayCredentials struct {
	Name          string
	BaseURL       string
	PublicKey     string
	SecretKey     string
	WebhookSecret string
	// ContractCode is only meaningful for gateways that scope transactions
	// to a merchant contract (Monnify).
	ContractCode string
	Timeout      time.Duration
}

// GatewayFactory builds adapters for one named gateway. SignatureHeader is
// exposed on the factory so the dispatcher can identify the sender without
// instantiating an adapter.
type GatewayFactory interface {
	Name() string
	SignatureHeader() string
	New(creds GatewayCredentials) (Gateway, error)
}

// CompletionHandler receives normalized completions from the webhook
// dispatcher. The handler owns persistence and wallet bookkeeping.
type CompletionHandler interface {
	PaymentCompleted(ctx context.Context, completed CompletedPayment) error
}

// ReferenceStore answers which gateway a payment reference was initialized
// through, so verification can go straight to the right processor.
type ReferenceStore interface {
	GatewayForReference(ctx context.Context, reference string) (string, error)
}
