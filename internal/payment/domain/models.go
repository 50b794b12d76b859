package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status is the normalized payment status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// PaymentInitRequest is the normalized initialization a caller submits.
// Amounts are naira (major units); adapters convert where a gateway wants
// minor units.
type PaymentInitRequest struct {
	Reference   string `json:"reference"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	PayerEmail  string `json:"payer_email"`
	PayerName   string `json:"payer_name,omitempty"`
	PayerPhone  string `json:"payer_phone,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// PaymentInitResult carries the checkout URL the caller hands to the user.
type PaymentInitResult struct {
	Success          bool   `json:"success"`
	Gateway          string `json:"gateway"`
	CheckoutURL      string `json:"checkout_url"`
	GatewayReference string `json:"gateway_reference"`
	Message          string `json:"message,omitempty"`
}

// VerificationResult is the authoritative status of a reference as reported
// by the gateway itself.
type VerificationResult struct {
	Success   bool   `json:"success"`
	Gateway   string `json:"gateway"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    Status `json:"status"`
	RawStatus string `json:"raw_status"`
}

// WebhookEvent is the gateway-agnostic shape of one parsed webhook payload.
// It lives only for the duration of webhook handling.
type WebhookEvent struct {
	Gateway   string `json:"gateway"`
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	RawStatus string `json:"raw_status"`

	// Completes reports whether this event type is the gateway's "payment
	// succeeded" notification.
	Completes bool `json:"-"`
}

// CompletedPayment is the normalized completion handed to the completion
// handler after a verified success webhook.
type CompletedPayment struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Gateway   string `json:"gateway"`
	Status    Status `json:"status"`
}

// WebhookAck is the dispatcher's answer to an inbound webhook.
type WebhookAck struct {
	Accepted bool              `json:"accepted"`
	Event    *CompletedPayment `json:"event,omitempty"`
}

// EventRecord persists processed webhook events for idempotency across
// restarts. Redis handles the fast path; this table is the durable one.
type EventRecord struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	Gateway     string         `gorm:"size:64;uniqueIndex:idx_gateway_event,priority:1" json:"gateway"`
	EventID     string         `gorm:"size:128;uniqueIndex:idx_gateway_event,priority:2" json:"event_id"`
	EventType   string         `gorm:"size:64" json:"event_type"`
	Reference   string         `gorm:"size:128;index" json:"reference"`
	Payload     datatypes.JSON `json:"payload"`
	ReceivedAt  time.Time      `json:"received_at"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
}

func (EventRecord) TableName() string { return "payment_events" }
