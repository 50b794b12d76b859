package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Mode separates sandbox credentials from live ones.
type Mode string

const (
	ModeTest Mode = "test"
	ModeLive Mode = "live"
)

var (
	ErrNotFound      = errors.New("gateway_not_found")
	ErrInvalidConfig = errors.New("invalid_gateway_config")
	ErrDuplicateName = errors.New("gateway_name_taken")
)

// GatewayConfig is an admin-managed payment gateway. Secret material is held
// by reference only; the payment service resolves references at call time.
type GatewayConfig struct {
	ID               snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name             string            `gorm:"uniqueIndex;size:64" json:"name"`
	BaseURL          string            `gorm:"size:255" json:"base_url"`
	PublicKey        string            `gorm:"size:255" json:"public_key"`
	SecretKeyRef     string            `gorm:"size:128" json:"secret_key_ref"`
	WebhookSecretRef string            `gorm:"size:128" json:"webhook_secret_ref"`
	IsActive         bool              `json:"is_active"`
	Priority         int               `json:"priority"`
	Mode             Mode              `gorm:"size:8" json:"mode"`
	Metadata         datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func (GatewayConfig) TableName() string { return "payment_gateways" }

// CreateRequest carries the admin-supplied fields for a new gateway.
type CreateRequest struct {
	Name             string
	BaseURL          string
	PublicKey        string
	SecretKeyRef     string
	WebhookSecretRef string
	Priority         int
	Mode             Mode
	Metadata         map[string]any
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*GatewayConfig, error)
	Toggle(ctx context.Context, id snowflake.ID, active bool) (*GatewayConfig, error)
	List(ctx context.Context) ([]GatewayConfig, error)

	// ActiveGateways returns active gateways ascending by priority, ties by
	// creation order.
	ActiveGateways(ctx context.Context) ([]GatewayConfig, error)

	// FindActive returns the active gateway with the given name, or
	// ErrNotFound.
	FindActive(ctx context.Context, name string) (*GatewayConfig, error)
}

// NormalizeName canonicalizes a gateway name for lookups.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
