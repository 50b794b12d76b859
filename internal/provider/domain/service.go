package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrNotFound      = errors.New("provider_not_found")
	ErrInvalidConfig = errors.New("invalid_provider_config")
	ErrDuplicateName = errors.New("provider_name_taken")
)

// CreateRequest carries the admin-supplied fields for a new provider.
type CreateRequest struct {
	Name          string
	BaseURL       string
	CredentialRef string
	Priority      int
	Capabilities  []string
	Metadata      map[string]any
}

// UpdateRequest carries partial updates; nil fields are left unchanged.
type UpdateRequest struct {
	BaseURL       *string
	CredentialRef *string
	Priority      *int
	Capabilities  []string
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*ProviderConfig, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateRequest) (*ProviderConfig, error)
	Toggle(ctx context.Context, id snowflake.ID, active bool) (*ProviderConfig, error)
	List(ctx context.Context) ([]ProviderConfig, error)

	// ActiveProviders returns the active providers supporting capability,
	// ascending by priority with ties broken by creation order. The result
	// is a snapshot the caller may iterate without locking.
	ActiveProviders(ctx context.Context, capability Capability) ([]ProviderConfig, error)
}
