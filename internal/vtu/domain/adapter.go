package domain

import (
	"context"
	"time"
)

// Adapter translates the normalized purchase into one upstream's wire
// protocol. Implementations return business rejections as a result with
// Success false, and reserve errors for transport and protocol failures.
type Adapter interface {
	Name() string
	Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error)
}

// AdapterConfig carries the per-call material an adapter needs. The API key
// is already resolved from its credential reference.
type AdapterConfig struct {
	Name    string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// AdapterFactory builds adapters for one named upstream.
type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (Adapter, error)
}
