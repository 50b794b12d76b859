package adapters

import (
	"fmt"
	"strings"

	"github.com/boijelux-1st/doublea/internal/vtu/domain"
)

// Registry maps provider names to adapter factories.
type Registry struct {
	factories map[string]domain.AdapterFactory
}

func NewRegistry(factories ...domain.AdapterFactory) *Registry {
	r := &Registry{factories: make(map[string]domain.AdapterFactory, len(factories))}
	for _, f := range factories {
		r.factories[strings.ToLower(f.Provider())] = f
	}
	return r
}

func (r *Registry) ProviderExists(name string) bool {
	_, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func (r *Registry) NewAdapter(name string, cfg domain.AdapterConfig) (domain.Adapter, error) {
	factory, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for provider %q", name)
	}
	return factory.NewAdapter(cfg)
}

// Default returns the registry with every shipped upstream adapter.
func Default() *Registry {
	return NewRegistry(
		NewVTUNGFactory(),
		NewEasyAccessFactory(),
		NewClubKonnectFactory(),
	)
}
