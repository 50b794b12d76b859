package adapters

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/boijelux-1st/doublea/internal/payment/domain"
)

// Registry maps gateway names to adapter factories and signature headers.
type Registry struct {
	factories map[string]domain.GatewayFactory
	order     []string
}

func NewRegistry(factories ...domain.GatewayFactory) *Registry {
	r := &Registry{factories: make(map[string]domain.GatewayFactory, len(factories))}
	for _, f := range factories {
		name := strings.ToLower(f.Name())
		if _, seen := r.factories[name]; !seen {
			r.order = append(r.order, name)
		}
		r.factories[name] = f
	}
	return r
}

func (r *Registry) GatewayExists(name string) bool {
	_, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func (r *Registry) New(name string, creds domain.GatewayCredentials) (domain.Gateway, error) {
	factory, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for gateway %q", name)
	}
	return factory.New(creds)
}

// Identify determines which registered gateway sent a webhook, by signature
// header presence alone. Payload inspection is deliberately not used: the
// body is untrusted until its signature is verified. Factories are checked
// in registration order so a request carrying several known signature
// headers always resolves the same way.
func (r *Registry) Identify(headers http.Header) (name string, signature string, ok bool) {
	for _, gatewayName := range r.order {
		factory := r.factories[gatewayName]
		if value := strings.TrimSpace(headers.Get(factory.SignatureHeader())); value != "" {
			return gatewayName, value, true
		}
	}
	return "", "", false
}

// Default returns the registry with every shipped gateway adapter.
func Default() *Registry {
	return NewRegistry(
		NewPaystackFactory(),
		NewFlutterwaveFactory(),
		NewMonnifyFactory(),
	)
}
