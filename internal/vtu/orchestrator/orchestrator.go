package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/boijelux-1st/doublea/internal/config"
	providerdomain "github.com/boijelux-1st/doublea/internal/provider/domain"
	"github.com/boijelux-1st/doublea/internal/vtu/adapters"
	"github.com/boijelux-1st/doublea/internal/vtu/domain"
	"github.com/sony/gobreaker"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Providers providerdomain.Service
	Creds     config.CredentialStore
	Registry  *adapters.Registry
	Cfg       config.Config
	Log       *zap.Logger
}

// Orchestrator walks the active provider chain in priority order and stops
// at the first success. Each provider gets exactly one attempt per call; a
// provider whose circuit breaker is open is skipped without an upstream call.
type Orchestrator struct {
	providers providerdomain.Service
	creds     config.CredentialStore
	registry  *adapters.Registry
	timeout   time.Duration
	log       *zap.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func New(p Params) *Orchestrator {
	return &Orchestrator{
		providers: p.Providers,
		creds:     p.Creds,
		registry:  p.Registry,
		timeout:   p.Cfg.UpstreamTimeout,
		log:       p.Log.Named("vtu.orchestrator"),
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
	}
}

type attempt struct {
	Provider string        `json:"provider"`
	Outcome  string        `json:"outcome"`
	Duration time.Duration `json:"duration"`
}

// Purchase runs one orchestrated call. Only ErrValidation and ErrExhausted
// surface; every recoverable provider failure is recorded and skipped.
func (o *Orchestrator) Purchase(ctx context.Context, req domain.PurchaseRequest) (*domain.PurchaseResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	chain, err := o.providers.ActiveProviders(ctx, req.Kind)
	if err != nil {
		return nil, err
	}

	lastMessage := "no active providers configured"
	attempts := make([]attempt, 0, len(chain))

	for _, pc := range chain {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		result, skipped, attemptErr := o.attemptProvider(ctx, pc, req)
		duration := time.Duration(0)
		if !skipped {
			duration = result.duration
		}

		switch {
		case attemptErr == nil && result.res.Success:
			attempts = append(attempts, attempt{Provider: pc.Name, Outcome: "success", Duration: duration})
			o.logAttempts(req, attempts)
			return result.res, nil
		case attemptErr == nil:
			lastMessage = result.res.Message
			attempts = append(attempts, attempt{Provider: pc.Name, Outcome: "rejected: " + result.res.Message, Duration: duration})
		case domain.Recoverable(attemptErr) || skipped:
			lastMessage = attemptErr.Error()
			attempts = append(attempts, attempt{Provider: pc.Name, Outcome: attemptErr.Error(), Duration: duration})
		default:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Unknown failure class. Record it and keep walking the chain;
			// a different provider may still succeed.
			lastMessage = attemptErr.Error()
			attempts = append(attempts, attempt{Provider: pc.Name, Outcome: attemptErr.Error(), Duration: duration})
		}
	}

	o.logAttempts(req, attempts)
	return nil, fmt.Errorf("%w: %s", domain.ErrExhausted, lastMessage)
}

type attemptResult struct {
	res      *domain.PurchaseResult
	duration time.Duration
}

func (o *Orchestrator) attemptProvider(ctx context.Context, pc providerdomain.ProviderConfig, req domain.PurchaseRequest) (attemptResult, bool, error) {
	if !o.registry.ProviderExists(pc.Name) {
		return attemptResult{}, true, fmt.Errorf("%w: no adapter for %s", domain.ErrUpstreamRejected, pc.Name)
	}

	apiKey, err := o.creds.Resolve(pc.CredentialRef)
	if err != nil {
		return attemptResult{}, true, fmt.Errorf("%w: %v", domain.ErrUpstreamRejected, err)
	}

	adapter, err := o.registry.NewAdapter(pc.Name, domain.AdapterConfig{
		Name:    pc.Name,
		BaseURL: pc.BaseURL,
		APIKey:  apiKey,
		Timeout: o.timeout,
	})
	if err != nil {
		return attemptResult{}, true, fmt.Errorf("%w: %v", domain.ErrUpstreamRejected, err)
	}

	start := time.Now()
	out, err := o.breaker(pc.Name).Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()
		return adapter.Purchase(callCtx, req)
	})
	duration := time.Since(start)

	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return attemptResult{duration: duration}, true, fmt.Errorf("%w: circuit open for %s", domain.ErrNetwork, pc.Name)
		}
		return attemptResult{duration: duration}, false, err
	}

	res := out.(*domain.PurchaseResult)
	return attemptResult{res: res, duration: duration}, false, nil
}

func (o *Orchestrator) breaker(name string) *gobreaker.CircuitBreaker {
	o.mu.Lock()
	defer o.mu.Unlock()
	if br, ok := o.breakers[name]; ok {
		return br
	}
	br := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && counts.ConsecutiveFailures >= 5
		},
	})
	o.breakers[name] = br
	return br
}

func (o *Orchestrator) logAttempts(req domain.PurchaseRequest, attempts []attempt) {
	o.log.Info("purchase chain finished",
		zap.String("kind", string(req.Kind)),
		zap.String("network", req.Network),
		zap.Int("attempts", len(attempts)),
		zap.Any("chain", attempts),
	)
}
