package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/boijelux-1st/doublea/internal/config"
	gatewaydomain "github.com/boijelux-1st/doublea/internal/gateway/domain"
	"github.com/boijelux-1st/doublea/internal/idempotency"
	"github.com/boijelux-1st/doublea/internal/payment/adapters"
	"github.com/boijelux-1st/doublea/internal/payment/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Cfg      config.Config
	Gateways gatewaydomain.Service
	Creds    config.CredentialStore
	Registry *adapters.Registry
	Idem     idempotency.Store

	// Completions is whoever credits wallets on verified success webhooks.
	Completions domain.CompletionHandler `optional:"true"`
	// Refs resolves which gateway initialized a reference.
	Refs domain.ReferenceStore `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	cfg         config.Config
	gateways    gatewaydomain.Service
	creds       config.CredentialStore
	registry    *adapters.Registry
	idem        idempotency.Store
	completions domain.CompletionHandler
	refs        domain.ReferenceStore
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log,
		genID:       p.GenID,
		cfg:         p.Cfg,
		gateways:    p.Gateways,
		creds:       p.Creds,
		registry:    p.Registry,
		idem:        p.Idem,
		completions: p.Completions,
		refs:        p.Refs,
	}
}

func validateInit(req domain.PaymentInitRequest) error {
	if strings.TrimSpace(req.Reference) == "" {
		return fmt.Errorf("%w: reference is required", domain.ErrValidation)
	}
	if req.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if strings.TrimSpace(req.PayerEmail) == "" {
		return fmt.Errorf("%w: payer email is required", domain.ErrValidation)
	}
	return nil
}

func (s *Service) InitializePayment(ctx context.Context, gatewayHint string, req domain.PaymentInitRequest) (*domain.PaymentInitResult, error) {
	if err := validateInit(req); err != nil {
		return nil, err
	}

	// An explicit hint is a directive, not a preference: the named gateway
	// must be active and no failover happens.
	if hint := gatewaydomain.NormalizeName(gatewayHint); hint != "" {
		gw, err := s.gateways.FindActive(ctx, hint)
		if err != nil {
			if errors.Is(err, gatewaydomain.ErrNotFound) {
				return nil, fmt.Errorf("%w: gateway %q is not active", domain.ErrValidation, hint)
			}
			return nil, err
		}
		return s.attemptInitialize(ctx, *gw, req)
	}

	chain, err := s.gateways.ActiveGateways(ctx)
	if err != nil {
		return nil, err
	}

	lastMessage := "no active gateways configured"
	for _, gw := range chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := s.attemptInitialize(ctx, gw, req)
		if err == nil && result.Success {
			return result, nil
		}

		switch {
		case err == nil:
			// Business refusal from the gateway. Next in line.
			lastMessage = result.Message
			if lastMessage == "" {
				lastMessage = "gateway declined"
			}
		case domain.Recoverable(err):
			lastMessage = err.Error()
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastMessage = err.Error()
		}
		s.log.Warn("gateway initialization attempt failed",
			zap.String("gateway", gw.Name),
			zap.String("reference", req.Reference),
			zap.String("reason", lastMessage),
		)
	}

	return nil, fmt.Errorf("%w: %s", domain.ErrExhausted, lastMessage)
}

func (s *Service) attemptInitialize(ctx context.Context, gw gatewaydomain.GatewayConfig, req domain.PaymentInitRequest) (*domain.PaymentInitResult, error) {
	adapter, err := s.adapterFor(gw)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.upstreamTimeout())
	defer cancel()

	result, err := adapter.Initialize(callCtx, req)
	if err != nil {
		return nil, err
	}
	if result.Success && s.refs != nil {
		// Remembering which gateway owns the reference lets verification
		// skip the scan. Best effort only.
		if recorder, ok := s.refs.(referenceRecorder); ok {
			if err := recorder.RecordReference(ctx, req.Reference, gw.Name, req.Amount); err != nil {
				s.log.Warn("failed to record gateway for reference",
					zap.String("reference", req.Reference), zap.Error(err))
			}
		}
	}
	return result, nil
}

// referenceRecorder is the optional write side of domain.ReferenceStore.
type referenceRecorder interface {
	RecordReference(ctx context.Context, reference, gateway string, amount int64) error
}

func (s *Service) VerifyPayment(ctx context.Context, reference string) (*domain.VerificationResult, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, fmt.Errorf("%w: reference is required", domain.ErrValidation)
	}

	// The owning gateway is authoritative when known.
	if s.refs != nil {
		if name, err := s.refs.GatewayForReference(ctx, reference); err == nil && name != "" {
			gw, err := s.gateways.FindActive(ctx, name)
			if err == nil {
				return s.attemptVerify(ctx, *gw, reference)
			}
		}
	}

	chain, err := s.gateways.ActiveGateways(ctx)
	if err != nil {
		return nil, err
	}

	var last *domain.VerificationResult
	lastMessage := "no active gateways configured"
	for _, gw := range chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := s.attemptVerify(ctx, gw, reference)
		if err != nil {
			lastMessage = err.Error()
			continue
		}
		if result.Success {
			return result, nil
		}
		if result.RawStatus != "" {
			last = result
		}
	}

	if last != nil {
		return last, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrExhausted, lastMessage)
}

func (s *Service) attemptVerify(ctx context.Context, gw gatewaydomain.GatewayConfig, reference string) (*domain.VerificationResult, error) {
	adapter, err := s.adapterFor(gw)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.upstreamTimeout())
	defer cancel()
	return adapter.Verify(callCtx, reference)
}

func (s *Service) HandleWebhook(ctx context.Context, rawBody []byte, headers http.Header) (*domain.WebhookAck, error) {
	name, signature, ok := s.registry.Identify(headers)
	if !ok {
		return nil, domain.ErrUnrecognizedSource
	}

	// Webhooks for disabled gateways are rejected, not parked.
	gw, err := s.gateways.FindActive(ctx, name)
	if err != nil {
		if errors.Is(err, gatewaydomain.ErrNotFound) {
			return nil, fmt.Errorf("%w: gateway %q is not active", domain.ErrUnrecognizedSource, name)
		}
		return nil, err
	}

	adapter, err := s.adapterFor(*gw)
	if err != nil {
		return nil, err
	}

	// Signature first. The body stays untouched until it is authenticated.
	if !adapter.VerifyWebhookSignature(rawBody, signature) {
		s.log.Warn("webhook signature verification failed", zap.String("gateway", name))
		return nil, domain.ErrInvalidSignature
	}

	event, err := adapter.ParseWebhook(rawBody)
	if err != nil {
		return nil, err
	}

	dedupeKey := fmt.Sprintf("webhook:%s:%s", event.Gateway, event.EventID)
	fresh, err := s.idem.Begin(ctx, dedupeKey)
	if err != nil {
		s.log.Warn("idempotency store unavailable, relying on event table", zap.Error(err))
	} else if !fresh {
		s.log.Info("duplicate webhook dropped",
			zap.String("gateway", event.Gateway), zap.String("event_id", event.EventID))
		return &domain.WebhookAck{Accepted: true}, nil
	}

	record := &domain.EventRecord{
		ID:         s.genID.Generate(),
		Gateway:    event.Gateway,
		EventID:    event.EventID,
		EventType:  event.Type,
		Reference:  event.Reference,
		Payload:    datatypes.JSON(rawBody),
		ReceivedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if isUniqueViolation(err) {
			_ = s.idem.Complete(ctx, dedupeKey)
			return &domain.WebhookAck{Accepted: true}, nil
		}
		_ = s.idem.Release(ctx, dedupeKey)
		return nil, fmt.Errorf("persist webhook event: %w", err)
	}

	if !event.Completes {
		s.markProcessed(ctx, record)
		_ = s.idem.Complete(ctx, dedupeKey)
		s.log.Info("webhook acknowledged without action",
			zap.String("gateway", event.Gateway), zap.String("type", event.Type))
		return &domain.WebhookAck{Accepted: true}, nil
	}

	completed := domain.CompletedPayment{
		Reference: event.Reference,
		Amount:    event.Amount,
		Currency:  event.Currency,
		Gateway:   event.Gateway,
		Status:    domain.StatusCompleted,
	}
	if s.completions != nil {
		if err := s.completions.PaymentCompleted(ctx, completed); err != nil {
			// Leave the key releasable so the gateway's retry can land.
			_ = s.idem.Release(ctx, dedupeKey)
			s.db.WithContext(ctx).Delete(record)
			return nil, fmt.Errorf("apply payment completion: %w", err)
		}
	}

	s.markProcessed(ctx, record)
	_ = s.idem.Complete(ctx, dedupeKey)
	s.log.Info("payment completed via webhook",
		zap.String("gateway", event.Gateway),
		zap.String("reference", event.Reference),
		zap.Int64("amount", event.Amount),
	)
	return &domain.WebhookAck{Accepted: true, Event: &completed}, nil
}

func (s *Service) markProcessed(ctx context.Context, record *domain.EventRecord) {
	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(record).Update("processed_at", now).Error; err != nil {
		s.log.Warn("failed to mark webhook event processed", zap.Error(err))
	}
}

// adapterFor resolves secret references and builds a live adapter for one
// configured gateway.
func (s *Service) adapterFor(gw gatewaydomain.GatewayConfig) (domain.Gateway, error) {
	if !s.registry.GatewayExists(gw.Name) {
		return nil, fmt.Errorf("no adapter registered for gateway %q", gw.Name)
	}

	secret, err := s.creds.Resolve(gw.SecretKeyRef)
	if err != nil {
		return nil, fmt.Errorf("resolve secret key for %s: %w", gw.Name, err)
	}
	webhookSecret := ""
	if gw.WebhookSecretRef != "" {
		if webhookSecret, err = s.creds.Resolve(gw.WebhookSecretRef); err != nil {
			return nil, fmt.Errorf("resolve webhook secret for %s: %w", gw.Name, err)
		}
	}

	creds := domain.GatewayCredentials{
		Name:          gw.Name,
		BaseURL:       gw.BaseURL,
		PublicKey:     gw.PublicKey,
		SecretKey:     secret,
		WebhookSecret: webhookSecret,
		ContractCode:  metadataString(gw, "contract_code"),
		Timeout:       s.upstreamTimeout(),
	}
	return s.registry.New(gw.Name, creds)
}

func (s *Service) upstreamTimeout() time.Duration {
	if s.cfg.UpstreamTimeout > 0 {
		return s.cfg.UpstreamTimeout
	}
	return 10 * time.Second
}

func metadataString(gw gatewaydomain.GatewayConfig, key string) string {
	if gw.Metadata == nil {
		return ""
	}
	if v, ok := gw.Metadata[key].(string); ok {
		return v
	}
	return ""
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
