package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/boijelux-1st/doublea/internal/config"
	gatewaydomain "github.com/boijelux-1st/doublea/internal/gateway/domain"
	gatewayservice "github.com/boijelux-1st/doublea/internal/gateway/service"
	"github.com/boijelux-1st/doublea/internal/idempotency"
	"github.com/boijelux-1st/doublea/internal/payment/adapters"
	"github.com/boijelux-1st/doublea/internal/payment/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type mapCreds map[string]string

func (m mapCreds) Resolve(ref string) (string, error) {
	if v, ok := m[ref]; ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", config.ErrCredentialMissing, ref)
}

type recordingHandler struct {
	completions []domain.CompletedPayment
	fail        error
}

func (h *recordingHandler) PaymentCompleted(_ context.Context, c domain.CompletedPayment) error {
	if h.fail != nil {
		return h.fail
	}
	h.completions = append(h.completions, c)
	return nil
}

type paymentFixture struct {
	svc      domain.Service
	gateways gatewaydomain.Service
	handler  *recordingHandler
	db       *gorm.DB
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&gatewaydomain.GatewayConfig{}, &domain.EventRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	cfg := config.Config{UpstreamTimeout: 2 * time.Second, ConfigCacheTTL: time.Millisecond}
	gateways := gatewayservice.NewService(gatewayservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Cfg: cfg,
	})

	handler := &recordingHandler{}
	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Cfg:      cfg,
		Gateways: gateways,
		Creds: mapCreds{
			"PAYSTACK_SECRET":     "sk_test_secret",
			"FLW_SECRET":          "flw_test_secret",
			"FLW_WEBHOOK_SECRET":  "whsec_flw",
			"MONNIFY_SECRET":      "mnfy_secret",
			"MONNIFY_WEBHOOK_KEY": "mnfy_secret",
		},
		Registry:    adapters.Default(),
		Idem:        idempotency.NewMemoryStore(),
		Completions: handler,
	})

	return &paymentFixture{svc: svc, gateways: gateways, handler: handler, db: db.Session(&gorm.Session{})}
}

func (f *paymentFixture) addGateway(t *testing.T, name, baseURL string, priority int) *gatewaydomain.GatewayConfig {
	t.Helper()
	req := gatewaydomain.CreateRequest{
		Name:         name,
		BaseURL:      baseURL,
		SecretKeyRef: "PAYSTACK_SECRET",
		Priority:     priority,
	}
	switch name {
	case adapters.GatewayFlutterwave:
		req.SecretKeyRef = "FLW_SECRET"
		req.WebhookSecretRef = "FLW_WEBHOOK_SECRET"
	case adapters.GatewayMonnify:
		req.SecretKeyRef = "MONNIFY_SECRET"
		req.PublicKey = "MK_TEST"
		req.Metadata = map[string]any{"contract_code": "1234567890"}
	}
	gw, err := f.gateways.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("create gateway %s: %v", name, err)
	}
	return gw
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func paystackWebhookBody() []byte {
	return []byte(`{"event":"charge.success","data":{"id":9001,"reference":"fund_123","amount":150000,"currency":"NGN","status":"success"}}`)
}

func TestHandleWebhookValidSignatureCompletes(t *testing.T) {
	f := newPaymentFixture(t)
	f.addGateway(t, adapters.GatewayPaystack, "https://api.paystack.co", 1)

	body := paystackWebhookBody()
	headers := http.Header{}
	headers.Set("x-paystack-signature", signBody("sk_test_secret", body))

	ack, err := f.svc.HandleWebhook(context.Background(), body, headers)
	if err != nil {
		t.Fatalf("handle webhook: %v", err)
	}
	if !ack.Accepted || ack.Event == nil {
		t.Fatalf("expected accepted ack with event, got %+v", ack)
	}
	if ack.Event.Amount != 1500 {
		t.Errorf("expected 1500 naira normalized from kobo, got %d", ack.Event.Amount)
	}
	if len(f.handler.completions) != 1 || f.handler.completions[0].Reference != "fund_123" {
		t.Fatalf("expected one completion for fund_123, got %+v", f.handler.completions)
	}

	var count int64
	f.db.Model(&domain.EventRecord{}).Where("event_id = ?", "9001").Count(&count)
	if count != 1 {
		t.Errorf("expected one persisted event record, got %d", count)
	}
}

func TestHandleWebhookTamperedBodyRejected(t *testing.T) {
	f := newPaymentFixture(t)
	f.addGateway(t, adapters.GatewayPaystack, "https://api.paystack.co", 1)

	body := paystackWebhookBody()
	sig := signBody("sk_test_secret", body)
	body[len(body)-15] ^= 1

	headers := http.Header{}
	headers.Set("x-paystack-signature", sig)

	_, err := f.svc.HandleWebhook(context.Background(), body, headers)
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if len(f.handler.completions) != 0 {
		t.Error("completion handler must not run for a bad signature")
	}

	var count int64
	f.db.Model(&domain.EventRecord{}).Count(&count)
	if count != 0 {
		t.Errorf("rejected webhook must not be persisted, found %d records", count)
	}
}

func TestHandleWebhookMissingSignatureHeader(t *testing.T) {
	f := newPaymentFixture(t)
	f.addGateway(t, adapters.GatewayPaystack, "https://api.paystack.co", 1)

	_, err := f.svc.HandleWebhook(context.Background(), paystackWebhookBody(), http.Header{})
	if !errors.Is(err, domain.ErrUnrecognizedSource) {
		t.Fatalf("expected ErrUnrecognizedSource, got %v", err)
	}
}

func TestHandleWebhookInactiveGatewayRejected(t *testing.T) {
	f := newPaymentFixture(t)
	gw := f.addGateway(t, adapters.GatewayPaystack, "https://api.paystack.co", 1)
	if _, err := f.gateways.Toggle(context.Background(), gw.ID, false); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	body := paystackWebhookBody()
	headers := http.Header{}
	headers.Set("x-paystack-signature", signBody("sk_test_secret", body))

	_, err := f.svc.HandleWebhook(context.Background(), body, headers)
	if !errors.Is(err, domain.ErrUnrecognizedSource) {
		t.Fatalf("expected ErrUnrecognizedSource for disabled gateway, got %v", err)
	}
}

func TestHandleWebhookDuplicateDropped(t *testing.T) {
	f := newPaymentFixture(t)
	f.addGateway(t, adapters.GatewayPaystack, "https://api.paystack.co", 1)

	body := paystackWebhookBody()
	headers := http.Header{}
	headers.Set("x-paystack-signature", signBody("sk_test_secret", body))

	for i := 0; i < 2; i++ {
		ack, err := f.svc.HandleWebhook(context.Background(), body, headers)
		if err != nil {
			t.Fatalf("handle webhook %d: %v", i, err)
		}
		if !ack.Accepted {
			t.Fatalf("delivery %d not accepted", i)
		}
	}
	if len(f.handler.completions) != 1 {
		t.Fatalf("expected exactly one completion across retries, got %d", len(f.handler.completions))
	}
}

func TestHandleWebhookNonCompletingEventAcknowledged(t *testing.T) {
	f := newPaymentFixture(t)
	f.addGateway(t, adapters.GatewayPaystack, "https://api.paystack.co", 1)

	body := []byte(`{"event":"charge.dispute.create","data":{"id":77,"reference":"fund_123","amount":150000,"status":"pending"}}`)
	headers := http.Header{}
	headers.Set("x-paystack-signature", signBody("sk_test_secret", body))

	ack, err := f.svc.HandleWebhook(context.Background(), body, headers)
	if err != nil {
		t.Fatalf("handle webhook: %v", err)
	}
	if !ack.Accepted || ack.Event != nil {
		t.Fatalf("non-completing event should be acknowledged without a completion, got %+v", ack)
	}
	if len(f.handler.completions) != 0 {
		t.Error("completion handler must not run for non-completing events")
	}
}

func TestHandleWebhookCompletionFailureRetryable(t *testing.T) {
	f := newPaymentFixture(t)
	f.addGateway(t, adapters.GatewayPaystack, "https://api.paystack.co", 1)

	body := paystackWebhookBody()
	headers := http.Header{}
	headers.Set("x-paystack-signature", signBody("sk_test_secret", body))

	f.handler.fail = errors.New("wallet unavailable")
	if _, err := f.svc.HandleWebhook(context.Background(), body, headers); err == nil {
		t.Fatal("expected error when completion handler fails")
	}

	// The gateway retries the delivery; it must land this time.
	f.handler.fail = nil
	ack, err := f.svc.HandleWebhook(context.Background(), body, headers)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !ack.Accepted || len(f.handler.completions) != 1 {
		t.Fatalf("retry should complete exactly once, got ack=%+v completions=%d", ack, len(f.handler.completions))
	}
}

func TestInitializeHintedInactiveGatewayFailsFast(t *testing.T) {
	f := newPaymentFixture(t)
	f.addGateway(t, adapters.GatewayPaystack, "https://api.paystack.co", 1)

	_, err := f.svc.InitializePayment(context.Background(), "flutterwave", domain.PaymentInitRequest{
		Reference:  "fund_9",
		Amount:     500,
		PayerEmail: "user@example.com",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for inactive hinted gateway, got %v", err)
	}
}

func TestInitializeFailsOverToNextGateway(t *testing.T) {
	f := newPaymentFixture(t)

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	var flwCalls int
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flwCalls++
		w.Write([]byte(`{"status":"success","data":{"link":"https://checkout.flutterwave.com/pay/ok"}}`))
	}))
	defer up.Close()

	f.addGateway(t, adapters.GatewayPaystack, down.URL, 1)
	f.addGateway(t, adapters.GatewayFlutterwave, up.URL, 2)

	result, err := f.svc.InitializePayment(context.Background(), "", domain.PaymentInitRequest{
		Reference:  "fund_10",
		Amount:     500,
		PayerEmail: "user@example.com",
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if result.Gateway != adapters.GatewayFlutterwave {
		t.Errorf("expected flutterwave after paystack failure, got %q", result.Gateway)
	}
	if result.CheckoutURL == "" || flwCalls != 1 {
		t.Errorf("unexpected result %+v (flutterwave calls %d)", result, flwCalls)
	}
}

func TestInitializeExhaustedWhenAllGatewaysFail(t *testing.T) {
	f := newPaymentFixture(t)

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()

	f.addGateway(t, adapters.GatewayPaystack, down.URL, 1)

	_, err := f.svc.InitializePayment(context.Background(), "", domain.PaymentInitRequest{
		Reference:  "fund_11",
		Amount:     500,
		PayerEmail: "user@example.com",
	})
	if !errors.Is(err, domain.ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestVerifyScansActiveGateways(t *testing.T) {
	f := newPaymentFixture(t)

	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer notFound.Close()

	paid := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"status":"successful","amount":500,"currency":"NGN","tx_ref":"fund_12"}}`))
	}))
	defer paid.Close()

	f.addGateway(t, adapters.GatewayPaystack, notFound.URL, 1)
	f.addGateway(t, adapters.GatewayFlutterwave, paid.URL, 2)

	result, err := f.svc.VerifyPayment(context.Background(), "fund_12")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Success || result.Gateway != adapters.GatewayFlutterwave {
		t.Fatalf("expected flutterwave success, got %+v", result)
	}
	if result.Amount != 500 {
		t.Errorf("expected 500 naira, got %d", result.Amount)
	}
}
