package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/boijelux-1st/doublea/internal/auth"
	"github.com/boijelux-1st/doublea/internal/config"
	gatewaydomain "github.com/boijelux-1st/doublea/internal/gateway/domain"
	gatewayservice "github.com/boijelux-1st/doublea/internal/gateway/service"
	"github.com/boijelux-1st/doublea/internal/idempotency"
	paymentadapters "github.com/boijelux-1st/doublea/internal/payment/adapters"
	paymentdomain "github.com/boijelux-1st/doublea/internal/payment/domain"
	paymentservice "github.com/boijelux-1st/doublea/internal/payment/service"
	pricingdomain "github.com/boijelux-1st/doublea/internal/pricing/domain"
	pricingservice "github.com/boijelux-1st/doublea/internal/pricing/service"
	providerdomain "github.com/boijelux-1st/doublea/internal/provider/domain"
	providerservice "github.com/boijelux-1st/doublea/internal/provider/service"
	vtuadapters "github.com/boijelux-1st/doublea/internal/vtu/adapters"
	"github.com/boijelux-1st/doublea/internal/vtu/orchestrator"
	walletdomain "github.com/boijelux-1st/doublea/internal/wallet/domain"
	walletservice "github.com/boijelux-1st/doublea/internal/wallet/service"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type testCreds map[string]string

func (m testCreds) Resolve(ref string) (string, error) {
	if v, ok := m[ref]; ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", config.ErrCredentialMissing, ref)
}

type fixture struct {
	server   *Server
	router   *gin.Engine
	db       *gorm.DB
	gateways gatewaydomain.Service
	provs    providerdomain.Service
	wallets  *walletservice.Service
	userKey  string
	adminKey string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&providerdomain.ProviderConfig{},
		&gatewaydomain.GatewayConfig{},
		&paymentdomain.EventRecord{},
		&walletdomain.Wallet{},
		&walletdomain.Transaction{},
		&pricingdomain.Rule{},
		&auth.APIKey{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	cfg := config.Config{
		HTTPAddr:        ":0",
		ServiceName:     "doublea-test",
		UpstreamTimeout: 2 * time.Second,
		ConfigCacheTTL:  time.Millisecond,
	}
	log := zap.NewNop()
	creds := testCreds{
		"PAYSTACK_SECRET": "sk_test_secret",
		"VTUNG_API_KEY":   "vtung_key",
	}
	idem := idempotency.NewMemoryStore()

	providers := providerservice.NewService(providerservice.Params{DB: db, Log: log, GenID: node, Cfg: cfg})
	gateways := gatewayservice.NewService(gatewayservice.Params{DB: db, Log: log, GenID: node, Cfg: cfg})
	pricing := pricingservice.NewService(pricingservice.Params{DB: db, Log: log, GenID: node, Cfg: cfg})
	wallets := walletservice.NewService(walletservice.Params{DB: db, Log: log, GenID: node})
	payments := paymentservice.NewService(paymentservice.Params{
		DB: db, Log: log, GenID: node, Cfg: cfg,
		Gateways: gateways, Creds: creds,
		Registry: paymentadapters.Default(), Idem: idem,
		Completions: wallets, Refs: wallets,
	})
	vtu := orchestrator.New(orchestrator.Params{
		Providers: providers, Creds: creds,
		Registry: vtuadapters.Default(), Cfg: cfg, Log: log,
	})

	srv := NewServer(Params{
		Cfg: cfg, Log: log, DB: db, GenID: node,
		Providers: providers, Gateways: gateways, Pricing: pricing,
		Wallets: wallets, Payments: payments, VTU: vtu, Idem: idem,
	})

	f := &fixture{
		server:   srv,
		router:   srv.Router(),
		db:       db,
		gateways: gateways,
		provs:    providers,
		wallets:  wallets,
		userKey:  "da_user_key",
		adminKey: "da_admin_key",
	}
	f.seedKey(t, node, "user-1", f.userKey, false)
	f.seedKey(t, node, "admin", f.adminKey, true)
	return f
}

func (f *fixture) seedKey(t *testing.T, node *snowflake.Node, userID, key string, admin bool) {
	t.Helper()
	record := auth.APIKey{
		ID:       node.Generate(),
		UserID:   userID,
		KeyHash:  auth.HashAPIKey(key),
		IsActive: true,
		IsAdmin:  admin,
	}
	if err := f.db.Create(&record).Error; err != nil {
		t.Fatalf("seed api key: %v", err)
	}
}

func (f *fixture) do(method, path, key string, body any, extraHeaders map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) addPaystack(t *testing.T) {
	t.Helper()
	if _, err := f.gateways.Create(context.Background(), gatewaydomain.CreateRequest{
		Name:             "paystack",
		BaseURL:          "https://api.paystack.co",
		SecretKeyRef:     "PAYSTACK_SECRET",
		WebhookSecretRef: "PAYSTACK_SECRET",
		Priority:         1,
	}); err != nil {
		t.Fatalf("create gateway: %v", err)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(http.MethodGet, "/v1/wallet", "", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing key: expected 401, got %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/v1/wallet", "da_wrong", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: expected 401, got %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/v1/wallet", f.userKey, nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("valid key: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminSurfaceRejectsUserKeys(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(http.MethodGet, "/admin/providers", f.userKey, nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("user key on admin: expected 401, got %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/admin/providers", f.adminKey, nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("admin key: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestFundWalletInactiveGatewayHintFailsFast(t *testing.T) {
	f := newFixture(t)
	f.addPaystack(t)

	// flutterwave is not configured at all; the hint must be rejected
	// before any outbound call is made.
	rec := f.do(http.MethodPost, "/v1/wallet/fund", f.userKey, map[string]any{
		"amount":  1000,
		"gateway": "flutterwave",
		"email":   "user@example.com",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	// The pending funding entry must not survive the refusal.
	var count int64
	f.db.Model(&walletdomain.Transaction{}).Where("status = ?", walletdomain.TxPending).Count(&count)
	if count != 0 {
		t.Errorf("expected no pending funding entries, got %d", count)
	}
}

func TestPaymentWebhookRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.addPaystack(t)

	entry, err := f.wallets.BeginFunding(context.Background(), "user-1", 1500)
	if err != nil {
		t.Fatalf("begin funding: %v", err)
	}

	body := []byte(fmt.Sprintf(
		`{"event":"charge.success","data":{"id":3001,"reference":%q,"amount":150000,"currency":"NGN","status":"success"}}`,
		entry.Reference))
	mac := hmac.New(sha512.New, []byte("sk_test_secret"))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", signature)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	balance, err := f.wallets.Balance(context.Background(), "user-1")
	if err != nil || balance != 1500 {
		t.Fatalf("expected wallet credited 1500, got %d err=%v", balance, err)
	}
}

func TestPaymentWebhookBadSignatureIsRejected(t *testing.T) {
	f := newFixture(t)
	f.addPaystack(t)

	body := []byte(`{"event":"charge.success","data":{"id":3002,"reference":"fund_x","amount":150000,"status":"success"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", "0000")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPurchaseDebitsWalletAndDelivers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"101","message":"delivered","data":{"transaction_id":"tx_1"}}`))
	}))
	defer upstream.Close()

	if _, err := f.provs.Create(ctx, providerdomain.CreateRequest{
		Name:          vtuadapters.ProviderVTUNG,
		BaseURL:       upstream.URL,
		CredentialRef: "VTUNG_API_KEY",
		Priority:      1,
		Capabilities:  []string{"airtime", "data"},
	}); err != nil {
		t.Fatalf("create provider: %v", err)
	}

	entry, err := f.wallets.BeginFunding(ctx, "user-1", 2000)
	if err != nil {
		t.Fatalf("begin funding: %v", err)
	}
	if err := f.wallets.PaymentCompleted(ctx, paymentdomain.CompletedPayment{
		Reference: entry.Reference, Amount: 2000, Gateway: "paystack",
	}); err != nil {
		t.Fatalf("fund wallet: %v", err)
	}
	if err := f.wallets.SetPIN(ctx, "user-1", "4321"); err != nil {
		t.Fatalf("set pin: %v", err)
	}

	rec := f.do(http.MethodPost, "/v1/purchases", f.userKey, map[string]any{
		"kind":      "airtime",
		"network":   "mtn",
		"recipient": "08030000000",
		"amount":    500,
		"pin":       "4321",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	balance, _ := f.wallets.Balance(ctx, "user-1")
	if balance != 1500 {
		t.Fatalf("expected 1500 after purchase, got %d", balance)
	}

	if rec := f.do(http.MethodPost, "/v1/purchases", f.userKey, map[string]any{
		"kind":      "airtime",
		"network":   "mtn",
		"recipient": "08030000000",
		"amount":    500,
		"pin":       "0000",
	}, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("wrong pin: expected 403, got %d", rec.Code)
	}
}

func TestPurchaseRefundsOnDeliveryFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"009","status":"failure","message":"out of stock"}`))
	}))
	defer upstream.Close()

	if _, err := f.provs.Create(ctx, providerdomain.CreateRequest{
		Name:          vtuadapters.ProviderVTUNG,
		BaseURL:       upstream.URL,
		CredentialRef: "VTUNG_API_KEY",
		Priority:      1,
		Capabilities:  []string{"airtime"},
	}); err != nil {
		t.Fatalf("create provider: %v", err)
	}

	entry, err := f.wallets.BeginFunding(ctx, "user-1", 1000)
	if err != nil {
		t.Fatalf("begin funding: %v", err)
	}
	if err := f.wallets.PaymentCompleted(ctx, paymentdomain.CompletedPayment{
		Reference: entry.Reference, Amount: 1000, Gateway: "paystack",
	}); err != nil {
		t.Fatalf("fund wallet: %v", err)
	}
	if err := f.wallets.SetPIN(ctx, "user-1", "4321"); err != nil {
		t.Fatalf("set pin: %v", err)
	}

	rec := f.do(http.MethodPost, "/v1/purchases", f.userKey, map[string]any{
		"kind":      "airtime",
		"network":   "mtn",
		"recipient": "08030000000",
		"amount":    500,
		"pin":       "4321",
	}, nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", rec.Code, rec.Body.String())
	}

	balance, _ := f.wallets.Balance(ctx, "user-1")
	if balance != 1000 {
		t.Fatalf("failed delivery must refund in full, got %d", balance)
	}
}
