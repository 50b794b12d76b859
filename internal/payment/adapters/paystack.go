package adapters

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/boijelux-1st/doublea/internal/payment/domain"
)

const (
	GatewayPaystack         = "paystack"
	paystackSignatureHeader = "x-paystack-signature"
	paystackChargeSuccess   = "charge.success"

	koboPerNaira = 100
)

// NairaToKobo converts a major-unit amount to the minor units Paystack
// expects on the wire.
func NairaToKobo(naira int64) int64 { return naira * koboPerNaira }

func KoboToNaira(kobo int64) int64 { return kobo / koboPerNaira }

type paystackFactory struct{}

func NewPaystackFactory() domain.GatewayFactory { return paystackFactory{} }

func (paystackFactory) Name() string            { return GatewayPaystack }
func (paystackFactory) SignatureHeader() string { return paystackSignatureHeader }

func (paystackFactory) New(creds domain.GatewayCredentials) (domain.Gateway, error) {
	if creds.SecretKey == "" {
		return nil, errors.New("paystack: secret key is required")
	}
	baseURL := strings.TrimRight(creds.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}
	return &paystackGateway{
		baseURL:   baseURL,
		secretKey: creds.SecretKey,
		client:    newHTTPClient(creds.Timeout),
	}, nil
}

// paystackGateway speaks the Paystack transaction API. Paystack amounts are
// kobo; conversion stays inside this file.
type paystackGateway struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func (g *paystackGateway) Name() string { return GatewayPaystack }

type paystackInitRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type paystackInitResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

func (g *paystackGateway) Initialize(ctx context.Context, req domain.PaymentInitRequest) (*domain.PaymentInitResult, error) {
	body := paystackInitRequest{
		Email:       req.PayerEmail,
		Amount:      NairaToKobo(req.Amount),
		Reference:   req.Reference,
		CallbackURL: req.RedirectURL,
	}

	var resp paystackInitResponse
	url := g.baseURL + "/transaction/initialize"
	if err := doJSON(ctx, g.client, http.MethodPost, url, "Bearer "+g.secretKey, body, &resp); err != nil {
		return nil, err
	}

	result := &domain.PaymentInitResult{
		Success:          resp.Status && resp.Data.AuthorizationURL != "",
		Gateway:          GatewayPaystack,
		CheckoutURL:      resp.Data.AuthorizationURL,
		GatewayReference: resp.Data.Reference,
		Message:          resp.Message,
	}
	return result, nil
}

type paystackVerifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status   string `json:"status"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	} `json:"data"`
}

func (g *paystackGateway) Verify(ctx context.Context, reference string) (*domain.VerificationResult, error) {
	var resp paystackVerifyResponse
	// References come from callers; escape so they stay a single path segment.
	endpoint := fmt.Sprintf("%s/transaction/verify/%s", g.baseURL, url.PathEscape(reference))
	if err := doJSON(ctx, g.client, http.MethodGet, endpoint, "Bearer "+g.secretKey, nil, &resp); err != nil {
		return nil, err
	}

	success := resp.Status && resp.Data.Status == "success"
	result := &domain.VerificationResult{
		Success:   success,
		Gateway:   GatewayPaystack,
		Amount:    KoboToNaira(resp.Data.Amount),
		Currency:  resp.Data.Currency,
		Status:    domain.StatusFailed,
		RawStatus: resp.Data.Status,
	}
	if success {
		result.Status = domain.StatusCompleted
	} else if resp.Data.Status == "pending" || resp.Data.Status == "ongoing" {
		result.Status = domain.StatusPending
	}
	return result, nil
}

// VerifyWebhookSignature checks the HMAC-SHA512 hex digest Paystack computes
// over the exact raw body with the account secret key.
func (g *paystackGateway) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(g.secretKey))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

type paystackWebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		ID        int64  `json:"id"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		Status    string `json:"status"`
	} `json:"data"`
}

func (g *paystackGateway) ParseWebhook(rawBody []byte) (*domain.WebhookEvent, error) {
	var payload paystackWebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if payload.Event == "" || payload.Data.Reference == "" {
		return nil, fmt.Errorf("%w: missing event or reference", domain.ErrMalformedResponse)
	}

	// The event type stays in the id: distinct events can share a
	// transaction id and must not dedupe against each other.
	eventID := payload.Data.Reference + ":" + payload.Event
	if payload.Data.ID != 0 {
		eventID = fmt.Sprintf("%d:%s", payload.Data.ID, payload.Event)
	}

	return &domain.WebhookEvent{
		Gateway:   GatewayPaystack,
		EventID:   eventID,
		Type:      payload.Event,
		Reference: payload.Data.Reference,
		Amount:    KoboToNaira(payload.Data.Amount),
		Currency:  payload.Data.Currency,
		RawStatus: payload.Data.Status,
		Completes: payload.Event == paystackChargeSuccess,
	}, nil
}
