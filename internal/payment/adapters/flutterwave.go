package adapters

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/boijelux-1st/doublea/internal/payment/domain"
)

const (
	GatewayFlutterwave         = "flutterwave"
	flutterwaveSignatureHeader = "verif-hash"
	flutterwaveChargeCompleted = "charge.completed"
)

type flutterwaveFactory struct{}

func NewFlutterwaveFactory() domain.GatewayFactory { return flutterwaveFactory{} }

func (flutterwaveFactory) Name() string            { return GatewayFlutterwave }
func (flutterwaveFactory) SignatureHeader() string { return flutterwaveSignatureHeader }

func (flutterwaveFactory) New(creds domain.GatewayCredentials) (domain.Gateway, error) {
	if creds.SecretKey == "" {
		return nil, errors.New("flutterwave: secret key is required")
	}
	baseURL := strings.TrimRight(creds.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.flutterwave.com/v3"
	}
	return &flutterwaveGateway{
		baseURL:       baseURL,
		secretKey:     creds.SecretKey,
		webhookSecret: creds.WebhookSecret,
		client:        newHTTPClient(creds.Timeout),
	}, nil
}

// flutterwaveGateway speaks the Flutterwave v3 API. Amounts are naira on
// both sides, so no unit conversion happens here.
type flutterwaveGateway struct {
	baseURL       string
	secretKey     string
	webhookSecret string
	client        *http.Client
}

func (g *flutterwaveGateway) Name() string { return GatewayFlutterwave }

type flutterwaveCustomer struct {
	Email       string `json:"email"`
	PhoneNumber string `json:"phonenumber,omitempty"`
	Name        string `json:"name,omitempty"`
}

type flutterwaveInitRequest struct {
	TxRef       string              `json:"tx_ref"`
	Amount      int64               `json:"amount"`
	Currency    string              `json:"currency"`
	RedirectURL string              `json:"redirect_url,omitempty"`
	Customer    flutterwaveCustomer `json:"customer"`
}

type flutterwaveInitResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

func (g *flutterwaveGateway) Initialize(ctx context.Context, req domain.PaymentInitRequest) (*domain.PaymentInitResult, error) {
	currency := req.Currency
	if currency == "" {
		currency = "NGN"
	}
	body := flutterwaveInitRequest{
		TxRef:       req.Reference,
		Amount:      req.Amount,
		Currency:    currency,
		RedirectURL: req.RedirectURL,
		Customer: flutterwaveCustomer{
			Email:       req.PayerEmail,
			PhoneNumber: req.PayerPhone,
			Name:        req.PayerName,
		},
	}

	var resp flutterwaveInitResponse
	url := g.baseURL + "/payments"
	if err := doJSON(ctx, g.client, http.MethodPost, url, "Bearer "+g.secretKey, body, &resp); err != nil {
		return nil, err
	}

	return &domain.PaymentInitResult{
		Success:          resp.Status == "success" && resp.Data.Link != "",
		Gateway:          GatewayFlutterwave,
		CheckoutURL:      resp.Data.Link,
		GatewayReference: req.Reference,
		Message:          resp.Message,
	}, nil
}

type flutterwaveVerifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status   string `json:"status"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		TxRef    string `json:"tx_ref"`
	} `json:"data"`
}

func (g *flutterwaveGateway) Verify(ctx context.Context, reference string) (*domain.VerificationResult, error) {
	var resp flutterwaveVerifyResponse
	query := url.Values{"tx_ref": {reference}}
	endpoint := fmt.Sprintf("%s/transactions/verify_by_reference?%s", g.baseURL, query.Encode())
	if err := doJSON(ctx, g.client, http.MethodGet, endpoint, "Bearer "+g.secretKey, nil, &resp); err != nil {
		return nil, err
	}

	success := resp.Status == "success" && resp.Data.Status == "successful"
	result := &domain.VerificationResult{
		Success:   success,
		Gateway:   GatewayFlutterwave,
		Amount:    resp.Data.Amount,
		Currency:  resp.Data.Currency,
		Status:    domain.StatusFailed,
		RawStatus: resp.Data.Status,
	}
	if success {
		result.Status = domain.StatusCompleted
	} else if resp.Data.Status == "pending" {
		result.Status = domain.StatusPending
	}
	return result, nil
}

// VerifyWebhookSignature compares the verif-hash header against the
// configured webhook secret. Flutterwave sends the shared secret verbatim
// rather than a body digest.
func (g *flutterwaveGateway) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	if signature == "" || g.webhookSecret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(signature), []byte(g.webhookSecret)) == 1
}

type flutterwaveWebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		ID       int64  `json:"id"`
		TxRef    string `json:"tx_ref"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Status   string `json:"status"`
	} `json:"data"`
}

func (g *flutterwaveGateway) ParseWebhook(rawBody []byte) (*domain.WebhookEvent, error) {
	var payload flutterwaveWebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if payload.Event == "" || payload.Data.TxRef == "" {
		return nil, fmt.Errorf("%w: missing event or tx_ref", domain.ErrMalformedResponse)
	}

	eventID := payload.Data.TxRef + ":" + payload.Event
	if payload.Data.ID != 0 {
		eventID = fmt.Sprintf("%d:%s", payload.Data.ID, payload.Event)
	}

	completes := payload.Event == flutterwaveChargeCompleted && payload.Data.Status == "successful"
	return &domain.WebhookEvent{
		Gateway:   GatewayFlutterwave,
		EventID:   eventID,
		Type:      payload.Event,
		Reference: payload.Data.TxRef,
		Amount:    payload.Data.Amount,
		Currency:  payload.Data.Currency,
		RawStatus: payload.Data.Status,
		Completes: completes,
	}, nil
}
