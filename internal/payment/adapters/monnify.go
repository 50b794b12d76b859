package adapters

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/boijelux-1st/doublea/internal/payment/domain"
)

const (
	GatewayMonnify            = "monnify"
	monnifySignatureHeader    = "monnify-signature"
	monnifySuccessEvent       = "SUCCESSFUL_TRANSACTION"
	monnifyTokenEarlyRefresh  = 60 * time.Second
	monnifyDefaultTokenExpiry = 3600
)

type monnifyFactory struct{}

func NewMonnifyFactory() domain.GatewayFactory { return monnifyFactory{} }

func (monnifyFactory) Name() string            { return GatewayMonnify }
func (monnifyFactory) SignatureHeader() string { return monnifySignatureHeader }

func (monnifyFactory) New(creds domain.GatewayCredentials) (domain.Gateway, error) {
	if creds.PublicKey == "" || creds.SecretKey == "" {
		return nil, errors.New("monnify: api key and secret key are required")
	}
	baseURL := strings.TrimRight(creds.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.monnify.com"
	}
	return &monnifyGateway{
		baseURL:      baseURL,
		apiKey:       creds.PublicKey,
		secretKey:    creds.SecretKey,
		contractCode: creds.ContractCode,
		client:       newHTTPClient(creds.Timeout),
	}, nil
}

// monnifyGateway speaks the Monnify v1 API. Every call is preceded by a
// basic-auth token exchange; the token is cached until shortly before it
// expires.
type monnifyGateway struct {
	baseURL      string
	apiKey       string
	secretKey    string
	contractCode string
	client       *http.Client

	mu           sync.Mutex
	token        string
	tokenExpires time.Time
}

func (g *monnifyGateway) Name() string { return GatewayMonnify }

type monnifyLoginResponse struct {
	RequestSuccessful bool `json:"requestSuccessful"`
	ResponseBody      struct {
		AccessToken string `json:"accessToken"`
		ExpiresIn   int64  `json:"expiresIn"`
	} `json:"responseBody"`
}

func (g *monnifyGateway) accessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.token != "" && time.Now().Before(g.tokenExpires) {
		return g.token, nil
	}

	basic := base64.StdEncoding.EncodeToString([]byte(g.apiKey + ":" + g.secretKey))
	var resp monnifyLoginResponse
	loginURL := g.baseURL + "/api/v1/auth/login"
	if err := doJSON(ctx, g.client, http.MethodPost, loginURL, "Basic "+basic, struct{}{}, &resp); err != nil {
		return "", err
	}
	if !resp.RequestSuccessful || resp.ResponseBody.AccessToken == "" {
		return "", fmt.Errorf("%w: login refused", domain.ErrUpstreamRejected)
	}

	expiresIn := resp.ResponseBody.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = monnifyDefaultTokenExpiry
	}
	g.token = resp.ResponseBody.AccessToken
	g.tokenExpires = time.Now().Add(time.Duration(expiresIn)*time.Second - monnifyTokenEarlyRefresh)
	return g.token, nil
}

type monnifyInitRequest struct {
	Amount             int64  `json:"amount"`
	CustomerName       string `json:"customerName"`
	CustomerEmail      string `json:"customerEmail"`
	PaymentReference   string `json:"paymentReference"`
	PaymentDescription string `json:"paymentDescription"`
	CurrencyCode       string `json:"currencyCode"`
	ContractCode       string `json:"contractCode"`
	RedirectURL        string `json:"redirectUrl,omitempty"`
}

type monnifyInitResponse struct {
	RequestSuccessful bool   `json:"requestSuccessful"`
	ResponseMessage   string `json:"responseMessage"`
	ResponseBody      struct {
		TransactionReference string `json:"transactionReference"`
		CheckoutURL          string `json:"checkoutUrl"`
	} `json:"responseBody"`
}

func (g *monnifyGateway) Initialize(ctx context.Context, req domain.PaymentInitRequest) (*domain.PaymentInitResult, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = "NGN"
	}
	body := monnifyInitRequest{
		Amount:             req.Amount,
		CustomerName:       req.PayerName,
		CustomerEmail:      req.PayerEmail,
		PaymentReference:   req.Reference,
		PaymentDescription: "Wallet funding",
		CurrencyCode:       currency,
		ContractCode:       g.contractCode,
		RedirectURL:        req.RedirectURL,
	}

	var resp monnifyInitResponse
	initURL := g.baseURL + "/api/v1/merchant/transactions/init-transaction"
	if err := doJSON(ctx, g.client, http.MethodPost, initURL, "Bearer "+token, body, &resp); err != nil {
		return nil, err
	}

	return &domain.PaymentInitResult{
		Success:          resp.RequestSuccessful && resp.ResponseBody.CheckoutURL != "",
		Gateway:          GatewayMonnify,
		CheckoutURL:      resp.ResponseBody.CheckoutURL,
		GatewayReference: resp.ResponseBody.TransactionReference,
		Message:          resp.ResponseMessage,
	}, nil
}

type monnifyQueryResponse struct {
	RequestSuccessful bool   `json:"requestSuccessful"`
	ResponseMessage   string `json:"responseMessage"`
	ResponseBody      struct {
		PaymentStatus string `json:"paymentStatus"`
		AmountPaid    int64  `json:"amountPaid"`
		CurrencyCode  string `json:"currencyCode"`
	} `json:"responseBody"`
}

func (g *monnifyGateway) Verify(ctx context.Context, reference string) (*domain.VerificationResult, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var resp monnifyQueryResponse
	queryURL := fmt.Sprintf("%s/api/v1/merchant/transactions/query?paymentReference=%s",
		g.baseURL, url.QueryEscape(reference))
	if err := doJSON(ctx, g.client, http.MethodGet, queryURL, "Bearer "+token, nil, &resp); err != nil {
		return nil, err
	}

	success := resp.RequestSuccessful && resp.ResponseBody.PaymentStatus == "PAID"
	result := &domain.VerificationResult{
		Success:   success,
		Gateway:   GatewayMonnify,
		Amount:    resp.ResponseBody.AmountPaid,
		Currency:  resp.ResponseBody.CurrencyCode,
		Status:    domain.StatusFailed,
		RawStatus: resp.ResponseBody.PaymentStatus,
	}
	if success {
		result.Status = domain.StatusCompleted
	} else if resp.ResponseBody.PaymentStatus == "PENDING" {
		result.Status = domain.StatusPending
	}
	return result, nil
}

// VerifyWebhookSignature checks the HMAC-SHA512 hex digest Monnify computes
// over the exact raw body with the client secret key.
func (g *monnifyGateway) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(g.secretKey))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

type monnifyWebhookPayload struct {
	EventType string `json:"eventType"`
	EventData struct {
		PaymentReference     string `json:"paymentReference"`
		TransactionReference string `json:"transactionReference"`
		AmountPaid           int64  `json:"amountPaid"`
		CurrencyCode         string `json:"currencyCode"`
		PaymentStatus        string `json:"paymentStatus"`
	} `json:"eventData"`
}

func (g *monnifyGateway) ParseWebhook(rawBody []byte) (*domain.WebhookEvent, error) {
	var payload monnifyWebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if payload.EventType == "" || payload.EventData.PaymentReference == "" {
		return nil, fmt.Errorf("%w: missing eventType or paymentReference", domain.ErrMalformedResponse)
	}

	eventID := payload.EventData.TransactionReference
	if eventID == "" {
		eventID = payload.EventData.PaymentReference + ":" + payload.EventType
	}

	return &domain.WebhookEvent{
		Gateway:   GatewayMonnify,
		EventID:   eventID,
		Type:      payload.EventType,
		Reference: payload.EventData.PaymentReference,
		Amount:    payload.EventData.AmountPaid,
		Currency:  payload.EventData.CurrencyCode,
		RawStatus: payload.EventData.PaymentStatus,
		Completes: payload.EventType == monnifySuccessEvent,
	}, nil
}
