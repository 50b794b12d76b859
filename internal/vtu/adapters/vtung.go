package adapters

import (
	"context"
	"net/http"

	providerdomain "github.com/boijelux-1st/doublea/internal/provider/domain"
	"github.com/boijelux-1st/doublea/internal/vtu/domain"
	"github.com/google/uuid"
)

const ProviderVTUNG = "vtu.ng"

type vtungFactory struct{}

func NewVTUNGFactory() domain.AdapterFactory { return vtungFactory{} }

func (vtungFactory) Provider() string { return ProviderVTUNG }

func (vtungFactory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	return &vtungAdapter{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  newHTTPClient(cfg.Timeout),
	}, nil
}

// vtungAdapter speaks the vtu.ng wire format: naira amounts, JSON body with a
// request_id, success signalled by code "101" or status "success".
type vtungAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type vtungRequest struct {
	Network   string `json:"network"`
	Phone     string `json:"phone"`
	Amount    int64  `json:"amount,omitempty"`
	Plan      string `json:"plan,omitempty"`
	RequestID string `json:"request_id"`
}

type vtungResponse struct {
	Code          string `json:"code"`
	Status        string `json:"status"`
	TransactionID string `json:"transactionId"`
	RequestID     string `json:"requestId"`
	Message       string `json:"message"`
}

func (a *vtungAdapter) Name() string { return ProviderVTUNG }

func (a *vtungAdapter) Purchase(ctx context.Context, req domain.PurchaseRequest) (*domain.PurchaseResult, error) {
	endpoint := a.baseURL + "/airtime"
	body := vtungRequest{
		Network:   req.Network,
		Phone:     req.Recipient,
		RequestID: "doublea_" + uuid.NewString(),
	}
	if req.Kind == providerdomain.CapabilityData {
		endpoint = a.baseURL + "/data"
		body.Plan = req.PlanID
	} else {
		body.Amount = req.Amount
	}

	var resp vtungResponse
	if err := postJSON(ctx, a.client, endpoint, a.apiKey, body, &resp); err != nil {
		return nil, err
	}

	upstreamID := resp.TransactionID
	if upstreamID == "" {
		upstreamID = resp.RequestID
	}
	message := resp.Message
	if message == "" {
		message = "transaction processed"
	}

	return &domain.PurchaseResult{
		Success:    resp.Code == "101" || resp.Status == "success",
		Provider:   ProviderVTUNG,
		UpstreamID: upstreamID,
		Message:    message,
		Amount:     req.Amount,
	}, nil
}
