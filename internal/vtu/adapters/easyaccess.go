package adapters

import (
	"context"
	"net/http"

	providerdomain "github.com/boijelux-1st/doublea/internal/provider/domain"
	"github.com/boijelux-1st/doublea/internal/vtu/domain"
	"github.com/google/uuid"
)

const ProviderEasyAccess = "easyaccess"

type easyAccessFactory struct{}

func NewEasyAccessFactory() domain.AdapterFactory { return easyAccessFactory{} }

func (easyAccessFactory) Provider() string { return ProviderEasyAccess }

func (easyAccessFactory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	return &easyAccessAdapter{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  newHTTPClient(cfg.Timeout),
	}, nil
}

// easyAccessAdapter speaks the EasyAccess wire format: naira amounts and a
// boolean success flag in the response body.
type easyAccessAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type easyAccessRequest struct {
	Network      string `json:"network"`
	MobileNumber string `json:"mobile_number"`
	Amount       int64  `json:"amount,omitempty"`
	PlanType     string `json:"plan_type,omitempty"`
	RequestID    string `json:"request_id"`
}

type easyAccessResponse struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference"`
	Message   string `json:"message"`
}

func (a *easyAccessAdapter) Name() string { return ProviderEasyAccess }

func (a *easyAccessAdapter) Purchase(ctx context.Context, req domain.PurchaseRequest) (*domain.PurchaseResult, error) {
	endpoint := a.baseURL + "/airtime"
	body := easyAccessRequest{
		Network:      req.Network,
		MobileNumber: req.Recipient,
		Amount:       req.Amount,
		RequestID:    "doublea_" + uuid.NewString(),
	}
	if req.Kind == providerdomain.CapabilityData {
		endpoint = a.baseURL + "/data"
		body.PlanType = req.PlanID
	}

	var resp easyAccessResponse
	if err := postJSON(ctx, a.client, endpoint, a.apiKey, body, &resp); err != nil {
		return nil, err
	}

	message := resp.Message
	if message == "" {
		message = "transaction processed"
	}

	return &domain.PurchaseResult{
		Success:    resp.Success,
		Provider:   ProviderEasyAccess,
		UpstreamID: resp.Reference,
		Message:    message,
		Amount:     req.Amount,
	}, nil
}
