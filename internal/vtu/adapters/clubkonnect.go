package adapters

import (
	"context"
	"net/http"

	providerdomain "github.com/boijelux-1st/doublea/internal/provider/domain"
	"github.com/boijelux-1st/doublea/internal/vtu/domain"
	"github.com/google/uuid"
)

const ProviderClubKonnect = "clubkonnect"

// ClubKonnect's API takes amounts in kobo. The conversion happens here and
// nowhere else; the rest of the system deals in naira.
const koboPerNaira = 100

type clubKonnectFactory struct{}

func NewClubKonnectFactory() domain.AdapterFactory { return clubKonnectFactory{} }

func (clubKonnectFactory) Provider() string { return ProviderClubKonnect }

func (clubKonnectFactory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	return &clubKonnectAdapter{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  newHTTPClient(cfg.Timeout),
	}, nil
}

type clubKonnectAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type clubKonnectRequest struct {
	MobileNetwork string `json:"MobileNetwork"`
	MobileNumber  string `json:"MobileNumber"`
	Amount        int64  `json:"Amount,omitempty"`
	DataPlan      string `json:"DataPlan,omitempty"`
	RequestID     string `json:"RequestID"`
}

type clubKonnectResponse struct {
	StatusCode string `json:"statuscode"`
	OrderID    string `json:"orderid"`
	Remark     string `json:"remark"`
}

func (a *clubKonnectAdapter) Name() string { return ProviderClubKonnect }

func (a *clubKonnectAdapter) Purchase(ctx context.Context, req domain.PurchaseRequest) (*domain.PurchaseResult, error) {
	endpoint := a.baseURL + "/APIAirtimeV1.asp"
	body := clubKonnectRequest{
		MobileNetwork: req.Network,
		MobileNumber:  req.Recipient,
		Amount:        NairaToKobo(req.Amount),
		RequestID:     "doublea_" + uuid.NewString(),
	}
	if req.Kind == providerdomain.CapabilityData {
		endpoint = a.baseURL + "/APIDatabundleV1.asp"
		body.DataPlan = req.PlanID
	}

	var resp clubKonnectResponse
	if err := postJSON(ctx, a.client, endpoint, a.apiKey, body, &resp); err != nil {
		return nil, err
	}

	success := resp.StatusCode == "ORDER_RECEIVED" || resp.StatusCode == "ORDER_COMPLETED"
	message := resp.Remark
	if message == "" {
		message = resp.StatusCode
	}

	return &domain.PurchaseResult{
		Success:    success,
		Provider:   ProviderClubKonnect,
		UpstreamID: resp.OrderID,
		Message:    message,
		Amount:     req.Amount,
	}, nil
}

// NairaToKobo converts a major-unit amount to kobo.
func NairaToKobo(naira int64) int64 { return naira * koboPerNaira }

// KoboToNaira converts a minor-unit amount back to naira, truncating
// sub-naira remainders.
func KoboToNaira(kobo int64) int64 { return kobo / koboPerNaira }
