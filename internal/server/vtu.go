package server

import (
	"fmt"
	"net/http"
	"strings"

	providerdomain "github.com/boijelux-1st/doublea/internal/provider/domain"
	vtudomain "github.com/boijelux-1st/doublea/internal/vtu/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type purchaseRequest struct {
	Kind      string `json:"kind"`
	Network   string `json:"network"`
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
	PlanID    string `json:"plan_id"`
	PIN       string `json:"pin"`
}

type purchaseResponse struct {
	Reference string `json:"reference"`
	Provider  string `json:"provider"`
	Charged   int64  `json:"charged"`
	FaceValue int64  `json:"face_value"`
	Message   string `json:"message,omitempty"`
}

// @Summary      Purchase airtime or data
// @Description  Debits the wallet and fulfils through the provider chain
// @Tags         purchases
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body purchaseRequest true "Purchase Request"
// @Success      200  {object}  purchaseResponse
// @Router       /v1/purchases [post]
func (s *Server) Purchase(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	order := vtudomain.PurchaseRequest{
		Kind:      providerdomain.Capability(strings.ToLower(strings.TrimSpace(req.Kind))),
		Network:   strings.TrimSpace(req.Network),
		Recipient: strings.TrimSpace(req.Recipient),
		Amount:    req.Amount,
		PlanID:    strings.TrimSpace(req.PlanID),
	}
	if err := order.Validate(); err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	userID := s.currentUser(c)

	// Purchases always require the transaction pin.
	if err := s.wallets.VerifyPIN(ctx, userID, req.PIN); err != nil {
		AbortWithError(c, err)
		return
	}

	reference := s.purchaseReference(c)
	fresh, err := s.idem.Begin(ctx, "purchase:"+reference)
	if err != nil {
		s.log.Warn("idempotency store unavailable for purchase", zap.Error(err))
	} else if !fresh {
		AbortWithError(c, newValidationError("idempotency_key", "duplicate_request", "request already in flight or completed"))
		return
	}

	quote, err := s.pricing.Resolve(ctx, order.Network, order.Kind, order.Amount)
	if err != nil {
		_ = s.idem.Release(ctx, "purchase:"+reference)
		AbortWithError(c, err)
		return
	}

	if _, err := s.wallets.DebitForPurchase(ctx, userID, quote.Price, reference, "", map[string]any{
		"kind":      string(order.Kind),
		"network":   order.Network,
		"recipient": order.Recipient,
		"plan_id":   order.PlanID,
	}); err != nil {
		_ = s.idem.Release(ctx, "purchase:"+reference)
		AbortWithError(c, err)
		return
	}

	result, err := s.vtu.Purchase(ctx, order)
	if err != nil || !result.Success {
		if refundErr := s.wallets.RefundPurchase(ctx, reference); refundErr != nil {
			s.log.Error("refund after failed delivery did not apply",
				zap.String("reference", reference), zap.Error(refundErr))
		}
		_ = s.idem.Release(ctx, "purchase:"+reference)
		if err == nil {
			err = fmt.Errorf("%w: %s", vtudomain.ErrExhausted, result.Message)
		}
		AbortWithError(c, err)
		return
	}

	if err := s.wallets.RecordDelivery(ctx, reference, result.Provider); err != nil {
		s.log.Warn("failed to record delivering provider",
			zap.String("reference", reference), zap.Error(err))
	}
	_ = s.idem.Complete(ctx, "purchase:"+reference)

	c.JSON(http.StatusOK, gin.H{"data": purchaseResponse{
		Reference: reference,
		Provider:  result.Provider,
		Charged:   quote.Price,
		FaceValue: order.Amount,
		Message:   result.Message,
	}})
}

// purchaseReference honors a client idempotency key so retries map onto the
// same ledger entry.
func (s *Server) purchaseReference(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader("Idempotency-Key")); key != "" {
		return "vtu_" + key
	}
	return fmt.Sprintf("vtu_%s", s.genID.Generate())
}

// @Summary      Quote a purchase
// @Description  Prices a face value against the active discount rules
// @Tags         pricing
// @Produce      json
// @Security     ApiKeyAuth
// @Param        network  query  string  true   "Network"
// @Param        kind     query  string  true   "airtime or data"
// @Param        amount   query  int     true   "Face value in naira"
// @Success      200  {object}  pricingdomain.Quote
// @Router       /v1/pricing/quote [get]
func (s *Server) Quote(c *gin.Context) {
	var query struct {
		Network string `form:"network"`
		Kind    string `form:"kind"`
		Amount  int64  `form:"amount"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	quote, err := s.pricing.Resolve(c.Request.Context(), query.Network,
		providerdomain.Capability(strings.ToLower(query.Kind)), query.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": quote})
}
