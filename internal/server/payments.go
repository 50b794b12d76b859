package server

import (
	"net/http"
	"strings"

	paymentdomain "github.com/boijelux-1st/doublea/internal/payment/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type fundWalletRequest struct {
	Amount      int64  `json:"amount"`
	Gateway     string `json:"gateway"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	RedirectURL string `json:"redirect_url"`
}

type fundWalletResponse struct {
	Reference   string `json:"reference"`
	Gateway     string `json:"gateway"`
	CheckoutURL string `json:"checkout_url"`
	Amount      int64  `json:"amount"`
}

// @Summary      Fund wallet
// @Description  Opens a pending funding entry and returns a checkout URL
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body fundWalletRequest true "Fund Wallet Request"
// @Success      200  {object}  fundWalletResponse
// @Router       /v1/wallet/fund [post]
func (s *Server) FundWallet(c *gin.Context) {
	var req fundWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		AbortWithError(c, newValidationError("email", "required", "email is required"))
		return
	}

	ctx := c.Request.Context()
	entry, err := s.wallets.BeginFunding(ctx, s.currentUser(c), req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.payments.InitializePayment(ctx, req.Gateway, paymentdomain.PaymentInitRequest{
		Reference:   entry.Reference,
		Amount:      req.Amount,
		Currency:    "NGN",
		PayerEmail:  strings.TrimSpace(req.Email),
		PayerName:   strings.TrimSpace(req.Name),
		PayerPhone:  strings.TrimSpace(req.Phone),
		RedirectURL: strings.TrimSpace(req.RedirectURL),
	})
	if err != nil || !result.Success {
		if cancelErr := s.wallets.CancelFunding(ctx, entry.Reference); cancelErr != nil {
			s.log.Warn("failed to cancel funding entry",
				zap.String("reference", entry.Reference), zap.Error(cancelErr))
		}
		if err == nil {
			AbortWithError(c, newValidationError("gateway", "checkout_failed", "checkout could not be created"))
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": fundWalletResponse{
		Reference:   entry.Reference,
		Gateway:     result.Gateway,
		CheckoutURL: result.CheckoutURL,
		Amount:      req.Amount,
	}})
}

// @Summary      Verify payment
// @Description  Asks the owning gateway for the authoritative status
// @Tags         payments
// @Produce      json
// @Security     ApiKeyAuth
// @Param        reference  path  string  true  "Payment reference"
// @Success      200  {object}  paymentdomain.VerificationResult
// @Router       /v1/payments/{reference} [get]
func (s *Server) VerifyPayment(c *gin.Context) {
	reference := strings.TrimSpace(c.Param("reference"))
	result, err := s.payments.VerifyPayment(c.Request.Context(), reference)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// PaymentWebhook receives gateway notifications. The dispatcher identifies
// the sender by signature header, verifies the signature over the raw body,
// and only then parses or acts.
func (s *Server) PaymentWebhook(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ack, err := s.payments.HandleWebhook(c.Request.Context(), rawBody, c.Request.Header)
	if err != nil {
		// Rejections are logged with detail; the sender only learns that
		// the delivery was refused.
		s.log.Warn("webhook rejected", zap.Error(err))
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"accepted": ack.Accepted})
}
