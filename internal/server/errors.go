package server

import (
	"errors"
	"net/http"

	gatewaydomain "github.com/boijelux-1st/doublea/internal/gateway/domain"
	paymentdomain "github.com/boijelux-1st/doublea/internal/payment/domain"
	pricingdomain "github.com/boijelux-1st/doublea/internal/pricing/domain"
	providerdomain "github.com/boijelux-1st/doublea/internal/provider/domain"
	vtudomain "github.com/boijelux-1st/doublea/internal/vtu/domain"
	walletdomain "github.com/boijelux-1st/doublea/internal/wallet/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIError is the JSON error envelope every handler returns.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *APIError) Error() string { return e.Message }

var (
	ErrUnauthorized = &APIError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "unauthorized"}
	ErrNotFound     = &APIError{Status: http.StatusNotFound, Code: "not_found", Message: "not found"}
	ErrRateLimited  = &APIError{Status: http.StatusTooManyRequests, Code: "rate_limited", Message: "too many requests"}
)

func invalidRequestError() *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "invalid request body"}
}

func newValidationError(field, code, message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: code, Message: message, Field: field}
}

// AbortWithError translates service errors into the API envelope. Upstream
// detail stays in the logs; callers get the stable code and a safe message.
func AbortWithError(c *gin.Context, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
		return
	}

	status, code, message := classify(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("unhandled request error", zap.Error(err), zap.String("path", c.FullPath()))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": &APIError{Status: status, Code: code, Message: message}})
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, vtudomain.ErrValidation),
		errors.Is(err, paymentdomain.ErrValidation),
		errors.Is(err, pricingdomain.ErrInvalidRule),
		errors.Is(err, providerdomain.ErrInvalidConfig),
		errors.Is(err, gatewaydomain.ErrInvalidConfig),
		errors.Is(err, walletdomain.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_request", err.Error()

	case errors.Is(err, walletdomain.ErrInvalidPIN):
		return http.StatusForbidden, "invalid_pin", "transaction pin rejected"

	case errors.Is(err, walletdomain.ErrInsufficientFunds):
		return http.StatusBadRequest, "insufficient_funds", "wallet balance is too low"

	case errors.Is(err, providerdomain.ErrNotFound),
		errors.Is(err, gatewaydomain.ErrNotFound),
		errors.Is(err, pricingdomain.ErrNotFound),
		errors.Is(err, walletdomain.ErrNotFound),
		errors.Is(err, walletdomain.ErrUnknownReference):
		return http.StatusNotFound, "not_found", "not found"

	case errors.Is(err, providerdomain.ErrDuplicateName),
		errors.Is(err, gatewaydomain.ErrDuplicateName):
		return http.StatusConflict, "duplicate", "name already in use"

	case errors.Is(err, paymentdomain.ErrInvalidSignature),
		errors.Is(err, paymentdomain.ErrUnrecognizedSource):
		return http.StatusBadRequest, "webhook_rejected", "webhook rejected"

	case errors.Is(err, vtudomain.ErrExhausted),
		errors.Is(err, paymentdomain.ErrExhausted):
		return http.StatusBadGateway, "upstream_exhausted", "no upstream could fulfil the request"

	case errors.Is(err, vtudomain.ErrNetwork),
		errors.Is(err, vtudomain.ErrUpstreamRejected),
		errors.Is(err, vtudomain.ErrMalformedResponse),
		errors.Is(err, paymentdomain.ErrNetwork),
		errors.Is(err, paymentdomain.ErrUpstreamRejected),
		errors.Is(err, paymentdomain.ErrMalformedResponse):
		return http.StatusBadGateway, "upstream_error", "upstream request failed"
	}

	return http.StatusInternalServerError, "internal_error", "internal error"
}
