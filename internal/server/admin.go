package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/boijelux-1st/doublea/internal/auth"
	gatewaydomain "github.com/boijelux-1st/doublea/internal/gateway/domain"
	pricingdomain "github.com/boijelux-1st/doublea/internal/pricing/domain"
	providerdomain "github.com/boijelux-1st/doublea/internal/provider/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func pathID(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return 0, false
	}
	return id, true
}

type toggleRequest struct {
	Active bool `json:"active"`
}

type createProviderRequest struct {
	Name          string         `json:"name"`
	BaseURL       string         `json:"base_url"`
	CredentialRef string         `json:"credential_ref"`
	Priority      int            `json:"priority"`
	Capabilities  []string       `json:"capabilities"`
	Metadata      map[string]any `json:"metadata"`
}

func (s *Server) CreateProvider(c *gin.Context) {
	var req createProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.providers.Create(c.Request.Context(), providerdomain.CreateRequest{
		Name:          req.Name,
		BaseURL:       req.BaseURL,
		CredentialRef: req.CredentialRef,
		Priority:      req.Priority,
		Capabilities:  req.Capabilities,
		Metadata:      req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListProviders(c *gin.Context) {
	resp, err := s.providers.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateProviderRequest struct {
	BaseURL       *string  `json:"base_url"`
	CredentialRef *string  `json:"credential_ref"`
	Priority      *int     `json:"priority"`
	Capabilities  []string `json:"capabilities"`
}

func (s *Server) UpdateProvider(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.providers.Update(c.Request.Context(), id, providerdomain.UpdateRequest{
		BaseURL:       req.BaseURL,
		CredentialRef: req.CredentialRef,
		Priority:      req.Priority,
		Capabilities:  req.Capabilities,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ToggleProvider(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.providers.Toggle(c.Request.Context(), id, req.Active)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type createGatewayRequest struct {
	Name             string         `json:"name"`
	BaseURL          string         `json:"base_url"`
	PublicKey        string         `json:"public_key"`
	SecretKeyRef     string         `json:"secret_key_ref"`
	WebhookSecretRef string         `json:"webhook_secret_ref"`
	Priority         int            `json:"priority"`
	Mode             string         `json:"mode"`
	Metadata         map[string]any `json:"metadata"`
}

func (s *Server) CreateGateway(c *gin.Context) {
	var req createGatewayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.gateways.Create(c.Request.Context(), gatewaydomain.CreateRequest{
		Name:             req.Name,
		BaseURL:          req.BaseURL,
		PublicKey:        req.PublicKey,
		SecretKeyRef:     req.SecretKeyRef,
		WebhookSecretRef: req.WebhookSecretRef,
		Priority:         req.Priority,
		Mode:             gatewaydomain.Mode(req.Mode),
		Metadata:         req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListGateways(c *gin.Context) {
	resp, err := s.gateways.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ToggleGateway(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.gateways.Toggle(c.Request.Context(), id, req.Active)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type upsertPricingRequest struct {
	Network     string `json:"network"`
	Kind        string `json:"kind"`
	DiscountBps int    `json:"discount_bps"`
}

func (s *Server) UpsertPricingRule(c *gin.Context) {
	var req upsertPricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.pricing.Upsert(c.Request.Context(), pricingdomain.UpsertRequest{
		Network:     req.Network,
		Kind:        providerdomain.Capability(strings.ToLower(strings.TrimSpace(req.Kind))),
		DiscountBps: req.DiscountBps,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPricingRules(c *gin.Context) {
	resp, err := s.pricing.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) TogglePricingRule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.pricing.Toggle(c.Request.Context(), id, req.Active)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type createAPIKeyRequest struct {
	UserID   string `json:"user_id"`
	Label    string `json:"label"`
	IsAdmin  bool   `json:"is_admin"`
	TTLHours int    `json:"ttl_hours"`
}

// CreateAPIKey mints a key for a user. The plaintext is returned exactly
// once; only its hash is stored.
func (s *Server) CreateAPIKey(c *gin.Context) {
	var req createAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		AbortWithError(c, newValidationError("user_id", "required", "user_id is required"))
		return
	}

	key, err := auth.GenerateAPIKey()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	record := auth.APIKey{
		ID:       s.genID.Generate(),
		UserID:   strings.TrimSpace(req.UserID),
		Label:    strings.TrimSpace(req.Label),
		KeyHash:  auth.HashAPIKey(key),
		IsActive: true,
		IsAdmin:  req.IsAdmin,
	}
	if req.TTLHours > 0 {
		expires := time.Now().UTC().Add(time.Duration(req.TTLHours) * time.Hour)
		record.ExpiresAt = &expires
	}
	if err := s.db.WithContext(c.Request.Context()).Create(&record).Error; err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"id":      record.ID.String(),
		"user_id": record.UserID,
		"key":     key,
	}})
}
