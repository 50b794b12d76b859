package server

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/boijelux-1st/doublea/internal/auth"
	obslogger "github.com/boijelux-1st/doublea/internal/observability/logger"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	contextUserIDKey   = "user_id"
	contextAPIKeyIDKey = "api_key_id"
)

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.Any("headers", obslogger.MaskHeaders(c.Request.Header)),
		)
	}
}

func (s *Server) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow(c.ClientIP()) {
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

// APIKeyRequired authenticates requests with a bearer API key. User identity
// is derived solely from the api_keys table.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		record, ok := s.authenticate(c)
		if !ok {
			return
		}
		c.Set(contextUserIDKey, record.UserID)
		c.Set(contextAPIKeyIDKey, int64(record.ID))
		c.Next()
	}
}

// AdminRequired is APIKeyRequired plus the admin flag.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		record, ok := s.authenticate(c)
		if !ok {
			return
		}
		if !record.IsAdmin {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Set(contextUserIDKey, record.UserID)
		c.Set(contextAPIKeyIDKey, int64(record.ID))
		c.Next()
	}
}

func (s *Server) authenticate(c *gin.Context) (*auth.APIKey, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		AbortWithError(c, ErrUnauthorized)
		return nil, false
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		AbortWithError(c, ErrUnauthorized)
		return nil, false
	}

	hash := auth.HashAPIKey(parts[1])
	now := time.Now().UTC()

	var record auth.APIKey
	err := s.db.WithContext(c.Request.Context()).
		Where("key_hash = ? AND is_active = ? AND (expires_at IS NULL OR expires_at > ?)", hash, true, now).
		First(&record).Error
	if err != nil || record.ID == 0 ||
		subtle.ConstantTimeCompare([]byte(record.KeyHash), []byte(hash)) != 1 {
		AbortWithError(c, ErrUnauthorized)
		return nil, false
	}

	go s.touchAPIKey(record.ID)
	return &record, true
}

func (s *Server) touchAPIKey(id snowflake.ID) {
	now := time.Now().UTC()
	if err := s.db.Model(&auth.APIKey{}).Where("id = ?", id).
		Update("last_used_at", now).Error; err != nil {
		s.log.Debug("failed to touch api key", zap.Error(err))
	}
}

func (s *Server) currentUser(c *gin.Context) string {
	return c.GetString(contextUserIDKey)
}
