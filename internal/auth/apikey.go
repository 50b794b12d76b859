package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// APIKey authenticates programmatic callers. Only the SHA-256 of the key
// material is stored; the plaintext is shown once at creation.
type APIKey struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID     string       `gorm:"index;size:64" json:"user_id"`
	Label      string       `gorm:"size:128" json:"label"`
	KeyHash    string       `gorm:"uniqueIndex;size:64" json:"-"`
	IsActive   bool         `json:"is_active"`
	IsAdmin    bool         `json:"is_admin"`
	ExpiresAt  *time.Time   `json:"expires_at,omitempty"`
	LastUsedAt *time.Time   `json:"last_used_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

func (APIKey) TableName() string { return "api_keys" }

// HashAPIKey derives the stored digest for one key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// GenerateAPIKey mints fresh key material with the da_ prefix.
func GenerateAPIKey() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate key material: %w", err)
	}
	return "da_" + hex.EncodeToString(raw), nil
}
