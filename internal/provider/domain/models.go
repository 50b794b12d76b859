package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Capability names a service a VTU upstream can fulfil.
type Capability string

const (
	CapabilityAirtime Capability = "airtime"
	CapabilityData    Capability = "data"
)

// ProviderConfig is an admin-managed VTU upstream. The orchestrator reads
// these as per-call snapshots and never mutates them.
type ProviderConfig struct {
	ID            snowflake.ID                `gorm:"primaryKey" json:"id"`
	Name          string                      `gorm:"uniqueIndex;size:64" json:"name"`
	BaseURL       string                      `gorm:"size:255" json:"base_url"`
	CredentialRef string                      `gorm:"size:128" json:"credential_ref"`
	IsActive      bool                        `json:"is_active"`
	Priority      int                         `json:"priority"`
	Capabilities  datatypes.JSONSlice[string] `json:"capabilities"`
	Metadata      datatypes.JSONMap           `json:"metadata,omitempty"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

func (ProviderConfig) TableName() string { return "vtu_providers" }

// Supports reports whether the provider advertises the given capability.
func (p ProviderConfig) Supports(capability Capability) bool {
	for _, c := range p.Capabilities {
		if Capability(c) == capability {
			return true
		}
	}
	return false
}
