package domain

import (
	"context"
	"errors"
	"time"

	providerdomain "github.com/boijelux-1st/doublea/internal/provider/domain"
	"github.com/bwmarrin/snowflake"
)

var (
	ErrNotFound    = errors.New("pricing_rule_not_found")
	ErrInvalidRule = errors.New("invalid_pricing_rule")
)

// Rule discounts one network/kind pair in basis points off face value. A
// 150 bps rule sells a 1000 naira top-up for 985.
type Rule struct {
	ID          snowflake.ID              `gorm:"primaryKey" json:"id"`
	Network     string                    `gorm:"size:32;uniqueIndex:idx_network_kind,priority:1" json:"network"`
	Kind        providerdomain.Capability `gorm:"size:16;uniqueIndex:idx_network_kind,priority:2" json:"kind"`
	DiscountBps int                       `json:"discount_bps"`
	IsActive    bool                      `json:"is_active"`
	CreatedAt   time.Time                 `json:"created_at"`
	UpdatedAt   time.Time                 `json:"updated_at"`
}

func (Rule) TableName() string { return "pricing_rules" }

// Quote is the priced form of one purchase.
type Quote struct {
	FaceValue   int64 `json:"face_value"`
	Price       int64 `json:"price"`
	DiscountBps int   `json:"discount_bps"`
}

type UpsertRequest struct {
	Network     string
	Kind        providerdomain.Capability
	DiscountBps int
}

type Service interface {
	Upsert(ctx context.Context, req UpsertRequest) (*Rule, error)
	Toggle(ctx context.Context, id snowflake.ID, active bool) (*Rule, error)
	List(ctx context.Context) ([]Rule, error)

	// Resolve prices a face value. No matching active rule means full price.
	Resolve(ctx context.Context, network string, kind providerdomain.Capability, faceValue int64) (*Quote, error)
}
