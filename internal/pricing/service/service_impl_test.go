package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boijelux-1st/doublea/internal/config"
	"github.com/boijelux-1st/doublea/internal/pricing/domain"
	providerdomain "github.com/boijelux-1st/doublea/internal/provider/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Rule{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return NewService(Params{
		DB: db, Log: zap.NewNop(), GenID: node,
		Cfg: config.Config{ConfigCacheTTL: time.Millisecond},
	})
}

func TestResolveAppliesDiscount(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if _, err := s.Upsert(ctx, domain.UpsertRequest{
		Network: "MTN", Kind: providerdomain.CapabilityAirtime, DiscountBps: 150,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	quote, err := s.Resolve(ctx, "mtn", providerdomain.CapabilityAirtime, 1000)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if quote.Price != 985 || quote.DiscountBps != 150 {
		t.Fatalf("expected 985 at 150bps, got %+v", quote)
	}
}

func TestResolveWithoutRuleIsFullPrice(t *testing.T) {
	s := newTestService(t)
	quote, err := s.Resolve(context.Background(), "glo", providerdomain.CapabilityData, 500)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if quote.Price != 500 || quote.DiscountBps != 0 {
		t.Fatalf("expected full price, got %+v", quote)
	}
}

func TestUpsertReplacesExistingRule(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	first, err := s.Upsert(ctx, domain.UpsertRequest{
		Network: "mtn", Kind: providerdomain.CapabilityData, DiscountBps: 100,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := s.Upsert(ctx, domain.UpsertRequest{
		Network: "mtn", Kind: providerdomain.CapabilityData, DiscountBps: 300,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if first.ID != second.ID {
		t.Error("upsert must reuse the existing row for the same network/kind")
	}

	rules, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rules) != 1 || rules[0].DiscountBps != 300 {
		t.Fatalf("expected one rule at 300bps, got %+v", rules)
	}
}

func TestToggleDisablesRule(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	rule, err := s.Upsert(ctx, domain.UpsertRequest{
		Network: "airtel", Kind: providerdomain.CapabilityAirtime, DiscountBps: 200,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := s.Toggle(ctx, rule.ID, false); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	// Give the config snapshot time to lapse.
	time.Sleep(2 * time.Millisecond)

	quote, err := s.Resolve(ctx, "airtel", providerdomain.CapabilityAirtime, 1000)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if quote.Price != 1000 {
		t.Fatalf("disabled rule must not discount, got %+v", quote)
	}
}

func TestUpsertValidation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	cases := []domain.UpsertRequest{
		{Network: "", Kind: providerdomain.CapabilityAirtime, DiscountBps: 100},
		{Network: "mtn", Kind: "voice", DiscountBps: 100},
		{Network: "mtn", Kind: providerdomain.CapabilityAirtime, DiscountBps: -1},
		{Network: "mtn", Kind: providerdomain.CapabilityAirtime, DiscountBps: 10001},
	}
	for _, req := range cases {
		if _, err := s.Upsert(ctx, req); !errors.Is(err, domain.ErrInvalidRule) {
			t.Errorf("expected ErrInvalidRule for %+v, got %v", req, err)
		}
	}
}
