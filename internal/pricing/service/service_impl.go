package service

import (
	"context"
	"errors"
	"strings"

	"github.com/boijelux-1st/doublea/internal/cache"
	"github.com/boijelux-1st/doublea/internal/config"
	"github.com/boijelux-1st/doublea/internal/pricing/domain"
	providerdomain "github.com/boijelux-1st/doublea/internal/provider/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const activeSnapshotKey = "active"

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Cfg   config.Config
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	cfg      config.Config
	snapshot *cache.TTLCache[string, []domain.Rule]
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("pricing.service"),
		genID:    p.GenID,
		cfg:      p.Cfg,
		snapshot: cache.NewTTLCache[string, []domain.Rule](),
	}
}

func (s *Service) Upsert(ctx context.Context, req domain.UpsertRequest) (*domain.Rule, error) {
	network := strings.ToLower(strings.TrimSpace(req.Network))
	if network == "" || req.DiscountBps < 0 || req.DiscountBps > 10000 {
		return nil, domain.ErrInvalidRule
	}
	if req.Kind != providerdomain.CapabilityAirtime && req.Kind != providerdomain.CapabilityData {
		return nil, domain.ErrInvalidRule
	}

	var rule domain.Rule
	err := s.db.WithContext(ctx).
		Where("network = ? AND kind = ?", network, req.Kind).
		First(&rule).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		rule = domain.Rule{
			ID:          s.genID.Generate(),
			Network:     network,
			Kind:        req.Kind,
			DiscountBps: req.DiscountBps,
			IsActive:    true,
		}
		if err := s.db.WithContext(ctx).Create(&rule).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := s.db.WithContext(ctx).Model(&rule).
			Updates(map[string]any{"discount_bps": req.DiscountBps, "is_active": true}).Error; err != nil {
			return nil, err
		}
		rule.DiscountBps = req.DiscountBps
		rule.IsActive = true
	}

	s.snapshot.Purge()
	return &rule, nil
}

func (s *Service) Toggle(ctx context.Context, id snowflake.ID, active bool) (*domain.Rule, error) {
	var rule domain.Rule
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&rule).Update("is_active", active).Error; err != nil {
		return nil, err
	}
	rule.IsActive = active
	s.snapshot.Purge()
	return &rule, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Rule, error) {
	var rules []domain.Rule
	err := s.db.WithContext(ctx).Order("network, kind").Find(&rules).Error
	return rules, err
}

func (s *Service) Resolve(ctx context.Context, network string, kind providerdomain.Capability, faceValue int64) (*domain.Quote, error) {
	if faceValue <= 0 {
		return nil, domain.ErrInvalidRule
	}
	network = strings.ToLower(strings.TrimSpace(network))

	rules, err := s.activeRules(ctx)
	if err != nil {
		return nil, err
	}

	quote := &domain.Quote{FaceValue: faceValue, Price: faceValue}
	for _, rule := range rules {
		if rule.Network == network && rule.Kind == kind {
			quote.DiscountBps = rule.DiscountBps
			quote.Price = faceValue - faceValue*int64(rule.DiscountBps)/10000
			break
		}
	}
	return quote, nil
}

func (s *Service) activeRules(ctx context.Context) ([]domain.Rule, error) {
	if rules, ok := s.snapshot.Get(activeSnapshotKey); ok {
		return rules, nil
	}

	var rules []domain.Rule
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Find(&rules).Error; err != nil {
		return nil, err
	}
	s.snapshot.Set(activeSnapshotKey, rules, s.cfg.ConfigCacheTTL)
	return rules, nil
}
