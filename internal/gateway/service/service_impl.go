package service

import (
	"context"
	"errors"
	"strings"

	"github.com/boijelux-1st/doublea/internal/cache"
	"github.com/boijelux-1st/doublea/internal/config"
	"github.com/boijelux-1st/doublea/internal/gateway/domain"
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
	snapshot *cache.TTLCache[string, []domain.GatewayConfig]
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("gateway.service"),
		genID:    p.GenID,
		cfg:      p.Cfg,
		snapshot: cache.NewTTLCache[string, []domain.GatewayConfig](),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.GatewayConfig, error) {
	name := domain.NormalizeName(req.Name)
	if name == "" || strings.TrimSpace(req.BaseURL) == "" || strings.TrimSpace(req.SecretKeyRef) == "" {
		return nil, domain.ErrInvalidConfig
	}
	mode := req.Mode
	if mode == "" {
		mode = domain.ModeTest
	}
	if mode != domain.ModeTest && mode != domain.ModeLive {
		return nil, domain.ErrInvalidConfig
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.GatewayConfig{}).
		Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, domain.ErrDuplicateName
	}

	record := domain.GatewayConfig{
		ID:               s.genID.Generate(),
		Name:             name,
		BaseURL:          strings.TrimRight(strings.TrimSpace(req.BaseURL), "/"),
		PublicKey:        strings.TrimSpace(req.PublicKey),
		SecretKeyRef:     strings.TrimSpace(req.SecretKeyRef),
		WebhookSecretRef: strings.TrimSpace(req.WebhookSecretRef),
		IsActive:         true,
		Priority:         req.Priority,
		Mode:             mode,
		Metadata:         req.Metadata,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}

	s.snapshot.Purge()
	s.log.Info("gateway created",
		zap.String("name", record.Name),
		zap.String("mode", string(record.Mode)),
	)
	return &record, nil
}

func (s *Service) Toggle(ctx context.Context, id snowflake.ID, active bool) (*domain.GatewayConfig, error) {
	var record domain.GatewayConfig
	err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	record.IsActive = active
	if err := s.db.WithContext(ctx).Model(&record).Update("is_active", active).Error; err != nil {
		return nil, err
	}

	s.snapshot.Purge()
	s.log.Info("gateway toggled",
		zap.String("name", record.Name),
		zap.Bool("active", active),
	)
	return &record, nil
}

func (s *Service) List(ctx context.Context) ([]domain.GatewayConfig, error) {
	var records []domain.GatewayConfig
	if err := s.db.WithContext(ctx).
		Order("priority asc").Order("id asc").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Service) ActiveGateways(ctx context.Context) ([]domain.GatewayConfig, error) {
	if cached, ok := s.snapshot.Get(activeSnapshotKey); ok {
		return cached, nil
	}

	var records []domain.GatewayConfig
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("priority asc").Order("id asc").
		Find(&records).Error; err != nil {
		return nil, err
	}

	s.snapshot.Set(activeSnapshotKey, records, s.cfg.ConfigCacheTTL)
	return records, nil
}

func (s *Service) FindActive(ctx context.Context, name string) (*domain.GatewayConfig, error) {
	name = domain.NormalizeName(name)
	if name == "" {
		return nil, domain.ErrNotFound
	}
	active, err := s.ActiveGateways(ctx)
	if err != nil {
		return nil, err
	}
	for i := range active {
		if active[i].Name == name {
			return &active[i], nil
		}
	}
	return nil, domain.ErrNotFound
}
