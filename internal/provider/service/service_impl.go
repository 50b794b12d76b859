package service

import (
	"context"
	"errors"
	"strings"

	"github.com/boijelux-1st/doublea/internal/cache"
	"github.com/boijelux-1st/doublea/internal/config"
	"github.com/boijelux-1st/doublea/internal/provider/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

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
	snapshot *cache.TTLCache[domain.Capability, []domain.ProviderConfig]
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("provider.service"),
		genID:    p.GenID,
		cfg:      p.Cfg,
		snapshot: cache.NewTTLCache[domain.Capability, []domain.ProviderConfig](),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.ProviderConfig, error) {
	name := strings.ToLower(strings.TrimSpace(req.Name))
	if name == "" || strings.TrimSpace(req.BaseURL) == "" || strings.TrimSpace(req.CredentialRef) == "" {
		return nil, domain.ErrInvalidConfig
	}
	if len(req.Capabilities) == 0 {
		return nil, domain.ErrInvalidConfig
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.ProviderConfig{}).
		Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, domain.ErrDuplicateName
	}

	record := domain.ProviderConfig{
		ID:            s.genID.Generate(),
		Name:          name,
		BaseURL:       strings.TrimRight(strings.TrimSpace(req.BaseURL), "/"),
		CredentialRef: strings.TrimSpace(req.CredentialRef),
		IsActive:      true,
		Priority:      req.Priority,
		Capabilities:  req.Capabilities,
		Metadata:      req.Metadata,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}

	s.snapshot.Purge()
	s.log.Info("provider created",
		zap.String("name", record.Name),
		zap.Int("priority", record.Priority),
	)
	return &record, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateRequest) (*domain.ProviderConfig, error) {
	record, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.BaseURL != nil {
		record.BaseURL = strings.TrimRight(strings.TrimSpace(*req.BaseURL), "/")
	}
	if req.CredentialRef != nil {
		record.CredentialRef = strings.TrimSpace(*req.CredentialRef)
	}
	if req.Priority != nil {
		record.Priority = *req.Priority
	}
	if len(req.Capabilities) > 0 {
		record.Capabilities = req.Capabilities
	}
	if record.BaseURL == "" || record.CredentialRef == "" {
		return nil, domain.ErrInvalidConfig
	}

	if err := s.db.WithContext(ctx).Save(record).Error; err != nil {
		return nil, err
	}
	s.snapshot.Purge()
	return record, nil
}

func (s *Service) Toggle(ctx context.Context, id snowflake.ID, active bool) (*domain.ProviderConfig, error) {
	record, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	record.IsActive = active
	if err := s.db.WithContext(ctx).Model(record).Update("is_active", active).Error; err != nil {
		return nil, err
	}

	s.snapshot.Purge()
	s.log.Info("provider toggled",
		zap.String("name", record.Name),
		zap.Bool("active", active),
	)
	return record, nil
}

func (s *Service) List(ctx context.Context) ([]domain.ProviderConfig, error) {
	var records []domain.ProviderConfig
	if err := s.db.WithContext(ctx).
		Order("priority asc").Order("id asc").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Service) ActiveProviders(ctx context.Context, capability domain.Capability) ([]domain.ProviderConfig, error) {
	if cached, ok := s.snapshot.Get(capability); ok {
		return cached, nil
	}

	var records []domain.ProviderConfig
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("priority asc").Order("id asc").
		Find(&records).Error; err != nil {
		return nil, err
	}

	// Capabilities live in a JSON column, so the capability filter runs here
	// rather than in SQL.
	matched := make([]domain.ProviderConfig, 0, len(records))
	for _, record := range records {
		if record.Supports(capability) {
			matched = append(matched, record)
		}
	}

	s.snapshot.Set(capability, matched, s.cfg.ConfigCacheTTL)
	return matched, nil
}

func (s *Service) find(ctx context.Context, id snowflake.ID) (*domain.ProviderConfig, error) {
	var record domain.ProviderConfig
	err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
