package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boijelux-1st/doublea/internal/auth"
	paymentdomain "github.com/boijelux-1st/doublea/internal/payment/domain"
	"github.com/boijelux-1st/doublea/internal/wallet/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("wallet.service"),
		genID: p.GenID,
	}
}

// compile-time checks: the wallet is the payment module's completion sink
// and reference directory.
var (
	_ domain.Service                  = (*Service)(nil)
	_ paymentdomain.CompletionHandler = (*Service)(nil)
	_ paymentdomain.ReferenceStore    = (*Service)(nil)
)

func (s *Service) Ensure(ctx context.Context, userID string) (*domain.Wallet, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrNotFound
	}

	var wallet domain.Wallet
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err == nil {
		return &wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	wallet = domain.Wallet{ID: s.genID.Generate(), UserID: userID}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&wallet).Error; err != nil {
		return nil, err
	}
	// Re-read in case a concurrent Ensure won the insert.
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	wallet, err := s.find(ctx, userID)
	if err != nil {
		return 0, err
	}
	return wallet.Balance, nil
}

func (s *Service) Transactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	wallet, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var entries []domain.Transaction
	err = s.db.WithContext(ctx).
		Where("wallet_id = ?", wallet.ID).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (s *Service) BeginFunding(ctx context.Context, userID string, amount int64) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	wallet, err := s.Ensure(ctx, userID)
	if err != nil {
		return nil, err
	}

	id := s.genID.Generate()
	entry := domain.Transaction{
		ID:        id,
		WalletID:  wallet.ID,
		Reference: fmt.Sprintf("fund_%s", id),
		Type:      domain.TxFunding,
		Status:    domain.TxPending,
		Amount:    amount,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Service) CancelFunding(ctx context.Context, reference string) error {
	result := s.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("reference = ? AND status = ?", reference, domain.TxPending).
		Update("status", domain.TxFailed)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrUnknownReference
	}
	return nil
}

// RecordReference remembers which gateway a funding reference went through,
// once checkout initialization succeeds.
func (s *Service) RecordReference(ctx context.Context, reference, gateway string, amount int64) error {
	result := s.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("reference = ?", reference).
		Update("gateway", gateway)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrUnknownReference
	}
	return nil
}

func (s *Service) GatewayForReference(ctx context.Context, reference string) (string, error) {
	var entry domain.Transaction
	err := s.db.WithContext(ctx).Where("reference = ?", reference).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", domain.ErrUnknownReference
	}
	if err != nil {
		return "", err
	}
	return entry.Gateway, nil
}

// PaymentCompleted credits the wallet for a verified funding success. Safe
// to call more than once per reference.
func (s *Service) PaymentCompleted(ctx context.Context, completed paymentdomain.CompletedPayment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry domain.Transaction
		err := tx.Where("reference = ?", completed.Reference).First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrUnknownReference, completed.Reference)
		}
		if err != nil {
			return err
		}
		if entry.Status == domain.TxCompleted {
			return nil
		}

		// The gateway's settled amount wins over what we asked for.
		amount := completed.Amount
		if amount != entry.Amount {
			s.log.Warn("settled amount differs from requested",
				zap.String("reference", completed.Reference),
				zap.Int64("requested", entry.Amount),
				zap.Int64("settled", amount),
			)
		}

		if err := tx.Model(&domain.Transaction{}).Where("id = ?", entry.ID).
			Updates(map[string]any{
				"status":  domain.TxCompleted,
				"amount":  amount,
				"gateway": completed.Gateway,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Wallet{}).Where("id = ?", entry.WalletID).
			Update("balance", gorm.Expr("balance + ?", amount)).Error
	})
}

func (s *Service) DebitForPurchase(ctx context.Context, userID string, amount int64, reference, provider string, metadata map[string]any) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	var entry domain.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallet, err := s.findTx(tx, userID)
		if err != nil {
			return err
		}

		// Guarded decrement: the WHERE clause is the overdraft check, so two
		// concurrent debits cannot both pass a stale balance read.
		result := tx.Model(&domain.Wallet{}).
			Where("id = ? AND balance >= ?", wallet.ID, amount).
			Update("balance", gorm.Expr("balance - ?", amount))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrInsufficientFunds
		}

		entry = domain.Transaction{
			ID:        s.genID.Generate(),
			WalletID:  wallet.ID,
			Reference: reference,
			Type:      domain.TxPurchase,
			Status:    domain.TxCompleted,
			Amount:    amount,
			Provider:  provider,
			Metadata:  metadata,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Service) RefundPurchase(ctx context.Context, reference string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry domain.Transaction
		err := tx.Where("reference = ? AND type = ?", reference, domain.TxPurchase).
			First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrUnknownReference, reference)
		}
		if err != nil {
			return err
		}
		if entry.Status == domain.TxRefunded {
			return nil
		}

		if err := tx.Model(&domain.Transaction{}).Where("id = ?", entry.ID).
			Update("status", domain.TxRefunded).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Wallet{}).Where("id = ?", entry.WalletID).
			Update("balance", gorm.Expr("balance + ?", entry.Amount)).Error
	})
}

func (s *Service) RecordDelivery(ctx context.Context, reference, provider string) error {
	result := s.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("reference = ? AND type = ?", reference, domain.TxPurchase).
		Update("provider", provider)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrUnknownReference
	}
	return nil
}

func (s *Service) SetPIN(ctx context.Context, userID, pin string) error {
	if len(pin) < 4 {
		return domain.ErrInvalidPIN
	}
	wallet, err := s.Ensure(ctx, userID)
	if err != nil {
		return err
	}
	encoded, err := auth.HashPassword(pin)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&domain.Wallet{}).
		Where("id = ?", wallet.ID).
		Update("pin_hash", encoded).Error
}

func (s *Service) VerifyPIN(ctx context.Context, userID, pin string) error {
	wallet, err := s.find(ctx, userID)
	if err != nil {
		return err
	}
	if wallet.PINHash == "" || !auth.VerifyPassword(pin, wallet.PINHash) {
		return domain.ErrInvalidPIN
	}
	return nil
}

func (s *Service) find(ctx context.Context, userID string) (*domain.Wallet, error) {
	return s.findTx(s.db.WithContext(ctx), userID)
}

func (s *Service) findTx(tx *gorm.DB, userID string) (*domain.Wallet, error) {
	var wallet domain.Wallet
	err := tx.Where("user_id = ?", strings.TrimSpace(userID)).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}
