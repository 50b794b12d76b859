package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

var (
	ErrNotFound          = errors.New("wallet_not_found")
	ErrInsufficientFunds = errors.New("insufficient_funds")
	ErrUnknownReference  = errors.New("unknown_reference")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidPIN        = errors.New("invalid_pin")
)

// Wallet holds one user's spendable balance in naira.
type Wallet struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    string       `gorm:"uniqueIndex;size:64" json:"user_id"`
	Balance   int64        `json:"balance"`
	PINHash   string       `gorm:"size:255" json:"-"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (Wallet) TableName() string { return "wallets" }

// TxType separates money coming in from money going out.
type TxType string

const (
	TxFunding  TxType = "funding"
	TxPurchase TxType = "purchase"
	TxRefund   TxType = "refund"
)

// TxStatus is the lifecycle of one ledger entry.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxCompleted TxStatus = "completed"
	TxFailed    TxStatus = "failed"
	TxRefunded  TxStatus = "refunded"
)

// Transaction is one ledger entry. Funding entries are created pending at
// checkout initialization and completed by the webhook dispatcher; purchase
// entries are created completed at debit time.
type Transaction struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	WalletID  snowflake.ID      `gorm:"index" json:"wallet_id"`
	Reference string            `gorm:"uniqueIndex;size:128" json:"reference"`
	Type      TxType            `gorm:"size:16" json:"type"`
	Status    TxStatus          `gorm:"size:16" json:"status"`
	Amount    int64             `json:"amount"`
	Gateway   string            `gorm:"size:64" json:"gateway,omitempty"`
	Provider  string            `gorm:"size:64" json:"provider,omitempty"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (Transaction) TableName() string { return "wallet_transactions" }

type Service interface {
	// Ensure returns the user's wallet, creating an empty one on first use.
	Ensure(ctx context.Context, userID string) (*Wallet, error)
	Balance(ctx context.Context, userID string) (int64, error)
	Transactions(ctx context.Context, userID string, limit int) ([]Transaction, error)

	// BeginFunding opens a pending funding entry and mints its reference.
	BeginFunding(ctx context.Context, userID string, amount int64) (*Transaction, error)
	// CancelFunding marks a pending funding entry failed when checkout
	// initialization did not go through.
	CancelFunding(ctx context.Context, reference string) error

	// DebitForPurchase atomically checks the balance and writes a completed
	// purchase entry.
	DebitForPurchase(ctx context.Context, userID string, amount int64, reference, provider string, metadata map[string]any) (*Transaction, error)
	// RefundPurchase returns a debited amount after a failed delivery.
	RefundPurchase(ctx context.Context, reference string) error
	// RecordDelivery attaches the fulfilling provider to a purchase entry
	// once the upstream confirms.
	RecordDelivery(ctx context.Context, reference, provider string) error

	SetPIN(ctx context.Context, userID, pin string) error
	VerifyPIN(ctx context.Context, userID, pin string) error
}
