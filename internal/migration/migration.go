package migration

import (
	"github.com/boijelux-1st/doublea/internal/auth"
	gatewaydomain "github.com/boijelux-1st/doublea/internal/gateway/domain"
	paymentdomain "github.com/boijelux-1st/doublea/internal/payment/domain"
	pricingdomain "github.com/boijelux-1st/doublea/internal/pricing/domain"
	providerdomain "github.com/boijelux-1st/doublea/internal/provider/domain"
	walletdomain "github.com/boijelux-1st/doublea/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Run brings the schema up to date at startup.
func Run(db *gorm.DB, log *zap.Logger) error {
	log.Info("running schema migration")
	return db.AutoMigrate(
		&providerdomain.ProviderConfig{},
		&gatewaydomain.GatewayConfig{},
		&paymentdomain.EventRecord{},
		&walletdomain.Wallet{},
		&walletdomain.Transaction{},
		&pricingdomain.Rule{},
		&auth.APIKey{},
	)
}

var Module = fx.Module("migration",
	fx.Invoke(Run),
)
