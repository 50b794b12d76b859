package seed

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/boijelux-1st/doublea/internal/auth"
	gatewaydomain "github.com/boijelux-1st/doublea/internal/gateway/domain"
	"github.com/boijelux-1st/doublea/internal/payment/adapters"
	providerdomain "github.com/boijelux-1st/doublea/internal/provider/domain"
	vtuadapters "github.com/boijelux-1st/doublea/internal/vtu/adapters"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Params pulls in the config services the seeder writes through, so the
// normal validation and cache invalidation paths apply.
type Params struct {
	fx.In

	DB        *gorm.DB
	GenID     *snowflake.Node
	Providers providerdomain.Service
	Gateways  gatewaydomain.Service
	Log       *zap.Logger
}

type providerSeed struct {
	name          string
	baseURL       string
	credentialRef string
	priority      int
	capabilities  []string
}

type gatewaySeed struct {
	name             string
	baseURL          string
	publicKeyEnv     string
	secretKeyRef     string
	webhookSecretRef string
	priority         int
	metadata         map[string]any
}

var providerSeeds = []providerSeed{
	{vtuadapters.ProviderVTUNG, "https://vtu.ng/wp-json/api/v1", "VTUNG_API_KEY", 1, []string{"airtime", "data"}},
	{vtuadapters.ProviderEasyAccess, "https://easyaccessdata.com/api", "EASYACCESS_API_KEY", 2, []string{"airtime", "data"}},
	{vtuadapters.ProviderClubKonnect, "https://www.nellobytesystems.com", "CLUBKONNECT_API_KEY", 3, []string{"airtime", "data"}},
}

func gatewaySeeds() []gatewaySeed {
	seeds := []gatewaySeed{
		{
			name:             adapters.GatewayPaystack,
			baseURL:          "https://api.paystack.co",
			publicKeyEnv:     "PAYSTACK_PUBLIC_KEY",
			secretKeyRef:     "PAYSTACK_SECRET_KEY",
			webhookSecretRef: "PAYSTACK_SECRET_KEY",
			priority:         1,
		},
		{
			name:             adapters.GatewayFlutterwave,
			baseURL:          "https://api.flutterwave.com/v3",
			publicKeyEnv:     "FLW_PUBLIC_KEY",
			secretKeyRef:     "FLW_SECRET_KEY",
			webhookSecretRef: "FLW_WEBHOOK_HASH",
			priority:         2,
		},
		{
			name:             adapters.GatewayMonnify,
			baseURL:          "https://api.monnify.com",
			publicKeyEnv:     "MONNIFY_API_KEY",
			secretKeyRef:     "MONNIFY_SECRET_KEY",
			webhookSecretRef: "MONNIFY_SECRET_KEY",
			priority:         3,
		},
	}
	if code := strings.TrimSpace(os.Getenv("MONNIFY_CONTRACT_CODE")); code != "" {
		seeds[2].metadata = map[string]any{"contract_code": code}
	}
	return seeds
}

// Run creates the default provider and gateway rows on first boot. Existing
// rows are left alone so admin edits survive restarts.
func Run(p Params) error {
	ctx := context.Background()

	for _, seed := range providerSeeds {
		_, err := p.Providers.Create(ctx, providerdomain.CreateRequest{
			Name:          seed.name,
			BaseURL:       seed.baseURL,
			CredentialRef: seed.credentialRef,
			Priority:      seed.priority,
			Capabilities:  seed.capabilities,
		})
		switch {
		case err == nil:
			p.Log.Info("seeded provider", zap.String("provider", seed.name))
		case errors.Is(err, providerdomain.ErrDuplicateName):
			// already present
		default:
			return err
		}
	}

	for _, seed := range gatewaySeeds() {
		_, err := p.Gateways.Create(ctx, gatewaydomain.CreateRequest{
			Name:             seed.name,
			BaseURL:          seed.baseURL,
			PublicKey:        strings.TrimSpace(os.Getenv(seed.publicKeyEnv)),
			SecretKeyRef:     seed.secretKeyRef,
			WebhookSecretRef: seed.webhookSecretRef,
			Priority:         seed.priority,
			Metadata:         seed.metadata,
		})
		switch {
		case err == nil:
			p.Log.Info("seeded gateway", zap.String("gateway", seed.name))
		case errors.Is(err, gatewaydomain.ErrDuplicateName):
			// already present
		default:
			return err
		}
	}

	return seedAdminKey(p)
}

// seedAdminKey registers the bootstrap admin API key from the environment,
// so a fresh deployment can reach the admin surface at all.
func seedAdminKey(p Params) error {
	key := strings.TrimSpace(os.Getenv("ADMIN_API_KEY"))
	if key == "" {
		return nil
	}

	hash := auth.HashAPIKey(key)
	var count int64
	if err := p.DB.Model(&auth.APIKey{}).Where("key_hash = ?", hash).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	record := auth.APIKey{
		ID:       p.GenID.Generate(),
		UserID:   "admin",
		Label:    "bootstrap admin",
		KeyHash:  hash,
		IsActive: true,
		IsAdmin:  true,
	}
	if err := p.DB.Create(&record).Error; err != nil {
		return err
	}
	p.Log.Info("seeded bootstrap admin api key")
	return nil
}

var Module = fx.Module("seed",
	fx.Invoke(Run),
)
