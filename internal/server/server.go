package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/boijelux-1st/doublea/internal/config"
	gatewaydomain "github.com/boijelux-1st/doublea/internal/gateway/domain"
	"github.com/boijelux-1st/doublea/internal/idempotency"
	"github.com/boijelux-1st/doublea/internal/observability/metrics"
	paymentdomain "github.com/boijelux-1st/doublea/internal/payment/domain"
	pricingdomain "github.com/boijelux-1st/doublea/internal/pricing/domain"
	providerdomain "github.com/boijelux-1st/doublea/internal/provider/domain"
	"github.com/boijelux-1st/doublea/internal/vtu/orchestrator"
	walletdomain "github.com/boijelux-1st/doublea/internal/wallet/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Cfg       config.Config
	Log       *zap.Logger
	DB        *gorm.DB
	GenID     *snowflake.Node
	Providers providerdomain.Service
	Gateways  gatewaydomain.Service
	Pricing   pricingdomain.Service
	Wallets   walletdomain.Service
	Payments  paymentdomain.Service
	VTU       *orchestrator.Orchestrator
	Idem      idempotency.Store
	Metrics   *metrics.HTTPMetrics `optional:"true"`
}

type Server struct {
	cfg       config.Config
	log       *zap.Logger
	db        *gorm.DB
	genID     *snowflake.Node
	providers providerdomain.Service
	gateways  gatewaydomain.Service
	pricing   pricingdomain.Service
	wallets   walletdomain.Service
	payments  paymentdomain.Service
	vtu       *orchestrator.Orchestrator
	idem      idempotency.Store
	metrics   *metrics.HTTPMetrics
	limiter   *clientLimiter
}

func NewServer(p Params) *Server {
	return &Server{
		cfg:       p.Cfg,
		log:       p.Log.Named("server"),
		db:        p.DB,
		genID:     p.GenID,
		providers: p.Providers,
		gateways:  p.Gateways,
		pricing:   p.Pricing,
		wallets:   p.Wallets,
		payments:  p.Payments,
		vtu:       p.VTU,
		idem:      p.Idem,
		metrics:   p.Metrics,
		limiter:   newClientLimiter(60, time.Minute),
	}
}

func (s *Server) Router() *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(s.requestLogger())
	if s.metrics != nil {
		engine.Use(metrics.GinMiddleware(s.metrics))
	}

	engine.GET("/healthz", s.Health)

	// Webhooks authenticate with signatures, not API keys.
	engine.POST("/webhooks/payments", s.PaymentWebhook)

	v1 := engine.Group("/v1")
	v1.Use(s.RateLimit(), s.APIKeyRequired())
	{
		v1.POST("/purchases", s.Purchase)
		v1.GET("/pricing/quote", s.Quote)

		v1.GET("/wallet", s.WalletBalance)
		v1.GET("/wallet/transactions", s.WalletTransactions)
		v1.PUT("/wallet/pin", s.SetWalletPIN)
		v1.POST("/wallet/fund", s.FundWallet)
		v1.GET("/payments/:reference", s.VerifyPayment)
	}

	admin := engine.Group("/admin")
	admin.Use(s.RateLimit(), s.AdminRequired())
	{
		admin.POST("/providers", s.CreateProvider)
		admin.GET("/providers", s.ListProviders)
		admin.PATCH("/providers/:id", s.UpdateProvider)
		admin.POST("/providers/:id/toggle", s.ToggleProvider)

		admin.POST("/gateways", s.CreateGateway)
		admin.GET("/gateways", s.ListGateways)
		admin.POST("/gateways/:id/toggle", s.ToggleGateway)

		admin.PUT("/pricing", s.UpsertPricingRule)
		admin.GET("/pricing", s.ListPricingRules)
		admin.POST("/pricing/:id/toggle", s.TogglePricingRule)

		admin.POST("/api-keys", s.CreateAPIKey)
	}

	return engine
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": s.cfg.ServiceName})
}

// RunHTTP binds the router to the process lifecycle.
func RunHTTP(lc fx.Lifecycle, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Module("server",
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)
