package main

import (
	"os"
	"strconv"

	"github.com/boijelux-1st/doublea/internal/config"
	"github.com/boijelux-1st/doublea/internal/gateway"
	"github.com/boijelux-1st/doublea/internal/idempotency"
	"github.com/boijelux-1st/doublea/internal/logger"
	"github.com/boijelux-1st/doublea/internal/migration"
	"github.com/boijelux-1st/doublea/internal/observability/metrics"
	"github.com/boijelux-1st/doublea/internal/observability/tracing"
	"github.com/boijelux-1st/doublea/internal/payment"
	"github.com/boijelux-1st/doublea/internal/pricing"
	"github.com/boijelux-1st/doublea/internal/provider"
	"github.com/boijelux-1st/doublea/internal/seed"
	"github.com/boijelux-1st/doublea/internal/server"
	"github.com/boijelux-1st/doublea/internal/vtu"
	"github.com/boijelux-1st/doublea/internal/wallet"
	"github.com/boijelux-1st/doublea/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func newSnowflakeNode() (*snowflake.Node, error) {
	nodeID := int64(1)
	if raw := os.Getenv("SNOWFLAKE_NODE_ID"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			nodeID = parsed
		}
	}
	return snowflake.NewNode(nodeID)
}

func main() {
	fx.New(
		config.Module,
		logger.Module,
		fx.Provide(newSnowflakeNode),
		db.Module,
		migration.Module,
		idempotency.Module,
		metrics.Module,
		tracing.Module,
		provider.Module,
		gateway.Module,
		vtu.Module,
		payment.Module,
		wallet.Module,
		pricing.Module,
		seed.Module,
		server.Module,
	).Run()
}
