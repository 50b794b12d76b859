package gateway

import (
	"github.com/boijelux-1st/doublea/internal/gateway/service"
	"go.uber.org/fx"
)

var Module = fx.Module("gateway.service",
	fx.Provide(service.NewService),
)
