package provider

import (
	"github.com/boijelux-1st/doublea/internal/provider/service"
	"go.uber.org/fx"
)

var Module = fx.Module("provider.service",
	fx.Provide(service.NewService),
)
