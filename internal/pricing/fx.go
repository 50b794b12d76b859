package pricing

import (
	"github.com/boijelux-1st/doublea/internal/pricing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricing",
	fx.Provide(service.NewService),
)
