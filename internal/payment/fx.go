package payment

import (
	"github.com/boijelux-1st/doublea/internal/payment/adapters"
	"github.com/boijelux-1st/doublea/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(
		adapters.Default,
		service.NewService,
	),
)
