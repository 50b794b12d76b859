package wallet

import (
	paymentdomain "github.com/boijelux-1st/doublea/internal/payment/domain"
	"github.com/boijelux-1st/doublea/internal/wallet/domain"
	"github.com/boijelux-1st/doublea/internal/wallet/service"
	"go.uber.org/fx"
)

var Module = fx.Module("wallet",
	fx.Provide(
		service.NewService,
		func(s *service.Service) domain.Service { return s },
		func(s *service.Service) paymentdomain.CompletionHandler { return s },
		func(s *service.Service) paymentdomain.ReferenceStore { return s },
	),
)
