package vtu

import (
	"github.com/boijelux-1st/doublea/internal/vtu/adapters"
	"github.com/boijelux-1st/doublea/internal/vtu/orchestrator"
	"go.uber.org/fx"
)

var Module = fx.Module("vtu",
	fx.Provide(adapters.Default),
	fx.Provide(orchestrator.New),
)
