package subscription

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/keshav-const/promptlens-sub000/internal/config"
	"github.com/keshav-const/promptlens-sub000/internal/payment/provider"
	"github.com/keshav-const/promptlens-sub000/internal/subscription/service"
)

var Module = fx.Module("subscription.service",
	fx.Provide(func(cfg config.Config, log *zap.Logger) provider.Client {
		return provider.NewHTTPClient(cfg, log)
	}),
	fx.Provide(service.NewService),
)
