package payment

import (
	"go.uber.org/fx"

	"github.com/keshav-const/promptlens-sub000/internal/payment/repository"
	"github.com/keshav-const/promptlens-sub000/internal/payment/service"
)

var Module = fx.Module("payment.webhook",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
