package quota

import (
	"go.uber.org/fx"

	"github.com/keshav-const/promptlens-sub000/internal/quota/service"
)

var Module = fx.Module("quota.service",
	fx.Provide(service.NewService),
)
