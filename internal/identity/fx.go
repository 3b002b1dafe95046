package identity

import (
	"go.uber.org/fx"

	"github.com/keshav-const/promptlens-sub000/internal/identity/service"
)

var Module = fx.Module("identity.service",
	fx.Provide(service.NewService),
)
