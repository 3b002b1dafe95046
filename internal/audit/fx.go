package audit

import (
	"github.com/keshav-const/promptlens-sub000/internal/audit/repository"
	"github.com/keshav-const/promptlens-sub000/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
