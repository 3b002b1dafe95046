package metrics

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"

	"github.com/keshav-const/promptlens-sub000/internal/config"
)

var Module = fx.Module("observability.metrics",
	fx.Provide(func(cfg config.Config) Config {
		return Config{
			ServiceName: "promptlens",
			Environment: cfg.Environment,
		}
	}),
	fx.Provide(func() metric.MeterProvider {
		return otel.GetMeterProvider()
	}),
	fx.Provide(NewHTTPMetrics),
	fx.Provide(EntitlementWithConfig),
)
