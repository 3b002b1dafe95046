package tracing

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"

	"github.com/keshav-const/promptlens-sub000/internal/config"
)

// Module wires the tracer provider from process configuration.
var Module = fx.Module("observability.tracing",
	fx.Provide(func(cfg config.Config) Config {
		return Config{
			Enabled:          cfg.TracingEnabled,
			ServiceName:      "promptlens",
			ServiceVersion:   "dev",
			Environment:      cfg.Environment,
			ExporterEndpoint: cfg.TracingEndpoint,
			ExporterProtocol: cfg.TracingProtocol,
			SamplingRatio:    cfg.SamplingRatio,
		}
	}),
	fx.Provide(NewProvider),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
