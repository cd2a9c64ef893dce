// Package telemetry installs an OpenTelemetry tracer provider exporting over
// OTLP/HTTP, configured from the environment.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/amp-labs/fsm/logger"
	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// kubernetesCollector is used when running in a cluster and no endpoint is set.
const kubernetesCollector = "http://opentelemetry-collector.opentelemetry.svc.cluster.local:4318"

var (
	mu             sync.Mutex
	tracerProvider *sdktrace.TracerProvider
)

// Config holds the OpenTelemetry configuration.
type Config struct {
	Enabled        bool          `env:"OTEL_ENABLED"                      envDefault:"false"`
	ServiceName    string        `env:"OTEL_SERVICE_NAME"`
	ServiceVersion string        `env:"OTEL_SERVICE_VERSION"              envDefault:"1.0.0"`
	Environment    string        `env:"ENVIRONMENT"                       envDefault:"local"`
	Endpoint       string        `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`
	Timeout        time.Duration `env:"OTEL_EXPORTER_OTLP_TRACES_TIMEOUT" envDefault:"5s"`
}

// LoadConfigFromEnv reads the configuration. The service name defaults to
// the logging subsystem of ctx.
func LoadConfigFromEnv(ctx context.Context) (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing telemetry config: %w", err)
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = logger.GetSubsystem(ctx)
	}

	if cfg.Endpoint == "" && os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		cfg.Endpoint = kubernetesCollector
	}

	return &cfg, nil
}

// Initialize sets up tracing. It is a no-op when tracing is disabled or no
// endpoint is known.
func Initialize(ctx context.Context, config *Config) error {
	log := logger.Get(ctx)

	if !config.Enabled {
		log.DebugContext(ctx, "OpenTelemetry tracing is disabled")

		return nil
	}

	if config.Endpoint == "" {
		log.WarnContext(ctx, "OpenTelemetry endpoint not configured, tracing will be disabled")

		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(config.Endpoint),
		otlptracehttp.WithTimeout(config.Timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	mu.Lock()
	tracerProvider = provider
	mu.Unlock()

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.InfoContext(ctx, "OpenTelemetry tracing initialized",
		"service", config.ServiceName,
		"version", config.ServiceVersion,
		"environment", config.Environment,
		"endpoint", config.Endpoint,
	)

	return nil
}

// Shutdown flushes and stops the tracer provider installed by Initialize.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	provider := tracerProvider
	tracerProvider = nil
	mu.Unlock()

	if provider == nil {
		return nil
	}

	logger.Get(ctx).InfoContext(ctx, "Shutting down OpenTelemetry tracer provider")

	return provider.Shutdown(ctx)
}
