package observability

import (
	"context"
	"database/sql"
	"fmt"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace/noop"
)

// ServiceName is reported when Options leaves it empty.
const ServiceName = "slackcat"

// Resource attributes identifying one bot process. The bot name is also a
// constant label on every exported series.
const (
	BotNameKey = attribute.Key("slackcat.bot.name")
	EngineKey  = attribute.Key("slackcat.engine")
)

// Options describes the process being instrumented.
type Options struct {
	ServiceName    string
	ServiceVersion string
	BotName        string
	Engine         string
}

// Telemetry owns the meter provider and the Prometheus registry it exports to.
type Telemetry struct {
	Metrics  *Metrics
	Gatherer promclient.Gatherer

	registry *promclient.Registry
	provider *sdkmetric.MeterProvider
}

// NewTelemetry builds a meter provider that exports to a private Prometheus
// registry, alongside Go runtime and process collectors. Tracing is a no-op.
func NewTelemetry(opts Options) (*Telemetry, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = ServiceName
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(
		semconv.ServiceNameKey.String(opts.ServiceName),
		semconv.ServiceVersionKey.String(opts.ServiceVersion),
		BotNameKey.String(opts.BotName),
		EngineKey.String(opts.Engine),
	))
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	registry := promclient.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("registering go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("registering process collector: %w", err)
	}

	exporter, err := prometheus.New(
		prometheus.WithRegisterer(registry),
		prometheus.WithResourceAsConstantLabels(attribute.NewAllowKeysFilter(BotNameKey)),
	)
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)
	otel.SetTracerProvider(noop.NewTracerProvider())

	metrics, err := NewMetrics(provider.Meter(opts.ServiceName))
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, fmt.Errorf("creating metrics: %w", err)
	}

	return &Telemetry{
		Metrics:  metrics,
		Gatherer: registry,
		registry: registry,
		provider: provider,
	}, nil
}

// RegisterDB exports connection pool statistics of db under dbName.
func (t *Telemetry) RegisterDB(db *sql.DB, dbName string) error {
	if err := t.registry.Register(collectors.NewDBStatsCollector(db, dbName)); err != nil {
		return fmt.Errorf("registering %s pool stats: %w", dbName, err)
	}
	return nil
}

// Shutdown flushes and stops the meter provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down meter provider: %w", err)
	}
	return nil
}
