// Package telemetry sets up OpenTelemetry tracing and metrics exported over
// OTLP/gRPC, plus the span helpers and finance instruments used across the app.
// With telemetry disabled every helper works against the global no-op providers.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prohmpiriya/eventdesk/pkg/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/prohmpiriya/eventdesk"

// Config holds OpenTelemetry configuration
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	CollectorAddr  string
	MetricInterval time.Duration // default 15s
	SampleRatio    float64       // default 1.0
}

// FromAppConfig builds a Config from the application config
func FromAppConfig(otelCfg *config.OTelConfig, app *config.AppConfig) *Config {
	name := otelCfg.ServiceName
	if name == "" {
		name = app.Name
	}
	return &Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    name,
		ServiceVersion: app.Version,
		Environment:    app.Environment,
		CollectorAddr:  otelCfg.CollectorAddr,
		SampleRatio:    otelCfg.SampleRatio,
	}
}

// Telemetry is the process-wide tracer and meter
type Telemetry struct {
	tracer   trace.Tracer
	meter    metric.Meter
	res      *resource.Resource
	shutdown []func(context.Context) error
}

var (
	mu      sync.RWMutex
	current *Telemetry
)

func setGlobal(t *Telemetry) {
	mu.Lock()
	current = t
	mu.Unlock()
}

func get() *Telemetry {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Init installs the global tracer and meter providers. A nil or disabled
// config keeps otel's no-op providers.
func Init(ctx context.Context, cfg *Config) (*Telemetry, error) {
	if cfg == nil || !cfg.Enabled {
		t := &Telemetry{
			tracer: otel.Tracer(instrumentationName),
			meter:  otel.Meter(instrumentationName),
		}
		setGlobal(t)
		return t, nil
	}
	if cfg.MetricInterval <= 0 {
		cfg.MetricInterval = 15 * time.Second
	}
	if cfg.SampleRatio == 0 {
		cfg.SampleRatio = 1.0
	}

	res := newResource(cfg)

	spanExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.CollectorAddr),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.CollectorAddr),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("otlp metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(cfg.MetricInterval))),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	t := &Telemetry{
		tracer:   tp.Tracer(instrumentationName),
		meter:    mp.Meter(instrumentationName),
		res:      res,
		shutdown: []func(context.Context) error{tp.Shutdown, mp.Shutdown},
	}
	setGlobal(t)
	return t, nil
}

// newResource is not merged with resource.Default(): the schema URLs differ
func newResource(cfg *Config) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		attribute.String("service.namespace", "eventdesk"),
		semconv.DeploymentEnvironmentNameKey.String(cfg.Environment),
	)
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 {
		return sdktrace.NeverSample()
	}
	if ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// Shutdown flushes pending spans and metrics
func Shutdown(ctx context.Context) error {
	t := get()
	if t == nil {
		return nil
	}
	var errs []error
	for i := len(t.shutdown) - 1; i >= 0; i-- {
		errs = append(errs, t.shutdown[i](ctx))
	}
	return errors.Join(errs...)
}

// Meter returns the global meter, or otel's when Init has not run
func Meter() metric.Meter {
	if t := get(); t != nil {
		return t.meter
	}
	return otel.Meter(instrumentationName)
}

// StartSpan starts a child span. Before Init it returns ctx and its current span unchanged.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	t := get()
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, name, opts...)
}

// TraceID is the hex trace ID on ctx, or ""
func TraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// SetSpanError records err on the current span and marks it failed
func SetSpanError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func SetSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
