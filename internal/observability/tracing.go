// Package observability provides OpenTelemetry tracing for analysis runs.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppiankov/originality/internal/model"
)

// TracerName is the instrumentation name used for all spans
const TracerName = "github.com/ppiankov/originality"

// ServiceVersion is reported as the service.version resource attribute
const ServiceVersion = "0.1.0"

// Pipeline step names
const (
	StepFetch       = "fetch"
	StepExtract     = "extract"
	StepCode        = "code_similarity"
	StepCodeSearch  = "code_search"
	StepSummary     = "idea_summary"
	StepIdea        = "idea_check"
	StepCredibility = "credibility"
	StepScore       = "score"
	StepReport      = "report"
)

// TracerProvider wraps the OpenTelemetry tracer provider
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing initializes OpenTelemetry tracing.
// Returns a no-op tracer if OTLPEndpoint is empty.
func InitTracing(ctx context.Context, cfg model.TracingConfig) (*TracerProvider, error) {
	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{
			tracer: otel.Tracer(TracerName),
		}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "originality"
	}
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(ServiceVersion),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(cfg.SampleRate)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer(TracerName),
	}, nil
}

// Sampler maps a sample rate to a sampler
func Sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Shutdown flushes and stops the tracer provider
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}

// Tracer returns the underlying tracer
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// StartAnalysisSpan starts the root span of one analysis run
func StartAnalysisSpan(ctx context.Context, repoURL string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "analysis",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("originality.repo_url", repoURL)),
	)
}

// StartStepSpan starts a span for one pipeline step
func StartStepSpan(ctx context.Context, step string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "step."+step,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("originality.step", step)),
	)
}

// RecordScore records the final score on a span
func RecordScore(span trace.Span, score float64, verdict string) {
	span.SetAttributes(
		attribute.Float64("originality.score", score),
		attribute.String("originality.verdict", verdict),
	)
}

// RecordFallback marks a step whose signal was replaced by its fallback
func RecordFallback(span trace.Span, reason string) {
	span.SetAttributes(
		attribute.Bool("originality.fallback", true),
		attribute.String("originality.fallback_reason", reason),
	)
}

// RecordError records an error on a span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
