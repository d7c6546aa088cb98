package otel

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/detectors/aws/ecs"
	otelxray "go.opentelemetry.io/contrib/propagators/aws/xray"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

// SetupTracer installs a global tracer provider exporting to the local
// OTLP collector with X-Ray compatible ids. The returned func flushes and
// stops the provider.
func SetupTracer(ctx context.Context, svcName string) (func(context.Context) error, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithInsecure(), otlptracegrpc.WithDialOption(grpc.WithBlock()))
	if err != nil {
		return nil, fmt.Errorf("create otel trace exporter: %w", err)
	}

	r := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceNameKey.String(svcName))
	if ecsRes, err := ecs.NewResourceDetector().Detect(ctx); err != nil {
		log.WithField("err", err).Debug("not running on ECS, skipping resource detection")
	} else if merged, err := resource.Merge(r, ecsRes); err == nil {
		r = merged
	}

	idg := otelxray.NewIDGenerator()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(r),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithIDGenerator(idg),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(otelxray.Propagator{})
	return tp.Shutdown, nil
}

// XRayTraceID formats the span's trace id the way X-Ray prints it.
func XRayTraceID(span trace.Span) string {
	id := span.SpanContext().TraceID().String()
	if len(id) < 9 {
		return id
	}

	return fmt.Sprintf("1-%s-%s", id[:8], id[8:])
}
