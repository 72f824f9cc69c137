// Package tracing настраивает глобальный OpenTelemetry TracerProvider с экспортом в Jaeger.
package tracing

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ShutdownFunc сбрасывает накопленные span и останавливает экспорт.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// InitTracerProvider регистрирует глобальный provider и propagator.
// Пустой endpoint оставляет no-op provider, но propagator всё равно ставится:
// traceparent из входящих запросов пробрасывается дальше.
func InitTracerProvider(serviceName, jaegerEndpoint string, logger *log.Entry) (ShutdownFunc, error) {
	if logger == nil {
		logger = log.WithField("component", "tracing")
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	if jaegerEndpoint == "" {
		logger.Debug("jaeger endpoint не задан, трассировка выключена")
		return noopShutdown, nil
	}

	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(jaegerEndpoint)))
	if err != nil {
		return nil, fmt.Errorf("create jaeger exporter: %w", err)
	}

	tp := NewProvider(serviceName, exporter)
	otel.SetTracerProvider(tp)

	logger.WithFields(log.Fields{
		"service":  serviceName,
		"endpoint": jaegerEndpoint,
	}).Info("tracing initialized")
	return tp.Shutdown, nil
}

// NewProvider собирает provider с batch-экспортом и атрибутом service.name.
func NewProvider(serviceName string, exporter sdktrace.SpanExporter) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
	)
}
