package observability

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/signalsfoundry/flyin/internal/config"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), config.Default().Tracing, nil)
	if err != nil {
		t.Fatalf("InitTracing(disabled) err = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown err = %v", err)
	}
	shutdown.Flush(context.Background(), nil)
}

func TestInitTracingStdoutExporter(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	cfg := config.Default().Tracing
	cfg.Enabled = true
	shutdown, err := InitTracing(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("InitTracing(stdout) err = %v", err)
	}
	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("tracer provider = %T, want *sdktrace.TracerProvider", otel.GetTracerProvider())
	}
	shutdown.Flush(context.Background(), nil)
}

func TestInitTracingUnsupportedExporter(t *testing.T) {
	cfg := config.Default().Tracing
	cfg.Enabled = true
	cfg.Exporter = "zipkin"
	if _, err := InitTracing(context.Background(), cfg, nil); !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("InitTracing(zipkin) err = %v, want ErrInvalidConfig", err)
	}
}

func TestNilTracingShutdownFlush(t *testing.T) {
	var s TracingShutdown
	s.Flush(context.Background(), nil)
}

func TestStartAndEndSpan(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := StartSpan(context.Background(), "geocode", attribute.String("query", "Oslo"))
	EndSpan(span, errors.New("upstream down"))
	_, span = StartSpan(context.Background(), "compute")
	EndSpan(span, nil)

	spans := exp.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[0].Name != "geocode" || spans[0].Status.Code != codes.Error {
		t.Fatalf("first span = %s/%v, want geocode/Error", spans[0].Name, spans[0].Status.Code)
	}
	if spans[1].Status.Code == codes.Error {
		t.Fatalf("second span marked as error")
	}
}
