package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func resetGlobals(t *testing.T) {
	t.Cleanup(func() {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
	})
}

func TestInit_None(t *testing.T) {
	resetGlobals(t)
	shutdown, err := Init(context.Background(), Config{TraceExporter: "none", MetricExporter: "none"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_Stdout(t *testing.T) {
	resetGlobals(t)
	var buf bytes.Buffer
	ctx := context.Background()
	shutdown, err := Init(ctx, Config{
		ServiceName:    "gsta-test",
		TraceExporter:  "stdout",
		MetricExporter: "stdout",
		Writer:         &buf,
	})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(ctx, "FindArrivals")
	span.End()
	counter, err := otel.Meter("test").Int64Counter("search_tags_created_total")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	require.NoError(t, shutdown(ctx))
	out := buf.String()
	assert.Contains(t, out, "FindArrivals")
	assert.Contains(t, out, "search_tags_created_total")
	assert.Contains(t, out, "gsta-test")
}

func TestInit_UnknownExporter(t *testing.T) {
	resetGlobals(t)
	tests := []struct {
		name string
		cfg  Config
	}{
		{"trace", Config{TraceExporter: "otlp"}},
		{"metric", Config{MetricExporter: "prometheus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Init(context.Background(), tt.cfg)
			assert.ErrorIs(t, err, ErrUnknownExporter)
		})
	}
}
