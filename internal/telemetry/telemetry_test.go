package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

func TestWithSearchPath(t *testing.T) {
	tests := []struct {
		name   string
		dsn    string
		schema string
		want   string
	}{
		{"url", "postgres://u:p@db:5432/shop?sslmode=disable", "shop", "postgres://u:p@db:5432/shop?search_path=shop&sslmode=disable"},
		{"key value", "host=db user=u sslmode=disable", "shop", "host=db user=u sslmode=disable search_path=shop"},
		{"no schema", "postgres://db/shop", "", "postgres://db/shop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WithSearchPath(tt.dsn, tt.schema)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestNewLogger_AddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "orders", "info")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	logger.InfoContext(ctx, "order created", "order_id", "o-1")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("failed to decode log line: %v", err)
	}
	if record["trace_id"] != traceID.String() || record["span_id"] != spanID.String() {
		t.Errorf("expected trace ids in %v", record)
	}
	if record["service"] != "orders" || record["order_id"] != "o-1" {
		t.Errorf("expected service and order_id in %v", record)
	}
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "orders", "warn")
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered, got %s", buf.String())
	}
}

func TestOrderMetrics(t *testing.T) {
	m, err := NewOrderMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.OrderCreated(context.Background(), "evt", 1200)
	m.CheckoutRejected(context.Background(), "slot_full")
	m.StatusOverride(context.Background())

	var nilMetrics *OrderMetrics
	nilMetrics.OrderCreated(context.Background(), "evt", 1)
}
