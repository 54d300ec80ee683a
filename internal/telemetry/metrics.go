package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// InitMeterProvider initializes the Prometheus exporter and MeterProvider and
// starts Go runtime metrics. It returns an http.Handler for the /metrics
// endpoint and a shutdown function.
func InitMeterProvider(serviceName, serviceVersion string) (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	mp := metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithResource(newResource(serviceName, serviceVersion)),
	)
	otel.SetMeterProvider(mp)

	if err := runtime.Start(runtime.WithMeterProvider(mp)); err != nil {
		_ = mp.Shutdown(context.Background())
		return nil, nil, err
	}

	return promhttp.Handler(), mp.Shutdown, nil
}

// OrderMetrics are the business instruments of the orders service.
// A nil *OrderMetrics records nothing.
type OrderMetrics struct {
	created    otelmetric.Int64Counter
	totals     otelmetric.Int64Histogram
	rejections otelmetric.Int64Counter
	overrides  otelmetric.Int64Counter
}

func NewOrderMetrics(meter otelmetric.Meter) (*OrderMetrics, error) {
	created, err := meter.Int64Counter("orders_created_total",
		otelmetric.WithDescription("Orders accepted at checkout"))
	if err != nil {
		return nil, err
	}

	totals, err := meter.Int64Histogram("order_total_cents",
		otelmetric.WithDescription("Order totals after discounts and delivery fee"),
		otelmetric.WithUnit("{cent}"),
		otelmetric.WithExplicitBucketBoundaries(1000, 2500, 5000, 10000, 20000, 50000, 100000))
	if err != nil {
		return nil, err
	}

	rejections, err := meter.Int64Counter("checkout_rejections_total",
		otelmetric.WithDescription("Checkouts refused by validation, by reason"))
	if err != nil {
		return nil, err
	}

	overrides, err := meter.Int64Counter("status_overrides_total",
		otelmetric.WithDescription("Status changes forced past a full slot"))
	if err != nil {
		return nil, err
	}

	return &OrderMetrics{created: created, totals: totals, rejections: rejections, overrides: overrides}, nil
}

func (m *OrderMetrics) OrderCreated(ctx context.Context, eventID string, totalCents int64) {
	if m == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("event_id", eventID))
	m.created.Add(ctx, 1, attrs)
	m.totals.Record(ctx, totalCents, attrs)
}

func (m *OrderMetrics) CheckoutRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.rejections.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("reason", reason)))
}

func (m *OrderMetrics) StatusOverride(ctx context.Context) {
	if m == nil {
		return
	}
	m.overrides.Add(ctx, 1)
}
