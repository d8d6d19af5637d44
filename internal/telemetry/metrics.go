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
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// InitMeterProvider initializes the Prometheus exporter and MeterProvider and
// starts Go runtime metrics.
// It returns an http.Handler for the /metrics endpoint and a shutdown function.
func InitMeterProvider(serviceName, serviceVersion string) (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	)

	mp := metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	if err := runtime.Start(runtime.WithMeterProvider(mp)); err != nil {
		return nil, nil, err
	}

	return promhttp.Handler(), mp.Shutdown, nil
}

// Metrics are the business instruments shared by the services. The zero
// value is not usable; build one with NewMetrics.
type Metrics struct {
	checkoutCompleted   otelmetric.Int64Counter
	checkoutFailed      otelmetric.Int64Counter
	reservationConflict otelmetric.Int64Counter
	publishFailures     otelmetric.Int64Counter
	statusTransitions   otelmetric.Int64Counter
}

// NewMetrics registers the instruments on the global MeterProvider. Before
// InitMeterProvider runs that provider is a no-op, which tests rely on.
func NewMetrics() (*Metrics, error) {
	return NewMetricsFrom(otel.GetMeterProvider())
}

// NewMetricsFrom registers the instruments on provider.
func NewMetricsFrom(provider otelmetric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter("bookstore-orderflow")

	var (
		m   Metrics
		err error
	)
	if m.checkoutCompleted, err = meter.Int64Counter("checkout.completed",
		otelmetric.WithDescription("Orders created from a cart")); err != nil {
		return nil, err
	}
	if m.checkoutFailed, err = meter.Int64Counter("checkout.failed",
		otelmetric.WithDescription("Checkouts rolled back, by error kind")); err != nil {
		return nil, err
	}
	if m.reservationConflict, err = meter.Int64Counter("stock.reservation.conflicts",
		otelmetric.WithDescription("Reservations that lost a race or found too few units")); err != nil {
		return nil, err
	}
	if m.publishFailures, err = meter.Int64Counter("payment.publish.failures",
		otelmetric.WithDescription("Payment requests that could not be delivered")); err != nil {
		return nil, err
	}
	if m.statusTransitions, err = meter.Int64Counter("order.status.transitions",
		otelmetric.WithDescription("Order status changes, by target status")); err != nil {
		return nil, err
	}
	return &m, nil
}

// NopMetrics records into the global no-op provider.
func NopMetrics() *Metrics {
	m, err := NewMetrics()
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Metrics) CheckoutCompleted(ctx context.Context) {
	m.checkoutCompleted.Add(ctx, 1)
}

func (m *Metrics) CheckoutFailed(ctx context.Context, kind string) {
	if kind == "" {
		kind = "internal"
	}
	m.checkoutFailed.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) ReservationConflict(ctx context.Context) {
	m.reservationConflict.Add(ctx, 1)
}

func (m *Metrics) PublishFailed(ctx context.Context) {
	m.publishFailures.Add(ctx, 1)
}

func (m *Metrics) StatusTransition(ctx context.Context, to string) {
	m.statusTransitions.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("to", to)))
}
