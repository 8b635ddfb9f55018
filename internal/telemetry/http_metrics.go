// Package internaltelemetry instruments the admin HTTP introspection
// surface (cmd/ssikv-admin) the way the teacher's grpc_metric.go
// instruments its gRPC gateway: one counter for requests started, one
// for requests handled, a latency histogram, and an active-request
// gauge, all registered against a shared OpenTelemetry meter.
package internaltelemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ServiceMetrics holds the instruments for the admin HTTP surface.
type ServiceMetrics struct {
	RequestsStartedCounter     metric.Int64Counter
	RequestsHandledCounter     metric.Int64Counter
	RequestLatencyHistogram    metric.Int64Histogram
	ActiveRequestsUpDownCounter metric.Int64UpDownCounter
}

// NewServiceMetrics creates and registers all the metrics for the admin
// HTTP surface.
func NewServiceMetrics(meter metric.Meter) (*ServiceMetrics, error) {
	started, err := meter.Int64Counter(
		"ssikv.admin.http.requests_started_total",
		metric.WithDescription("Total number of admin HTTP requests started."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	handled, err := meter.Int64Counter(
		"ssikv.admin.http.requests_handled_total",
		metric.WithDescription("Total number of admin HTTP requests completed."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Int64Histogram(
		"ssikv.admin.http.duration",
		metric.WithDescription("The latency of admin HTTP requests."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	active, err := meter.Int64UpDownCounter(
		"ssikv.admin.http.active_requests",
		metric.WithDescription("Number of admin HTTP requests in flight."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &ServiceMetrics{
		RequestsStartedCounter:      started,
		RequestsHandledCounter:      handled,
		RequestLatencyHistogram:     latency,
		ActiveRequestsUpDownCounter: active,
	}, nil
}

// StartRequest records a request's arrival and returns a function the
// handler defers to record completion, mirroring the teacher's
// StartMetricsAndTrace/EndMetricsAndTrace pairing but collapsed to a
// single closure, which is all a synchronous net/http handler needs.
func (m *ServiceMetrics) StartRequest(ctx context.Context, route string) func(status string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	routeAttr := attribute.String("route", route)
	m.RequestsStartedCounter.Add(ctx, 1, metric.WithAttributes(routeAttr))
	m.ActiveRequestsUpDownCounter.Add(ctx, 1, metric.WithAttributes(routeAttr))
	return func(status string) {
		m.ActiveRequestsUpDownCounter.Add(ctx, -1, metric.WithAttributes(routeAttr))
		attrs := metric.WithAttributes(routeAttr, attribute.String("status", status))
		m.RequestsHandledCounter.Add(ctx, 1, attrs)
		m.RequestLatencyHistogram.Record(ctx, time.Since(start).Milliseconds(), attrs)
	}
}
