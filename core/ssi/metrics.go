package ssi

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func reasonAttr(reason AbortReason) attribute.KeyValue {
	return attribute.String("reason", string(reason))
}

// Metrics holds the OpenTelemetry instruments TransactionManager reports
// transaction outcomes through, built the same way the teacher's
// internal/telemetry package builds its gRPC instruments: one counter
// per outcome class, registered once against a shared meter.
type Metrics struct {
	commits metric.Int64Counter
	aborts  metric.Int64Counter
	reads   metric.Int64Counter
	waits   metric.Int64Counter
	sitesUp metric.Int64UpDownCounter
}

// NewMetrics registers TransactionManager's instruments against meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	commits, err := meter.Int64Counter(
		"ssikv.tm.commits_total",
		metric.WithDescription("Total transactions committed."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}
	aborts, err := meter.Int64Counter(
		"ssikv.tm.aborts_total",
		metric.WithDescription("Total transactions aborted, by reason."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}
	reads, err := meter.Int64Counter(
		"ssikv.tm.reads_total",
		metric.WithDescription("Total reads served."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}
	waits, err := meter.Int64Counter(
		"ssikv.tm.waits_total",
		metric.WithDescription("Total times a transaction entered a wait state."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}
	sitesUp, err := meter.Int64UpDownCounter(
		"ssikv.tm.sites_up",
		metric.WithDescription("Number of sites currently Up."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}
	// Every site starts Up.
	sitesUp.Add(context.Background(), numSites)
	return &Metrics{commits: commits, aborts: aborts, reads: reads, waits: waits, sitesUp: sitesUp}, nil
}

func (m *Metrics) commit(ctx context.Context) {
	if m == nil {
		return
	}
	m.commits.Add(ctx, 1)
}

func (m *Metrics) abort(ctx context.Context, reason AbortReason) {
	if m == nil {
		return
	}
	m.aborts.Add(ctx, 1, metric.WithAttributes(reasonAttr(reason)))
}

func (m *Metrics) read(ctx context.Context) {
	if m == nil {
		return
	}
	m.reads.Add(ctx, 1)
}

func (m *Metrics) wait(ctx context.Context) {
	if m == nil {
		return
	}
	m.waits.Add(ctx, 1)
}

func (m *Metrics) siteFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.sitesUp.Add(ctx, -1)
}

func (m *Metrics) siteRecovered(ctx context.Context) {
	if m == nil {
		return
	}
	m.sitesUp.Add(ctx, 1)
}
