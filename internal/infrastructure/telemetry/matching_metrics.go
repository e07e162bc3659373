package telemetry

import (
	"context"
	"fmt"

	"github.com/storelink/backend/internal/domain/matching"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MatchingMetrics records reconciliation run outcomes. Instruments go through
// the global meter provider, so a disabled MeterProvider makes every call a
// no-op.
type MatchingMetrics struct {
	runs        metric.Int64Counter
	scanned     metric.Int64Counter
	mapped      metric.Int64Counter
	skipped     metric.Int64Counter
	errors      metric.Int64Counter
	runDuration metric.Float64Histogram
}

// NewMatchingMetrics creates the reconciliation instruments
func NewMatchingMetrics() (*MatchingMetrics, error) {
	meter := otel.GetMeterProvider().Meter(TracerName)

	runs, err := meter.Int64Counter("matching.reconcile.runs",
		metric.WithDescription("Completed reconciliation runs"))
	if err != nil {
		return nil, fmt.Errorf("failed to create runs counter: %w", err)
	}
	scanned, err := meter.Int64Counter("matching.reconcile.orders_scanned",
		metric.WithDescription("Unmapped orders examined by reconciliation runs"))
	if err != nil {
		return nil, fmt.Errorf("failed to create scanned counter: %w", err)
	}
	mapped, err := meter.Int64Counter("matching.reconcile.orders_mapped",
		metric.WithDescription("Orders mapped by reconciliation runs"))
	if err != nil {
		return nil, fmt.Errorf("failed to create mapped counter: %w", err)
	}
	skipped, err := meter.Int64Counter("matching.reconcile.orders_skipped",
		metric.WithDescription("Orders skipped by reconciliation runs, by reason"))
	if err != nil {
		return nil, fmt.Errorf("failed to create skipped counter: %w", err)
	}
	errCounter, err := meter.Int64Counter("matching.reconcile.errors",
		metric.WithDescription("Orders that failed terminally during reconciliation"))
	if err != nil {
		return nil, fmt.Errorf("failed to create errors counter: %w", err)
	}
	runDuration, err := meter.Float64Histogram("matching.reconcile.run_duration_seconds",
		metric.WithDescription("Wall-clock duration of reconciliation runs"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create run duration histogram: %w", err)
	}

	return &MatchingMetrics{
		runs:        runs,
		scanned:     scanned,
		mapped:      mapped,
		skipped:     skipped,
		errors:      errCounter,
		runDuration: runDuration,
	}, nil
}

// RecordRun folds a finished run report into the instruments
func (m *MatchingMetrics) RecordRun(ctx context.Context, report *matching.RunReport) {
	if m == nil || report == nil {
		return
	}

	outcome := "completed"
	if report.Cancelled {
		outcome = "cancelled"
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.scanned.Add(ctx, int64(report.Scanned))
	m.mapped.Add(ctx, int64(report.SuccessCount))
	m.skipped.Add(ctx, int64(report.SkippedAmbiguous),
		metric.WithAttributes(attribute.String("reason", "ambiguous")))
	m.skipped.Add(ctx, int64(report.SkippedNoMatch),
		metric.WithAttributes(attribute.String("reason", "no_match")))
	m.skipped.Add(ctx, int64(report.SkippedConflict),
		metric.WithAttributes(attribute.String("reason", "conflict")))
	m.errors.Add(ctx, int64(len(report.Errors)))
	m.runDuration.Record(ctx, report.FinishedAt.Sub(report.StartedAt).Seconds())
}
