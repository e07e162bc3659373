package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/storelink/backend/internal/domain/matching"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewTracerProviderDisabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
	assert.NoError(t, tp.Shutdown(context.Background()))
	assert.NoError(t, tp.ForceFlush(context.Background()))
}

func TestNewMeterProviderDisabled(t *testing.T) {
	mp, err := NewMeterProvider(context.Background(), MetricsConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestStartServiceSpan(t *testing.T) {
	ctx, span := StartServiceSpan(context.Background(), "matching", "manual_map")
	require.NotNil(t, span)
	span.End()

	// No provider installed in tests, so the span is a no-op without a
	// valid trace ID.
	assert.Empty(t, GetTraceID(ctx))
}

func TestMatchingMetricsRecordRun(t *testing.T) {
	metrics, err := NewMatchingMetrics()
	require.NoError(t, err)

	report := matching.NewRunReport()
	report.RecordSuccess()
	report.RecordSkip(matching.SkipAmbiguous)
	report.Finish()
	report.FinishedAt = report.StartedAt.Add(2 * time.Second)

	// No-op global meter: the calls must simply not panic.
	metrics.RecordRun(context.Background(), report)

	var nilMetrics *MatchingMetrics
	nilMetrics.RecordRun(context.Background(), report)
	metrics.RecordRun(context.Background(), nil)
}
