package xretry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// collect 读出当前指标快照，按名称索引。
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	metrics := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			metrics[m.Name] = m
		}
	}
	return metrics
}

func sumDataPoints(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestOTelObserver(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	obs, err := NewOTelObserver(WithMeterProvider(provider), WithInstrumentationName("rkit-test"))
	require.NoError(t, err)

	r := fastRetryer(3, WithObserver(obs), WithName("checkout"))
	var calls int
	out := Execute(context.Background(), r, func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTemporaryError(errors.New("flaky"))
		}
		return "ok", nil
	})
	require.True(t, out.Succeeded)

	metrics := collect(t, reader)

	attempts, ok := metrics[metricRetryAttempts]
	require.True(t, ok)
	assert.Equal(t, int64(2), sumDataPoints(t, attempts))

	outcomes, ok := metrics[metricRetryOutcomes]
	require.True(t, ok)
	assert.Equal(t, int64(1), sumDataPoints(t, outcomes))

	duration, ok := metrics[metricRetryDuration]
	require.True(t, ok)
	hist, isHist := duration.Data.(metricdata.Histogram[float64])
	require.True(t, isHist)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(1), count)
}

func TestOTelObserver_CanceledContextStillRecords(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	obs, err := NewOTelObserver(WithMeterProvider(provider))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	obs.ObserveOutcome(ctx, "expired", false, 3, 50*time.Millisecond)

	metrics := collect(t, reader)
	outcomes, ok := metrics[metricRetryOutcomes]
	require.True(t, ok)
	assert.Equal(t, int64(1), sumDataPoints(t, outcomes))
}

func TestNoopObserver(t *testing.T) {
	var obs NoopObserver
	// 仅验证空实现可安全调用
	obs.ObserveAttempt(context.Background(), "noop", 1, assert.AnError)
	obs.ObserveOutcome(context.Background(), "noop", true, 1, time.Millisecond)
}
