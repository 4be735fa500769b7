package xretry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Observer 重试过程的观测接口
//
// 实现方不应阻塞：两个方法都在重试的热路径上被调用。
type Observer interface {
	// ObserveAttempt 在每次重试前被调用。
	// attempt 是刚失败的尝试序号（从 1 开始）。
	ObserveAttempt(ctx context.Context, name string, attempt int, err error)

	// ObserveOutcome 在执行结束时被调用一次。
	ObserveOutcome(ctx context.Context, name string, succeeded bool, attempts int, elapsed time.Duration)
}

// NoopObserver 是空实现。
type NoopObserver struct{}

// ObserveAttempt 空实现，不做任何处理。
func (NoopObserver) ObserveAttempt(context.Context, string, int, error) {}

// ObserveOutcome 空实现，不做任何处理。
func (NoopObserver) ObserveOutcome(context.Context, string, bool, int, time.Duration) {}

const (
	defaultInstrumentationName = "github.com/omeyang/rkit/xretry"

	metricRetryAttempts = "rkit.retry.attempts"
	metricRetryOutcomes = "rkit.retry.outcomes"
	metricRetryDuration = "rkit.retry.duration"

	statusOK    = "ok"
	statusError = "error"
)

type otelConfig struct {
	instrumentationName string
	meterProvider       metric.MeterProvider
}

// ObserverOption 定义 OTel Observer 的配置选项。
type ObserverOption func(*otelConfig)

// WithInstrumentationName 设置 OTel instrumentation 名称。
func WithInstrumentationName(name string) ObserverOption {
	return func(cfg *otelConfig) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// WithMeterProvider 设置 MeterProvider。
func WithMeterProvider(provider metric.MeterProvider) ObserverOption {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// NewOTelObserver 创建基于 OpenTelemetry 的 Observer。
//
// 记录三个指标：
//   - rkit.retry.attempts：重试次数计数（不含首次尝试）
//   - rkit.retry.outcomes：执行结果计数，按 status 区分
//   - rkit.retry.duration：执行总耗时直方图（秒）
func NewOTelObserver(opts ...ObserverOption) (Observer, error) {
	cfg := &otelConfig{
		instrumentationName: defaultInstrumentationName,
		meterProvider:       otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	meter := cfg.meterProvider.Meter(cfg.instrumentationName)

	attempts, err := meter.Int64Counter(
		metricRetryAttempts,
		metric.WithDescription("retry attempts"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("xretry: create attempts counter failed: %w", err)
	}

	outcomes, err := meter.Int64Counter(
		metricRetryOutcomes,
		metric.WithDescription("retry outcomes"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("xretry: create outcomes counter failed: %w", err)
	}

	duration, err := meter.Float64Histogram(
		metricRetryDuration,
		metric.WithDescription("retry total duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("xretry: create duration histogram failed: %w", err)
	}

	return &otelObserver{
		attempts: attempts,
		outcomes: outcomes,
		duration: duration,
	}, nil
}

type otelObserver struct {
	attempts metric.Int64Counter
	outcomes metric.Int64Counter
	duration metric.Float64Histogram
}

// ObserveAttempt 记录一次重试。
func (o *otelObserver) ObserveAttempt(ctx context.Context, name string, _ int, _ error) {
	ctx = metricsContext(ctx)
	o.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("retryer", name)))
}

// ObserveOutcome 记录最终结果。
func (o *otelObserver) ObserveOutcome(ctx context.Context, name string, succeeded bool, _ int, elapsed time.Duration) {
	ctx = metricsContext(ctx)
	status := statusOK
	if !succeeded {
		status = statusError
	}
	attrs := metric.WithAttributes(
		attribute.String("retryer", name),
		attribute.String("status", status),
	)
	o.outcomes.Add(ctx, 1, attrs)
	o.duration.Record(ctx, elapsed.Seconds(), attrs)
}

// metricsContext 返回不可取消的 context 用于记录指标。
// 即使请求 context 已取消/超时，指标仍能正确记录，
// 这对失败/超时场景的可观测性至关重要。
func metricsContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
