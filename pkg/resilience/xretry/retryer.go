package xretry

import (
	"context"
	"log/slog"
	"math"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// safeIntToUint 将 int 安全转换为 uint。
// 负数返回 0，正数直接转换。
// 用于将 MaxAttempts (int) 传递给 retry-go 的 Attempts (uint)。
func safeIntToUint(n int) uint {
	if n <= 0 {
		return 0
	}
	return uint(n)
}

// safeUintToInt 将 uint 安全转换为 int。
// 超过 MaxInt 的值会被截断到 MaxInt。
// 用于将 retry-go 的重试次数 (uint) 传递给用户回调 (int)。
func safeUintToInt(n uint) int {
	if n > uint(math.MaxInt) {
		return math.MaxInt
	}
	return int(n)
}

// Retryer 重试执行器
//
// Retryer 将 Policy 绑定到具体的执行环境（名称、日志、观测、抖动窗口），
// 由 Execute / DoWithResult / Do 驱动实际的重试循环。
//
// 底层使用 avast/retry-go/v5 实现。
type Retryer struct {
	policy       Policy
	name         string
	logger       *slog.Logger
	observer     Observer
	jitterWindow time.Duration
	timer        Timer
}

// RetryerOption 执行器配置选项
type RetryerOption func(*Retryer)

// WithName 设置执行器名称，用于日志和指标标识。
func WithName(name string) RetryerOption {
	return func(r *Retryer) {
		r.name = name
	}
}

// WithLogger 设置结构化日志器。
// 设置后每次重试会输出一条 Warn 日志。传入 nil 会被静默忽略。
func WithLogger(logger *slog.Logger) RetryerOption {
	return func(r *Retryer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver 设置观测器，用于记录重试次数和最终结果。
func WithObserver(o Observer) RetryerOption {
	return func(r *Retryer) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithJitterWindow 设置抖动窗口。
// 每次延迟在封顶后叠加 [0, window) 的均匀随机抖动。
// window <= 0 表示关闭抖动（确定性延迟，主要用于测试）。
func WithJitterWindow(window time.Duration) RetryerOption {
	return func(r *Retryer) {
		r.jitterWindow = window
	}
}

// WithTimer 设置自定义计时器（主要用于测试）。
func WithTimer(t Timer) RetryerOption {
	return func(r *Retryer) {
		if t != nil {
			r.timer = t
		}
	}
}

// NewRetryer 创建重试执行器
//
// policy 的零值字段会在执行时补齐为默认值，因此 NewRetryer(Policy{})
// 等价于 NewRetryer(DefaultPolicy())。
//
// 设计决策: 返回 *Retryer 而非接口，因为泛型函数 Execute/DoWithResult
// 需要访问内部方法。如需 mock，请在调用方以 Executor 接口作为参数类型。
func NewRetryer(policy Policy, opts ...RetryerOption) *Retryer {
	r := &Retryer{
		policy:       policy,
		jitterWindow: DefaultJitterWindow,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Executor 重试执行器接口，供调用方 mock 使用。
type Executor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// 确保 *Retryer 实现 Executor 接口
var _ Executor = (*Retryer)(nil)

// Policy 返回执行器绑定的策略（补齐默认值后的副本）。
func (r *Retryer) Policy() Policy {
	if r == nil {
		return Policy{}.withDefaults()
	}
	return r.policy.withDefaults()
}

// Name 返回执行器名称。nil 接收者返回空字符串。
func (r *Retryer) Name() string {
	if r == nil {
		return ""
	}
	return r.name
}

// Execute 执行带重试的操作并返回完整结果
//
// Execute 自身从不返回 error：失败信息记录在 Outcome.Err 中。
// 这是泛型函数，必须作为包级函数使用。
func Execute[T any](ctx context.Context, r *Retryer, fn func(ctx context.Context) (T, error)) Outcome[T] {
	if r == nil {
		return Outcome[T]{Err: ErrNilRetryer}
	}
	if ctx == nil {
		return Outcome[T]{Err: ErrNilContext}
	}
	if fn == nil {
		return Outcome[T]{Err: ErrNilFunc}
	}

	p := r.policy.withDefaults()
	start := time.Now()

	var calls int
	value, err := retry.NewWithData[T](r.buildOptions(ctx, p)...).Do(func() (T, error) {
		calls++
		return fn(ctx)
	})
	elapsed := time.Since(start)

	out := Outcome[T]{
		Succeeded: err == nil,
		Value:     value,
		Err:       err,
		Attempts:  calls,
		Elapsed:   elapsed,
	}
	if err != nil {
		// 失败时归一化为预算上限，见 Outcome.Attempts 的文档说明
		out.Attempts = p.MaxAttempts
		var zero T
		out.Value = zero
	}
	if r.observer != nil {
		r.observer.ObserveOutcome(ctx, r.name, out.Succeeded, out.Attempts, out.Elapsed)
	}
	return out
}

// DoWithResult 执行带重试的操作（有返回值）
//
// 这是远程调用的标准包装：成功返回结果，失败返回最后一次错误。
// 需要尝试次数和耗时信息时使用 Execute。
func DoWithResult[T any](ctx context.Context, r *Retryer, fn func(ctx context.Context) (T, error)) (T, error) {
	out := Execute(ctx, r, fn)
	return out.Value, out.Err
}

// Do 执行带重试的操作（无返回值）
// 如果接收者为 nil，返回 ErrNilRetryer。
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return ErrNilFunc
	}
	_, err := DoWithResult(ctx, r, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// buildOptions 构建 retry-go 的选项
// 设计决策: 每次调用重建选项切片，对于重试场景的调用频率完全可接受。
// 预构建不变选项可减少分配，但增加并发安全复杂度，收益微乎其微。
func (r *Retryer) buildOptions(ctx context.Context, p Policy) []Option {
	opts := make([]Option, 0, 7)

	opts = append(opts, Context(ctx))
	opts = append(opts, Attempts(safeIntToUint(p.MaxAttempts)))

	// 设计决策: Attempts 设置 retry-go 的硬上限，RetryIf 提供逐次判断。
	// 两者共同生效——RetryIf 可提前终止，但不会超过 Attempts 上限。
	// Unrecoverable 包装的错误在 RetryIf 之前被短路拦截。
	opts = append(opts, RetryIf(func(err error) bool {
		if !IsRecoverable(err) {
			return false
		}
		if ctx.Err() != nil {
			return false
		}
		return p.RetryIf(err)
	}))

	// 注意：retry-go v5 中 DelayType 的 n 从 1 开始，与 delayIn 的 attempt 一致
	opts = append(opts, DelayType(func(n uint, _ error, _ DelayContext) time.Duration {
		return delayIn(safeUintToInt(n), p, r.jitterWindow)
	}))

	// 注意：retry-go v5 中 OnRetry 的 n 从 0 开始，需要 +1 转换为 1-based
	opts = append(opts, OnRetry(func(n uint, err error) {
		attempt := safeUintToInt(n) + 1
		if r.logger != nil {
			r.logger.Warn("retrying operation",
				slog.String("retryer", r.name),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", p.MaxAttempts),
				slog.Any("error", err),
			)
		}
		if r.observer != nil {
			r.observer.ObserveAttempt(ctx, r.name, attempt, err)
		}
		if p.OnRetry != nil {
			r.notifyRetry(p.OnRetry, attempt, err)
		}
	}))

	// 只返回最后一个错误，简化调用方的错误处理
	opts = append(opts, LastErrorOnly(true))

	if r.timer != nil {
		opts = append(opts, retry.WithTimer(r.timer))
	}

	return opts
}

// notifyRetry 调用用户的 OnRetry 回调并捕获其中的 panic。
// 通知回调不应中断重试流程，panic 被记录后吞掉。
func (r *Retryer) notifyRetry(cb func(attempt int, err error), attempt int, err error) {
	defer func() {
		if rec := recover(); rec != nil && r.logger != nil {
			r.logger.Error("retry callback panicked",
				slog.String("retryer", r.name),
				slog.Int("attempt", attempt),
				slog.Any("panic", rec),
			)
		}
	}()
	cb(attempt, err)
}
