package xretry

import (
	"context"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// 设计决策: 以下类型别名和变量别名镜像 avast/retry-go/v5 的 API 表面，
// 使调用方无需直接依赖第三方包。虽然增加了导出符号数量，但避免了业务代码
// 中出现 import retry "github.com/avast/retry-go/v5" 的直接依赖，
// 便于未来替换底层实现。
type (
	// Option 是 retry-go 的配置选项类型
	Option = retry.Option

	// OnRetryFunc 是重试回调函数类型
	// attempt: 当前尝试次数（从 0 开始）
	// err: 上次执行的错误
	OnRetryFunc = retry.OnRetryFunc

	// RetryIfFunc 是重试条件判断函数类型
	RetryIfFunc = retry.RetryIfFunc

	// DelayTypeFunc 是延迟类型函数
	DelayTypeFunc = retry.DelayTypeFunc

	// DelayContext 提供延迟计算所需的配置值
	DelayContext = retry.DelayContext

	// Timer 表示用于跟踪重试时间的计时器接口
	Timer = retry.Timer

	// Error 表示重试过程中的错误列表
	Error = retry.Error
)

// 以下是 retry-go 的配置选项函数
var (
	// Attempts 设置总尝试次数（包含首次尝试），设置为 0 表示无限重试。
	// 例如 Attempts(3) 表示最多执行 3 次（首次 + 2 次重试）。
	Attempts = retry.Attempts

	// UntilSucceeded 无限重试直到成功，等同于 Attempts(0)
	UntilSucceeded = retry.UntilSucceeded

	// 注意：retry-go 的 Delay 选项不在此列，本包的 Delay 是退避计算函数。
	// 固定间隔场景用 DelayType(xretry.ToDelayType(p)) 配 BackoffFactor 1.0。

	// MaxDelay 设置最大重试间隔
	MaxDelay = retry.MaxDelay

	// MaxJitter 设置最大抖动时间
	MaxJitter = retry.MaxJitter

	// DelayType 设置延迟类型
	DelayType = retry.DelayType

	// OnRetry 设置重试回调函数
	OnRetry = retry.OnRetry

	// RetryIf 设置重试条件判断函数
	RetryIf = retry.RetryIf

	// Context 设置上下文
	Context = retry.Context

	// LastErrorOnly 只返回最后一个错误
	// 默认值: false（返回所有错误）
	LastErrorOnly = retry.LastErrorOnly
)

// 以下是 retry-go 的错误处理函数
var (
	// Unrecoverable 将错误标记为不可恢复（不再重试）
	Unrecoverable = retry.Unrecoverable

	// IsRecoverable 检查错误是否可恢复
	IsRecoverable = retry.IsRecoverable
)

// Do 执行带重试的操作
//
// 这是对 retry-go 的薄包装，内置 DefaultRetryCondition 作为重试判定。
// fn 签名为 func() error（不接收 context），如需在回调中使用 context，
// 通过闭包捕获即可。如需 fn 直接接收 context，请使用 Retryer.Do。
//
// 示例:
//
//	err := xretry.Do(ctx, func() error {
//	    return doSomething()
//	}, xretry.Attempts(3), xretry.MaxDelay(time.Second))
//
// 注意：如果调用方传入 RetryIf 选项，会覆盖内置的判定逻辑。
// 此时 Failure/PermanentError/TemporaryError/Unrecoverable 不会自动生效，
// 需要在自定义的 RetryIf 中自行处理。
func Do(ctx context.Context, fn func() error, opts ...Option) error {
	return retry.New(defaultOpts(ctx, opts)...).Do(fn)
}

// DoWithData 执行带重试的操作（有返回值）
//
// 这是泛型版本的 Do 函数，支持返回任意类型的值。
// RetryIf 覆盖语义与 Do 相同。
func DoWithData[T any](ctx context.Context, fn func() (T, error), opts ...Option) (T, error) {
	return retry.NewWithData[T](defaultOpts(ctx, opts)...).Do(fn)
}

// defaultOpts 构建带有默认 RetryIf 逻辑的选项列表。
// 默认判定先检查 IsRecoverable（Unrecoverable 错误），再委托
// DefaultRetryCondition。用户传入的 opts 追加在后，可覆盖默认行为。
func defaultOpts(ctx context.Context, opts []Option) []Option {
	allOpts := make([]Option, 0, len(opts)+2)
	allOpts = append(allOpts, Context(ctx))
	allOpts = append(allOpts, RetryIf(func(err error) bool {
		if !IsRecoverable(err) {
			return false
		}
		return DefaultRetryCondition(err)
	}))
	return append(allOpts, opts...)
}

// ToDelayType 将 Policy 的退避参数转换为 retry-go 的 DelayTypeFunc
//
// 用于需要直接使用 retry-go 原生 API 但复用本包延迟语义的场景。
//
// 示例:
//
//	err := xretry.Do(ctx, fn,
//	    xretry.Attempts(3),
//	    xretry.DelayType(xretry.ToDelayType(xretry.DefaultPolicy())),
//	)
func ToDelayType(p Policy) DelayTypeFunc {
	return func(n uint, _ error, _ DelayContext) time.Duration {
		return delayIn(safeUintToInt(n), p, DefaultJitterWindow)
	}
}
