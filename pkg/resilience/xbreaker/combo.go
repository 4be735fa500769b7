package xbreaker

import (
	"context"
	"fmt"

	"github.com/omeyang/rkit/pkg/resilience/xretry"
)

// BreakerRetryer 熔断器+重试组合执行器（熔断感知每次尝试）
//
// 执行流程：
//  1. 请求进入重试器
//  2. 每次重试尝试都经过熔断器检查
//  3. 如果熔断器打开，直接返回错误，停止重试（BreakerError 不可重试）
//  4. 每次尝试的结果（成功/失败）都被熔断器记录
//  5. 连续失败可能在重试过程中触发熔断，阻断后续重试
//
// 与 RetryThenBreak 的区别：
//   - BreakerRetryer: 每次重试都经过熔断器，中间失败计入熔断统计
//   - RetryThenBreak: 重试期间不影响熔断器，只有最终结果才记录
type BreakerRetryer struct {
	breaker *Breaker
	retryer *xretry.Retryer
}

// NewBreakerRetryer 创建熔断器+重试组合执行器
//
// 如果 breaker 或 retryer 为 nil，返回对应的错误。
//
// 示例:
//
//	breaker := xbreaker.NewBreaker("my-service",
//	    xbreaker.WithFailureThreshold(5),
//	)
//	retryer := xretry.NewRetryer(xretry.DefaultPolicy())
//
//	combo, err := xbreaker.NewBreakerRetryer(breaker, retryer)
func NewBreakerRetryer(breaker *Breaker, retryer *xretry.Retryer) (*BreakerRetryer, error) {
	if breaker == nil {
		return nil, ErrNilBreaker
	}
	if retryer == nil {
		return nil, ErrNilRetryer
	}
	return &BreakerRetryer{
		breaker: breaker,
		retryer: retryer,
	}, nil
}

// DoWithRetry 执行带熔断和重试的操作
func (br *BreakerRetryer) DoWithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	if br == nil {
		return ErrNilBreakerRetryer
	}
	if ctx == nil {
		return ErrNilContext
	}
	if fn == nil {
		return ErrNilFunc
	}
	return br.retryer.Do(ctx, func(ctx context.Context) error {
		// 每次重试尝试都经过熔断器
		return br.breaker.Do(ctx, func() error {
			return fn(ctx)
		})
	})
}

// ExecuteWithRetry 执行带熔断和重试的操作（泛型版本）
//
// 每次重试尝试都会经过熔断器检查和记录。
// br 不能为 nil，否则返回 ErrNilBreakerRetryer。
func ExecuteWithRetry[T any](ctx context.Context, br *BreakerRetryer, fn func() (T, error)) (T, error) {
	var zero T
	if br == nil {
		return zero, ErrNilBreakerRetryer
	}
	if ctx == nil {
		return zero, ErrNilContext
	}
	if fn == nil {
		return zero, ErrNilFunc
	}
	return xretry.DoWithResult(ctx, br.retryer, func(ctx context.Context) (T, error) {
		// 每次重试尝试都经过熔断器
		return Execute(ctx, br.breaker, fn)
	})
}

// Breaker 返回熔断器
func (br *BreakerRetryer) Breaker() *Breaker {
	return br.breaker
}

// Retryer 返回重试器
func (br *BreakerRetryer) Retryer() *xretry.Retryer {
	return br.retryer
}

// RetryThenBreak 先重试后熔断模式（保护模式）
//
// 与 BreakerRetryer 不同，这个模式：
//   - 在重试前先检查熔断器状态，如果打开则直接失败
//   - 重试期间不影响熔断器状态（不记录中间失败）
//   - 只有最终结果才记录到熔断器
//
// 适用场景：希望重试吸收瞬时故障、只有重试预算耗尽才算一次
// "真正的失败"计入熔断统计。
//
// RetryThenBreak 直接复用传入 Breaker 的状态：同一个 Breaker
// 可以同时被直接调用和经由 RetryThenBreak 调用，统计合并。
type RetryThenBreak struct {
	retryer *xretry.Retryer
	breaker *Breaker
}

// NewRetryThenBreak 创建先重试后熔断执行器
func NewRetryThenBreak(retryer *xretry.Retryer, breaker *Breaker) (*RetryThenBreak, error) {
	if retryer == nil {
		return nil, ErrNilRetryer
	}
	if breaker == nil {
		return nil, ErrNilBreaker
	}
	return &RetryThenBreak{
		retryer: retryer,
		breaker: breaker,
	}, nil
}

// Do 执行操作
//
// 执行流程：
//  1. 向熔断器申请许可，熔断器打开则直接返回 BreakerError
//  2. 使用重试器执行操作（重试期间不记录到熔断器）
//  3. 将最终结果记录到熔断器
//
// 注意：即使发生 panic，也会通过 defer 确保熔断器计数被正确更新（记为失败）。
func (rtb *RetryThenBreak) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if rtb == nil {
		return ErrNilRetryThenBreak
	}
	if ctx == nil {
		return ErrNilContext
	}
	if fn == nil {
		return ErrNilFunc
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	done, cbErr := rtb.breaker.Allow()
	if cbErr != nil {
		return cbErr
	}

	// defer 确保 done 一定被调用，即使发生 panic。
	// 这避免了半开状态下探测标记残留导致的 ErrTooManyRequests
	var err error
	defer func() {
		if r := recover(); r != nil {
			done(fmt.Errorf("panic: %v", r))
			panic(r)
		}
		done(err)
	}()

	err = rtb.retryer.Do(ctx, fn)
	return err
}

// ExecuteRetryThenBreak 执行先重试后熔断的操作（泛型版本）
//
// rtb 不能为 nil，否则返回 ErrNilRetryThenBreak。
func ExecuteRetryThenBreak[T any](ctx context.Context, rtb *RetryThenBreak, fn func() (T, error)) (T, error) {
	var zero T
	if rtb == nil {
		return zero, ErrNilRetryThenBreak
	}
	if ctx == nil {
		return zero, ErrNilContext
	}
	if fn == nil {
		return zero, ErrNilFunc
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	done, cbErr := rtb.breaker.Allow()
	if cbErr != nil {
		return zero, cbErr
	}

	var result T
	var err error
	defer func() {
		if r := recover(); r != nil {
			done(fmt.Errorf("panic: %v", r))
			panic(r)
		}
		done(err)
	}()

	result, err = xretry.DoWithResult(ctx, rtb.retryer, func(_ context.Context) (T, error) {
		return fn()
	})
	return result, err
}

// Breaker 返回熔断器（与内部状态共享）
func (rtb *RetryThenBreak) Breaker() *Breaker {
	return rtb.breaker
}

// Retryer 返回重试器
func (rtb *RetryThenBreak) Retryer() *xretry.Retryer {
	return rtb.retryer
}

// State 返回熔断器当前状态
func (rtb *RetryThenBreak) State() State {
	return rtb.breaker.State()
}

// Snapshot 返回熔断器状态快照
func (rtb *RetryThenBreak) Snapshot() Snapshot {
	return rtb.breaker.Snapshot()
}
