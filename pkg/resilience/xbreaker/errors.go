package xbreaker

import (
	"errors"
	"fmt"
)

// 熔断器拒绝错误
var (
	// ErrOpenState 熔断器处于打开状态
	ErrOpenState = errors.New("xbreaker: breaker is open")

	// ErrTooManyRequests 半开状态下已有探测进行中
	ErrTooManyRequests = errors.New("xbreaker: too many requests in half-open state")
)

// 参数校验错误
var (
	// ErrNilBreaker 传入的 Breaker 为 nil
	ErrNilBreaker = errors.New("xbreaker: breaker cannot be nil")

	// ErrNilRetryer 传入的 Retryer 为 nil
	ErrNilRetryer = errors.New("xbreaker: retryer cannot be nil")

	// ErrNilBreakerRetryer 传入的 BreakerRetryer 为 nil
	ErrNilBreakerRetryer = errors.New("xbreaker: breaker-retryer cannot be nil")

	// ErrNilRetryThenBreak 传入的 RetryThenBreak 为 nil
	ErrNilRetryThenBreak = errors.New("xbreaker: retry-then-break cannot be nil")

	// ErrNilContext 传入的 context 为 nil
	ErrNilContext = errors.New("xbreaker: context cannot be nil")

	// ErrNilFunc 传入的操作函数为 nil
	ErrNilFunc = errors.New("xbreaker: function cannot be nil")
)

// BreakerError 熔断器拒绝错误包装类型
//
// 包装 ErrOpenState / ErrTooManyRequests，并实现 Retryable() 返回 false，
// 让 xretry 不再重试这些错误。熔断拒绝应该快速失败或走降级路径，
// 继续退避重试只会白白消耗重试预算。
//
// 设计决策: Err/Name/State 保留为导出字段，便于调用方在日志和监控中
// 直接读取。熔断错误通常用于外部诊断（日志/告警），与内部错误链
// 传递的场景不同。
type BreakerError struct {
	Err   error  // 原始错误（ErrOpenState 或 ErrTooManyRequests）
	Name  string // 熔断器名称（可选，用于日志）
	State State  // 错误发生时的熔断器状态
}

// Error 实现 error 接口
func (e *BreakerError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("breaker %s: %v", e.Name, e.Err)
	}
	return e.Err.Error()
}

// Unwrap 实现 errors.Unwrap 接口
func (e *BreakerError) Unwrap() error {
	return e.Err
}

// Retryable 实现 xretry.RetryableError 接口
//
// 熔断器拒绝不应该重试：
//   - ErrOpenState: 熔断器打开，下游不可用，重试无意义
//   - ErrTooManyRequests: 半开探测进行中，应等待探测结果
func (e *BreakerError) Retryable() bool {
	return false
}

// newBreakerError 创建熔断器拒绝错误
func newBreakerError(err error, name string, state State) *BreakerError {
	return &BreakerError{
		Err:   err,
		Name:  name,
		State: state,
	}
}

// IsOpen 检查错误是否是熔断器打开错误
//
// 可用于判断是否应该快速失败或使用降级逻辑。
//
// 示例:
//
//	result, err := xbreaker.Execute(ctx, breaker, fn)
//	if xbreaker.IsOpen(err) {
//	    return fallbackValue, nil // 使用降级值
//	}
func IsOpen(err error) bool {
	return errors.Is(err, ErrOpenState)
}

// IsTooManyRequests 检查错误是否是半开探测拒绝错误
func IsTooManyRequests(err error) bool {
	return errors.Is(err, ErrTooManyRequests)
}

// IsBreakerError 检查错误是否是熔断器拒绝错误
//
// 包括 ErrOpenState 和 ErrTooManyRequests。
// 可用于区分熔断拒绝和业务错误。
func IsBreakerError(err error) bool {
	return IsOpen(err) || IsTooManyRequests(err)
}
