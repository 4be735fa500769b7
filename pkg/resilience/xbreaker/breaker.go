package xbreaker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State 熔断器状态
type State int32

const (
	// StateClosed 关闭状态（正常）
	// 请求正常通过，连续失败被计数
	StateClosed State = iota

	// StateHalfOpen 半开状态（探测）
	// 放行单个探测请求以检测服务是否恢复
	StateHalfOpen

	// StateOpen 打开状态（熔断）
	// 请求直接失败，不会调用后端服务
	StateOpen
)

// String 返回状态的字符串表示。
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Snapshot 熔断器状态快照
//
// 快照是读取时刻的一致视图，各字段来自同一次加锁读取。
type Snapshot struct {
	// State 当前状态
	State State

	// ConsecutiveFailures 当前连续失败计数。
	// 进入 Open 后保持不变，直到探测成功或 Reset。
	ConsecutiveFailures uint32

	// LastFailureAt 最后一次失败的时间。
	// 从未失败（或已 Reset）时为零值。
	LastFailureAt time.Time
}

// 默认配置
const (
	// DefaultFailureThreshold 默认熔断阈值（连续失败次数）
	DefaultFailureThreshold = 5

	// DefaultRecoveryTimeout 默认恢复超时
	DefaultRecoveryTimeout = 60 * time.Second
)

// Breaker 三态熔断器
//
// 状态只通过内部转换方法修改，所有公开方法可并发调用。
//
// 设计决策: 自持状态机而非包装现成实现。熔断器需要对外暴露
// 一致的 {状态, 连续失败数, 最后失败时间} 快照和管理性 Reset，
// 这要求状态字段归本类型所有。
type Breaker struct {
	name             string
	failureThreshold uint32
	recoveryTimeout  time.Duration
	onStateChange    func(name string, from, to State)
	logger           *slog.Logger
	now              func() time.Time

	mu                  sync.Mutex
	state               State
	consecutiveFailures uint32
	lastFailureAt       time.Time
	probing             bool
}

// BreakerOption 熔断器配置选项
type BreakerOption func(*Breaker)

// WithFailureThreshold 设置触发熔断的连续失败次数。
// n == 0 会被静默忽略（保持默认值 5）。
func WithFailureThreshold(n uint32) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithRecoveryTimeout 设置从 Open 转入 HalfOpen 前的等待时间。
// 自最后一次失败起经过此时间后，下一个请求作为探测被放行。
func WithRecoveryTimeout(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.recoveryTimeout = d
		}
	}
}

// WithOnStateChange 设置状态变化回调
//
// 回调在持有内部锁时执行：回调内不能再调用同一熔断器的方法，
// 否则会死锁。耗时操作应投递到其他 goroutine。
func WithOnStateChange(f func(name string, from, to State)) BreakerOption {
	return func(b *Breaker) {
		b.onStateChange = f
	}
}

// WithBreakerLogger 设置结构化日志器。
// 设置后每次状态转换会输出一条 Info 日志。传入 nil 会被静默忽略。
func WithBreakerLogger(logger *slog.Logger) BreakerOption {
	return func(b *Breaker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBreaker 创建熔断器
//
// name 用于日志、错误和监控标识。
// 默认配置：连续失败 5 次熔断，60 秒后进入半开探测。
func NewBreaker(name string, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: DefaultFailureThreshold,
		recoveryTimeout:  DefaultRecoveryTimeout,
		now:              time.Now,
		state:            StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow 申请执行许可（两阶段模式）
//
// 返回的 done 必须在操作结束后调用一次：done(nil) 记为成功，
// done(err) 记为失败。适用于异步操作或需要自定义成功判定的场景。
//
// 熔断器打开时返回 BreakerError（包装 ErrOpenState）；
// 半开状态下已有探测进行中时返回 BreakerError（包装 ErrTooManyRequests）。
// 两种拒绝都不会计入失败计数。
func (b *Breaker) Allow() (done func(err error), err error) {
	if b == nil {
		return nil, ErrNilBreaker
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// 先结算可能到期的恢复超时，再决定是否放行
	b.refresh()

	switch b.state {
	case StateOpen:
		return nil, newBreakerError(ErrOpenState, b.name, StateOpen)
	case StateHalfOpen:
		if b.probing {
			return nil, newBreakerError(ErrTooManyRequests, b.name, StateHalfOpen)
		}
		b.probing = true
	}

	return b.record, nil
}

// Do 执行受熔断器保护的操作
//
// 如果 context 已取消或超时，直接返回 context 错误。
// 熔断器的拒绝错误实现 Retryable() 返回 false，
// 与 xretry 组合使用时不会被重试。
//
// 注意：context 仅用于入口检查，不会传递给底层操作。
// 即使 fn panic，结果也会通过 defer 记入熔断器（记为失败）。
func (b *Breaker) Do(ctx context.Context, fn func() error) error {
	if b == nil {
		return ErrNilBreaker
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

	done, err := b.Allow()
	if err != nil {
		return err
	}

	var fnErr error
	defer func() {
		if r := recover(); r != nil {
			done(fmt.Errorf("panic: %v", r))
			panic(r)
		}
		done(fnErr)
	}()

	fnErr = fn()
	return fnErr
}

// Execute 执行受熔断器保护的操作（泛型版本）
//
// 与 Do 类似，但支持返回值。
// 此函数是包级函数而非方法，因为 Go 不支持方法的类型参数。
func Execute[T any](ctx context.Context, b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if b == nil {
		return zero, ErrNilBreaker
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

	done, err := b.Allow()
	if err != nil {
		return zero, err
	}

	var result T
	var fnErr error
	defer func() {
		if r := recover(); r != nil {
			done(fmt.Errorf("panic: %v", r))
			panic(r)
		}
		done(fnErr)
	}()

	result, fnErr = fn()
	if fnErr != nil {
		return zero, fnErr
	}
	return result, nil
}

// State 返回熔断器当前状态。
// 恢复超时已到期时返回 HalfOpen（读取即结算到期转换）。
func (b *Breaker) State() State {
	if b == nil {
		return StateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh()
	return b.state
}

// Snapshot 返回熔断器状态快照。
// 与 State 相同，读取前先结算到期的 Open → HalfOpen 转换，
// 因此读到的 HalfOpen 已是当前有效状态而非推算值。
func (b *Breaker) Snapshot() Snapshot {
	if b == nil {
		return Snapshot{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh()
	return Snapshot{
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		LastFailureAt:       b.lastFailureAt,
	}
}

// Reset 管理性复位
//
// 无条件回到 Closed 状态并清空失败计数和失败时间。
// 用于运维确认下游已恢复、不想等恢复超时的场景。
func (b *Breaker) Reset() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.lastFailureAt = time.Time{}
	b.probing = false
	b.transition(StateClosed)
}

// Name 返回熔断器名称。
func (b *Breaker) Name() string {
	if b == nil {
		return ""
	}
	return b.name
}

// FailureThreshold 返回熔断阈值。
func (b *Breaker) FailureThreshold() uint32 {
	if b == nil {
		return 0
	}
	return b.failureThreshold
}

// RecoveryTimeout 返回恢复超时。
func (b *Breaker) RecoveryTimeout() time.Duration {
	if b == nil {
		return 0
	}
	return b.recoveryTimeout
}

// refresh 结算到期的 Open → HalfOpen 转换。调用方必须持有 mu。
func (b *Breaker) refresh() {
	if b.state == StateOpen && b.now().Sub(b.lastFailureAt) > b.recoveryTimeout {
		b.transition(StateHalfOpen)
	}
}

// record 记录一次操作结果。作为 done 回调返回给 Allow 的调用方。
func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if err == nil {
		b.consecutiveFailures = 0
		b.transition(StateClosed)
		return
	}

	b.consecutiveFailures++
	b.lastFailureAt = b.now()

	switch b.state {
	case StateHalfOpen:
		// 探测失败，重新熔断并重新计时
		b.transition(StateOpen)
	case StateClosed:
		if b.consecutiveFailures >= b.failureThreshold {
			b.transition(StateOpen)
		}
	}
}

// transition 执行状态转换并触发回调。调用方必须持有 mu。
// from == to 时不触发任何动作。
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to

	if b.logger != nil {
		b.logger.Info("breaker state changed",
			slog.String("breaker", b.name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
			slog.Uint64("consecutive_failures", uint64(b.consecutiveFailures)),
		)
	}
	if b.onStateChange != nil {
		b.onStateChange(b.name, from, to)
	}
}
