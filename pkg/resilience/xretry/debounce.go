package xretry

import (
	"context"
	"sync"
	"time"
)

// Debouncer 防抖执行器
//
// 将密集触发合并为一次执行：每次 Trigger 重置静默计时器，只有最后
// 一次触发会在静默期结束后真正执行（带完整重试流程）。
// 适合保存、同步这类"只有最新一次有意义"的操作。
//
// Debouncer 可并发触发；Stop 后的触发立即返回已关闭的通道。
type Debouncer[T any] struct {
	retryer *Retryer
	delay   time.Duration
	fn      func(ctx context.Context) (T, error)

	mu      sync.Mutex
	timer   *time.Timer
	pending chan Outcome[T]
	stopped bool
}

// NewDebouncer 创建防抖执行器
//
// delay 是静默期：自最后一次 Trigger 起经过 delay 后执行 fn。
// delay <= 0 时使用 100ms（与配置热重载场景的常用防抖时间一致）。
func NewDebouncer[T any](r *Retryer, delay time.Duration, fn func(ctx context.Context) (T, error)) (*Debouncer[T], error) {
	if r == nil {
		return nil, ErrNilRetryer
	}
	if fn == nil {
		return nil, ErrNilFunc
	}
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	return &Debouncer[T]{
		retryer: r,
		delay:   delay,
		fn:      fn,
	}, nil
}

// Trigger 请求一次执行
//
// 返回的通道在执行完成后收到一个 Outcome 并关闭。
// 如果在静默期内再次 Trigger，本次触发被取代：通道被直接关闭，
// 不发送任何值。调用方用 comma-ok 区分两种情况：
//
//	out, ok := <-d.Trigger(ctx)
//	if !ok {
//	    // 被后续触发取代（或 Debouncer 已停止），未执行
//	}
//
// 执行使用最后一次 Trigger 传入的 ctx。
func (d *Debouncer[T]) Trigger(ctx context.Context) <-chan Outcome[T] {
	if d == nil || ctx == nil {
		ch := make(chan Outcome[T])
		close(ch)
		return ch
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		ch := make(chan Outcome[T])
		close(ch)
		return ch
	}

	// 取代未执行的上一次触发：停掉计时器并关闭其通道
	if d.timer != nil {
		d.timer.Stop()
	}
	if d.pending != nil {
		close(d.pending)
	}

	ch := make(chan Outcome[T], 1)
	d.pending = ch
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		// 计时器触发与 Trigger/Stop 竞争时，以 pending 的归属为准：
		// 通道已被取代或关闭则本次不执行
		if d.stopped || d.pending != ch {
			d.mu.Unlock()
			return
		}
		d.pending = nil
		d.timer = nil
		d.mu.Unlock()

		ch <- Execute(ctx, d.retryer, d.fn)
		close(ch)
	})

	return ch
}

// Stop 停止防抖执行器
//
// 取消未执行的待定触发（其通道被关闭，不发送值）。
// 已经开始执行的操作不会被打断。Stop 是幂等的。
func (d *Debouncer[T]) Stop() {
	if d == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.pending != nil {
		close(d.pending)
		d.pending = nil
	}
}

// Delay 返回静默期时长。
func (d *Debouncer[T]) Delay() time.Duration {
	if d == nil {
		return 0
	}
	return d.delay
}
