package xretry

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type batchOptions struct {
	limit int64
}

// BatchOption 批量执行配置选项
type BatchOption func(*batchOptions)

// WithBatchLimit 限制批量执行的最大并发数。
// n <= 0 表示不限制（所有操作同时发起）。
func WithBatchLimit(n int) BatchOption {
	return func(o *batchOptions) {
		if n > 0 {
			o.limit = int64(n)
		}
	}
}

// ExecuteBatch 并发执行一组独立操作，每个操作带完整的重试策略
//
// 语义：
//   - 结果切片与 ops 等长且顺序一一对应
//   - 各操作的成败互不影响：部分失败不会取消其余操作
//   - 每个操作独立走完整的重试流程（共享同一个 Retryer 配置）
//   - nil 操作的结果为 Err = ErrNilFunc 的失败 Outcome
//
// ctx 取消会传入每个操作并终止其后续重试，但已发起的尝试不会被打断。
func ExecuteBatch[T any](ctx context.Context, r *Retryer, ops []func(ctx context.Context) (T, error), opts ...BatchOption) []Outcome[T] {
	options := &batchOptions{}
	for _, opt := range opts {
		opt(options)
	}

	results := make([]Outcome[T], len(ops))
	if len(ops) == 0 {
		return results
	}
	if ctx == nil {
		for i := range results {
			results[i] = Outcome[T]{Err: ErrNilContext}
		}
		return results
	}

	var sem *semaphore.Weighted
	if options.limit > 0 {
		sem = semaphore.NewWeighted(options.limit)
	}

	var wg sync.WaitGroup
	for i, op := range ops {
		wg.Add(1)
		go func(i int, op func(ctx context.Context) (T, error)) {
			defer wg.Done()
			if sem != nil {
				if err := sem.Acquire(ctx, 1); err != nil {
					results[i] = Outcome[T]{Err: err}
					return
				}
				defer sem.Release(1)
			}
			results[i] = Execute(ctx, r, op)
		}(i, op)
	}
	wg.Wait()

	return results
}
