package xretry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteBatch(t *testing.T) {
	t.Run("OrderPreserved", func(t *testing.T) {
		r := fastRetryer(2)
		ops := make([]func(ctx context.Context) (string, error), 5)
		for i := range ops {
			i := i // per-iteration copy: module builds with go < 1.22 loopvar semantics
			ops[i] = func(_ context.Context) (string, error) {
				return fmt.Sprintf("result-%d", i), nil
			}
		}

		results := ExecuteBatch(context.Background(), r, ops)

		require.Len(t, results, 5)
		for i, out := range results {
			assert.True(t, out.Succeeded)
			assert.Equal(t, fmt.Sprintf("result-%d", i), out.Value)
		}
	})

	t.Run("IndependentFates", func(t *testing.T) {
		r := fastRetryer(2)
		failure := NewHTTPFailure(500, "boom")
		ops := []func(ctx context.Context) (string, error){
			func(_ context.Context) (string, error) { return "ok", nil },
			func(_ context.Context) (string, error) { return "", failure },
			func(_ context.Context) (string, error) { return "also ok", nil },
		}

		results := ExecuteBatch(context.Background(), r, ops)

		require.Len(t, results, 3)
		assert.True(t, results[0].Succeeded)
		assert.False(t, results[1].Succeeded)
		assert.ErrorIs(t, results[1].Err, failure)
		assert.True(t, results[2].Succeeded)
	})

	t.Run("FailedEntryRetriesFully", func(t *testing.T) {
		r := fastRetryer(3)
		var calls atomic.Int32
		ops := []func(ctx context.Context) (int, error){
			func(_ context.Context) (int, error) {
				calls.Add(1)
				return 0, NewTemporaryError(errors.New("flaky"))
			},
		}

		results := ExecuteBatch(context.Background(), r, ops)

		assert.False(t, results[0].Succeeded)
		assert.Equal(t, 3, results[0].Attempts)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("ConcurrencyLimit", func(t *testing.T) {
		r := fastRetryer(1)
		var inflight, peak atomic.Int32
		ops := make([]func(ctx context.Context) (struct{}, error), 8)
		for i := range ops {
			ops[i] = func(_ context.Context) (struct{}, error) {
				cur := inflight.Add(1)
				for {
					old := peak.Load()
					if cur <= old || peak.CompareAndSwap(old, cur) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inflight.Add(-1)
				return struct{}{}, nil
			}
		}

		results := ExecuteBatch(context.Background(), r, ops, WithBatchLimit(2))

		require.Len(t, results, 8)
		for _, out := range results {
			assert.True(t, out.Succeeded)
		}
		assert.LessOrEqual(t, peak.Load(), int32(2))
	})

	t.Run("EmptyOps", func(t *testing.T) {
		results := ExecuteBatch[string](context.Background(), fastRetryer(1), nil)
		assert.Empty(t, results)
	})

	t.Run("NilOpEntry", func(t *testing.T) {
		r := fastRetryer(1)
		ops := []func(ctx context.Context) (string, error){
			func(_ context.Context) (string, error) { return "ok", nil },
			nil,
		}

		results := ExecuteBatch(context.Background(), r, ops)

		require.Len(t, results, 2)
		assert.True(t, results[0].Succeeded)
		assert.ErrorIs(t, results[1].Err, ErrNilFunc)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		r := fastRetryer(1)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		ops := []func(ctx context.Context) (string, error){
			func(_ context.Context) (string, error) { return "ok", nil },
		}

		// 取消的 ctx 配合并发上限：Acquire 直接失败
		results := ExecuteBatch(ctx, r, ops, WithBatchLimit(1))

		require.Len(t, results, 1)
		assert.ErrorIs(t, results[0].Err, context.Canceled)
	})
}
