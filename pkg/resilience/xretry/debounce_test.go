package xretry

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer(t *testing.T) {
	t.Run("OnlyLastTriggerRuns", func(t *testing.T) {
		var runs atomic.Int32
		d, err := NewDebouncer(fastRetryer(1), 20*time.Millisecond, func(_ context.Context) (int, error) {
			return int(runs.Add(1)), nil
		})
		require.NoError(t, err)
		defer d.Stop()

		ctx := context.Background()
		ch1 := d.Trigger(ctx)
		ch2 := d.Trigger(ctx)
		ch3 := d.Trigger(ctx)

		// 被取代的触发：通道关闭且无值
		_, ok := <-ch1
		assert.False(t, ok)
		_, ok = <-ch2
		assert.False(t, ok)

		// 最后一次触发真正执行
		out, ok := <-ch3
		require.True(t, ok)
		assert.True(t, out.Succeeded)
		assert.Equal(t, 1, out.Value)
		assert.Equal(t, int32(1), runs.Load())

		// 通道随后关闭
		_, ok = <-ch3
		assert.False(t, ok)
	})

	t.Run("QuiescenceRestartsOnTrigger", func(t *testing.T) {
		var runs atomic.Int32
		d, err := NewDebouncer(fastRetryer(1), 30*time.Millisecond, func(_ context.Context) (struct{}, error) {
			runs.Add(1)
			return struct{}{}, nil
		})
		require.NoError(t, err)
		defer d.Stop()

		d.Trigger(context.Background())
		time.Sleep(15 * time.Millisecond)
		// 静默期内再次触发，计时器重置
		ch := d.Trigger(context.Background())
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, int32(0), runs.Load())

		out, ok := <-ch
		require.True(t, ok)
		assert.True(t, out.Succeeded)
		assert.Equal(t, int32(1), runs.Load())
	})

	t.Run("ExecutionRetries", func(t *testing.T) {
		var calls atomic.Int32
		d, err := NewDebouncer(fastRetryer(3), 10*time.Millisecond, func(_ context.Context) (string, error) {
			if calls.Add(1) < 3 {
				return "", NewTemporaryError(assert.AnError)
			}
			return "saved", nil
		})
		require.NoError(t, err)
		defer d.Stop()

		out, ok := <-d.Trigger(context.Background())
		require.True(t, ok)
		assert.True(t, out.Succeeded)
		assert.Equal(t, "saved", out.Value)
		assert.Equal(t, 3, out.Attempts)
	})

	t.Run("StopCancelsPending", func(t *testing.T) {
		var runs atomic.Int32
		d, err := NewDebouncer(fastRetryer(1), 20*time.Millisecond, func(_ context.Context) (struct{}, error) {
			runs.Add(1)
			return struct{}{}, nil
		})
		require.NoError(t, err)

		ch := d.Trigger(context.Background())
		d.Stop()

		_, ok := <-ch
		assert.False(t, ok)
		time.Sleep(30 * time.Millisecond)
		assert.Equal(t, int32(0), runs.Load())
	})

	t.Run("TriggerAfterStop", func(t *testing.T) {
		d, err := NewDebouncer(fastRetryer(1), 10*time.Millisecond, func(_ context.Context) (struct{}, error) {
			return struct{}{}, nil
		})
		require.NoError(t, err)

		d.Stop()
		d.Stop() // 幂等

		_, ok := <-d.Trigger(context.Background())
		assert.False(t, ok)
	})

	t.Run("ConstructorGuards", func(t *testing.T) {
		_, err := NewDebouncer[int](nil, time.Millisecond, func(_ context.Context) (int, error) { return 0, nil })
		assert.ErrorIs(t, err, ErrNilRetryer)

		_, err = NewDebouncer[int](fastRetryer(1), time.Millisecond, nil)
		assert.ErrorIs(t, err, ErrNilFunc)
	})

	t.Run("DefaultDelay", func(t *testing.T) {
		d, err := NewDebouncer(fastRetryer(1), 0, func(_ context.Context) (struct{}, error) {
			return struct{}{}, nil
		})
		require.NoError(t, err)
		defer d.Stop()
		assert.Equal(t, 100*time.Millisecond, d.Delay())
	})
}
