package xretry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRequest(t *testing.T) {
	t.Run("RetriesServerErrorsThenSucceeds", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if hits.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("payload"))
		}))
		defer srv.Close()

		resp, err := DoRequest(context.Background(), srv.Client(), fastRetryer(3),
			func(ctx context.Context) (*http.Request, error) {
				return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
			})

		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(body))
		assert.Equal(t, int32(3), hits.Load())
	})

	t.Run("ClientErrorNotRetried", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := DoRequest(context.Background(), srv.Client(), fastRetryer(3),
			func(ctx context.Context) (*http.Request, error) {
				return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
			})

		require.Error(t, err)
		var f *Failure
		require.ErrorAs(t, err, &f)
		assert.Equal(t, KindHTTP, f.Kind)
		assert.Equal(t, http.StatusNotFound, f.HTTPStatus)
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("RateLimitedRetried", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if hits.Add(1) < 2 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		resp, err := DoRequest(context.Background(), srv.Client(), fastRetryer(3),
			func(ctx context.Context) (*http.Request, error) {
				return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
			})

		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, int32(2), hits.Load())
	})

	t.Run("AuthPolicyBlocksUnauthorized", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		p := AuthCallPolicy()
		p.MaxAttempts = 3
		p.BaseDelay = 1
		p.MaxDelay = 1
		r := NewRetryer(p, WithJitterWindow(0))

		_, err := DoRequest(context.Background(), srv.Client(), r,
			func(ctx context.Context) (*http.Request, error) {
				return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
			})

		require.Error(t, err)
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("BuildErrorNotRetried", func(t *testing.T) {
		var builds atomic.Int32
		buildErr := errors.New("bad url")

		_, err := DoRequest(context.Background(), nil, fastRetryer(3),
			func(_ context.Context) (*http.Request, error) {
				builds.Add(1)
				return nil, buildErr
			})

		require.Error(t, err)
		assert.ErrorIs(t, err, buildErr)
		assert.Equal(t, int32(1), builds.Load())
	})

	t.Run("NilBuild", func(t *testing.T) {
		_, err := DoRequest(context.Background(), nil, fastRetryer(1), nil)
		assert.ErrorIs(t, err, ErrNilFunc)
	})
}
