package xretry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const policiesYAML = `
checkpoint:
  max_attempts: 5
  base_delay: 200ms
  max_delay: 5s
  backoff_factor: 2.0
login:
  max_attempts: 2
  base_delay: 1s
  condition: auth
bulk:
  max_attempts: 1
`

const policiesJSON = `{
  "checkpoint": {
    "max_attempts": 5,
    "base_delay": "200ms",
    "max_delay": "5s",
    "backoff_factor": 2.0
  }
}`

func TestLoadPoliciesFromBytes(t *testing.T) {
	t.Run("YAML", func(t *testing.T) {
		policies, err := LoadPoliciesFromBytes([]byte(policiesYAML), FormatYAML)
		require.NoError(t, err)
		require.Len(t, policies, 3)

		cp := policies["checkpoint"]
		assert.Equal(t, 5, cp.MaxAttempts)
		assert.Equal(t, 200*time.Millisecond, cp.BaseDelay)
		assert.Equal(t, 5*time.Second, cp.MaxDelay)
		assert.InDelta(t, 2.0, cp.BackoffFactor, 0.001)
		assert.Nil(t, cp.RetryIf) // 默认判定在执行时补齐

		// 未填写的字段保持零值，由 withDefaults 补齐
		bulk := policies["bulk"]
		assert.Equal(t, 1, bulk.MaxAttempts)
		assert.Zero(t, bulk.BaseDelay)
	})

	t.Run("AuthConditionBehavior", func(t *testing.T) {
		policies, err := LoadPoliciesFromBytes([]byte(policiesYAML), FormatYAML)
		require.NoError(t, err)

		login := policies["login"]
		require.NotNil(t, login.RetryIf)
		assert.False(t, login.RetryIf(NewHTTPFailure(401, "")))
		assert.True(t, login.RetryIf(NewHTTPFailure(503, "")))
	})

	t.Run("JSON", func(t *testing.T) {
		policies, err := LoadPoliciesFromBytes([]byte(policiesJSON), FormatJSON)
		require.NoError(t, err)
		cp := policies["checkpoint"]
		assert.Equal(t, 5, cp.MaxAttempts)
		assert.Equal(t, 200*time.Millisecond, cp.BaseDelay)
	})

	t.Run("EmptyData", func(t *testing.T) {
		policies, err := LoadPoliciesFromBytes(nil, FormatYAML)
		require.NoError(t, err)
		assert.Empty(t, policies)
	})

	t.Run("InvalidFormat", func(t *testing.T) {
		_, err := LoadPoliciesFromBytes([]byte("{}"), Format("toml"))
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("MalformedData", func(t *testing.T) {
		_, err := LoadPoliciesFromBytes([]byte("{not json"), FormatJSON)
		assert.ErrorIs(t, err, ErrParseFailed)
	})

	t.Run("UnknownCondition", func(t *testing.T) {
		data := []byte("svc:\n  condition: never\n")
		_, err := LoadPoliciesFromBytes(data, FormatYAML)
		assert.ErrorIs(t, err, ErrUnknownCondition)
	})
}

func TestLoadPolicies(t *testing.T) {
	t.Run("FromYAMLFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policies.yaml")
		require.NoError(t, os.WriteFile(path, []byte(policiesYAML), 0o600))

		policies, err := LoadPolicies(path)
		require.NoError(t, err)
		assert.Equal(t, 5, policies["checkpoint"].MaxAttempts)
	})

	t.Run("FromJSONFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policies.json")
		require.NoError(t, os.WriteFile(path, []byte(policiesJSON), 0o600))

		policies, err := LoadPolicies(path)
		require.NoError(t, err)
		assert.Equal(t, 200*time.Millisecond, policies["checkpoint"].BaseDelay)
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := LoadPolicies("")
		assert.ErrorIs(t, err, ErrEmptyPath)
	})

	t.Run("UnknownExtension", func(t *testing.T) {
		_, err := LoadPolicies("policies.toml")
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadPolicies(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, ErrLoadFailed)
	})
}
