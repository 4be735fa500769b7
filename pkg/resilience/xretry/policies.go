package xretry

import "time"

// Importance 操作重要性等级
//
// 等级越高，重试预算越大、延迟上限越高。
type Importance string

const (
	// ImportanceLow 低重要性：尽力而为，快速放弃
	ImportanceLow Importance = "low"
	// ImportanceMedium 中等重要性：默认等级
	ImportanceMedium Importance = "medium"
	// ImportanceHigh 高重要性：更多尝试、更长退避
	ImportanceHigh Importance = "high"
	// ImportanceCritical 关键操作：最大重试预算
	ImportanceCritical Importance = "critical"
)

// Valid 检查等级是否为已知值。
func (i Importance) Valid() bool {
	switch i {
	case ImportanceLow, ImportanceMedium, ImportanceHigh, ImportanceCritical:
		return true
	default:
		return false
	}
}

// DefaultPolicy 返回默认策略：3 次尝试，1s 起步、30s 封顶、倍增因子 2。
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   DefaultMaxAttempts,
		BaseDelay:     DefaultBaseDelay,
		MaxDelay:      DefaultMaxDelay,
		BackoffFactor: DefaultBackoffFactor,
	}
}

// PolicyForImportance 返回重要性等级对应的预设策略。
// 未知等级回退到 ImportanceMedium 的预设。
func PolicyForImportance(level Importance) Policy {
	switch level {
	case ImportanceLow:
		return Policy{
			MaxAttempts:   2,
			BaseDelay:     100 * time.Millisecond,
			MaxDelay:      time.Second,
			BackoffFactor: 2.0,
		}
	case ImportanceHigh:
		return Policy{
			MaxAttempts:   4,
			BaseDelay:     500 * time.Millisecond,
			MaxDelay:      5 * time.Second,
			BackoffFactor: 2.0,
		}
	case ImportanceCritical:
		return Policy{
			MaxAttempts:   5,
			BaseDelay:     time.Second,
			MaxDelay:      30 * time.Second,
			BackoffFactor: 2.0,
		}
	default:
		return Policy{
			MaxAttempts:   3,
			BaseDelay:     200 * time.Millisecond,
			MaxDelay:      2 * time.Second,
			BackoffFactor: 2.0,
		}
	}
}

// HTTPCallPolicy HTTP 调用预设：3 次尝试，500ms 起步、10s 封顶。
func HTTPCallPolicy() Policy {
	return Policy{
		MaxAttempts:   3,
		BaseDelay:     500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
	}
}

// RemoteCallPolicy 通用远程调用预设，与 DefaultPolicy 相同的退避参数。
func RemoteCallPolicy() Policy {
	return DefaultPolicy()
}

// AuthCallPolicy 认证敏感调用预设。
// 使用 AuthRetryCondition：401/403 与对应的 gRPC 认证错误不重试。
func AuthCallPolicy() Policy {
	p := DefaultPolicy()
	p.RetryIf = AuthRetryCondition
	return p
}
