package xretry

import "time"

// 默认策略参数
const (
	// DefaultMaxAttempts 默认最大尝试次数（包含首次尝试）
	DefaultMaxAttempts = 3

	// DefaultBaseDelay 默认初始延迟
	DefaultBaseDelay = time.Second

	// DefaultMaxDelay 默认延迟上限（不含抖动）
	DefaultMaxDelay = 30 * time.Second

	// DefaultBackoffFactor 默认退避倍增因子
	DefaultBackoffFactor = 2.0
)

// Policy 重试策略
//
// Policy 是纯值对象，零值字段在执行时由 withDefaults 补齐为默认值。
// 同一个 Policy 可被多个 Retryer 并发复用。
//
// 设计决策: 采用导出字段的值结构体而非接口，因为策略的四个参数
// 语义稳定且需要从配置文件反序列化。需要逐次动态判断时用 RetryIf 扩展。
type Policy struct {
	// MaxAttempts 最大尝试次数（包含首次尝试），最小为 1。
	// 0 表示使用默认值 3。
	MaxAttempts int

	// BaseDelay 首次重试前的基础延迟。0 表示使用默认值 1s。
	BaseDelay time.Duration

	// MaxDelay 延迟封顶值（不含抖动）。0 表示使用默认值 30s。
	// 允许 MaxDelay < BaseDelay：封顶取 min 语义，首次延迟即为 MaxDelay。
	MaxDelay time.Duration

	// BackoffFactor 每次重试的延迟倍增因子（>= 1.0）。
	// 0 表示使用默认值 2.0，小于 1.0 的值同样回退到默认值。
	BackoffFactor float64

	// RetryIf 判定错误是否可重试。nil 表示使用 DefaultRetryCondition。
	RetryIf func(err error) bool

	// OnRetry 每次重试前的通知回调。
	// attempt 表示刚失败的尝试序号（从 1 开始）。
	// 回调内的 panic 会被捕获并记录，不会中断重试流程。
	OnRetry func(attempt int, err error)
}

// withDefaults 返回补齐默认值后的副本。
func (p Policy) withDefaults() Policy {
	if p.MaxAttempts < 0 {
		p.MaxAttempts = 1
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.BackoffFactor < 1 {
		p.BackoffFactor = DefaultBackoffFactor
	}
	if p.RetryIf == nil {
		p.RetryIf = DefaultRetryCondition
	}
	return p
}
