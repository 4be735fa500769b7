package xretry

import "time"

// Outcome 一次重试执行的完整结果
//
// Execute 永远返回 Outcome 而不直接返回 error，调用方通过 Succeeded
// 区分成败。需要普通 (T, error) 签名时使用 DoWithResult。
type Outcome[T any] struct {
	// Succeeded 表示是否最终成功
	Succeeded bool

	// Value 成功时的返回值，失败时为零值
	Value T

	// Err 失败时的最后一次错误，成功时为 nil
	Err error

	// Attempts 报告的尝试次数。
	// 成功时为实际执行次数；失败时统一报告为策略的 MaxAttempts，
	// 即使判定函数提前终止了重试。参数错误（nil fn 等）时为 0。
	//
	// 设计决策: 失败时不报告实际次数，而是归一化为预算上限。
	// 调用方据此读到的是"重试预算已耗尽"，无需关心提前终止的细节；
	// 需要逐次信息时通过 OnRetry 回调获取。
	Attempts int

	// Elapsed 从首次尝试到返回的总耗时（含退避等待）
	Elapsed time.Duration
}
