// Package xbreaker 提供三态熔断器及其与重试的组合能力。
//
// # 状态机
//
// 熔断器有三个状态：
//   - Closed（关闭）：请求正常通过，连续失败被计数
//   - Open（打开）：请求被直接拒绝，不调用后端
//   - HalfOpen（半开）：放行单个探测请求以检测服务是否恢复
//
// 转换规则：
//   - Closed → Open：连续失败达到阈值（默认 5 次）
//   - Open → HalfOpen：距最后一次失败超过恢复超时（默认 60s）
//   - HalfOpen → Closed：探测成功，失败计数清零
//   - HalfOpen → Open：探测失败，重新计时
//
// Open 状态下的拒绝返回 BreakerError（包装 ErrOpenState），不计入
// 失败计数；HalfOpen 状态下探测进行中的并发请求收到 ErrTooManyRequests。
// Reset 是管理性操作，无条件回到 Closed 并清空计数。
//
// # 使用方式
//
//	b := xbreaker.NewBreaker("payment-api",
//	    xbreaker.WithFailureThreshold(5),
//	    xbreaker.WithRecoveryTimeout(30*time.Second),
//	)
//
//	result, err := xbreaker.Execute(ctx, b, func() (string, error) {
//	    return callRemoteService()
//	})
//	if xbreaker.IsOpen(err) {
//	    return fallbackValue, nil
//	}
//
// # 与重试组合
//
// BreakerError 实现 Retryable() 返回 false，与 xretry 组合时熔断
// 拒绝不会被重试。两种组合顺序见 BreakerRetryer 和 RetryThenBreak。
package xbreaker
