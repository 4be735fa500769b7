// Package xretry 提供面向远程调用的重试执行能力。
//
// # 设计理念
//
// xretry 以 Policy 值对象描述重试行为：
//   - MaxAttempts：最大尝试次数（包含首次尝试）
//   - BaseDelay / MaxDelay / BackoffFactor：指数退避参数
//   - RetryIf：错误是否可重试的判定函数
//   - OnRetry：每次重试前的通知回调
//
// 延迟计算为 min(BaseDelay * BackoffFactor^(attempt-1), MaxDelay) 再叠加
// [0, 1s) 的加性抖动。抖动叠加在封顶之后，因此实际延迟可能略微超过
// MaxDelay，这是为了保证即使到达退避上限，各调用方的重试时刻仍然分散。
//
// 底层使用 [avast/retry-go/v5] 实现重试循环。
//
// # 使用方式
//
// 方式一：使用 Retryer（需要完整结果时）
//
//	r := xretry.NewRetryer(xretry.DefaultPolicy())
//	outcome := xretry.Execute(ctx, r, func(ctx context.Context) (string, error) {
//	    return fetchData(ctx)
//	})
//	if outcome.Succeeded {
//	    use(outcome.Value)
//	}
//
// 方式二：包装远程调用（只关心最终值和错误时）
//
//	value, err := xretry.DoWithResult(ctx, r, fn)
//
// 方式三：直接使用 retry-go 风格（简单场景）
//
//	err := xretry.Do(ctx, func() error {
//	    return doSomething()
//	}, xretry.Attempts(3), xretry.MaxDelay(time.Second))
//
// # 错误分类
//
// DefaultRetryCondition 按传输语义判定错误是否可重试：网络错误、超时、
// HTTP 5xx/429/408、gRPC Unavailable/DeadlineExceeded 可重试，其余不可。
// AuthRetryCondition 在此基础上强制认证失败（401/403）不重试。
// 调用方也可通过 Failure、PermanentError、TemporaryError 显式标注错误。
//
// # 组合能力
//
//   - ExecuteBatch：并发执行一组独立操作，结果按输入顺序返回
//   - Debouncer：合并密集触发，静默期后只执行最后一次
//   - ExecuteProgressive：按重要性等级选择预设策略
//   - DoRequest：带重试的 HTTP 请求，非 2xx 响应转为 Failure
//
// [avast/retry-go/v5]: https://github.com/avast/retry-go
package xretry
