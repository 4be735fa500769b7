package xretry

import "context"

// ExecuteProgressive 按重要性等级执行带重试的操作
//
// 根据 level 选择 PolicyForImportance 的预设策略，其余执行环境
// （名称、日志、观测、抖动窗口）通过 opts 配置。
//
// 示例:
//
//	value, err := xretry.ExecuteProgressive(ctx, xretry.ImportanceCritical,
//	    func(ctx context.Context) (string, error) {
//	        return fetchCriticalData(ctx)
//	    })
func ExecuteProgressive[T any](ctx context.Context, level Importance, fn func(ctx context.Context) (T, error), opts ...RetryerOption) (T, error) {
	return DoWithResult(ctx, NewRetryer(PolicyForImportance(level), opts...), fn)
}
