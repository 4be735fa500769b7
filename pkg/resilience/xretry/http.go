package xretry

import (
	"context"
	"io"
	"net/http"
)

// 失败响应 body 的最大排空字节数。
// 排空使底层连接可以复用，超过上限直接关闭连接。
const drainLimit = 64 << 10

// DoRequest 执行带重试的 HTTP 请求
//
// build 在每次尝试时被调用以构造新请求（GetBody 不可重用的场景下
// 这是唯一安全的重放方式）。非 2xx 响应被转换为 *Failure（KindHTTP），
// 交由策略的 RetryIf 判定是否重试；2xx 响应原样返回，body 由调用方关闭。
//
// client 为 nil 时使用 http.DefaultClient。
//
// 示例:
//
//	resp, err := xretry.DoRequest(ctx, nil,
//	    xretry.NewRetryer(xretry.HTTPCallPolicy()),
//	    func(ctx context.Context) (*http.Request, error) {
//	        return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
//	    })
func DoRequest(ctx context.Context, client *http.Client, r *Retryer, build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	if build == nil {
		return nil, ErrNilFunc
	}
	if client == nil {
		client = http.DefaultClient
	}

	return DoWithResult(ctx, r, func(ctx context.Context) (*http.Response, error) {
		req, err := build(ctx)
		if err != nil {
			// 请求构造失败是调用方代码问题，重放不会改变结果
			return nil, Unrecoverable(err)
		}

		resp, err := client.Do(req.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		// 排空并关闭失败响应的 body，让连接可以复用
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
		_ = resp.Body.Close()

		return nil, NewHTTPFailure(resp.StatusCode, resp.Status)
	})
}
