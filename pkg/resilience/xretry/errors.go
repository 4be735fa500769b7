package xretry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// 参数校验错误
var (
	// ErrNilRetryer 传入的 Retryer 为 nil
	ErrNilRetryer = errors.New("xretry: retryer cannot be nil")

	// ErrNilContext 传入的 context 为 nil
	ErrNilContext = errors.New("xretry: context cannot be nil")

	// ErrNilFunc 传入的操作函数为 nil
	ErrNilFunc = errors.New("xretry: function cannot be nil")

	// ErrNilDebouncer 传入的 Debouncer 为 nil
	ErrNilDebouncer = errors.New("xretry: debouncer cannot be nil")
)

// RetryableError 可重试错误接口
// 实现此接口的错误会被 DefaultRetryCondition 直接采信其判定结果。
type RetryableError interface {
	error
	Retryable() bool
}

// Kind 失败类别
type Kind int

const (
	// KindUnknown 未分类失败
	KindUnknown Kind = iota
	// KindNetwork 网络层失败（连接被拒、重置、不可达等）
	KindNetwork
	// KindTimeout 超时类失败
	KindTimeout
	// KindHTTP HTTP 响应失败，HTTPStatus 字段有效
	KindHTTP
	// KindRemote 远程服务返回的状态码失败，RemoteCode 字段有效
	KindRemote
)

// String 返回 Kind 的可读字符串表示。
func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "unknown"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindHTTP:
		return "http"
	case KindRemote:
		return "remote"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Failure 带类别标注的失败
//
// 在传输边界（HTTP 响应、RPC 返回）构造 Failure，使上层的重试判定
// 不依赖对底层错误的字符串匹配。
// 设计决策: Kind/HTTPStatus/RemoteCode 保留为导出字段，便于调用方
// 在日志和降级逻辑中直接读取，与内部错误链传递的 cause 区分开。
type Failure struct {
	Kind       Kind       // 失败类别
	HTTPStatus int        // HTTP 状态码，仅 KindHTTP 有效
	RemoteCode codes.Code // 远程状态码，仅 KindRemote 有效
	Message    string     // 人类可读的描述
	cause      error      // 原始错误，可为 nil
}

// Error 实现 error 接口
func (f *Failure) Error() string {
	switch f.Kind {
	case KindHTTP:
		if f.Message != "" {
			return fmt.Sprintf("http %d: %s", f.HTTPStatus, f.Message)
		}
		return fmt.Sprintf("http %d", f.HTTPStatus)
	case KindRemote:
		if f.Message != "" {
			return fmt.Sprintf("remote %s: %s", f.RemoteCode, f.Message)
		}
		return fmt.Sprintf("remote %s", f.RemoteCode)
	default:
		if f.Message != "" {
			return f.Message
		}
		if f.cause != nil {
			return f.cause.Error()
		}
		return f.Kind.String() + " failure"
	}
}

// Unwrap 实现 errors.Unwrap 接口
func (f *Failure) Unwrap() error {
	return f.cause
}

// Retryable 实现 RetryableError 接口
//
// 判定规则与 DefaultRetryCondition 一致：
//   - KindNetwork / KindTimeout：可重试
//   - KindHTTP：5xx、429、408 可重试
//   - KindRemote：Unavailable、DeadlineExceeded 可重试
//   - KindUnknown：不可重试
func (f *Failure) Retryable() bool {
	switch f.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindHTTP:
		return retryableHTTPStatus(f.HTTPStatus)
	case KindRemote:
		return retryableRemoteCode(f.RemoteCode)
	default:
		return false
	}
}

// NewHTTPFailure 构造 HTTP 响应失败。
func NewHTTPFailure(statusCode int, message string) *Failure {
	return &Failure{Kind: KindHTTP, HTTPStatus: statusCode, Message: message}
}

// NewRemoteFailure 构造远程状态码失败。
func NewRemoteFailure(code codes.Code, message string) *Failure {
	return &Failure{Kind: KindRemote, RemoteCode: code, Message: message}
}

// NewNetworkFailure 构造网络层失败。
func NewNetworkFailure(cause error) *Failure {
	return &Failure{Kind: KindNetwork, cause: cause}
}

// NewTimeoutFailure 构造超时失败。
func NewTimeoutFailure(cause error) *Failure {
	return &Failure{Kind: KindTimeout, cause: cause}
}

// Classify 将任意错误归类为 Failure。
// 已经是 *Failure 的错误原样返回；其余按网络/超时/gRPC 状态归类，
// 无法识别的错误归为 KindUnknown。
func Classify(err error) *Failure {
	if err == nil {
		return nil
	}

	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	if isTimeoutError(err) {
		return &Failure{Kind: KindTimeout, cause: err}
	}
	if isNetworkError(err) {
		return &Failure{Kind: KindNetwork, cause: err}
	}
	if s, ok := status.FromError(err); ok && s.Code() != codes.OK {
		return &Failure{Kind: KindRemote, RemoteCode: s.Code(), Message: s.Message(), cause: err}
	}

	return &Failure{Kind: KindUnknown, cause: err}
}

// PermanentError 永久性错误（不应重试）
type PermanentError struct {
	Err error
}

// NewPermanentError 创建永久性错误
func NewPermanentError(err error) *PermanentError {
	return &PermanentError{Err: err}
}

func (e *PermanentError) Error() string {
	if e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func (e *PermanentError) Retryable() bool {
	return false
}

// TemporaryError 临时性错误（应该重试）
type TemporaryError struct {
	Err error
}

// NewTemporaryError 创建临时性错误
func NewTemporaryError(err error) *TemporaryError {
	return &TemporaryError{Err: err}
}

func (e *TemporaryError) Error() string {
	if e.Err == nil {
		return "temporary error"
	}
	return e.Err.Error()
}

func (e *TemporaryError) Unwrap() error {
	return e.Err
}

func (e *TemporaryError) Retryable() bool {
	return true
}

// DefaultRetryCondition 默认的可重试判定。
//
// 规则（按顺序）：
//   - nil：不重试
//   - 实现 RetryableError 接口（Failure/PermanentError/TemporaryError 等）：
//     采信 Retryable() 的判定
//   - context.Canceled / context.DeadlineExceeded：不重试（调用方已放弃）
//   - 超时类错误（net.Error.Timeout、ETIMEDOUT）：重试
//   - 网络类错误（ECONNREFUSED、ECONNRESET、ENETUNREACH 等）：重试
//   - gRPC Unavailable / DeadlineExceeded：重试
//   - 其余：不重试
//
// 设计决策: 未知错误默认不重试。重试放大流量，只有明确的瞬时故障
// 信号才值得重试；需要宽松语义的调用方可自定义 RetryIf。
func DefaultRetryCondition(err error) bool {
	if err == nil {
		return false
	}

	var re RetryableError
	if errors.As(err, &re) {
		return re.Retryable()
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if isTimeoutError(err) || isNetworkError(err) {
		return true
	}

	if s, ok := status.FromError(err); ok {
		return retryableRemoteCode(s.Code())
	}

	return false
}

// AuthRetryCondition 认证敏感调用的可重试判定。
//
// 在 DefaultRetryCondition 基础上强制以下错误不重试：
//   - HTTP 401 Unauthorized / 403 Forbidden
//   - gRPC Unauthenticated / PermissionDenied
//
// 凭证失效重试只会重复失败，应该让调用方立即走刷新凭证的路径。
func AuthRetryCondition(err error) bool {
	var f *Failure
	if errors.As(err, &f) {
		if f.Kind == KindHTTP && isAuthHTTPStatus(f.HTTPStatus) {
			return false
		}
		if f.Kind == KindRemote && isAuthRemoteCode(f.RemoteCode) {
			return false
		}
	}
	if s, ok := status.FromError(err); ok && isAuthRemoteCode(s.Code()) {
		return false
	}
	return DefaultRetryCondition(err)
}

// IsRetryable 检查错误是否可重试，等价于 DefaultRetryCondition。
func IsRetryable(err error) bool {
	return DefaultRetryCondition(err)
}

// IsPermanent 检查非 nil 错误是否不可重试。
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	return !DefaultRetryCondition(err)
}

// retryableHTTPStatus 判定 HTTP 状态码是否可重试。
// 5xx 为服务端故障，429 为限流，408 为请求超时，均可能随时间恢复。
func retryableHTTPStatus(code int) bool {
	if code >= 500 && code < 600 {
		return true
	}
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

// retryableRemoteCode 判定 gRPC 状态码是否可重试。
func retryableRemoteCode(code codes.Code) bool {
	return code == codes.Unavailable || code == codes.DeadlineExceeded
}

func isAuthHTTPStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

func isAuthRemoteCode(code codes.Code) bool {
	return code == codes.Unauthenticated || code == codes.PermissionDenied
}

// isTimeoutError 判定是否为超时类错误。
func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ETIMEDOUT)
}

// isNetworkError 判定是否为网络层错误。
func isNetworkError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
