package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// Codes of the pipeline error taxonomy.
const (
	CodeUnknown       = 0
	CodeConfigMissing = 1001 // 缺少凭证或必填配置，发生在任何网络调用之前
	CodeUpstream      = 1002 // 上游接口返回非 2xx
	CodeParse         = 1003 // 上游返回内容无法解析
	CodeProcess       = 1004 // 外部进程失败（非零退出或无法启动）
	CodePrecondition  = 1005 // 前置条件不满足（文件缺失、时长非法等）
	CodeNotFound      = 1006
	CodeConflict      = 1007
)

// Error carries a code, the wrapped cause, a captured stack and key/value context.
type Error struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Err     error      `json:"-"` // 原始错误，不序列化
	Stack   string     `json:"stack,omitempty"`
	Context []KeyValue `json:"context,omitempty"`
}

type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error {
	return e.Err
}

func WithCode(code int, message string) *Error {
	return &Error{Code: code, Message: message, Stack: captureStack()}
}

func WithCodef(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Stack: captureStack()}
}

// Wrap wraps err with message. The code of the innermost coded error is kept.
func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: GetCode(err), Message: message, Err: err, Stack: captureStack()}
}

func Wrapf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: GetCode(err), Message: fmt.Sprintf(format, args...), Err: err, Stack: captureStack()}
}

// WrapCode wraps err and forces code.
func WrapCode(err error, code int, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err, Stack: captureStack()}
}

func New(message string) *Error {
	return &Error{Message: message, Stack: captureStack()}
}

func Errorf(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Stack: captureStack()}
}

// ConfigMissing reports an absent credential or setting by its variable name.
func ConfigMissing(name string) *Error {
	return WithCodef(CodeConfigMissing, "%s is not configured", name).WithContext("setting", name)
}

func Precondition(format string, args ...interface{}) *Error {
	return WithCodef(CodePrecondition, format, args...)
}

// Upstream builds the error for a non-2xx reply. detail is the upstream message when
// the body carried one, otherwise the status text is used.
func Upstream(service string, status int, detail string) *Error {
	if detail == "" {
		detail = http.StatusText(status)
	}
	return WithCodef(CodeUpstream, "%s: %s", service, detail).
		WithContext("service", service).
		WithContext("status", fmt.Sprint(status))
}

// WithContext returns a copy of e with one more key/value pair.
func (e *Error) WithContext(key, value string) *Error {
	if e == nil {
		return nil
	}
	newErr := *e
	newErr.Context = make([]KeyValue, len(e.Context), len(e.Context)+1)
	copy(newErr.Context, e.Context)
	newErr.Context = append(newErr.Context, KeyValue{Key: key, Value: value})
	return &newErr
}

func (e *Error) WithContexts(kv map[string]string) *Error {
	if e == nil || len(kv) == 0 {
		return e
	}
	out := e
	for k, v := range kv {
		out = out.WithContext(k, v)
	}
	return out
}

func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	stack := string(buf[:n])

	// 去掉 goroutine 头以及 captureStack/构造函数本身
	lines := strings.Split(stack, "\n")
	if len(lines) > 5 {
		stack = strings.Join(lines[5:], "\n")
	}
	return strings.TrimSpace(stack)
}

// GetCode returns the first non-zero code found along the wrap chain.
func GetCode(err error) int {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return CodeUnknown
		}
		if e.Code != CodeUnknown {
			return e.Code
		}
		err = e.Err
	}
	return CodeUnknown
}

func GetMessage(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

func GetStack(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Stack
	}
	return ""
}

// HasCode reports whether err carries code anywhere in its chain.
func HasCode(err error, code int) bool {
	return GetCode(err) == code
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Cause returns the innermost error.
func Cause(err error) error {
	for err != nil {
		next := stderrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
	return err
}

// HTTPStatus maps an error code to the status the API answers with.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case CodePrecondition:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUpstream, CodeParse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%s", e.Error())
			for _, kv := range e.Context {
				fmt.Fprintf(s, "\n  %s=%s", kv.Key, kv.Value)
			}
			if e.Stack != "" {
				fmt.Fprintf(s, "\n%s", e.Stack)
			}
			return
		}
		fallthrough
	case 's':
		fmt.Fprintf(s, "%s", e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}
