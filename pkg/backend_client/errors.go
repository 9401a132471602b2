package backend_client

import (
	"errors"
	"fmt"
)

// ErrorKind 后端调用失败的分类
type ErrorKind string

const (
	// NetworkFailure 请求失败或返回非 2xx
	NetworkFailure ErrorKind = "network_failure"
	// MalformedResponse 响应体无法解析
	MalformedResponse ErrorKind = "malformed_response"
	// ApplicationError 响应可解析，但状态表示失败
	ApplicationError ErrorKind = "application_error"
	// NotFound 后端返回 404
	NotFound ErrorKind = "not_found"
)

// Error 后端调用错误
type Error struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.StatusCode > 0:
		return fmt.Sprintf("%s: %s (%d): %s", e.Op, e.Kind, e.StatusCode, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s: %s (%d)", e.Op, e.Kind, e.StatusCode)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage 返回适合展示给用户的错误信息
func (e *Error) UserMessage() string {
	switch {
	case e.Message != "":
		if e.Kind == NetworkFailure && e.StatusCode > 0 {
			return fmt.Sprintf("请求失败 (%d): %s", e.StatusCode, e.Message)
		}
		return e.Message
	case e.Kind == NotFound:
		return "请求的资源不存在"
	case e.Kind == MalformedResponse:
		return "后端返回了无法解析的数据"
	case e.StatusCode > 0:
		return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "未知错误"
	}
}

// KindOf 返回错误分类，非后端错误返回空
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// IsNotFound 判断是否为 404
func IsNotFound(err error) bool {
	return KindOf(err) == NotFound
}

// IsApplicationError 判断是否为业务失败
func IsApplicationError(err error) bool {
	return KindOf(err) == ApplicationError
}

// IsNetworkFailure 判断是否为网络或 HTTP 状态失败
func IsNetworkFailure(err error) bool {
	return KindOf(err) == NetworkFailure
}

// IsMalformed 判断是否为响应解析失败
func IsMalformed(err error) bool {
	return KindOf(err) == MalformedResponse
}

// Message 提取展示给用户的错误信息
func Message(err error) string {
	if err == nil {
		return ""
	}
	var be *Error
	if errors.As(err, &be) {
		return be.UserMessage()
	}
	return err.Error()
}
