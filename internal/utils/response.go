package utils

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应格式
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, Response{
		Code:    code,
		Message: message,
	})
}

// NotFound 404错误
func NotFound(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusNotFound, message)
}

// InternalError 500错误
func InternalError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusInternalServerError, message)
}

// htmx 响应头
const (
	HeaderRetarget = "HX-Retarget"
	HeaderReswap   = "HX-Reswap"
	HeaderTrigger  = "HX-Trigger"
)

// HTML 输出 HTML 片段
func HTML(c *gin.Context, code int, fragment template.HTML) {
	c.Data(code, "text/html; charset=utf-8", []byte(fragment))
}

// Fragment 输出 200 的 HTML 片段
func Fragment(c *gin.Context, fragment template.HTML) {
	HTML(c, http.StatusOK, fragment)
}

// Retarget 让客户端把片段换到另一个区域
func Retarget(c *gin.Context, selector, swap string, fragment template.HTML) {
	c.Header(HeaderRetarget, selector)
	if swap != "" {
		c.Header(HeaderReswap, swap)
	}
	Fragment(c, fragment)
}

// Discard 响应已过期，客户端不做替换
func Discard(c *gin.Context) {
	c.Header(HeaderReswap, "none")
	c.Status(http.StatusNoContent)
}

// Trigger 响应后在客户端触发事件，如 refresh-history
func Trigger(c *gin.Context, event string) {
	c.Header(HeaderTrigger, event)
}

// Notify 不替换页面，只触发 show-message 事件显示提示
func Notify(c *gin.Context, level, message string) {
	payload, _ := json.Marshal(map[string]map[string]string{
		"show-message": {"level": level, "message": message},
	})
	c.Header(HeaderTrigger, string(payload))
	c.Header(HeaderReswap, "none")
	c.Status(http.StatusOK)
}
