// Package response 统一 HTTP JSON 响应格式
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/crm/pkg/logger"
)

// Response 通用响应体
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Detail  string `json:"detail,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// Success 200 成功响应
func Success(c *gin.Context, data any) {
	SuccessWithStatus(c, http.StatusOK, data)
}

// SuccessWithStatus 指定状态码的成功响应
func SuccessWithStatus(c *gin.Context, status int, data any) {
	c.JSON(status, Response{
		Code:    0,
		Message: "success",
		Data:    data,
		TraceID: logger.TraceID(c.Request.Context()),
	})
}

// ErrorWithStatus 错误响应，code 与 HTTP 状态码一致
func ErrorWithStatus(c *gin.Context, status int, message, detail string) {
	c.AbortWithStatusJSON(status, Response{
		Code:    status,
		Message: message,
		Detail:  detail,
		TraceID: logger.TraceID(c.Request.Context()),
	})
}

// ErrorWithData 错误响应，附带业务数据（例如校验失败的字段列表）
func ErrorWithData(c *gin.Context, status int, message string, data any) {
	c.AbortWithStatusJSON(status, Response{
		Code:    status,
		Message: message,
		Data:    data,
		TraceID: logger.TraceID(c.Request.Context()),
	})
}
