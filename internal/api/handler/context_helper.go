package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	pkgerrors "showplan/backend/pkg/errors"
	"showplan/backend/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	v, exists := c.Get("role")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// handleKindError 按错误分类兜底输出响应
// 各模块先匹配自身业务错误码，未匹配的交由此处
//
//	Conflict → 409   NotFound → 404   BadRequest / State → 400   Persistence → 503
func handleKindError(c *gin.Context, err error) {
	msg := pkgerrors.Message(err)
	switch {
	case errors.Is(err, pkgerrors.ErrConflict):
		response.Conflict(c, 40900, msg)
	case errors.Is(err, pkgerrors.ErrNotFound):
		response.NotFound(c, 40400, msg)
	case errors.Is(err, pkgerrors.ErrBadRequest), errors.Is(err, pkgerrors.ErrState):
		response.BadRequest(c, 40000, msg)
	case errors.Is(err, pkgerrors.ErrPersistence):
		response.ServiceUnavailable(c, 50300, "存储暂不可用，请稍后重试")
	default:
		response.InternalError(c)
	}
}

// bindFailed 请求绑定或字段校验失败，字段级原因放在 details
func bindFailed(c *gin.Context, code int, err error) {
	response.ErrorWithDetails(c, http.StatusBadRequest, code, "参数校验失败", err.Error())
}
