package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"showplan/backend/pkg/response"
)

// BodyLimit 全局请求体大小限制中间件，计划文档整体提交时生效
// maxBytes: 允许的最大请求体字节数（如 4<<20 = 4MB）
//
// 声明了 Content-Length 的请求直接按长度拒绝；分块传输的请求由
// MaxBytesReader 截断，超限时解码失败并由 Handler 返回参数错误。
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 || c.Request.Body == nil {
			c.Next()
			return
		}

		if c.Request.ContentLength > maxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
