package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"showplan/backend/internal/service"
	"showplan/backend/pkg/response"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportSchedule 导出排期节目单
// GET /api/v1/export/schedules/:id?format=xlsx|ics
func (h *ExportHandler) ExportSchedule(c *gin.Context) {
	file, err := h.exportSvc.ExportSchedule(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	encodedFilename := url.QueryEscape(file.Filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, file.ContentType, file.Content.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportFormat):
		response.BadRequest(c, 16001, "不支持的导出格式，可选 xlsx / ics")
	case errors.Is(err, service.ErrScheduleNotFound):
		response.NotFound(c, 16101, "排期不存在")
	case errors.Is(err, service.ErrExportNoShows):
		response.BadRequest(c, 16102, "排期尚无已发布的节目")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		handleKindError(c, err)
	}
}
