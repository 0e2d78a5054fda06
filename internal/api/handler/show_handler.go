package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"showplan/backend/internal/dto"
	"showplan/backend/internal/service"
	pkgerrors "showplan/backend/pkg/errors"
	"showplan/backend/pkg/response"
)

// ShowHandler 节目模块 HTTP 处理器
type ShowHandler struct {
	showSvc service.ShowService
}

// NewShowHandler 创建 ShowHandler
func NewShowHandler(showSvc service.ShowService) *ShowHandler {
	return &ShowHandler{showSvc: showSvc}
}

// GetShow 节目详情（含有效分配）
// GET /api/v1/shows/:id
func (h *ShowHandler) GetShow(c *gin.Context) {
	show, err := h.showSvc.GetShow(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleShowError(c, err)
		return
	}

	response.OK(c, show)
}

// ListMCs 节目主持人分配，include_deleted=true 时包含历史
// GET /api/v1/shows/:id/mcs
func (h *ShowHandler) ListMCs(c *gin.Context) {
	var req dto.ShowMCListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, 14001, err)
		return
	}

	list, err := h.showSvc.ListShowMCs(c.Request.Context(), c.Param("id"), req.IncludeDeleted)
	if err != nil {
		h.handleShowError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// ReplaceMCs 整体替换节目主持人
// PUT /api/v1/shows/:id/mcs
func (h *ShowHandler) ReplaceMCs(c *gin.Context) {
	var req dto.ReplaceShowMCsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 14001, err)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.showSvc.ReplaceShowMCs(c.Request.Context(), c.Param("id"), req.MCs, callerID)
	if err != nil {
		h.handleShowError(c, err)
		return
	}

	response.OK(c, result)
}

// ReplacePlatforms 整体替换节目平台
// PUT /api/v1/shows/:id/platforms
func (h *ShowHandler) ReplacePlatforms(c *gin.Context) {
	var req dto.ReplaceShowPlatformsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 14001, err)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.showSvc.ReplaceShowPlatforms(c.Request.Context(), c.Param("id"), req.Platforms, callerID)
	if err != nil {
		h.handleShowError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *ShowHandler) handleShowError(c *gin.Context, err error) {
	var unresolved *pkgerrors.UnresolvedKeyError
	switch {
	case errors.Is(err, service.ErrShowNotFound):
		response.NotFound(c, 14101, "节目不存在")
	case errors.As(err, &unresolved):
		response.NotFound(c, 14102, unresolved.Error())
	case errors.Is(err, service.ErrDuplicateNaturalKey):
		response.BadRequest(c, 14103, pkgerrors.Message(err))
	default:
		handleKindError(c, err)
	}
}
