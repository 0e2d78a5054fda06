package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"showplan/backend/internal/dto"
	"showplan/backend/internal/service"
	pkgerrors "showplan/backend/pkg/errors"
	"showplan/backend/pkg/response"
)

// ScheduleHandler 排期模块 HTTP 处理器
type ScheduleHandler struct {
	scheduleSvc service.ScheduleService
}

// NewScheduleHandler 创建 ScheduleHandler
func NewScheduleHandler(scheduleSvc service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{scheduleSvc: scheduleSvc}
}

// CreateSchedule 创建草稿排期
// POST /api/v1/schedules
func (h *ScheduleHandler) CreateSchedule(c *gin.Context) {
	var req dto.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 13001, err)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	schedule, err := h.scheduleSvc.CreateSchedule(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.Created(c, schedule)
}

// GetSchedule 获取排期（含计划文档）
// GET /api/v1/schedules/:id
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	schedule, err := h.scheduleSvc.GetSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, schedule)
}

// UpdatePlan 保存计划文档
// PUT /api/v1/schedules/:id/plan
func (h *ScheduleHandler) UpdatePlan(c *gin.Context) {
	var req dto.UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 13001, err)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	schedule, err := h.scheduleSvc.UpdatePlanDocument(c.Request.Context(), c.Param("id"), req.PlanDocument, req.Version, callerID)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, schedule)
}

// PatchPlan 以 JSON Patch 增量修改计划文档
// PATCH /api/v1/schedules/:id/plan
func (h *ScheduleHandler) PatchPlan(c *gin.Context) {
	var req dto.PatchPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 13001, err)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	schedule, err := h.scheduleSvc.PatchPlanDocument(c.Request.Context(), c.Param("id"), req.Patch, req.Version, callerID)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, schedule)
}

// Validate 校验计划文档
// POST /api/v1/schedules/:id/validate
func (h *ScheduleHandler) Validate(c *gin.Context) {
	result, err := h.scheduleSvc.ValidateSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, result)
}

// Publish 发布排期
// POST /api/v1/schedules/:id/publish
func (h *ScheduleHandler) Publish(c *gin.Context) {
	var req dto.PublishScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 13001, err)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.scheduleSvc.PublishSchedule(c.Request.Context(), c.Param("id"), req.Version, callerID)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, result)
}

// ── 快照 ──

// ListSnapshots 快照列表
// GET /api/v1/schedules/:id/snapshots?limit=&offset=&order=
func (h *ScheduleHandler) ListSnapshots(c *gin.Context) {
	var req dto.SnapshotListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, 13001, err)
		return
	}

	list, total, err := h.scheduleSvc.ListSnapshots(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, dto.ListResponse{
		List:   list,
		Total:  total,
		Limit:  req.Limit,
		Offset: req.GetOffset(),
	})
}

// CreateSnapshot 手动创建快照，请求体可省略
// POST /api/v1/schedules/:id/snapshots
func (h *ScheduleHandler) CreateSnapshot(c *gin.Context) {
	var req dto.CreateSnapshotRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindFailed(c, 13001, err)
			return
		}
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	snapshot, err := h.scheduleSvc.CreateManualSnapshot(c.Request.Context(), c.Param("id"), req.Reason, callerID)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.Created(c, snapshot)
}

// GetSnapshot 快照详情（含计划文档）
// GET /api/v1/schedules/:id/snapshots/:snapshot_id
func (h *ScheduleHandler) GetSnapshot(c *gin.Context) {
	snapshot, err := h.scheduleSvc.GetSnapshot(c.Request.Context(), c.Param("id"), c.Param("snapshot_id"))
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, snapshot)
}

// DiffSnapshot 快照与当前计划文档的差异
// GET /api/v1/schedules/:id/snapshots/:snapshot_id/diff
func (h *ScheduleHandler) DiffSnapshot(c *gin.Context) {
	diff, err := h.scheduleSvc.DiffSnapshot(c.Request.Context(), c.Param("id"), c.Param("snapshot_id"))
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, diff)
}

// RestoreSnapshot 将计划文档回滚到快照
// POST /api/v1/schedules/:id/snapshots/:snapshot_id/restore
func (h *ScheduleHandler) RestoreSnapshot(c *gin.Context) {
	var req dto.RestoreSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 13001, err)
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	schedule, err := h.scheduleSvc.RestoreSnapshot(c.Request.Context(), c.Param("id"), c.Param("snapshot_id"), req.Version, callerID)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, schedule)
}

// handleScheduleError 统一处理排期模块业务错误
func (h *ScheduleHandler) handleScheduleError(c *gin.Context, err error) {
	var unresolved *pkgerrors.UnresolvedKeyError
	switch {
	case errors.Is(err, service.ErrScheduleNotFound):
		response.NotFound(c, 13101, "排期不存在")
	case errors.Is(err, service.ErrSnapshotNotFound):
		response.NotFound(c, 13102, "快照不存在")
	case errors.Is(err, service.ErrVersionConflict):
		response.Conflict(c, 13103, "排期已被其他操作修改，请刷新后重试")
	case errors.Is(err, service.ErrScheduleNotDraft):
		response.BadRequest(c, 13104, "排期非草稿状态，不可执行此操作")
	case errors.Is(err, service.ErrScheduleNoCreator):
		response.BadRequest(c, 13105, "排期缺少创建人，无法发布")
	case errors.As(err, &unresolved):
		response.NotFound(c, 13106, unresolved.Error())
	case errors.Is(err, service.ErrDuplicateNaturalKey):
		response.BadRequest(c, 13107, pkgerrors.Message(err))
	case errors.Is(err, service.ErrInvalidSnapshotReason):
		response.BadRequest(c, 13108, "快照原因不合法")
	case errors.Is(err, service.ErrInvalidShowTime):
		response.BadRequest(c, 13109, pkgerrors.Message(err))
	default:
		handleKindError(c, err)
	}
}
