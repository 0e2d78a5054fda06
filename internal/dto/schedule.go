package dto

import (
	"encoding/json"
	"time"
)

// ── 排期请求 ──

// CreateScheduleRequest 创建排期请求
type CreateScheduleRequest struct {
	Name      string    `json:"name"       binding:"required,max=128"`
	ClientID  string    `json:"client_id"  binding:"omitempty,max=64"` // 客户外部 uid
	StartDate time.Time `json:"start_date" binding:"required"`
	EndDate   time.Time `json:"end_date"   binding:"required,gtfield=StartDate"`
}

// UpdatePlanRequest 保存计划文档请求
type UpdatePlanRequest struct {
	Version      int             `json:"version"       binding:"required,min=1"`
	PlanDocument json.RawMessage `json:"plan_document" binding:"required"`
}

// PatchPlanRequest 以 RFC 6902 JSON Patch 增量修改计划文档
type PatchPlanRequest struct {
	Version int             `json:"version" binding:"required,min=1"`
	Patch   json.RawMessage `json:"patch"   binding:"required"`
}

// PublishScheduleRequest 发布排期请求
type PublishScheduleRequest struct {
	Version int `json:"version" binding:"required,min=1"`
}

// ── 排期响应 ──

// ScheduleResponse 排期响应
type ScheduleResponse struct {
	ScheduleID   string          `json:"schedule_id"`
	Name         string          `json:"name"`
	ClientID     string          `json:"client_id,omitempty"`
	StartDate    time.Time       `json:"start_date"`
	EndDate      time.Time       `json:"end_date"`
	Status       string          `json:"status"`
	Version      int             `json:"version"`
	PlanDocument json.RawMessage `json:"plan_document"`
	PublishedAt  *time.Time      `json:"published_at,omitempty"`
	PublishedBy  string          `json:"published_by,omitempty"`
	CreatedBy    string          `json:"created_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// PublishScheduleResponse 发布结果
// 原地更新的节目不计入 ShowsCreated / ShowsDeleted
type PublishScheduleResponse struct {
	Schedule     ScheduleResponse `json:"schedule"`
	ShowsCreated int              `json:"shows_created"`
	ShowsDeleted int              `json:"shows_deleted"`
}

// ── 校验 ──

// 校验问题类型
const (
	IssueInvalidTimeRange   = "invalid_time_range"
	IssueOutOfScheduleRange = "out_of_schedule_range"
	IssueMCDoubleBooked     = "mc_double_booked"
	IssueRoomConflict       = "room_conflict"
	IssueDuplicateShowID    = "duplicate_show_id"
	IssueDuplicateMC        = "duplicate_mc"
	IssueDuplicatePlatform  = "duplicate_platform"
	IssueInvalidField       = "invalid_field"

	IssueNoMCs             = "no_mcs"
	IssueNoPlatforms       = "no_platforms"
	IssueShowCountMismatch = "show_count_mismatch"
)

// ValidationIssue 单条校验问题
type ValidationIssue struct {
	Type    string   `json:"type"`
	Message string   `json:"message"`
	ShowIDs []string `json:"show_ids,omitempty"` // 涉及的计划条目 temp_id
	Ref     string   `json:"ref,omitempty"`      // 涉及的主持人/直播间 uid
}

// ValidationResult 计划文档校验结果（只读建议性检查）
type ValidationResult struct {
	IsValid  bool              `json:"is_valid"`
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
}
