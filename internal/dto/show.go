package dto

import (
	"encoding/json"
	"time"

	"showplan/backend/internal/model"
)

// ReplaceShowMCsRequest 整体替换节目主持人分配
type ReplaceShowMCsRequest struct {
	MCs []model.PlanMC `json:"mcs"`
}

// ReplaceShowPlatformsRequest 整体替换节目平台分配
type ReplaceShowPlatformsRequest struct {
	Platforms []model.PlanPlatform `json:"platforms"`
}

// ShowMCListRequest 主持人分配列表请求
type ShowMCListRequest struct {
	IncludeDeleted bool `form:"include_deleted"`
}

// ShowResponse 节目详情
type ShowResponse struct {
	ShowID         string                 `json:"show_id"`
	ScheduleID     string                 `json:"schedule_id,omitempty"`
	PlanKey        string                 `json:"plan_key,omitempty"`
	ClientID       string                 `json:"client_id,omitempty"`
	StudioRoomID   string                 `json:"studio_room_id,omitempty"`
	ShowTypeID     string                 `json:"show_type_id"`
	ShowStatusID   string                 `json:"show_status_id"`
	ShowStandardID string                 `json:"show_standard_id"`
	Name           string                 `json:"name"`
	StartTime      time.Time              `json:"start_time"`
	EndTime        time.Time              `json:"end_time"`
	Metadata       json.RawMessage        `json:"metadata,omitempty"`
	MCs            []ShowMCResponse       `json:"mcs"`
	Platforms      []ShowPlatformResponse `json:"platforms"`
}

// ShowMCResponse 主持人分配
type ShowMCResponse struct {
	ShowMCID  string          `json:"show_mc_id"`
	ShowID    string          `json:"show_id"`
	MCID      string          `json:"mc_id"`
	Note      *string         `json:"note,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	DeletedAt *time.Time      `json:"deleted_at,omitempty"`
	DeletedBy string          `json:"deleted_by,omitempty"`
}

// ShowPlatformResponse 平台分配
type ShowPlatformResponse struct {
	ShowPlatformID string          `json:"show_platform_id"`
	ShowID         string          `json:"show_id"`
	PlatformID     string          `json:"platform_id"`
	LiveStreamLink *string         `json:"live_stream_link,omitempty"`
	PlatformShowID *string         `json:"platform_show_id,omitempty"`
	ViewerCount    int             `json:"viewer_count"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ReconcileResultResponse 一次分配对账的结果（内部 ID 列表）
type ReconcileResultResponse struct {
	Created     []string `json:"created"`
	Updated     []string `json:"updated"`
	Unchanged   []string `json:"unchanged"`
	SoftDeleted []string `json:"soft_deleted"`
}
