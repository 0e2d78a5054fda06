package dto

import (
	"encoding/json"
	"time"
)

// CreateSnapshotRequest 手动创建快照请求，reason 缺省为 manual
type CreateSnapshotRequest struct {
	Reason string `json:"reason" binding:"omitempty,oneof=auto_save manual pre_publish"`
}

// SnapshotListRequest 快照列表请求，order 缺省为 desc
type SnapshotListRequest struct {
	ListRequest
	Order string `form:"order" binding:"omitempty,oneof=asc desc"`
}

// RestoreSnapshotRequest 回滚到快照请求
type RestoreSnapshotRequest struct {
	Version int `json:"version" binding:"required,min=1"`
}

// SnapshotResponse 快照响应；列表中不返回计划文档
type SnapshotResponse struct {
	SnapshotID   string          `json:"snapshot_id"`
	ScheduleID   string          `json:"schedule_id"`
	Version      int             `json:"version"`
	Reason       string          `json:"reason"`
	CreatedBy    string          `json:"created_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	PlanDocument json.RawMessage `json:"plan_document,omitempty"`
}

// DiffOperation RFC 6902 JSON Patch 操作
type DiffOperation struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	From  string      `json:"from,omitempty"`
	Value interface{} `json:"value,omitempty"`
}

// SnapshotDiffResponse 快照与当前计划文档的差异（由快照指向当前）
type SnapshotDiffResponse struct {
	SnapshotID      string          `json:"snapshot_id"`
	SnapshotVersion int             `json:"snapshot_version"`
	CurrentVersion  int             `json:"current_version"`
	Operations      []DiffOperation `json:"operations"`
}
