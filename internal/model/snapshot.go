package model

import (
	"time"

	"gorm.io/datatypes"
)

// 快照原因
const (
	SnapshotReasonAutoSave   = "auto_save"   // 计划编辑、回滚前自动保存
	SnapshotReasonManual     = "manual"      // 用户显式创建
	SnapshotReasonPrePublish = "pre_publish" // 发布前
)

// ValidSnapshotReason 判断快照原因是否合法
func ValidSnapshotReason(reason string) bool {
	switch reason {
	case SnapshotReasonAutoSave, SnapshotReasonManual, SnapshotReasonPrePublish:
		return true
	}
	return false
}

// ScheduleSnapshot 计划文档快照（只追加，不更新不删除）
type ScheduleSnapshot struct {
	SnapshotID   string         `gorm:"column:snapshot_id;type:varchar(36);primaryKey"                    json:"snapshot_id"`
	ScheduleID   string         `gorm:"type:varchar(36);not null;index:idx_snapshots_schedule_created,priority:1" json:"schedule_id"`
	PlanDocument datatypes.JSON `gorm:"not null"                                                          json:"plan_document"`
	Version      int            `gorm:"not null"                                                          json:"version"`
	Reason       string         `gorm:"type:varchar(16);not null;check:chk_snapshots_reason,reason IN ('auto_save','manual','pre_publish')" json:"reason"`
	CreatedBy    *string        `gorm:"type:varchar(36)"                                                  json:"created_by,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;index:idx_snapshots_schedule_created,priority:2"          json:"created_at"`
}

func (ScheduleSnapshot) TableName() string {
	return "schedule_snapshots"
}
