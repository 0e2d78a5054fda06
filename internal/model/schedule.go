package model

import (
	"time"

	"gorm.io/datatypes"
)

// 排期状态：只允许 draft → published
const (
	ScheduleStatusDraft     = "draft"
	ScheduleStatusPublished = "published"
)

// Schedule 排期
// PlanDocument 为草稿阶段的唯一编辑对象，发布时物化为 Show/ShowMC/ShowPlatform 行
type Schedule struct {
	ScheduleID   string         `gorm:"column:schedule_id;type:varchar(36);primaryKey" json:"schedule_id"`
	Name         string         `gorm:"type:varchar(128);not null"                    json:"name"`
	ClientID     *string        `gorm:"type:varchar(36);index"                        json:"client_id,omitempty"`
	StartDate    time.Time      `gorm:"not null"                                      json:"start_date"`
	EndDate      time.Time      `gorm:"not null;check:chk_schedules_range,end_date > start_date" json:"end_date"`
	Status       string         `gorm:"type:varchar(16);not null;default:draft;check:chk_schedules_status,status IN ('draft','published')" json:"status"`
	PlanDocument datatypes.JSON `gorm:"not null"                                      json:"plan_document"`
	PublishedAt  *time.Time     `json:"published_at,omitempty"`
	PublishedBy  *string        `gorm:"type:varchar(36)" json:"published_by,omitempty"`
	VersionedModel
}

func (Schedule) TableName() string {
	return "schedules"
}

// IsDraft 是否仍可编辑
func (s *Schedule) IsDraft() bool {
	return s.Status == ScheduleStatusDraft
}

// Contains 判断时间段是否落在排期范围 [StartDate, EndDate) 内
func (s *Schedule) Contains(start, end time.Time) bool {
	return !start.Before(s.StartDate) && !end.After(s.EndDate)
}
