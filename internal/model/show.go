package model

import (
	"time"

	"gorm.io/datatypes"
)

// Show 物化后的节目
// PlanKey 为计划文档中条目的 temp_id，是排期内节目集合的自然键
type Show struct {
	ShowID         string         `gorm:"column:show_id;type:varchar(36);primaryKey"                                         json:"show_id"`
	ScheduleID     *string        `gorm:"type:varchar(36);uniqueIndex:uq_shows_schedule_plan_key,where:deleted_at IS NULL" json:"schedule_id,omitempty"`
	PlanKey        *string        `gorm:"type:varchar(64);uniqueIndex:uq_shows_schedule_plan_key,where:deleted_at IS NULL" json:"plan_key,omitempty"`
	ClientID       *string        `gorm:"type:varchar(36)"                                                                   json:"client_id,omitempty"`
	StudioRoomID   *string        `gorm:"type:varchar(36)"                                                                   json:"studio_room_id,omitempty"`
	ShowTypeID     string         `gorm:"type:varchar(36);not null"                                                          json:"show_type_id"`
	ShowStatusID   string         `gorm:"type:varchar(36);not null"                                                          json:"show_status_id"`
	ShowStandardID string         `gorm:"type:varchar(36);not null"                                                          json:"show_standard_id"`
	Name           string         `gorm:"type:varchar(256);not null"                                                         json:"name"`
	StartTime      time.Time      `gorm:"not null"                                                                           json:"start_time"`
	EndTime        time.Time      `gorm:"not null;check:chk_shows_time,end_time > start_time"                               json:"end_time"`
	Metadata       datatypes.JSON `json:"metadata,omitempty"`
	SoftDeleteModel
}

func (Show) TableName() string {
	return "shows"
}

// ShowMC 节目主持人分配，自然键 (show_id, mc_id)
type ShowMC struct {
	ShowMCID string         `gorm:"column:show_mc_id;type:varchar(36);primaryKey"                                          json:"show_mc_id"`
	ShowID   string         `gorm:"column:show_id;type:varchar(36);not null;uniqueIndex:uq_show_mcs_show_mc,where:deleted_at IS NULL" json:"show_id"`
	MCID     string         `gorm:"column:mc_id;type:varchar(36);not null;uniqueIndex:uq_show_mcs_show_mc,where:deleted_at IS NULL"   json:"mc_id"`
	Note     *string        `gorm:"type:text"                                                                              json:"note,omitempty"`
	Metadata datatypes.JSON `json:"metadata,omitempty"`
	SoftDeleteModel
}

func (ShowMC) TableName() string {
	return "show_mcs"
}

// ShowPlatform 节目直播平台分配，自然键 (show_id, platform_id)
type ShowPlatform struct {
	ShowPlatformID string         `gorm:"column:show_platform_id;type:varchar(36);primaryKey"                                                       json:"show_platform_id"`
	ShowID         string         `gorm:"column:show_id;type:varchar(36);not null;uniqueIndex:uq_show_platforms_show_platform,where:deleted_at IS NULL"     json:"show_id"`
	PlatformID     string         `gorm:"column:platform_id;type:varchar(36);not null;uniqueIndex:uq_show_platforms_show_platform,where:deleted_at IS NULL" json:"platform_id"`
	LiveStreamLink *string        `gorm:"type:varchar(512)"                                                                                         json:"live_stream_link,omitempty"`
	PlatformShowID *string        `gorm:"type:varchar(128)"                                                                                         json:"platform_show_id,omitempty"`
	ViewerCount    int            `gorm:"not null;default:0"                                                                                        json:"viewer_count"`
	Metadata       datatypes.JSON `json:"metadata,omitempty"`
	SoftDeleteModel
}

func (ShowPlatform) TableName() string {
	return "show_platforms"
}
