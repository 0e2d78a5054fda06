package model

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel 通用审计字段（所有业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null"               json:"created_at"`
	CreatedBy *string   `gorm:"type:varchar(36)"       json:"created_by,omitempty"`
	UpdatedAt time.Time `gorm:"not null"               json:"updated_at"`
	UpdatedBy *string   `gorm:"type:varchar(36)"       json:"updated_by,omitempty"`
}

// SoftDeleteModel 支持软删除的审计字段
// 软删除行保留为历史记录，默认查询自动排除
type SoftDeleteModel struct {
	BaseModel
	DeletedAt gorm.DeletedAt `gorm:"index"           json:"deleted_at,omitempty"`
	DeletedBy *string        `gorm:"type:varchar(36)" json:"deleted_by,omitempty"`
}

// VersionedModel 支持乐观锁的软删除模型
type VersionedModel struct {
	SoftDeleteModel
	Version int `gorm:"not null;default:1" json:"version"`
}

// StrPtr 返回字符串指针，空串返回 nil
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StrVal 解引用字符串指针，nil 返回空串
func StrVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
