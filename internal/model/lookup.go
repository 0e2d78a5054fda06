package model

import "time"

// LookupKind 参考数据类型
// 计划文档通过外部 uid 引用参考数据，发布时批量解析为内部 ID
type LookupKind string

const (
	LookupClient       LookupKind = "client"
	LookupMC           LookupKind = "mc"
	LookupPlatform     LookupKind = "platform"
	LookupStudioRoom   LookupKind = "studio_room"
	LookupShowType     LookupKind = "show_type"
	LookupShowStatus   LookupKind = "show_status"
	LookupShowStandard LookupKind = "show_standard"
)

// LookupKinds 全部参考数据类型
var LookupKinds = []LookupKind{
	LookupClient, LookupMC, LookupPlatform, LookupStudioRoom,
	LookupShowType, LookupShowStatus, LookupShowStandard,
}

var lookupTables = map[LookupKind]string{
	LookupClient:       "clients",
	LookupMC:           "mcs",
	LookupPlatform:     "platforms",
	LookupStudioRoom:   "studio_rooms",
	LookupShowType:     "show_types",
	LookupShowStatus:   "show_statuses",
	LookupShowStandard: "show_standards",
}

// Table 对应的数据表名
func (k LookupKind) Table() string {
	return lookupTables[k]
}

// Valid 是否为已知类型
func (k LookupKind) Valid() bool {
	_, ok := lookupTables[k]
	return ok
}

// LookupEntry 参考数据行（各参考表结构一致）
type LookupEntry struct {
	ID        string    `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	UID       string    `gorm:"column:uid;type:varchar(64);not null;unique" json:"uid"`
	Name      string    `gorm:"type:varchar(128);not null;default:''" json:"name"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
