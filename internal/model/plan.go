package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"gorm.io/datatypes"
)

// PlanDocument 排期计划文档
// 字段使用 snake_case，与前端编辑器约定一致
type PlanDocument struct {
	Metadata PlanMetadata   `json:"metadata"`
	Shows    []ShowPlanItem `json:"shows" validate:"dive"`
}

// PlanMetadata 计划文档元信息，由服务端在每次编辑时刷新
type PlanMetadata struct {
	LastEditedBy string     `json:"last_edited_by,omitempty"`
	LastEditedAt *time.Time `json:"last_edited_at,omitempty"`
	TotalShows   int        `json:"total_shows"`
	ClientName   string     `json:"client_name,omitempty"`
	DateRange    *DateRange `json:"date_range,omitempty"`
}

// DateRange 排期日期范围
type DateRange struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// ShowPlanItem 计划中的一个节目
// 引用字段均为参考数据的外部 uid；指针为 nil 表示“未指定，保留原值”
type ShowPlanItem struct {
	TempID         string                 `json:"temp_id"          validate:"required,max=64"`
	Name           string                 `json:"name"             validate:"required,max=256"`
	StartTime      time.Time              `json:"start_time"       validate:"required"`
	EndTime        time.Time              `json:"end_time"         validate:"required,gtfield=StartTime"`
	ClientID       *string                `json:"client_id,omitempty"      validate:"omitempty,min=1,max=64"`
	StudioRoomID   *string                `json:"studio_room_id,omitempty" validate:"omitempty,min=1,max=64"`
	ShowTypeID     string                 `json:"show_type_id"     validate:"required,max=64"`
	ShowStatusID   string                 `json:"show_status_id"   validate:"required,max=64"`
	ShowStandardID string                 `json:"show_standard_id" validate:"required,max=64"`
	MCs            []PlanMC               `json:"mcs"              validate:"dive"`
	Platforms      []PlanPlatform         `json:"platforms"        validate:"dive"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// PlanMC 节目主持人
type PlanMC struct {
	MCID     string                 `json:"mc_id" validate:"required,max=64"`
	Note     *string                `json:"note,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// PlanPlatform 节目直播平台
type PlanPlatform struct {
	PlatformID     string                 `json:"platform_id"                validate:"required,max=64"`
	LiveStreamLink *string                `json:"live_stream_link,omitempty" validate:"omitempty,url,max=512"`
	PlatformShowID *string                `json:"platform_show_id,omitempty" validate:"omitempty,max=128"`
	ViewerCount    *int                   `json:"viewer_count,omitempty"     validate:"omitempty,min=0"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EmptyPlanDocument 新建排期的空计划文档
func EmptyPlanDocument(clientName string, start, end time.Time) *PlanDocument {
	return &PlanDocument{
		Metadata: PlanMetadata{
			ClientName: clientName,
			DateRange:  &DateRange{StartDate: start, EndDate: end},
		},
		Shows: []ShowPlanItem{},
	}
}

// ParsePlanDocument 解析存储的计划文档，空文档视为没有节目
func ParsePlanDocument(raw []byte) (*PlanDocument, error) {
	doc := &PlanDocument{Shows: []ShowPlanItem{}}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return doc, nil
	}
	if err := json.Unmarshal(trimmed, doc); err != nil {
		return nil, fmt.Errorf("计划文档格式错误: %w", err)
	}
	if doc.Shows == nil {
		doc.Shows = []ShowPlanItem{}
	}
	return doc, nil
}

// JSON 序列化为 jsonb 列值
func (d *PlanDocument) JSON() (datatypes.JSON, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("序列化计划文档失败: %w", err)
	}
	return datatypes.JSON(b), nil
}

// MergeInto 把服务端维护的 metadata 字段合并进客户端提交的原始文档 raw
// raw 中结构体未声明的键（顶层、节目级、metadata 内）原样保留；缺少 shows 时补为空数组
func (d *PlanDocument) MergeInto(raw []byte) (datatypes.JSON, error) {
	base := bytes.TrimSpace(raw)
	if len(base) == 0 || bytes.Equal(base, []byte("null")) {
		return d.JSON()
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(base, &top); err != nil {
		return nil, fmt.Errorf("计划文档格式错误: %w", err)
	}
	patch := map[string]interface{}{"metadata": d.Metadata}
	if shows, ok := top["shows"]; !ok || bytes.Equal(bytes.TrimSpace(shows), []byte("null")) {
		patch["shows"] = []ShowPlanItem{}
	}
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("序列化计划文档失败: %w", err)
	}

	merged, err := jsonpatch.MergePatch(base, patchJSON)
	if err != nil {
		return nil, fmt.Errorf("合并计划文档元信息失败: %w", err)
	}
	return datatypes.JSON(merged), nil
}

// Touch 刷新编辑元信息
func (d *PlanDocument) Touch(actorID string, at time.Time) {
	d.Metadata.LastEditedBy = actorID
	d.Metadata.LastEditedAt = &at
	d.Metadata.TotalShows = len(d.Shows)
}

// MetadataJSON 将自由元数据序列化为 jsonb，nil 返回空对象
// encoding/json 对 map 按键排序输出，结果可直接按字节比较
func MetadataJSON(m map[string]interface{}) datatypes.JSON {
	if m == nil {
		return datatypes.JSON("{}")
	}
	b, err := json.Marshal(m)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}

// SameJSON 判断两个 JSON 值语义是否相等（忽略键顺序与空白）
func SameJSON(a, b []byte) bool {
	var va, vb interface{}
	if len(bytes.TrimSpace(a)) == 0 {
		a = []byte("{}")
	}
	if len(bytes.TrimSpace(b)) == 0 {
		b = []byte("{}")
	}
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return bytes.Equal(a, b)
	}
	ca, _ := json.Marshal(va)
	cb, _ := json.Marshal(vb)
	return bytes.Equal(ca, cb)
}
