package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParsePlanDocument_Empty(t *testing.T) {
	for _, raw := range []string{"", "null", "  "} {
		doc, err := ParsePlanDocument([]byte(raw))
		if err != nil {
			t.Fatalf("raw=%q 解析失败: %v", raw, err)
		}
		if doc.Shows == nil || len(doc.Shows) != 0 {
			t.Errorf("raw=%q 期望空节目列表，实际=%v", raw, doc.Shows)
		}
	}
}

func TestParsePlanDocument_RoundTrip(t *testing.T) {
	raw := `{"metadata":{"total_shows":1},"shows":[{"temp_id":"t1","name":"早场","start_time":"2026-03-01T10:00:00Z","end_time":"2026-03-01T12:00:00Z","show_type_id":"bau","show_status_id":"draft","show_standard_id":"std","mcs":[{"mc_id":"mc_a","note":"主控"}],"platforms":[{"platform_id":"tiktok","viewer_count":0}]}]}`
	doc, err := ParsePlanDocument([]byte(raw))
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if len(doc.Shows) != 1 || doc.Shows[0].TempID != "t1" {
		t.Fatalf("节目解析错误: %+v", doc.Shows)
	}
	item := doc.Shows[0]
	if item.MCs[0].Note == nil || *item.MCs[0].Note != "主控" {
		t.Error("MC 备注应被解析")
	}
	if item.Platforms[0].ViewerCount == nil || *item.Platforms[0].ViewerCount != 0 {
		t.Error("显式给出的 viewer_count=0 应保留为非 nil")
	}
	if item.Platforms[0].LiveStreamLink != nil {
		t.Error("未给出的 live_stream_link 应为 nil")
	}
}

func TestParsePlanDocument_Invalid(t *testing.T) {
	if _, err := ParsePlanDocument([]byte(`{"shows":"oops"}`)); err == nil {
		t.Error("格式错误的文档应返回错误")
	}
}

func TestPlanDocument_Touch(t *testing.T) {
	doc := &PlanDocument{Shows: []ShowPlanItem{{TempID: "a"}, {TempID: "b"}}}
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	doc.Touch("u1", at)
	if doc.Metadata.TotalShows != 2 || doc.Metadata.LastEditedBy != "u1" || !doc.Metadata.LastEditedAt.Equal(at) {
		t.Errorf("元信息刷新错误: %+v", doc.Metadata)
	}
}

func TestPlanDocument_MergeIntoKeepsUnknownKeys(t *testing.T) {
	raw := []byte(`{"layout":{"color":"red"},"metadata":{"theme":"dark","total_shows":9},"shows":[{"temp_id":"a","stage_notes":"keep me"}]}`)
	doc, err := ParsePlanDocument(raw)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	doc.Touch("u1", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	merged, err := doc.MergeInto(raw)
	if err != nil {
		t.Fatalf("合并失败: %v", err)
	}
	var got struct {
		Layout   map[string]string        `json:"layout"`
		Metadata map[string]interface{}   `json:"metadata"`
		Shows    []map[string]interface{} `json:"shows"`
	}
	if err := json.Unmarshal(merged, &got); err != nil {
		t.Fatalf("合并结果不是合法 JSON: %v", err)
	}
	if got.Layout["color"] != "red" {
		t.Errorf("顶层未知键应保留，实际=%s", merged)
	}
	if got.Metadata["theme"] != "dark" || got.Metadata["total_shows"] != float64(1) || got.Metadata["last_edited_by"] != "u1" {
		t.Errorf("metadata 应保留客户端键并覆盖服务端字段，实际=%v", got.Metadata)
	}
	if len(got.Shows) != 1 || got.Shows[0]["stage_notes"] != "keep me" {
		t.Errorf("节目级未知键应保留，实际=%v", got.Shows)
	}
}

func TestPlanDocument_MergeIntoFillsShows(t *testing.T) {
	doc := &PlanDocument{Shows: []ShowPlanItem{}}
	merged, err := doc.MergeInto([]byte(`{"metadata":null}`))
	if err != nil {
		t.Fatalf("合并失败: %v", err)
	}
	if !SameJSON(merged, []byte(`{"metadata":{"total_shows":0},"shows":[]}`)) {
		t.Errorf("缺少 shows 时应补为空数组，实际=%s", merged)
	}
}

func TestSameJSON(t *testing.T) {
	if !SameJSON([]byte(`{"a":1,"b":[1,2]}`), []byte(`{ "b":[1,2], "a":1 }`)) {
		t.Error("键顺序不同的 JSON 应视为相等")
	}
	if !SameJSON(nil, []byte(`{}`)) {
		t.Error("空值应视为空对象")
	}
	if SameJSON([]byte(`{"a":1}`), []byte(`{"a":2}`)) {
		t.Error("值不同的 JSON 不应相等")
	}
}

func TestScheduleContains(t *testing.T) {
	s := &Schedule{
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	if !s.Contains(s.StartDate, s.StartDate.Add(time.Hour)) {
		t.Error("起点落在开始日期应视为范围内")
	}
	if !s.Contains(s.EndDate.Add(-time.Hour), s.EndDate) {
		t.Error("结束于排期结束时刻应视为范围内")
	}
	if s.Contains(s.EndDate, s.EndDate.Add(time.Hour)) {
		t.Error("超出结束日期不应视为范围内")
	}
}
