package service

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"showplan/backend/internal/dto"
	"showplan/backend/internal/model"
	pkgerrors "showplan/backend/pkg/errors"
)

// ErrInvalidShowTime 节目结束时间不晚于开始时间
var ErrInvalidShowTime = pkgerrors.BadRequestError("节目结束时间必须晚于开始时间")

// checkShowTimes 发布前检查全部节目的时间顺序，错误中带出首个不合法节目的 temp_id
func checkShowTimes(doc *model.PlanDocument) error {
	for _, item := range doc.Shows {
		if !item.EndTime.After(item.StartTime) {
			return fmt.Errorf("%w: %s", ErrInvalidShowTime, item.TempID)
		}
	}
	return nil
}

// PlanValidator 计划文档检查
//
//   - CheckSchema：字段级约束（必填、长度、URL 等），保存计划文档时强制执行
//   - Validate：排期级结构检查（时间、冲突、重复），只读，结果作为数据返回
type PlanValidator struct {
	validate *validator.Validate
}

func NewPlanValidator() *PlanValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 错误路径使用 JSON 字段名
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &PlanValidator{validate: v}
}

// CheckSchema 字段级校验，失败返回 BadRequest
func (v *PlanValidator) CheckSchema(doc *model.PlanDocument) error {
	issues := v.schemaIssues(doc)
	if len(issues) == 0 {
		return nil
	}
	msgs := make([]string, len(issues))
	for i, is := range issues {
		msgs[i] = is.Message
	}
	return pkgerrors.BadRequestError("计划文档字段不合法: " + strings.Join(msgs, "; "))
}

// CheckMCs 校验单独提交的主持人分配列表（节目范围的整体替换）
func (v *PlanValidator) CheckMCs(items []model.PlanMC) error {
	return checkItems(v.validate, "mcs", items)
}

// CheckPlatforms 校验单独提交的平台分配列表
func (v *PlanValidator) CheckPlatforms(items []model.PlanPlatform) error {
	return checkItems(v.validate, "platforms", items)
}

func checkItems[T any](validate *validator.Validate, field string, items []T) error {
	var msgs []string
	for i := range items {
		if err := validate.Struct(&items[i]); err != nil {
			msgs = append(msgs, fmt.Sprintf("%s[%d]: %s", field, i, describeValidation(err)))
		}
	}
	if len(msgs) > 0 {
		return pkgerrors.BadRequestError("分配列表字段不合法: " + strings.Join(msgs, "; "))
	}
	return nil
}

func (v *PlanValidator) schemaIssues(doc *model.PlanDocument) []dto.ValidationIssue {
	err := v.validate.Struct(doc)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []dto.ValidationIssue{{Type: dto.IssueInvalidField, Message: err.Error()}}
	}
	issues := make([]dto.ValidationIssue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, dto.ValidationIssue{
			Type:    dto.IssueInvalidField,
			Message: fieldMessage(fe),
		})
	}
	return issues
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fieldMessage(fe)
	}
	return strings.Join(msgs, "; ")
}

// fieldMessage 形如 "shows[0].mcs[1].mc_id 不满足 required"
func fieldMessage(fe validator.FieldError) string {
	path := fe.Namespace()
	if i := strings.Index(path, "."); i >= 0 {
		path = path[i+1:] // 去掉根类型名
	}
	if fe.Param() != "" {
		return fmt.Sprintf("%s 不满足 %s=%s", path, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s 不满足 %s", path, fe.Tag())
}

// ═══════════════════════════════════════════════════════════
// Validate — 排期级结构检查
// ═══════════════════════════════════════════════════════════
//
// 错误：
//   - invalid_time_range      结束时间不晚于开始时间
//   - out_of_schedule_range   节目时间不在 [start_date, end_date) 内
//   - mc_double_booked        同一主持人在重叠时段被安排到两个节目
//   - room_conflict           同一直播间在重叠时段被安排两个节目
//   - duplicate_show_id       temp_id 重复
//   - duplicate_mc / duplicate_platform  同一节目内重复分配
//   - invalid_field           字段级约束不满足
//
// 警告：no_mcs、no_platforms、show_count_mismatch

func (v *PlanValidator) Validate(schedule *model.Schedule, doc *model.PlanDocument) *dto.ValidationResult {
	result := &dto.ValidationResult{
		Errors:   []dto.ValidationIssue{},
		Warnings: []dto.ValidationIssue{},
	}
	result.Errors = append(result.Errors, v.schemaIssues(doc)...)

	seen := make(map[string]int, len(doc.Shows))
	var timed []model.ShowPlanItem // 时间合法的节目参与冲突检查

	for _, item := range doc.Shows {
		if n := seen[item.TempID]; n == 1 {
			result.Errors = append(result.Errors, dto.ValidationIssue{
				Type:    dto.IssueDuplicateShowID,
				Message: fmt.Sprintf("节目标识 %s 重复", item.TempID),
				ShowIDs: []string{item.TempID},
			})
		}
		seen[item.TempID]++

		if !item.EndTime.After(item.StartTime) {
			result.Errors = append(result.Errors, dto.ValidationIssue{
				Type:    dto.IssueInvalidTimeRange,
				Message: fmt.Sprintf("节目 %s 结束时间必须晚于开始时间", item.TempID),
				ShowIDs: []string{item.TempID},
			})
		} else {
			timed = append(timed, item)
			if !schedule.Contains(item.StartTime, item.EndTime) {
				result.Errors = append(result.Errors, dto.ValidationIssue{
					Type:    dto.IssueOutOfScheduleRange,
					Message: fmt.Sprintf("节目 %s 不在排期日期范围内", item.TempID),
					ShowIDs: []string{item.TempID},
				})
			}
		}

		mcSeen := make(map[string]bool, len(item.MCs))
		for _, mc := range item.MCs {
			if mcSeen[mc.MCID] {
				result.Errors = append(result.Errors, dto.ValidationIssue{
					Type:    dto.IssueDuplicateMC,
					Message: fmt.Sprintf("节目 %s 重复分配主持人 %s", item.TempID, mc.MCID),
					ShowIDs: []string{item.TempID},
					Ref:     mc.MCID,
				})
			}
			mcSeen[mc.MCID] = true
		}
		platformSeen := make(map[string]bool, len(item.Platforms))
		for _, p := range item.Platforms {
			if platformSeen[p.PlatformID] {
				result.Errors = append(result.Errors, dto.ValidationIssue{
					Type:    dto.IssueDuplicatePlatform,
					Message: fmt.Sprintf("节目 %s 重复分配平台 %s", item.TempID, p.PlatformID),
					ShowIDs: []string{item.TempID},
					Ref:     p.PlatformID,
				})
			}
			platformSeen[p.PlatformID] = true
		}

		if len(item.MCs) == 0 {
			result.Warnings = append(result.Warnings, dto.ValidationIssue{
				Type:    dto.IssueNoMCs,
				Message: fmt.Sprintf("节目 %s 未安排主持人", item.TempID),
				ShowIDs: []string{item.TempID},
			})
		}
		if len(item.Platforms) == 0 {
			result.Warnings = append(result.Warnings, dto.ValidationIssue{
				Type:    dto.IssueNoPlatforms,
				Message: fmt.Sprintf("节目 %s 未安排直播平台", item.TempID),
				ShowIDs: []string{item.TempID},
			})
		}
	}

	// 主持人 / 直播间时段冲突
	byMC := make(map[string][]window)
	byRoom := make(map[string][]window)
	for _, item := range timed {
		w := window{key: item.TempID, start: item.StartTime, end: item.EndTime}
		seenMC := make(map[string]bool, len(item.MCs))
		for _, mc := range item.MCs {
			if !seenMC[mc.MCID] {
				byMC[mc.MCID] = append(byMC[mc.MCID], w)
				seenMC[mc.MCID] = true
			}
		}
		if item.StudioRoomID != nil && *item.StudioRoomID != "" {
			byRoom[*item.StudioRoomID] = append(byRoom[*item.StudioRoomID], w)
		}
	}
	for _, mcID := range sortedKeys(byMC) {
		for _, pair := range overlaps(byMC[mcID]) {
			result.Errors = append(result.Errors, dto.ValidationIssue{
				Type:    dto.IssueMCDoubleBooked,
				Message: fmt.Sprintf("主持人 %s 在节目 %s 与 %s 的时段重叠", mcID, pair[0], pair[1]),
				ShowIDs: pair,
				Ref:     mcID,
			})
		}
	}
	for _, roomID := range sortedKeys(byRoom) {
		for _, pair := range overlaps(byRoom[roomID]) {
			result.Errors = append(result.Errors, dto.ValidationIssue{
				Type:    dto.IssueRoomConflict,
				Message: fmt.Sprintf("直播间 %s 在节目 %s 与 %s 的时段重叠", roomID, pair[0], pair[1]),
				ShowIDs: pair,
				Ref:     roomID,
			})
		}
	}

	if doc.Metadata.TotalShows != len(doc.Shows) {
		result.Warnings = append(result.Warnings, dto.ValidationIssue{
			Type:    dto.IssueShowCountMismatch,
			Message: fmt.Sprintf("元信息节目数 %d 与实际节目数 %d 不一致", doc.Metadata.TotalShows, len(doc.Shows)),
		})
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

type window struct {
	key        string
	start, end time.Time
}

// overlaps 返回时段重叠的节目对，[a, b) 与 [c, d) 在 a < d 且 c < b 时重叠
func overlaps(ws []window) [][]string {
	if len(ws) < 2 {
		return nil
	}
	sorted := append([]window(nil), ws...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].start.Before(sorted[j].start)
	})

	var pairs [][]string
	for i := range sorted {
		for j := i + 1; j < len(sorted) && sorted[j].start.Before(sorted[i].end); j++ {
			pairs = append(pairs, []string{sorted[i].key, sorted[j].key})
		}
	}
	return pairs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
