package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"showplan/backend/internal/model"
	"showplan/backend/internal/repository"
	pkgerrors "showplan/backend/pkg/errors"
)

// 导出格式
const (
	ExportFormatXLSX = "xlsx"
	ExportFormatICS  = "ics"
)

// ── 导出模块业务错误 ──

var (
	ErrExportFormat       = pkgerrors.BadRequestError("不支持的导出格式，可选 xlsx / ics")
	ErrExportNoShows      = pkgerrors.StateError("排期尚无已发布的节目")
	ErrExportGenerateFail = fmt.Errorf("生成导出文件失败")
)

// ExportFile 导出结果，由 Handler 设置响应头后写出
type ExportFile struct {
	Content     *bytes.Buffer
	Filename    string
	ContentType string
}

// ExportService 导出业务接口
//
// 导出对象为已物化的节目（发布后的 Show 行），不读取草稿计划文档。
type ExportService interface {
	ExportSchedule(ctx context.Context, scheduleID, format string) (*ExportFile, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// exportRow 一个节目的展示数据
type exportRow struct {
	ShowID    string
	Name      string
	Start     time.Time
	End       time.Time
	Room      string
	Status    string
	MCs       []string
	Platforms []string
}

func (s *exportService) ExportSchedule(ctx context.Context, scheduleID, format string) (*ExportFile, error) {
	if format == "" {
		format = ExportFormatXLSX
	}
	if format != ExportFormatXLSX && format != ExportFormatICS {
		return nil, ErrExportFormat
	}

	schedule, err := s.repo.Schedule.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, pkgerrors.MapDBError(err)
	}

	rows, err := s.loadRows(ctx, scheduleID)
	if err != nil {
		s.logger.Error("查询导出数据失败", zap.String("schedule_id", scheduleID), zap.Error(err))
		return nil, pkgerrors.MapDBError(err)
	}
	if len(rows) == 0 {
		return nil, ErrExportNoShows
	}

	if format == ExportFormatICS {
		return s.renderICS(schedule, rows), nil
	}
	return s.renderXLSX(schedule, rows)
}

// loadRows 读取节目、分配并把内部 ID 换成名称
func (s *exportService) loadRows(ctx context.Context, scheduleID string) ([]exportRow, error) {
	shows, err := s.repo.Show.ListActiveBySchedule(ctx, scheduleID)
	if err != nil || len(shows) == 0 {
		return nil, err
	}

	showIDs := make([]string, len(shows))
	for i, sh := range shows {
		showIDs[i] = sh.ShowID
	}
	mcsByShow, platformsByShow, err := loadAssignments(ctx, s.repo, showIDs)
	if err != nil {
		return nil, err
	}

	// 收集需要展示名称的参考数据
	want := map[model.LookupKind]map[string]struct{}{}
	add := func(kind model.LookupKind, id string) {
		if id == "" {
			return
		}
		if want[kind] == nil {
			want[kind] = map[string]struct{}{}
		}
		want[kind][id] = struct{}{}
	}
	for _, sh := range shows {
		add(model.LookupStudioRoom, model.StrVal(sh.StudioRoomID))
		add(model.LookupShowStatus, sh.ShowStatusID)
		for _, mc := range mcsByShow[sh.ShowID] {
			add(model.LookupMC, mc.MCID)
		}
		for _, p := range platformsByShow[sh.ShowID] {
			add(model.LookupPlatform, p.PlatformID)
		}
	}
	names := map[model.LookupKind]map[string]string{}
	for kind, set := range want {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		entries, err := s.repo.Lookup.ListByIDs(ctx, kind, ids)
		if err != nil {
			return nil, err
		}
		names[kind] = make(map[string]string, len(entries))
		for _, e := range entries {
			names[kind][e.ID] = e.Name
		}
	}
	nameOf := func(kind model.LookupKind, id string) string {
		if n := names[kind][id]; n != "" {
			return n
		}
		return id
	}

	rows := make([]exportRow, 0, len(shows))
	for _, sh := range shows {
		r := exportRow{
			ShowID: sh.ShowID,
			Name:   sh.Name,
			Start:  sh.StartTime,
			End:    sh.EndTime,
			Status: nameOf(model.LookupShowStatus, sh.ShowStatusID),
		}
		if sh.StudioRoomID != nil {
			r.Room = nameOf(model.LookupStudioRoom, *sh.StudioRoomID)
		}
		for _, mc := range mcsByShow[sh.ShowID] {
			r.MCs = append(r.MCs, nameOf(model.LookupMC, mc.MCID))
		}
		for _, p := range platformsByShow[sh.ShowID] {
			r.Platforms = append(r.Platforms, nameOf(model.LookupPlatform, p.PlatformID))
		}
		sort.Strings(r.MCs)
		sort.Strings(r.Platforms)
		rows = append(rows, r)
	}
	return rows, nil
}

// ═══════════════════════════════════════════════════════════
// Excel
// ═══════════════════════════════════════════════════════════
//
// 单 Sheet「节目单」，标题行 + 表头 + 每个节目一行，按开始时间排序

func (s *exportService) renderXLSX(schedule *model.Schedule, rows []exportRow) (*ExportFile, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "节目单"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{"日期", "开始", "结束", "节目", "直播间", "主持人", "平台", "状态"}
	widths := []float64{12, 8, 8, 28, 14, 24, 20, 10}
	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(sheetName, col, col, w)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s（%s ~ %s）", schedule.Name,
		schedule.StartDate.Format("2006-01-02"), schedule.EndDate.Format("2006-01-02")))
	f.MergeCell(sheetName, "A1", cell(colName(len(headers)-1), 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", cell(colName(len(headers)-1), 2), headerStyle)

	// 数据行
	for i, r := range rows {
		row := i + 3
		values := []interface{}{
			r.Start.Format("2006-01-02"),
			r.Start.Format("15:04"),
			r.End.Format("15:04"),
			r.Name,
			dash(r.Room),
			dash(strings.Join(r.MCs, "、")),
			dash(strings.Join(r.Platforms, "、")),
			r.Status,
		}
		for j, v := range values {
			f.SetCellValue(sheetName, cell(colName(j), row), v)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, ErrExportGenerateFail
	}

	return &ExportFile{
		Content:     buf,
		Filename:    fmt.Sprintf("节目单_%s.xlsx", schedule.Name),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}, nil
}

// ═══════════════════════════════════════════════════════════
// iCalendar
// ═══════════════════════════════════════════════════════════
//
// 每个节目一个 VEVENT，UID 使用 show_id 保证重复导入时覆盖而非新增

func (s *exportService) renderICS(schedule *model.Schedule, rows []exportRow) *ExportFile {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//showplan//schedule export//CN")
	cal.SetXWRCalName(schedule.Name)

	stamp := time.Now().UTC()
	for _, r := range rows {
		ev := cal.AddEvent(r.ShowID + "@showplan")
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(r.Start)
		ev.SetEndAt(r.End)
		ev.SetSummary(r.Name)
		if r.Room != "" {
			ev.SetLocation(r.Room)
		}

		var desc []string
		if len(r.MCs) > 0 {
			desc = append(desc, "主持人: "+strings.Join(r.MCs, "、"))
		}
		if len(r.Platforms) > 0 {
			desc = append(desc, "平台: "+strings.Join(r.Platforms, "、"))
		}
		if len(desc) > 0 {
			ev.SetDescription(strings.Join(desc, "\n"))
		}
	}

	return &ExportFile{
		Content:     bytes.NewBufferString(cal.Serialize()),
		Filename:    fmt.Sprintf("节目单_%s.ics", schedule.Name),
		ContentType: "text/calendar; charset=utf-8",
	}
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
