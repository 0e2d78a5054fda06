package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"showplan/backend/config"
	"showplan/backend/internal/dto"
	"showplan/backend/internal/model"
	"showplan/backend/internal/repository"
	pkgerrors "showplan/backend/pkg/errors"
	"showplan/backend/pkg/metrics"
	"showplan/backend/pkg/mq"
	"showplan/backend/pkg/uid"
)

// ── 排期模块业务错误 ──

var (
	ErrScheduleNotFound      = pkgerrors.NotFoundError("排期不存在")
	ErrScheduleNotDraft      = pkgerrors.StateError("排期非草稿状态，不可执行此操作")
	ErrScheduleNoCreator     = pkgerrors.BadRequestError("排期缺少创建人，无法发布")
	ErrActorRequired         = pkgerrors.BadRequestError("缺少操作人")
	ErrInvalidDateRange      = pkgerrors.BadRequestError("结束日期必须晚于开始日期")
	ErrSnapshotNotFound      = pkgerrors.NotFoundError("快照不存在")
	ErrInvalidSnapshotReason = pkgerrors.BadRequestError("快照原因不合法")
)

// ScheduleService 排期业务接口
type ScheduleService interface {
	// 创建草稿排期
	CreateSchedule(ctx context.Context, req *dto.CreateScheduleRequest, actorID string) (*dto.ScheduleResponse, error)
	// 获取排期（含计划文档）
	GetSchedule(ctx context.Context, scheduleID string) (*dto.ScheduleResponse, error)
	// 保存计划文档（先自动快照，再受版本保护写入）
	UpdatePlanDocument(ctx context.Context, scheduleID string, doc json.RawMessage, expectedVersion int, actorID string) (*dto.ScheduleResponse, error)
	// 以 RFC 6902 JSON Patch 增量修改计划文档，其余同 UpdatePlanDocument
	PatchPlanDocument(ctx context.Context, scheduleID string, patch json.RawMessage, expectedVersion int, actorID string) (*dto.ScheduleResponse, error)
	// 校验计划文档（只读）
	ValidateSchedule(ctx context.Context, scheduleID string) (*dto.ValidationResult, error)
	// 发布排期：物化节目与分配
	PublishSchedule(ctx context.Context, scheduleID string, expectedVersion int, actorID string) (*dto.PublishScheduleResponse, error)

	// 快照
	CreateManualSnapshot(ctx context.Context, scheduleID, reason, actorID string) (*dto.SnapshotResponse, error)
	ListSnapshots(ctx context.Context, scheduleID string, req *dto.SnapshotListRequest) ([]dto.SnapshotResponse, int64, error)
	GetSnapshot(ctx context.Context, scheduleID, snapshotID string) (*dto.SnapshotResponse, error)
	DiffSnapshot(ctx context.Context, scheduleID, snapshotID string) (*dto.SnapshotDiffResponse, error)
	RestoreSnapshot(ctx context.Context, scheduleID, snapshotID string, expectedVersion int, actorID string) (*dto.ScheduleResponse, error)
}

type scheduleService struct {
	repo       *repository.Repository
	guard      *VersionGuard
	snapshots  *snapshotRecorder
	resolver   *IdentityResolver
	reconciler *assignmentReconciler
	validator  *PlanValidator
	publisher  mq.Publisher
	ids        uid.Generator
	cfg        *config.PlanConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewScheduleService 创建 ScheduleService 实例
func NewScheduleService(
	repo *repository.Repository,
	resolver *IdentityResolver,
	publisher mq.Publisher,
	ids uid.Generator,
	cfg *config.PlanConfig,
	logger *zap.Logger,
) ScheduleService {
	if publisher == nil {
		publisher = mq.NoopPublisher{}
	}
	return &scheduleService{
		repo:       repo,
		guard:      NewVersionGuard(repo, logger),
		snapshots:  newSnapshotRecorder(ids, logger),
		resolver:   resolver,
		reconciler: newAssignmentReconciler(ids),
		validator:  NewPlanValidator(),
		publisher:  publisher,
		ids:        ids,
		cfg:        cfg,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ═══════════════════════════════════════════════════════════
// CreateSchedule / GetSchedule
// ═══════════════════════════════════════════════════════════

func (s *scheduleService) CreateSchedule(ctx context.Context, req *dto.CreateScheduleRequest, actorID string) (*dto.ScheduleResponse, error) {
	if actorID == "" {
		return nil, ErrActorRequired
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, ErrInvalidDateRange
	}

	var clientID *string
	clientName := ""
	if req.ClientID != "" {
		refs := RefSet{}
		refs.Add(model.LookupClient, req.ClientID)
		resolved, err := s.resolver.ResolveAll(ctx, s.repo.Lookup, refs)
		if err != nil {
			return nil, pkgerrors.MapDBError(err)
		}
		id := resolved.ID(model.LookupClient, req.ClientID)
		clientID = &id

		entries, err := s.repo.Lookup.ListByIDs(ctx, model.LookupClient, []string{id})
		if err != nil {
			return nil, pkgerrors.MapDBError(err)
		}
		if len(entries) > 0 {
			clientName = entries[0].Name
		}
	}

	now := s.now()
	start, end := req.StartDate.UTC(), req.EndDate.UTC()
	doc := model.EmptyPlanDocument(clientName, start, end)
	doc.Touch(actorID, now)
	raw, err := doc.JSON()
	if err != nil {
		return nil, err
	}

	schedule := &model.Schedule{
		ScheduleID:   s.ids.New(),
		Name:         req.Name,
		ClientID:     clientID,
		StartDate:    start,
		EndDate:      end,
		Status:       model.ScheduleStatusDraft,
		PlanDocument: raw,
	}
	schedule.Version = 1
	schedule.CreatedBy = model.StrPtr(actorID)
	schedule.UpdatedBy = model.StrPtr(actorID)

	if err := s.repo.Schedule.Create(ctx, schedule); err != nil {
		s.logger.Error("创建排期失败", zap.Error(err))
		return nil, pkgerrors.MapDBError(err)
	}

	s.logger.Info("排期已创建",
		zap.String("schedule_id", schedule.ScheduleID),
		zap.String("actor_id", actorID),
	)
	return toScheduleResponse(schedule), nil
}

func (s *scheduleService) GetSchedule(ctx context.Context, scheduleID string) (*dto.ScheduleResponse, error) {
	schedule, err := s.getSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	return toScheduleResponse(schedule), nil
}

// ═══════════════════════════════════════════════════════════
// UpdatePlanDocument — 保存计划文档
// ═══════════════════════════════════════════════════════════
//
// 流程：
//  1. 解析并做字段级校验（失败不产生任何副作用）
//  2. 排期须为草稿，版本号须一致（不一致直接返回冲突，不产生快照）
//  3. 版本保护事务内：先对当前文档做 auto_save 快照（失败则中止），
//     再写入新文档并刷新元信息，版本号 +1；事务回滚时快照一并回滚
//
// 文档按提交的原始 JSON 存储，服务端只覆盖 metadata 中自己维护的字段

func (s *scheduleService) UpdatePlanDocument(
	ctx context.Context,
	scheduleID string,
	raw json.RawMessage,
	expectedVersion int,
	actorID string,
) (*dto.ScheduleResponse, error) {
	if actorID == "" {
		return nil, ErrActorRequired
	}

	doc, err := model.ParsePlanDocument(raw)
	if err != nil {
		return nil, pkgerrors.BadRequestError(err.Error())
	}
	if err := s.validator.CheckSchema(doc); err != nil {
		return nil, err
	}

	if _, err := s.precheckDraft(ctx, scheduleID, expectedVersion, "update_plan"); err != nil {
		return nil, err
	}

	updated, err := s.guard.Apply(ctx, scheduleID, expectedVersion, "update_plan",
		func(tx *repository.Repository, schedule *model.Schedule) error {
			if !schedule.IsDraft() {
				return ErrScheduleNotDraft
			}
			if _, err := s.snapshots.CaptureFrom(ctx, tx, schedule, model.SnapshotReasonAutoSave, actorID); err != nil {
				return err
			}
			return s.writePlan(schedule, raw, doc, actorID)
		})
	if err != nil {
		return nil, err
	}

	s.logger.Info("计划文档已保存",
		zap.String("schedule_id", scheduleID),
		zap.Int("version", updated.Version),
		zap.Int("shows", len(doc.Shows)),
	)
	return toScheduleResponse(updated), nil
}

// PatchPlanDocument 将 patch 应用到当前计划文档后按 UpdatePlanDocument 保存
// 版本号保证 patch 的基准文档就是保存时的文档
func (s *scheduleService) PatchPlanDocument(
	ctx context.Context,
	scheduleID string,
	rawPatch json.RawMessage,
	expectedVersion int,
	actorID string,
) (*dto.ScheduleResponse, error) {
	patch, err := jsonpatch.DecodePatch(rawPatch)
	if err != nil {
		return nil, pkgerrors.BadRequestError("JSON Patch 格式错误: " + err.Error())
	}

	current, err := s.precheckDraft(ctx, scheduleID, expectedVersion, "patch_plan")
	if err != nil {
		return nil, err
	}

	patched, err := patch.Apply(current.PlanDocument)
	if err != nil {
		return nil, pkgerrors.BadRequestError("应用 JSON Patch 失败: " + err.Error())
	}
	return s.UpdatePlanDocument(ctx, scheduleID, patched, expectedVersion, actorID)
}

// writePlan 写入计划文档并刷新服务端维护的元信息
// raw 为文档原文，doc 为其解析结果
func (s *scheduleService) writePlan(schedule *model.Schedule, raw []byte, doc *model.PlanDocument, actorID string) error {
	if prev, err := model.ParsePlanDocument(schedule.PlanDocument); err == nil && doc.Metadata.ClientName == "" {
		doc.Metadata.ClientName = prev.Metadata.ClientName
	}
	doc.Metadata.DateRange = &model.DateRange{StartDate: schedule.StartDate, EndDate: schedule.EndDate}
	doc.Touch(actorID, s.now())

	merged, err := doc.MergeInto(raw)
	if err != nil {
		return pkgerrors.BadRequestError(err.Error())
	}
	schedule.PlanDocument = merged
	schedule.UpdatedBy = model.StrPtr(actorID)
	return nil
}

// ═══════════════════════════════════════════════════════════
// ValidateSchedule — 只读校验
// ═══════════════════════════════════════════════════════════

func (s *scheduleService) ValidateSchedule(ctx context.Context, scheduleID string) (*dto.ValidationResult, error) {
	schedule, err := s.getSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	doc, err := model.ParsePlanDocument(schedule.PlanDocument)
	if err != nil {
		return nil, pkgerrors.BadRequestError(err.Error())
	}
	return s.validator.Validate(schedule, doc), nil
}

// ═══════════════════════════════════════════════════════════
// PublishSchedule — 发布
// ═══════════════════════════════════════════════════════════
//
// 流程：
//  1. 排期存在、有创建人、为草稿、版本一致
//  2. 版本保护事务内：
//     a. pre_publish 快照；快照失败则中止
//     b. 解析计划文档，检查节目时间，按类型批量解析全部自然键引用
//     c. 节目集合对账（temp_id ↔ plan_key）
//     d. 逐节目对账主持人、平台分配
//     e. 状态置为 published，记录发布人与时间，版本号 +1
//  3. 提交后投递 schedule.published 事件（失败只记日志）
//
// 任一步失败均回滚，排期保持草稿与原版本，不产生节目行与快照。
// 发布不强制执行 ValidateSchedule。

func (s *scheduleService) PublishSchedule(
	ctx context.Context,
	scheduleID string,
	expectedVersion int,
	actorID string,
) (*dto.PublishScheduleResponse, error) {
	started := time.Now()
	resp, err := s.publish(ctx, scheduleID, expectedVersion, actorID)
	metrics.RecordPublish(publishOutcome(err), time.Since(started))
	return resp, err
}

func (s *scheduleService) publish(
	ctx context.Context,
	scheduleID string,
	expectedVersion int,
	actorID string,
) (*dto.PublishScheduleResponse, error) {
	if actorID == "" {
		return nil, ErrActorRequired
	}

	current, err := s.getSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if model.StrVal(current.CreatedBy) == "" {
		return nil, ErrScheduleNoCreator
	}
	if !current.IsDraft() {
		return nil, ErrScheduleNotDraft
	}
	if current.Version != expectedVersion {
		metrics.RecordVersionConflict("publish")
		return nil, ErrVersionConflict
	}

	var counts struct{ created, updated, deleted int }
	now := s.now()

	published, err := s.guard.Apply(ctx, scheduleID, expectedVersion, "publish",
		func(tx *repository.Repository, schedule *model.Schedule) error {
			if !schedule.IsDraft() {
				return ErrScheduleNotDraft
			}
			if _, err := s.snapshots.CaptureFrom(ctx, tx, schedule, model.SnapshotReasonPrePublish, actorID); err != nil {
				return err
			}

			doc, err := model.ParsePlanDocument(schedule.PlanDocument)
			if err != nil {
				return pkgerrors.BadRequestError(err.Error())
			}
			if err := checkShowTimes(doc); err != nil {
				return err
			}

			resolved, err := s.resolver.ResolveAll(ctx, tx.Lookup, collectPlanRefs(doc))
			if err != nil {
				return err
			}
			desired := buildDesiredShows(doc, resolved, schedule.ClientID)

			existing, err := tx.Show.ListActiveBySchedule(ctx, schedule.ScheduleID)
			if err != nil {
				return err
			}
			showRes, showIDs, err := s.reconciler.ReconcileShows(ctx, tx, schedule.ScheduleID, desired, existing, actorID, now)
			if err != nil {
				return err
			}

			// 仅保留下来的节目可能已有分配；新建节目的分配全部为新建
			kept := append(append([]string{}, showRes.Updated...), showRes.Unchanged...)
			mcsByShow, platformsByShow, err := loadAssignments(ctx, tx, kept)
			if err != nil {
				return err
			}

			for _, d := range desired {
				showID := showIDs[d.PlanKey]
				if _, err := s.reconciler.ReconcileMCs(ctx, tx, showID, d.MCs, mcsByShow[showID], actorID, now); err != nil {
					return err
				}
				if _, err := s.reconciler.ReconcilePlatforms(ctx, tx, showID, d.Platforms, platformsByShow[showID], actorID, now); err != nil {
					return err
				}
			}

			schedule.Status = model.ScheduleStatusPublished
			schedule.PublishedAt = &now
			schedule.PublishedBy = model.StrPtr(actorID)
			schedule.UpdatedBy = model.StrPtr(actorID)

			counts.created = len(showRes.Created)
			counts.updated = len(showRes.Updated)
			counts.deleted = len(showRes.SoftDeleted)
			return nil
		})
	if err != nil {
		s.logger.Warn("发布排期失败",
			zap.String("schedule_id", scheduleID),
			zap.Int("expected_version", expectedVersion),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("排期已发布",
		zap.String("schedule_id", scheduleID),
		zap.Int("version", published.Version),
		zap.Int("shows_created", counts.created),
		zap.Int("shows_updated", counts.updated),
		zap.Int("shows_deleted", counts.deleted),
	)

	evt := mq.SchedulePublishedEvent{
		ScheduleID:   published.ScheduleID,
		Version:      published.Version,
		PublishedBy:  actorID,
		PublishedAt:  now,
		ShowsCreated: counts.created,
		ShowsUpdated: counts.updated,
		ShowsDeleted: counts.deleted,
	}
	if err := s.publisher.PublishSchedulePublished(ctx, evt); err != nil {
		s.logger.Warn("投递发布事件失败", zap.String("schedule_id", scheduleID), zap.Error(err))
	}

	return &dto.PublishScheduleResponse{
		Schedule:     *toScheduleResponse(published),
		ShowsCreated: counts.created,
		ShowsDeleted: counts.deleted,
	}, nil
}

func publishOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, pkgerrors.ErrConflict):
		return "conflict"
	case errors.Is(err, pkgerrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, pkgerrors.ErrState), errors.Is(err, pkgerrors.ErrBadRequest):
		return "rejected"
	default:
		return "error"
	}
}

// collectPlanRefs 收集计划文档中的全部自然键引用
func collectPlanRefs(doc *model.PlanDocument) RefSet {
	refs := RefSet{}
	for _, item := range doc.Shows {
		if item.ClientID != nil {
			refs.Add(model.LookupClient, *item.ClientID)
		}
		if item.StudioRoomID != nil {
			refs.Add(model.LookupStudioRoom, *item.StudioRoomID)
		}
		refs.Add(model.LookupShowType, item.ShowTypeID)
		refs.Add(model.LookupShowStatus, item.ShowStatusID)
		refs.Add(model.LookupShowStandard, item.ShowStandardID)
		for _, mc := range item.MCs {
			refs.Add(model.LookupMC, mc.MCID)
		}
		for _, p := range item.Platforms {
			refs.Add(model.LookupPlatform, p.PlatformID)
		}
	}
	return refs
}

// buildDesiredShows 将计划条目转换为引用已解析的期望节目
// 未指定客户的节目继承排期客户
func buildDesiredShows(doc *model.PlanDocument, resolved Resolved, scheduleClientID *string) []desiredShow {
	out := make([]desiredShow, 0, len(doc.Shows))
	for _, item := range doc.Shows {
		d := desiredShow{
			PlanKey:        item.TempID,
			Name:           item.Name,
			StartTime:      item.StartTime.UTC(),
			EndTime:        item.EndTime.UTC(),
			ClientID:       scheduleClientID,
			ShowTypeID:     resolved.ID(model.LookupShowType, item.ShowTypeID),
			ShowStatusID:   resolved.ID(model.LookupShowStatus, item.ShowStatusID),
			ShowStandardID: resolved.ID(model.LookupShowStandard, item.ShowStandardID),
			Metadata:       item.Metadata,
		}
		if item.ClientID != nil {
			id := resolved.ID(model.LookupClient, *item.ClientID)
			d.ClientID = &id
		}
		if item.StudioRoomID != nil {
			id := resolved.ID(model.LookupStudioRoom, *item.StudioRoomID)
			d.StudioRoomID = &id
		}
		d.MCs = resolveMCs(item.MCs, resolved)
		d.Platforms = resolvePlatforms(item.Platforms, resolved)
		out = append(out, d)
	}
	return out
}

func resolveMCs(items []model.PlanMC, resolved Resolved) []desiredMC {
	out := make([]desiredMC, len(items))
	for i, mc := range items {
		out[i] = desiredMC{
			UID:      mc.MCID,
			MCID:     resolved.ID(model.LookupMC, mc.MCID),
			Note:     mc.Note,
			Metadata: mc.Metadata,
		}
	}
	return out
}

func resolvePlatforms(items []model.PlanPlatform, resolved Resolved) []desiredPlatform {
	out := make([]desiredPlatform, len(items))
	for i, p := range items {
		out[i] = desiredPlatform{
			UID:            p.PlatformID,
			PlatformID:     resolved.ID(model.LookupPlatform, p.PlatformID),
			LiveStreamLink: p.LiveStreamLink,
			PlatformShowID: p.PlatformShowID,
			ViewerCount:    p.ViewerCount,
			Metadata:       p.Metadata,
		}
	}
	return out
}

// loadAssignments 批量读取节目的未删除分配并按节目分组
func loadAssignments(ctx context.Context, tx *repository.Repository, showIDs []string) (map[string][]model.ShowMC, map[string][]model.ShowPlatform, error) {
	mcs, err := tx.ShowMC.ListActiveByShows(ctx, showIDs)
	if err != nil {
		return nil, nil, err
	}
	platforms, err := tx.ShowPlatform.ListActiveByShows(ctx, showIDs)
	if err != nil {
		return nil, nil, err
	}

	mcsByShow := make(map[string][]model.ShowMC, len(showIDs))
	for _, row := range mcs {
		mcsByShow[row.ShowID] = append(mcsByShow[row.ShowID], row)
	}
	platformsByShow := make(map[string][]model.ShowPlatform, len(showIDs))
	for _, row := range platforms {
		platformsByShow[row.ShowID] = append(platformsByShow[row.ShowID], row)
	}
	return mcsByShow, platformsByShow, nil
}

// ── 辅助函数 ──

func (s *scheduleService) getSchedule(ctx context.Context, scheduleID string) (*model.Schedule, error) {
	schedule, err := s.repo.Schedule.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		s.logger.Error("查询排期失败", zap.String("schedule_id", scheduleID), zap.Error(err))
		return nil, pkgerrors.MapDBError(err)
	}
	return schedule, nil
}

// precheckDraft 快照前的状态与版本预检，避免为必然失败的修改留下快照
func (s *scheduleService) precheckDraft(ctx context.Context, scheduleID string, expectedVersion int, operation string) (*model.Schedule, error) {
	schedule, err := s.getSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if !schedule.IsDraft() {
		return nil, ErrScheduleNotDraft
	}
	if schedule.Version != expectedVersion {
		metrics.RecordVersionConflict(operation)
		return nil, ErrVersionConflict
	}
	return schedule, nil
}

func toScheduleResponse(s *model.Schedule) *dto.ScheduleResponse {
	return &dto.ScheduleResponse{
		ScheduleID:   s.ScheduleID,
		Name:         s.Name,
		ClientID:     model.StrVal(s.ClientID),
		StartDate:    s.StartDate,
		EndDate:      s.EndDate,
		Status:       s.Status,
		Version:      s.Version,
		PlanDocument: json.RawMessage(s.PlanDocument),
		PublishedAt:  s.PublishedAt,
		PublishedBy:  model.StrVal(s.PublishedBy),
		CreatedBy:    model.StrVal(s.CreatedBy),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}
