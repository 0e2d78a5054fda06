package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/wI2L/jsondiff"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"showplan/backend/internal/dto"
	"showplan/backend/internal/model"
	"showplan/backend/internal/repository"
	pkgerrors "showplan/backend/pkg/errors"
	"showplan/backend/pkg/metrics"
	"showplan/backend/pkg/uid"
)

// snapshotRecorder 计划文档快照记录
// 每次修改计划文档前调用；记录失败时调用方必须放弃本次修改
type snapshotRecorder struct {
	ids    uid.Generator
	logger *zap.Logger
}

func newSnapshotRecorder(ids uid.Generator, logger *zap.Logger) *snapshotRecorder {
	return &snapshotRecorder{ids: ids, logger: logger}
}

// Capture 读取排期当前的计划文档与版本并追加快照
func (r *snapshotRecorder) Capture(ctx context.Context, repo *repository.Repository, scheduleID, reason, actorID string) (*model.ScheduleSnapshot, error) {
	schedule, err := repo.Schedule.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, pkgerrors.MapDBError(err)
	}
	return r.CaptureFrom(ctx, repo, schedule, reason, actorID)
}

// CaptureFrom 以已读取的排期为准追加快照
func (r *snapshotRecorder) CaptureFrom(ctx context.Context, repo *repository.Repository, schedule *model.Schedule, reason, actorID string) (*model.ScheduleSnapshot, error) {
	if !model.ValidSnapshotReason(reason) {
		return nil, ErrInvalidSnapshotReason
	}

	snapshot := &model.ScheduleSnapshot{
		SnapshotID:   r.ids.New(),
		ScheduleID:   schedule.ScheduleID,
		PlanDocument: schedule.PlanDocument,
		Version:      schedule.Version,
		Reason:       reason,
		CreatedBy:    model.StrPtr(actorID),
	}
	if err := repo.Snapshot.Create(ctx, snapshot); err != nil {
		r.logger.Error("记录计划快照失败",
			zap.String("schedule_id", schedule.ScheduleID),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return nil, pkgerrors.MapDBError(err)
	}

	metrics.RecordSnapshot(reason)
	return snapshot, nil
}

// ═══════════════════════════════════════════════════════════
// 快照查询与回滚（ScheduleService 的快照部分）
// ═══════════════════════════════════════════════════════════

func (s *scheduleService) CreateManualSnapshot(ctx context.Context, scheduleID, reason, actorID string) (*dto.SnapshotResponse, error) {
	if reason == "" {
		reason = model.SnapshotReasonManual
	}
	snapshot, err := s.snapshots.Capture(ctx, s.repo, scheduleID, reason, actorID)
	if err != nil {
		return nil, err
	}
	return toSnapshotResponse(snapshot, false), nil
}

func (s *scheduleService) ListSnapshots(ctx context.Context, scheduleID string, req *dto.SnapshotListRequest) ([]dto.SnapshotResponse, int64, error) {
	if _, err := s.getSchedule(ctx, scheduleID); err != nil {
		return nil, 0, err
	}

	limit := req.GetLimit(s.cfg.SnapshotPageSize, s.cfg.SnapshotMaxPageSize)
	snapshots, total, err := s.repo.Snapshot.ListBySchedule(ctx, scheduleID, req.GetOffset(), limit, req.Order == "asc")
	if err != nil {
		s.logger.Error("查询快照列表失败", zap.String("schedule_id", scheduleID), zap.Error(err))
		return nil, 0, pkgerrors.MapDBError(err)
	}

	list := make([]dto.SnapshotResponse, len(snapshots))
	for i := range snapshots {
		list[i] = *toSnapshotResponse(&snapshots[i], false)
	}
	return list, total, nil
}

func (s *scheduleService) GetSnapshot(ctx context.Context, scheduleID, snapshotID string) (*dto.SnapshotResponse, error) {
	snapshot, err := s.getSnapshot(ctx, scheduleID, snapshotID)
	if err != nil {
		return nil, err
	}
	return toSnapshotResponse(snapshot, true), nil
}

// DiffSnapshot 计算由快照文档变为当前文档的 JSON Patch
func (s *scheduleService) DiffSnapshot(ctx context.Context, scheduleID, snapshotID string) (*dto.SnapshotDiffResponse, error) {
	schedule, err := s.getSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.getSnapshot(ctx, scheduleID, snapshotID)
	if err != nil {
		return nil, err
	}

	patch, err := jsondiff.CompareJSON(snapshot.PlanDocument, schedule.PlanDocument)
	if err != nil {
		return nil, pkgerrors.BadRequestError("计划文档无法比较: " + err.Error())
	}

	// Patch 按 RFC 6902 序列化，直接映射到响应结构
	ops := []dto.DiffOperation{}
	if len(patch) > 0 {
		b, err := json.Marshal(patch)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &ops); err != nil {
			return nil, err
		}
	}
	return &dto.SnapshotDiffResponse{
		SnapshotID:      snapshot.SnapshotID,
		SnapshotVersion: snapshot.Version,
		CurrentVersion:  schedule.Version,
		Operations:      ops,
	}, nil
}

// RestoreSnapshot 将草稿的计划文档回滚到快照内容
// 与保存计划文档相同：版本保护事务内先对当前文档 auto_save 快照，再写入
func (s *scheduleService) RestoreSnapshot(
	ctx context.Context,
	scheduleID, snapshotID string,
	expectedVersion int,
	actorID string,
) (*dto.ScheduleResponse, error) {
	if actorID == "" {
		return nil, ErrActorRequired
	}

	if _, err := s.precheckDraft(ctx, scheduleID, expectedVersion, "restore_snapshot"); err != nil {
		return nil, err
	}
	snapshot, err := s.getSnapshot(ctx, scheduleID, snapshotID)
	if err != nil {
		return nil, err
	}
	doc, err := model.ParsePlanDocument(snapshot.PlanDocument)
	if err != nil {
		return nil, pkgerrors.BadRequestError(err.Error())
	}

	updated, err := s.guard.Apply(ctx, scheduleID, expectedVersion, "restore_snapshot",
		func(tx *repository.Repository, schedule *model.Schedule) error {
			if !schedule.IsDraft() {
				return ErrScheduleNotDraft
			}
			if _, err := s.snapshots.CaptureFrom(ctx, tx, schedule, model.SnapshotReasonAutoSave, actorID); err != nil {
				return err
			}
			return s.writePlan(schedule, snapshot.PlanDocument, doc, actorID)
		})
	if err != nil {
		return nil, err
	}

	s.logger.Info("计划文档已回滚",
		zap.String("schedule_id", scheduleID),
		zap.String("snapshot_id", snapshotID),
		zap.Int("version", updated.Version),
	)
	return toScheduleResponse(updated), nil
}

func (s *scheduleService) getSnapshot(ctx context.Context, scheduleID, snapshotID string) (*model.ScheduleSnapshot, error) {
	snapshot, err := s.repo.Snapshot.GetByID(ctx, scheduleID, snapshotID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, pkgerrors.MapDBError(err)
	}
	return snapshot, nil
}

func toSnapshotResponse(s *model.ScheduleSnapshot, withDocument bool) *dto.SnapshotResponse {
	resp := &dto.SnapshotResponse{
		SnapshotID: s.SnapshotID,
		ScheduleID: s.ScheduleID,
		Version:    s.Version,
		Reason:     s.Reason,
		CreatedBy:  model.StrVal(s.CreatedBy),
		CreatedAt:  s.CreatedAt,
	}
	if withDocument {
		resp.PlanDocument = json.RawMessage(s.PlanDocument)
	}
	return resp
}
