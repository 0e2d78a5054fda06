package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"showplan/backend/internal/model"
	"showplan/backend/internal/repository"
	pkgerrors "showplan/backend/pkg/errors"
	"showplan/backend/pkg/metrics"
)

// ErrVersionConflict 排期版本与期望不一致
var ErrVersionConflict = pkgerrors.ConflictError("排期已被其他操作修改，请刷新后重试")

// ScheduleMutation 在版本保护事务内修改排期
// 对 schedule 字段的修改在 mutation 成功返回后随版本号一起写回
type ScheduleMutation func(tx *repository.Repository, schedule *model.Schedule) error

// VersionGuard 排期乐观并发控制
//
// 在单个事务内：读取并锁定排期 → 比较版本 → 执行 mutation → 以原版本为条件写回并 +1。
// 任一步失败整体回滚，不做自动重试。
type VersionGuard struct {
	repo   *repository.Repository
	logger *zap.Logger
}

func NewVersionGuard(repo *repository.Repository, logger *zap.Logger) *VersionGuard {
	return &VersionGuard{repo: repo, logger: logger}
}

// Apply 执行受版本保护的修改，operation 用于日志与指标
// 成功时返回写回后的排期（版本号已 +1）
func (g *VersionGuard) Apply(
	ctx context.Context,
	scheduleID string,
	expectedVersion int,
	operation string,
	mutation ScheduleMutation,
) (*model.Schedule, error) {
	var updated *model.Schedule

	err := g.repo.Transaction(ctx, func(tx *repository.Repository) error {
		schedule, err := tx.Schedule.GetByIDForUpdate(ctx, scheduleID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrScheduleNotFound
			}
			return err
		}
		if schedule.Version != expectedVersion {
			return ErrVersionConflict
		}

		if err := mutation(tx, schedule); err != nil {
			return err
		}

		if err := tx.Schedule.UpdateVersioned(ctx, schedule, expectedVersion); err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				return ErrVersionConflict
			}
			return err
		}
		updated = schedule
		return nil
	})

	if err != nil {
		if errors.Is(err, pkgerrors.ErrConflict) {
			metrics.RecordVersionConflict(operation)
			g.logger.Info("排期版本冲突",
				zap.String("operation", operation),
				zap.String("schedule_id", scheduleID),
				zap.Int("expected_version", expectedVersion),
			)
		}
		return nil, pkgerrors.MapDBError(err)
	}
	return updated, nil
}
