package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"showplan/backend/internal/model"
	pkgerrors "showplan/backend/pkg/errors"
)

// ScheduleRepository 排期数据访问接口
type ScheduleRepository interface {
	Create(ctx context.Context, schedule *model.Schedule) error
	GetByID(ctx context.Context, id string) (*model.Schedule, error)
	// GetByIDForUpdate 事务内读取并加行锁
	GetByIDForUpdate(ctx context.Context, id string) (*model.Schedule, error)
	// UpdateVersioned 以 expectedVersion 为条件写回并将版本号 +1
	// 条件不满足时返回 ErrOptimisticLock，schedule.Version 仅在成功后更新
	UpdateVersioned(ctx context.Context, schedule *model.Schedule, expectedVersion int) error
}

// ── Schedule Repository 实现 ──

type scheduleRepo struct {
	db *gorm.DB
}

func NewScheduleRepo(db *gorm.DB) ScheduleRepository {
	return &scheduleRepo{db: db}
}

func (r *scheduleRepo) Create(ctx context.Context, schedule *model.Schedule) error {
	return r.db.WithContext(ctx).Create(schedule).Error
}

func (r *scheduleRepo) GetByID(ctx context.Context, id string) (*model.Schedule, error) {
	var schedule model.Schedule
	err := r.db.WithContext(ctx).
		Where("schedule_id = ?", id).
		First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *scheduleRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Schedule, error) {
	q := r.db.WithContext(ctx)
	if isPostgres(r.db) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var schedule model.Schedule
	if err := q.Where("schedule_id = ?", id).First(&schedule).Error; err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *scheduleRepo) UpdateVersioned(ctx context.Context, schedule *model.Schedule, expectedVersion int) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&model.Schedule{}).
		Where("schedule_id = ? AND version = ?", schedule.ScheduleID, expectedVersion).
		Updates(map[string]interface{}{
			"name":          schedule.Name,
			"status":        schedule.Status,
			"plan_document": schedule.PlanDocument,
			"published_at":  schedule.PublishedAt,
			"published_by":  schedule.PublishedBy,
			"updated_by":    schedule.UpdatedBy,
			"updated_at":    now,
			"version":       expectedVersion + 1,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}

	schedule.Version = expectedVersion + 1
	schedule.UpdatedAt = now
	return nil
}
