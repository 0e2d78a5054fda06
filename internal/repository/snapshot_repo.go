package repository

import (
	"context"

	"gorm.io/gorm"

	"showplan/backend/internal/model"
)

// SnapshotRepository 计划文档快照数据访问接口（只追加）
type SnapshotRepository interface {
	Create(ctx context.Context, snapshot *model.ScheduleSnapshot) error
	GetByID(ctx context.Context, scheduleID, snapshotID string) (*model.ScheduleSnapshot, error)
	// ListBySchedule 默认按创建时间倒序，ascending 为 true 时正序
	ListBySchedule(ctx context.Context, scheduleID string, offset, limit int, ascending bool) ([]model.ScheduleSnapshot, int64, error)
}

// ── Snapshot Repository 实现 ──

type snapshotRepo struct {
	db *gorm.DB
}

func NewSnapshotRepo(db *gorm.DB) SnapshotRepository {
	return &snapshotRepo{db: db}
}

func (r *snapshotRepo) Create(ctx context.Context, snapshot *model.ScheduleSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

func (r *snapshotRepo) GetByID(ctx context.Context, scheduleID, snapshotID string) (*model.ScheduleSnapshot, error) {
	var snapshot model.ScheduleSnapshot
	err := r.db.WithContext(ctx).
		Where("schedule_id = ? AND snapshot_id = ?", scheduleID, snapshotID).
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *snapshotRepo) ListBySchedule(ctx context.Context, scheduleID string, offset, limit int, ascending bool) ([]model.ScheduleSnapshot, int64, error) {
	var snapshots []model.ScheduleSnapshot
	var total int64

	q := r.db.WithContext(ctx).Model(&model.ScheduleSnapshot{}).Where("schedule_id = ?", scheduleID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at DESC, version DESC"
	if ascending {
		order = "created_at ASC, version ASC"
	}
	err := q.Order(order).Offset(offset).Limit(limit).Find(&snapshots).Error
	return snapshots, total, err
}
