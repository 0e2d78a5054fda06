package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"showplan/backend/internal/model"
)

// ShowRepository 节目数据访问接口
// 写操作只由对账流程调用
type ShowRepository interface {
	GetByID(ctx context.Context, id string) (*model.Show, error)
	// ListActiveBySchedule 排期下未删除的节目
	ListActiveBySchedule(ctx context.Context, scheduleID string) ([]model.Show, error)
	BatchCreate(ctx context.Context, shows []model.Show) error
	UpdateFields(ctx context.Context, showID string, fields map[string]interface{}) error
	SoftDelete(ctx context.Context, showIDs []string, actorID string, at time.Time) error
}

// ── Show Repository 实现 ──

type showRepo struct {
	db *gorm.DB
}

func NewShowRepo(db *gorm.DB) ShowRepository {
	return &showRepo{db: db}
}

func (r *showRepo) GetByID(ctx context.Context, id string) (*model.Show, error) {
	var show model.Show
	if err := r.db.WithContext(ctx).Where("show_id = ?", id).First(&show).Error; err != nil {
		return nil, err
	}
	return &show, nil
}

func (r *showRepo) ListActiveBySchedule(ctx context.Context, scheduleID string) ([]model.Show, error) {
	var shows []model.Show
	err := r.db.WithContext(ctx).
		Where("schedule_id = ?", scheduleID).
		Order("start_time ASC, show_id ASC").
		Find(&shows).Error
	return shows, err
}

func (r *showRepo) BatchCreate(ctx context.Context, shows []model.Show) error {
	if len(shows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(shows, 100).Error
}

func (r *showRepo) UpdateFields(ctx context.Context, showID string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.Show{}).
		Where("show_id = ?", showID).
		Updates(fields).Error
}

func (r *showRepo) SoftDelete(ctx context.Context, showIDs []string, actorID string, at time.Time) error {
	if len(showIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.Show{}).
		Where("show_id IN ?", showIDs).
		Updates(softDeleteFields(actorID, at)).Error
}

// softDeleteFields 软删除写入的列
func softDeleteFields(actorID string, at time.Time) map[string]interface{} {
	return map[string]interface{}{
		"deleted_at": at,
		"deleted_by": model.StrPtr(actorID),
		"updated_at": at,
		"updated_by": model.StrPtr(actorID),
	}
}
