package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"showplan/backend/internal/model"
)

// ShowMCRepository 节目主持人分配数据访问接口
type ShowMCRepository interface {
	// ListByShow includeDeleted 为 true 时包含软删除的历史分配
	ListByShow(ctx context.Context, showID string, includeDeleted bool) ([]model.ShowMC, error)
	ListActiveByShows(ctx context.Context, showIDs []string) ([]model.ShowMC, error)
	BatchCreate(ctx context.Context, rows []model.ShowMC) error
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	SoftDelete(ctx context.Context, ids []string, actorID string, at time.Time) error
	// SoftDeleteByShows 节目删除时级联软删除其全部未删除分配
	SoftDeleteByShows(ctx context.Context, showIDs []string, actorID string, at time.Time) error
}

// ── ShowMC Repository 实现 ──

type showMCRepo struct {
	db *gorm.DB
}

func NewShowMCRepo(db *gorm.DB) ShowMCRepository {
	return &showMCRepo{db: db}
}

func (r *showMCRepo) ListByShow(ctx context.Context, showID string, includeDeleted bool) ([]model.ShowMC, error) {
	q := r.db.WithContext(ctx)
	if includeDeleted {
		q = q.Unscoped()
	}

	var rows []model.ShowMC
	err := q.Where("show_id = ?", showID).
		Order("created_at ASC, show_mc_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *showMCRepo) ListActiveByShows(ctx context.Context, showIDs []string) ([]model.ShowMC, error) {
	var rows []model.ShowMC
	if len(showIDs) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).
		Where("show_id IN ?", showIDs).
		Order("created_at ASC, show_mc_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *showMCRepo) BatchCreate(ctx context.Context, rows []model.ShowMC) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, 100).Error
}

func (r *showMCRepo) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.ShowMC{}).
		Where("show_mc_id = ?", id).
		Updates(fields).Error
}

func (r *showMCRepo) SoftDelete(ctx context.Context, ids []string, actorID string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.ShowMC{}).
		Where("show_mc_id IN ?", ids).
		Updates(softDeleteFields(actorID, at)).Error
}

func (r *showMCRepo) SoftDeleteByShows(ctx context.Context, showIDs []string, actorID string, at time.Time) error {
	if len(showIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.ShowMC{}).
		Where("show_id IN ?", showIDs).
		Updates(softDeleteFields(actorID, at)).Error
}
