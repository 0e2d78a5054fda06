package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"showplan/backend/internal/model"
)

// ShowPlatformRepository 节目平台分配数据访问接口
type ShowPlatformRepository interface {
	// ListByShow includeDeleted 为 true 时包含软删除的历史分配
	ListByShow(ctx context.Context, showID string, includeDeleted bool) ([]model.ShowPlatform, error)
	ListActiveByShows(ctx context.Context, showIDs []string) ([]model.ShowPlatform, error)
	BatchCreate(ctx context.Context, rows []model.ShowPlatform) error
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	SoftDelete(ctx context.Context, ids []string, actorID string, at time.Time) error
	// SoftDeleteByShows 节目删除时级联软删除其全部未删除分配
	SoftDeleteByShows(ctx context.Context, showIDs []string, actorID string, at time.Time) error
}

// ── ShowPlatform Repository 实现 ──

type showPlatformRepo struct {
	db *gorm.DB
}

func NewShowPlatformRepo(db *gorm.DB) ShowPlatformRepository {
	return &showPlatformRepo{db: db}
}

func (r *showPlatformRepo) ListByShow(ctx context.Context, showID string, includeDeleted bool) ([]model.ShowPlatform, error) {
	q := r.db.WithContext(ctx)
	if includeDeleted {
		q = q.Unscoped()
	}

	var rows []model.ShowPlatform
	err := q.Where("show_id = ?", showID).
		Order("created_at ASC, show_platform_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *showPlatformRepo) ListActiveByShows(ctx context.Context, showIDs []string) ([]model.ShowPlatform, error) {
	var rows []model.ShowPlatform
	if len(showIDs) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).
		Where("show_id IN ?", showIDs).
		Order("created_at ASC, show_platform_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *showPlatformRepo) BatchCreate(ctx context.Context, rows []model.ShowPlatform) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, 100).Error
}

func (r *showPlatformRepo) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.ShowPlatform{}).
		Where("show_platform_id = ?", id).
		Updates(fields).Error
}

func (r *showPlatformRepo) SoftDelete(ctx context.Context, ids []string, actorID string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.ShowPlatform{}).
		Where("show_platform_id IN ?", ids).
		Updates(softDeleteFields(actorID, at)).Error
}

func (r *showPlatformRepo) SoftDeleteByShows(ctx context.Context, showIDs []string, actorID string, at time.Time) error {
	if len(showIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.ShowPlatform{}).
		Where("show_id IN ?", showIDs).
		Updates(softDeleteFields(actorID, at)).Error
}
