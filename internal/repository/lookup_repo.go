package repository

import (
	"context"

	"gorm.io/gorm"

	"showplan/backend/internal/model"
)

// LookupRepository 参考数据（客户、主持人、平台、直播间等）只读访问
// 参考数据的增删改由运营后台负责，本服务仅在解析自然键时读取
type LookupRepository interface {
	// ResolveUIDs 批量将外部 uid 解析为内部 ID，未找到的 uid 不出现在结果中
	ResolveUIDs(ctx context.Context, kind model.LookupKind, uids []string) (map[string]string, error)
	// ListByIDs 按内部 ID 批量读取（导出时展示名称）
	ListByIDs(ctx context.Context, kind model.LookupKind, ids []string) ([]model.LookupEntry, error)
	Create(ctx context.Context, kind model.LookupKind, entry *model.LookupEntry) error
}

// ── Lookup Repository 实现 ──

type lookupRepo struct {
	db *gorm.DB
}

func NewLookupRepo(db *gorm.DB) LookupRepository {
	return &lookupRepo{db: db}
}

func (r *lookupRepo) ResolveUIDs(ctx context.Context, kind model.LookupKind, uids []string) (map[string]string, error) {
	out := make(map[string]string, len(uids))
	if len(uids) == 0 {
		return out, nil
	}

	var rows []model.LookupEntry
	err := r.db.WithContext(ctx).
		Table(kind.Table()).
		Select("id", "uid").
		Where("uid IN ?", uids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		out[row.UID] = row.ID
	}
	return out, nil
}

func (r *lookupRepo) ListByIDs(ctx context.Context, kind model.LookupKind, ids []string) ([]model.LookupEntry, error) {
	var rows []model.LookupEntry
	if len(ids) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).
		Table(kind.Table()).
		Where("id IN ?", ids).
		Find(&rows).Error
	return rows, err
}

func (r *lookupRepo) Create(ctx context.Context, kind model.LookupKind, entry *model.LookupEntry) error {
	return r.db.WithContext(ctx).Table(kind.Table()).Create(entry).Error
}
