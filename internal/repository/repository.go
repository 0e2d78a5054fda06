package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	txHooks []func(tx *Repository)

	Schedule     ScheduleRepository
	Show         ShowRepository
	ShowMC       ShowMCRepository
	ShowPlatform ShowPlatformRepository
	Snapshot     SnapshotRepository
	Lookup       LookupRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:           db,
		Schedule:     NewScheduleRepo(db),
		Show:         NewShowRepo(db),
		ShowMC:       NewShowMCRepo(db),
		ShowPlatform: NewShowPlatformRepo(db),
		Snapshot:     NewSnapshotRepo(db),
		Lookup:       NewLookupRepo(db),
	}
}

// Transaction 在同一数据库事务中执行 fn，fn 返回错误时整体回滚
// 未绑定数据库（单元测试手工组装的 mock 聚合）时直接执行 fn
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bound := NewRepository(tx)
		bound.txHooks = r.txHooks
		for _, hook := range r.txHooks {
			hook(bound)
		}
		return fn(bound)
	})
}

// OnTransaction 注册事务内 Repository 的装饰函数，每次开启事务时按注册顺序调用
// 用于在事务内替换单个仓储实现（如测试注入写入失败的快照仓储）
func (r *Repository) OnTransaction(hook func(tx *Repository)) {
	r.txHooks = append(r.txHooks, hook)
}

// isPostgres 行锁等方言相关特性仅在 PostgreSQL 上启用
func isPostgres(db *gorm.DB) bool {
	return db.Dialector != nil && db.Dialector.Name() == "postgres"
}
