package service

import (
	"go.uber.org/zap"

	"showplan/backend/config"
	"showplan/backend/internal/repository"
	"showplan/backend/pkg/mq"
	"showplan/backend/pkg/uid"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Schedule ScheduleService
	Show     ShowService
	Export   ExportService
}

// NewService 创建 Service 聚合
// cache 为 nil 时参考数据解析直接查库；publisher 为 nil 时不投递事件
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	cache LookupCache,
	publisher mq.Publisher,
	ids uid.Generator,
	logger *zap.Logger,
) *Service {
	resolver := NewIdentityResolver(cache, cfg.Redis.LookupTTL, logger)
	return &Service{
		Schedule: NewScheduleService(repo, resolver, publisher, ids, &cfg.Plan, logger),
		Show:     NewShowService(repo, resolver, ids, logger),
		Export:   NewExportService(repo, logger),
	}
}
