package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"showplan/backend/internal/model"
	"showplan/backend/internal/repository"
	pkgerrors "showplan/backend/pkg/errors"
	"showplan/backend/pkg/metrics"
)

// LookupCache 自然键 → 内部 ID 缓存（由 pkg/redis 实现）
type LookupCache interface {
	GetLookupIDs(ctx context.Context, kind string, uids []string) (map[string]string, error)
	SetLookupIDs(ctx context.Context, kind string, ids map[string]string, ttl time.Duration) error
}

// RefSet 待解析的自然键集合，按类型分组
type RefSet map[model.LookupKind]map[string]struct{}

// Add 记录一个引用，空 uid 忽略
func (r RefSet) Add(kind model.LookupKind, uid string) {
	if uid == "" {
		return
	}
	if r[kind] == nil {
		r[kind] = make(map[string]struct{})
	}
	r[kind][uid] = struct{}{}
}

// Resolved 解析结果
type Resolved map[model.LookupKind]map[string]string

// ID 返回内部 ID；ResolveAll 成功后集合中的每个 uid 都能取到
func (r Resolved) ID(kind model.LookupKind, uid string) string {
	return r[kind][uid]
}

// IdentityResolver 参考数据自然键批量解析
// 每种类型一次批量查询，先查缓存，未命中部分回源数据库并回填
type IdentityResolver struct {
	cache  LookupCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewIdentityResolver cache 为 nil 时直接查库
func NewIdentityResolver(cache LookupCache, ttl time.Duration, logger *zap.Logger) *IdentityResolver {
	return &IdentityResolver{cache: cache, ttl: ttl, logger: logger}
}

// ResolveAll 解析全部引用，任一键无法解析时返回 *UnresolvedKeyError（归类为 NotFound）
// 类型按固定顺序处理，错误只报告第一个有缺失的类型
func (r *IdentityResolver) ResolveAll(ctx context.Context, lookup repository.LookupRepository, refs RefSet) (Resolved, error) {
	resolved := make(Resolved, len(refs))

	for _, kind := range model.LookupKinds {
		set, ok := refs[kind]
		if !ok || len(set) == 0 {
			continue
		}
		uids := make([]string, 0, len(set))
		for u := range set {
			uids = append(uids, u)
		}
		sort.Strings(uids)

		ids, err := r.resolveKind(ctx, lookup, kind, uids)
		if err != nil {
			return nil, err
		}

		var missing []string
		for _, u := range uids {
			if _, ok := ids[u]; !ok {
				missing = append(missing, u)
			}
		}
		if len(missing) > 0 {
			return nil, pkgerrors.NewUnresolvedKeyError(string(kind), missing)
		}
		resolved[kind] = ids
	}

	return resolved, nil
}

func (r *IdentityResolver) resolveKind(ctx context.Context, lookup repository.LookupRepository, kind model.LookupKind, uids []string) (map[string]string, error) {
	ids := make(map[string]string, len(uids))
	misses := uids

	if r.cache != nil {
		cached, err := r.cache.GetLookupIDs(ctx, string(kind), uids)
		if err != nil {
			r.logger.Warn("读取自然键缓存失败，回源数据库", zap.String("kind", string(kind)), zap.Error(err))
		} else {
			misses = misses[:0:0]
			for _, u := range uids {
				if id, ok := cached[u]; ok {
					ids[u] = id
				} else {
					misses = append(misses, u)
				}
			}
			metrics.RecordLookupCache(string(kind), len(cached), len(misses))
		}
	}

	if len(misses) == 0 {
		return ids, nil
	}

	fromDB, err := lookup.ResolveUIDs(ctx, kind, misses)
	if err != nil {
		return nil, err
	}
	for u, id := range fromDB {
		ids[u] = id
	}

	if r.cache != nil && len(fromDB) > 0 {
		if err := r.cache.SetLookupIDs(ctx, string(kind), fromDB, r.ttl); err != nil {
			r.logger.Warn("回填自然键缓存失败", zap.String("kind", string(kind)), zap.Error(err))
		}
	}
	return ids, nil
}
