package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"showplan/backend/internal/model"
	"showplan/backend/internal/repository"
	"showplan/backend/internal/testutil"
	pkgerrors "showplan/backend/pkg/errors"
)

func newResolverFixture(t *testing.T, cache LookupCache) (*IdentityResolver, repository.LookupRepository) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	testutil.SeedStandardLookups(t, db)
	return NewIdentityResolver(cache, 30*time.Minute, zap.NewNop()), repository.NewLookupRepo(db)
}

func TestIdentityResolver_ReadThroughCache(t *testing.T) {
	cache := newFakeLookupCache()
	resolver, lookup := newResolverFixture(t, cache)
	ctx := context.Background()

	refs := RefSet{}
	refs.Add(model.LookupMC, "mc_a")
	refs.Add(model.LookupMC, "mc_b")
	refs.Add(model.LookupPlatform, "tiktok")
	refs.Add(model.LookupMC, "") // 空 uid 忽略

	resolved, err := resolver.ResolveAll(ctx, lookup, refs)
	if err != nil {
		t.Fatalf("ResolveAll 失败: %v", err)
	}
	if resolved.ID(model.LookupMC, "mc_b") != "mc-mc_b" || resolved.ID(model.LookupPlatform, "tiktok") != "platform-tiktok" {
		t.Errorf("解析结果不符: %+v", resolved)
	}
	if cache.sets != 2 || cache.lastTTL != 30*time.Minute {
		t.Errorf("期望按类型回填缓存 2 次且 TTL=30m，实际 sets=%d ttl=%v", cache.sets, cache.lastTTL)
	}
	if cache.data["mc:mc_a"] != "mc-mc_a" {
		t.Errorf("缓存未回填 mc_a: %+v", cache.data)
	}

	// 第二次全部命中缓存，不再回填
	if _, err := resolver.ResolveAll(ctx, lookup, refs); err != nil {
		t.Fatalf("ResolveAll 失败: %v", err)
	}
	if cache.sets != 2 {
		t.Errorf("全部命中时不应回填，实际 sets=%d", cache.sets)
	}
}

func TestIdentityResolver_CacheErrorFallsBackToDB(t *testing.T) {
	cache := newFakeLookupCache()
	cache.getErr = errors.New("redis down")
	resolver, lookup := newResolverFixture(t, cache)

	refs := RefSet{}
	refs.Add(model.LookupStudioRoom, "room_2")
	resolved, err := resolver.ResolveAll(context.Background(), lookup, refs)
	if err != nil {
		t.Fatalf("缓存故障时应回源数据库: %v", err)
	}
	if resolved.ID(model.LookupStudioRoom, "room_2") != "studio_room-room_2" {
		t.Errorf("解析结果不符: %+v", resolved)
	}
}

func TestIdentityResolver_UnresolvedKeys(t *testing.T) {
	resolver, lookup := newResolverFixture(t, nil)

	refs := RefSet{}
	refs.Add(model.LookupMC, "mc_a")
	refs.Add(model.LookupMC, "zed")
	refs.Add(model.LookupMC, "ghost")
	refs.Add(model.LookupPlatform, "myspace")

	_, err := resolver.ResolveAll(context.Background(), lookup, refs)
	if !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("期望 NotFound，实际: %v", err)
	}
	var unresolved *pkgerrors.UnresolvedKeyError
	if !errors.As(err, &unresolved) {
		t.Fatalf("期望 UnresolvedKeyError，实际: %T", err)
	}
	// mc 在类型顺序中先于 platform
	if unresolved.Kind != "mc" || len(unresolved.Keys) != 2 || unresolved.Keys[0] != "ghost" || unresolved.Keys[1] != "zed" {
		t.Errorf("期望 mc: ghost, zed，实际=%+v", unresolved)
	}
}

func TestIdentityResolver_EmptyRefs(t *testing.T) {
	resolver, lookup := newResolverFixture(t, nil)

	resolved, err := resolver.ResolveAll(context.Background(), lookup, RefSet{})
	if err != nil || len(resolved) != 0 {
		t.Errorf("空引用集合应直接返回，实际 %v / %v", resolved, err)
	}
}
