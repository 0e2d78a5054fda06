package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"showplan/backend/config"
	"showplan/backend/internal/dto"
	"showplan/backend/internal/model"
	"showplan/backend/internal/repository"
	"showplan/backend/internal/testutil"
	"showplan/backend/pkg/mq"
	"showplan/backend/pkg/uid"
)

const testActor = "planner-1"

// ── 测试环境 ──

// testEnv 基于内存 SQLite 的完整 Service 组装
type testEnv struct {
	db     *gorm.DB
	repo   *repository.Repository
	cache  *fakeLookupCache
	events *recordingPublisher
	svc    *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	testutil.SeedStandardLookups(t, db)

	env := &testEnv{
		db:     db,
		repo:   repository.NewRepository(db),
		cache:  newFakeLookupCache(),
		events: &recordingPublisher{},
	}
	cfg := &config.Config{
		Redis: config.RedisConfig{LookupTTL: time.Hour},
		Plan:  config.PlanConfig{SnapshotPageSize: 20, SnapshotMaxPageSize: 100},
	}
	env.svc = NewService(cfg, env.repo, env.cache, env.events, &uid.Sequence{Prefix: "id"}, zap.NewNop())
	return env
}

// createDraft 创建三月排期（客户 acme）
func (e *testEnv) createDraft(t *testing.T) *dto.ScheduleResponse {
	t.Helper()
	resp, err := e.svc.Schedule.CreateSchedule(context.Background(), &dto.CreateScheduleRequest{
		Name:      "三月排期",
		ClientID:  "acme",
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}, testActor)
	if err != nil {
		t.Fatalf("创建排期失败: %v", err)
	}
	return resp
}

// savePlan 保存计划文档并返回新版本
func (e *testEnv) savePlan(t *testing.T, scheduleID string, version int, shows ...model.ShowPlanItem) *dto.ScheduleResponse {
	t.Helper()
	raw := planJSON(t, shows...)
	resp, err := e.svc.Schedule.UpdatePlanDocument(context.Background(), scheduleID, raw, version, testActor)
	if err != nil {
		t.Fatalf("保存计划文档失败: %v", err)
	}
	return resp
}

func (e *testEnv) countRows(t *testing.T, table string, unscoped bool) int64 {
	t.Helper()
	var n int64
	q := e.db.Table(table)
	if !unscoped {
		q = q.Where("deleted_at IS NULL")
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("统计 %s 失败: %v", table, err)
	}
	return n
}

// ── 计划文档构造 ──

// planShow 3 月 day 日 hour 点开始、持续 2 小时的节目
func planShow(tempID string, day, hour int, room string, mcs []string, platforms []string) model.ShowPlanItem {
	start := time.Date(2026, 3, day, hour, 0, 0, 0, time.UTC)
	item := model.ShowPlanItem{
		TempID:         tempID,
		Name:           "节目 " + tempID,
		StartTime:      start,
		EndTime:        start.Add(2 * time.Hour),
		ShowTypeID:     "bau",
		ShowStatusID:   "confirmed",
		ShowStandardID: "std",
		MCs:            []model.PlanMC{},
		Platforms:      []model.PlanPlatform{},
	}
	if room != "" {
		item.StudioRoomID = testutil.Ptr(room)
	}
	for _, mc := range mcs {
		item.MCs = append(item.MCs, model.PlanMC{MCID: mc})
	}
	for _, p := range platforms {
		item.Platforms = append(item.Platforms, model.PlanPlatform{PlatformID: p})
	}
	return item
}

func planJSON(t *testing.T, shows ...model.ShowPlanItem) json.RawMessage {
	t.Helper()
	if shows == nil {
		shows = []model.ShowPlanItem{}
	}
	b, err := json.Marshal(model.PlanDocument{Shows: shows})
	if err != nil {
		t.Fatalf("序列化计划文档失败: %v", err)
	}
	return b
}

// ── fakeLookupCache ──

type fakeLookupCache struct {
	mu      sync.Mutex
	data    map[string]string
	getErr  error
	gets    int
	sets    int
	lastTTL time.Duration
}

func newFakeLookupCache() *fakeLookupCache {
	return &fakeLookupCache{data: make(map[string]string)}
}

func (c *fakeLookupCache) GetLookupIDs(_ context.Context, kind string, uids []string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return nil, c.getErr
	}
	out := make(map[string]string)
	for _, u := range uids {
		if id, ok := c.data[kind+":"+u]; ok {
			out[u] = id
		}
	}
	return out, nil
}

func (c *fakeLookupCache) SetLookupIDs(_ context.Context, kind string, ids map[string]string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.lastTTL = ttl
	for u, id := range ids {
		c.data[kind+":"+u] = id
	}
	return nil
}

// ── recordingPublisher ──

type recordingPublisher struct {
	mu     sync.Mutex
	events []mq.SchedulePublishedEvent
	err    error
}

func (p *recordingPublisher) PublishSchedulePublished(_ context.Context, evt mq.SchedulePublishedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// ── failingSnapshotRepo ──

var errSnapshotStore = errors.New("snapshot store unavailable")

// failingSnapshotRepo 写入总是失败，读取委托给真实实现
type failingSnapshotRepo struct {
	repository.SnapshotRepository
	creates int
}

func (r *failingSnapshotRepo) Create(context.Context, *model.ScheduleSnapshot) error {
	r.creates++
	return errSnapshotStore
}

// failSnapshots 让之后所有事务内的快照写入失败
func (e *testEnv) failSnapshots() *failingSnapshotRepo {
	failing := &failingSnapshotRepo{}
	e.repo.OnTransaction(func(tx *repository.Repository) {
		failing.SnapshotRepository = tx.Snapshot
		tx.Snapshot = failing
	})
	return failing
}
