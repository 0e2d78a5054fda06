//go:build integration

package repository_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"showplan/backend/config"
	"showplan/backend/internal/dto"
	"showplan/backend/internal/model"
	"showplan/backend/internal/repository"
	"showplan/backend/internal/service"
	"showplan/backend/pkg/database"
	pkgerrors "showplan/backend/pkg/errors"
	"showplan/backend/pkg/mq"
	"showplan/backend/pkg/uid"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=showplan password=showplan_password dbname=showplan_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	// 与生产相同的迁移脚本，部分唯一索引与外键均由迁移创建
	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "数据库迁移失败: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// refs 本次测试写入的参考数据 uid（带随机后缀，避免与其他测试冲突）
type refs struct {
	client, showType, status, standard string
	mcA, mcB, tiktok, room             string
	ids                                map[model.LookupKind][]string
}

// seedRefs 写入一组参考数据，由 cleanupSchedule 一并清理
func seedRefs(t *testing.T) *refs {
	t.Helper()
	suffix := uuid.NewString()[:8]
	r := &refs{ids: map[model.LookupKind][]string{}}

	add := func(kind model.LookupKind, base string) string {
		u := base + "_" + suffix
		entry := &model.LookupEntry{ID: uuid.NewString(), UID: u, Name: base}
		require.NoError(t, testDB.Table(kind.Table()).Create(entry).Error)
		r.ids[kind] = append(r.ids[kind], entry.ID)
		return u
	}
	r.client = add(model.LookupClient, "acme")
	r.showType = add(model.LookupShowType, "bau")
	r.status = add(model.LookupShowStatus, "confirmed")
	r.standard = add(model.LookupShowStandard, "std")
	r.mcA = add(model.LookupMC, "mc_a")
	r.mcB = add(model.LookupMC, "mc_b")
	r.tiktok = add(model.LookupPlatform, "tiktok")
	r.room = add(model.LookupStudioRoom, "room_1")

	return r
}

func createReq(r *refs) *dto.CreateScheduleRequest {
	return &dto.CreateScheduleRequest{
		Name:      "三月排期",
		ClientID:  r.client,
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

// cleanupSchedule 按外键顺序物理删除排期相关的全部数据
func cleanupSchedule(scheduleID string, r *refs) {
	var showIDs []string
	testDB.Unscoped().Model(&model.Show{}).Where("schedule_id = ?", scheduleID).Pluck("show_id", &showIDs)
	if len(showIDs) > 0 {
		testDB.Unscoped().Where("show_id IN ?", showIDs).Delete(&model.ShowMC{})
		testDB.Unscoped().Where("show_id IN ?", showIDs).Delete(&model.ShowPlatform{})
		testDB.Unscoped().Where("show_id IN ?", showIDs).Delete(&model.Show{})
	}
	testDB.Where("schedule_id = ?", scheduleID).Delete(&model.ScheduleSnapshot{})
	testDB.Unscoped().Where("schedule_id = ?", scheduleID).Delete(&model.Schedule{})
	for kind, ids := range r.ids {
		testDB.Table(kind.Table()).Where("id IN ?", ids).Delete(&model.LookupEntry{})
	}
}

func newService(repo *repository.Repository) *service.Service {
	cfg := &config.Config{}
	cfg.Plan.SnapshotPageSize = 20
	cfg.Plan.SnapshotMaxPageSize = 100
	cfg.Redis.LookupTTL = time.Minute
	return service.NewService(cfg, repo, nil, mq.NoopPublisher{}, uid.UUID{}, zap.NewNop())
}

func planItem(r *refs, tempID string, day int, mcs ...string) model.ShowPlanItem {
	start := time.Date(2026, 3, day, 10, 0, 0, 0, time.UTC)
	item := model.ShowPlanItem{
		TempID:         tempID,
		Name:           "节目 " + tempID,
		StartTime:      start,
		EndTime:        start.Add(2 * time.Hour),
		StudioRoomID:   &r.room,
		ShowTypeID:     r.showType,
		ShowStatusID:   r.status,
		ShowStandardID: r.standard,
		MCs:            []model.PlanMC{},
		Platforms:      []model.PlanPlatform{{PlatformID: r.tiktok}},
	}
	for _, mc := range mcs {
		item.MCs = append(item.MCs, model.PlanMC{MCID: mc})
	}
	return item
}

// ═══════════════════════════════════════════════════════════
// Test: 版本号 CAS
// ═══════════════════════════════════════════════════════════

func TestScheduleRepo_ConcurrentUpdateVersioned(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewRepository(testDB)
	r := seedRefs(t)

	s := &model.Schedule{
		ScheduleID:   uuid.NewString(),
		Name:         "并发排期",
		StartDate:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Status:       model.ScheduleStatusDraft,
		PlanDocument: datatypes.JSON(`{"shows":[]}`),
	}
	s.Version = 1
	require.NoError(t, repo.Schedule.Create(ctx, s))
	defer cleanupSchedule(s.ScheduleID, r)

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			local := *s
			local.Name = fmt.Sprintf("写入-%d", i)
			err := repo.Schedule.UpdateVersioned(ctx, &local, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, pkgerrors.ErrOptimisticLock):
				conflicts++
			default:
				t.Errorf("意外错误: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded, "同一期望版本只能有一个写入成功")
	assert.Equal(t, writers-1, conflicts)

	got, err := repo.Schedule.GetByID(ctx, s.ScheduleID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
}

// ═══════════════════════════════════════════════════════════
// Test: 部分唯一索引与错误归类
// ═══════════════════════════════════════════════════════════

func TestShowMCRepo_PartialUniqueIndex(t *testing.T) {
	ctx := context.Background()
	svc := newService(repository.NewRepository(testDB))
	r := seedRefs(t)

	schedule, err := svc.Schedule.CreateSchedule(ctx, createReq(r), "planner-1")
	require.NoError(t, err)
	defer cleanupSchedule(schedule.ScheduleID, r)

	doc, _ := json.Marshal(model.PlanDocument{Shows: []model.ShowPlanItem{planItem(r, "s1", 2, r.mcA)}})
	updated, err := svc.Schedule.UpdatePlanDocument(ctx, schedule.ScheduleID, doc, schedule.Version, "planner-1")
	require.NoError(t, err)
	published, err := svc.Schedule.PublishSchedule(ctx, schedule.ScheduleID, updated.Version, "planner-1")
	require.NoError(t, err)
	assert.Equal(t, 1, published.ShowsCreated)

	rawRepo := repository.NewRepository(testDB)
	shows, err := rawRepo.Show.ListActiveBySchedule(ctx, schedule.ScheduleID)
	require.NoError(t, err)
	require.Len(t, shows, 1)
	active, err := rawRepo.ShowMC.ListActiveByShows(ctx, []string{shows[0].ShowID})
	require.NoError(t, err)
	require.Len(t, active, 1)

	// 直接插入同一自然键的第二条有效分配
	err = rawRepo.ShowMC.BatchCreate(ctx, []model.ShowMC{{
		ShowMCID: uuid.NewString(),
		ShowID:   shows[0].ShowID,
		MCID:     active[0].MCID,
		Metadata: datatypes.JSON(`{}`),
	}})
	require.Error(t, err)
	assert.True(t, errors.Is(pkgerrors.MapDBError(err), pkgerrors.ErrConflict), "唯一约束冲突应归类为 Conflict，实际=%v", err)

	// 通过整体替换去掉再加回：旧行软删除，新行另起一条
	_, err = svc.Show.ReplaceShowMCs(ctx, shows[0].ShowID, []model.PlanMC{{MCID: r.mcB}}, "planner-1")
	require.NoError(t, err)
	_, err = svc.Show.ReplaceShowMCs(ctx, shows[0].ShowID, []model.PlanMC{{MCID: r.mcA}, {MCID: r.mcB}}, "planner-1")
	require.NoError(t, err)

	history, err := rawRepo.ShowMC.ListByShow(ctx, shows[0].ShowID, true)
	require.NoError(t, err)
	assert.Len(t, history, 3, "mc_a 的历史行与新行并存")
}

func TestRepository_ConstraintViolationIsBadRequest(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewRepository(testDB)
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	orphan := model.Show{
		ShowID:         uuid.NewString(),
		ShowTypeID:     uuid.NewString(), // 不存在的参考数据
		ShowStatusID:   uuid.NewString(),
		ShowStandardID: uuid.NewString(),
		Name:           "孤儿节目",
		StartTime:      start,
		EndTime:        start.Add(time.Hour),
		Metadata:       datatypes.JSON(`{}`),
	}
	err := repo.Transaction(ctx, func(tx *repository.Repository) error {
		return tx.Show.BatchCreate(ctx, []model.Show{orphan})
	})
	require.Error(t, err)
	mapped := pkgerrors.MapDBError(err)
	assert.True(t, errors.Is(mapped, pkgerrors.ErrBadRequest), "外键违反应为 BadRequest，实际=%v", mapped)
	assert.False(t, errors.Is(mapped, pkgerrors.ErrPersistence))

	r := seedRefs(t)
	defer cleanupSchedule("", r)
	inverted := orphan
	inverted.ShowID = uuid.NewString()
	inverted.ShowTypeID = r.ids[model.LookupShowType][0]
	inverted.ShowStatusID = r.ids[model.LookupShowStatus][0]
	inverted.ShowStandardID = r.ids[model.LookupShowStandard][0]
	inverted.EndTime = start.Add(-time.Hour)
	err = repo.Transaction(ctx, func(tx *repository.Repository) error {
		return tx.Show.BatchCreate(ctx, []model.Show{inverted})
	})
	require.Error(t, err)
	assert.True(t, errors.Is(pkgerrors.MapDBError(err), pkgerrors.ErrBadRequest), "CHECK 违反应为 BadRequest，实际=%v", err)
}

// ═══════════════════════════════════════════════════════════
// Test: 并发发布
// ═══════════════════════════════════════════════════════════

func TestPublish_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	svc := newService(repository.NewRepository(testDB))
	r := seedRefs(t)

	schedule, err := svc.Schedule.CreateSchedule(ctx, createReq(r), "planner-1")
	require.NoError(t, err)
	defer cleanupSchedule(schedule.ScheduleID, r)

	doc, _ := json.Marshal(model.PlanDocument{Shows: []model.ShowPlanItem{
		planItem(r, "s1", 2, r.mcA),
		planItem(r, "s2", 3, r.mcA, r.mcB),
	}})
	updated, err := svc.Schedule.UpdatePlanDocument(ctx, schedule.ScheduleID, doc, schedule.Version, "planner-1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Schedule.PublishSchedule(ctx, schedule.ScheduleID, updated.Version, "planner-1")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.True(t,
			errors.Is(err, pkgerrors.ErrConflict) || errors.Is(err, pkgerrors.ErrState),
			"落败的发布应为版本冲突或状态错误，实际=%v", err)
	}
	assert.Equal(t, 1, wins)

	shows, err := repository.NewRepository(testDB).Show.ListActiveBySchedule(ctx, schedule.ScheduleID)
	require.NoError(t, err)
	assert.Len(t, shows, 2, "节目只应被物化一次")
}
