package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"showplan/backend/internal/model"
	"showplan/backend/internal/testutil"
	pkgerrors "showplan/backend/pkg/errors"
)

// publishedShow 发布包含一个节目（mc_a、mc_b / tiktok）的排期，返回节目 ID
func publishedShow(t *testing.T, env *testEnv) string {
	t.Helper()
	ctx := context.Background()
	sch := env.createDraft(t)
	env.savePlan(t, sch.ScheduleID, 1, planShow("s1", 2, 10, "room_1", []string{"mc_a", "mc_b"}, []string{"tiktok"}))
	if _, err := env.svc.Schedule.PublishSchedule(ctx, sch.ScheduleID, 2, testActor); err != nil {
		t.Fatalf("发布失败: %v", err)
	}
	shows, err := env.repo.Show.ListActiveBySchedule(ctx, sch.ScheduleID)
	if err != nil || len(shows) != 1 {
		t.Fatalf("期望 1 个节目，实际 %d (%v)", len(shows), err)
	}
	return shows[0].ShowID
}

func TestShowService_GetShow(t *testing.T) {
	env := newTestEnv(t)
	showID := publishedShow(t, env)

	show, err := env.svc.Show.GetShow(context.Background(), showID)
	if err != nil {
		t.Fatalf("GetShow 失败: %v", err)
	}
	if show.PlanKey != "s1" || show.StudioRoomID != "studio_room-room_1" {
		t.Errorf("节目字段不符: %+v", show)
	}
	if len(show.MCs) != 2 || len(show.Platforms) != 1 {
		t.Errorf("期望 2 主持人 1 平台，实际 %d/%d", len(show.MCs), len(show.Platforms))
	}

	if _, err := env.svc.Show.GetShow(context.Background(), "missing"); !errors.Is(err, ErrShowNotFound) {
		t.Errorf("期望 ErrShowNotFound，实际: %v", err)
	}
}

func TestShowService_ReplaceMCs_KeepsHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	showID := publishedShow(t, env)

	result, err := env.svc.Show.ReplaceShowMCs(ctx, showID, []model.PlanMC{
		{MCID: "mc_b", Note: testutil.Ptr("主持")},
		{MCID: "mc_c"},
	}, "planner-2")
	if err != nil {
		t.Fatalf("ReplaceShowMCs 失败: %v", err)
	}
	if len(result.Created) != 1 || len(result.Updated) != 1 || len(result.SoftDeleted) != 1 || len(result.Unchanged) != 0 {
		t.Errorf("期望新建 1 更新 1 删除 1，实际=%+v", result)
	}

	active, _ := env.svc.Show.ListShowMCs(ctx, showID, false)
	if len(active) != 2 {
		t.Errorf("期望 2 条有效分配，实际=%d", len(active))
	}
	history, _ := env.svc.Show.ListShowMCs(ctx, showID, true)
	if len(history) != 3 {
		t.Fatalf("期望历史 3 条，实际=%d", len(history))
	}
	var removed int
	for _, row := range history {
		if row.DeletedAt != nil {
			removed++
			if row.MCID != "mc-mc_a" || row.DeletedBy != "planner-2" {
				t.Errorf("期望 mc_a 被 planner-2 移除，实际=%+v", row)
			}
		}
	}
	if removed != 1 {
		t.Errorf("期望 1 条软删除记录，实际=%d", removed)
	}

	again, err := env.svc.Show.ReplaceShowMCs(ctx, showID, []model.PlanMC{
		{MCID: "mc_b", Note: testutil.Ptr("主持")},
		{MCID: "mc_c"},
	}, "planner-2")
	if err != nil {
		t.Fatalf("重复提交失败: %v", err)
	}
	if len(again.Unchanged) != 2 || len(again.Created)+len(again.Updated)+len(again.SoftDeleted) != 0 {
		t.Errorf("相同输入应全部不变，实际=%+v", again)
	}
}

func TestShowService_ReplaceMCs_UnresolvedLeavesRowsUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	showID := publishedShow(t, env)

	_, err := env.svc.Show.ReplaceShowMCs(ctx, showID, []model.PlanMC{{MCID: "mc_c"}, {MCID: "ghost"}}, testActor)
	if !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("期望 NotFound，实际: %v", err)
	}

	history, _ := env.svc.Show.ListShowMCs(ctx, showID, true)
	if len(history) != 2 {
		t.Errorf("解析失败不应改动分配，实际 %d 条", len(history))
	}
}

func TestShowService_ReplaceMCs_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	showID := publishedShow(t, env)

	_, err := env.svc.Show.ReplaceShowMCs(ctx, showID, []model.PlanMC{{MCID: "mc_b"}, {MCID: "mc_a"}, {MCID: "mc_a"}}, testActor)
	if !errors.Is(err, ErrDuplicateNaturalKey) {
		t.Errorf("期望 ErrDuplicateNaturalKey，实际: %v", err)
	}
	if msg := pkgerrors.Message(err); !strings.Contains(msg, "mc mc_a") || strings.Contains(msg, "mc-mc_a") {
		t.Errorf("重复键提示应使用计划中的 uid，实际=%q", msg)
	}
	_, err = env.svc.Show.ReplaceShowPlatforms(ctx, showID, []model.PlanPlatform{{PlatformID: "tiktok"}, {PlatformID: "tiktok"}}, testActor)
	if msg := pkgerrors.Message(err); !strings.Contains(msg, "platform tiktok") {
		t.Errorf("重复平台提示应使用计划中的 uid，实际=%q", msg)
	}
	if _, err := env.svc.Show.ReplaceShowMCs(ctx, showID, []model.PlanMC{{MCID: ""}}, testActor); !errors.Is(err, pkgerrors.ErrBadRequest) {
		t.Errorf("期望 BadRequest，实际: %v", err)
	}
	if _, err := env.svc.Show.ReplaceShowMCs(ctx, "missing", nil, testActor); !errors.Is(err, ErrShowNotFound) {
		t.Errorf("期望 ErrShowNotFound，实际: %v", err)
	}
	if _, err := env.svc.Show.ReplaceShowMCs(ctx, showID, nil, ""); !errors.Is(err, ErrActorRequired) {
		t.Errorf("期望 ErrActorRequired，实际: %v", err)
	}
}

func TestShowService_ReplacePlatforms(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	showID := publishedShow(t, env)

	_, err := env.svc.Show.ReplaceShowPlatforms(ctx, showID, []model.PlanPlatform{
		{PlatformID: "tiktok", LiveStreamLink: testutil.Ptr("not a url")},
	}, testActor)
	if !errors.Is(err, pkgerrors.ErrBadRequest) {
		t.Fatalf("期望非法链接返回 BadRequest，实际: %v", err)
	}

	result, err := env.svc.Show.ReplaceShowPlatforms(ctx, showID, []model.PlanPlatform{
		{PlatformID: "tiktok", LiveStreamLink: testutil.Ptr("https://live.example.com/s1"), ViewerCount: testutil.Ptr(120)},
		{PlatformID: "shopee"},
	}, testActor)
	if err != nil {
		t.Fatalf("ReplaceShowPlatforms 失败: %v", err)
	}
	if len(result.Updated) != 1 || len(result.Created) != 1 || len(result.SoftDeleted) != 0 {
		t.Errorf("期望更新 1 新建 1，实际=%+v", result)
	}

	show, _ := env.svc.Show.GetShow(ctx, showID)
	for _, p := range show.Platforms {
		if p.PlatformID == "platform-tiktok" && (p.ViewerCount != 120 || model.StrVal(p.LiveStreamLink) == "") {
			t.Errorf("tiktok 分配未更新: %+v", p)
		}
	}
}
