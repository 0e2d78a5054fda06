package service

import (
	"context"
	"time"

	"showplan/backend/internal/model"
	"showplan/backend/internal/repository"
	"showplan/backend/pkg/metrics"
	"showplan/backend/pkg/uid"
)

// ReconcileResult 一次对账落库后的结果（内部 ID）
type ReconcileResult struct {
	Created     []string
	Updated     []string
	Unchanged   []string
	SoftDeleted []string
}

// ── 已解析的期望项（引用均为内部 ID）──

type desiredMC struct {
	UID      string // 计划文档中的外部标识，仅用于错误提示
	MCID     string
	Note     *string
	Metadata map[string]interface{}
}

type desiredPlatform struct {
	UID            string
	PlatformID     string
	LiveStreamLink *string
	PlatformShowID *string
	ViewerCount    *int
	Metadata       map[string]interface{}
}

type desiredShow struct {
	PlanKey        string
	Name           string
	StartTime      time.Time
	EndTime        time.Time
	ClientID       *string
	StudioRoomID   *string // nil 表示未指定，保留原值
	ShowTypeID     string
	ShowStatusID   string
	ShowStandardID string
	Metadata       map[string]interface{}
	MCs            []desiredMC
	Platforms      []desiredPlatform
}

// assignmentReconciler 将对账计划落库
// 顺序固定为：软删除 → 更新 → 新建；所有写操作使用调用方传入的事务
type assignmentReconciler struct {
	ids uid.Generator
}

func newAssignmentReconciler(ids uid.Generator) *assignmentReconciler {
	return &assignmentReconciler{ids: ids}
}

// ═══════════════════════════════════════════════════════════
// 节目集合（排期范围，自然键 temp_id ↔ plan_key）
// ═══════════════════════════════════════════════════════════

// ReconcileShows 对账排期下的节目，返回结果与 plan_key → show_id 映射
// 删除的节目级联软删除其主持人、平台分配
func (r *assignmentReconciler) ReconcileShows(
	ctx context.Context,
	tx *repository.Repository,
	scheduleID string,
	desired []desiredShow,
	existing []model.Show,
	actorID string,
	now time.Time,
) (*ReconcileResult, map[string]string, error) {
	plan, err := Reconcile(desired, existing,
		func(d desiredShow) string { return d.PlanKey },
		func(e model.Show) string { return model.StrVal(e.PlanKey) },
	)
	if err != nil {
		return nil, nil, err
	}

	result := &ReconcileResult{}
	showIDs := make(map[string]string, len(desired))

	// 1. 软删除
	if len(plan.Deletes) > 0 {
		ids := make([]string, len(plan.Deletes))
		for i, e := range plan.Deletes {
			ids[i] = e.ShowID
		}
		if err := tx.Show.SoftDelete(ctx, ids, actorID, now); err != nil {
			return nil, nil, err
		}
		if err := tx.ShowMC.SoftDeleteByShows(ctx, ids, actorID, now); err != nil {
			return nil, nil, err
		}
		if err := tx.ShowPlatform.SoftDeleteByShows(ctx, ids, actorID, now); err != nil {
			return nil, nil, err
		}
		result.SoftDeleted = ids
	}

	// 2. 更新
	for _, m := range plan.Matches {
		showIDs[m.Desired.PlanKey] = m.Existing.ShowID
		fields := showChanges(m.Desired, m.Existing)
		if len(fields) == 0 {
			result.Unchanged = append(result.Unchanged, m.Existing.ShowID)
			continue
		}
		touch(fields, actorID, now)
		if err := tx.Show.UpdateFields(ctx, m.Existing.ShowID, fields); err != nil {
			return nil, nil, err
		}
		result.Updated = append(result.Updated, m.Existing.ShowID)
	}

	// 3. 新建
	if len(plan.Creates) > 0 {
		rows := make([]model.Show, len(plan.Creates))
		for i, d := range plan.Creates {
			id := r.ids.New()
			rows[i] = model.Show{
				ShowID:         id,
				ScheduleID:     model.StrPtr(scheduleID),
				PlanKey:        model.StrPtr(d.PlanKey),
				ClientID:       d.ClientID,
				StudioRoomID:   d.StudioRoomID,
				ShowTypeID:     d.ShowTypeID,
				ShowStatusID:   d.ShowStatusID,
				ShowStandardID: d.ShowStandardID,
				Name:           d.Name,
				StartTime:      d.StartTime,
				EndTime:        d.EndTime,
				Metadata:       model.MetadataJSON(d.Metadata),
			}
			rows[i].CreatedBy = model.StrPtr(actorID)
			rows[i].UpdatedBy = model.StrPtr(actorID)
			showIDs[d.PlanKey] = id
			result.Created = append(result.Created, id)
		}
		if err := tx.Show.BatchCreate(ctx, rows); err != nil {
			return nil, nil, err
		}
	}

	metrics.RecordReconcile("show", len(result.Created), len(result.Updated), len(result.SoftDeleted))
	return result, showIDs, nil
}

func showChanges(d desiredShow, e model.Show) map[string]interface{} {
	fields := map[string]interface{}{}
	if d.Name != e.Name {
		fields["name"] = d.Name
	}
	if !d.StartTime.Equal(e.StartTime) {
		fields["start_time"] = d.StartTime
	}
	if !d.EndTime.Equal(e.EndTime) {
		fields["end_time"] = d.EndTime
	}
	if d.ClientID != nil && *d.ClientID != model.StrVal(e.ClientID) {
		fields["client_id"] = *d.ClientID
	}
	if d.StudioRoomID != nil && *d.StudioRoomID != model.StrVal(e.StudioRoomID) {
		fields["studio_room_id"] = *d.StudioRoomID
	}
	if d.ShowTypeID != e.ShowTypeID {
		fields["show_type_id"] = d.ShowTypeID
	}
	if d.ShowStatusID != e.ShowStatusID {
		fields["show_status_id"] = d.ShowStatusID
	}
	if d.ShowStandardID != e.ShowStandardID {
		fields["show_standard_id"] = d.ShowStandardID
	}
	if d.Metadata != nil {
		if meta := model.MetadataJSON(d.Metadata); !model.SameJSON(meta, e.Metadata) {
			fields["metadata"] = meta
		}
	}
	return fields
}

// ═══════════════════════════════════════════════════════════
// 节目主持人（节目范围，自然键 mc_id）
// ═══════════════════════════════════════════════════════════

// ReconcileMCs existing 必须只包含该节目未删除的分配
func (r *assignmentReconciler) ReconcileMCs(
	ctx context.Context,
	tx *repository.Repository,
	showID string,
	desired []desiredMC,
	existing []model.ShowMC,
	actorID string,
	now time.Time,
) (*ReconcileResult, error) {
	plan, err := Reconcile(desired, existing,
		func(d desiredMC) string { return d.MCID },
		func(e model.ShowMC) string { return e.MCID },
	)
	if err != nil {
		return nil, withPlanKey(err, "mc", func(i int) string { return desired[i].UID })
	}

	result := &ReconcileResult{}

	if len(plan.Deletes) > 0 {
		ids := make([]string, len(plan.Deletes))
		for i, e := range plan.Deletes {
			ids[i] = e.ShowMCID
		}
		if err := tx.ShowMC.SoftDelete(ctx, ids, actorID, now); err != nil {
			return nil, err
		}
		result.SoftDeleted = ids
	}

	for _, m := range plan.Matches {
		fields := map[string]interface{}{}
		if m.Desired.Note != nil && *m.Desired.Note != model.StrVal(m.Existing.Note) {
			fields["note"] = *m.Desired.Note
		}
		if m.Desired.Metadata != nil {
			if meta := model.MetadataJSON(m.Desired.Metadata); !model.SameJSON(meta, m.Existing.Metadata) {
				fields["metadata"] = meta
			}
		}
		if len(fields) == 0 {
			result.Unchanged = append(result.Unchanged, m.Existing.ShowMCID)
			continue
		}
		touch(fields, actorID, now)
		if err := tx.ShowMC.UpdateFields(ctx, m.Existing.ShowMCID, fields); err != nil {
			return nil, err
		}
		result.Updated = append(result.Updated, m.Existing.ShowMCID)
	}

	if len(plan.Creates) > 0 {
		rows := make([]model.ShowMC, len(plan.Creates))
		for i, d := range plan.Creates {
			rows[i] = model.ShowMC{
				ShowMCID: r.ids.New(),
				ShowID:   showID,
				MCID:     d.MCID,
				Note:     d.Note,
				Metadata: model.MetadataJSON(d.Metadata),
			}
			rows[i].CreatedBy = model.StrPtr(actorID)
			rows[i].UpdatedBy = model.StrPtr(actorID)
			result.Created = append(result.Created, rows[i].ShowMCID)
		}
		if err := tx.ShowMC.BatchCreate(ctx, rows); err != nil {
			return nil, err
		}
	}

	metrics.RecordReconcile("show_mc", len(result.Created), len(result.Updated), len(result.SoftDeleted))
	return result, nil
}

// ═══════════════════════════════════════════════════════════
// 节目平台（节目范围，自然键 platform_id）
// ═══════════════════════════════════════════════════════════

// ReconcilePlatforms existing 必须只包含该节目未删除的分配
func (r *assignmentReconciler) ReconcilePlatforms(
	ctx context.Context,
	tx *repository.Repository,
	showID string,
	desired []desiredPlatform,
	existing []model.ShowPlatform,
	actorID string,
	now time.Time,
) (*ReconcileResult, error) {
	plan, err := Reconcile(desired, existing,
		func(d desiredPlatform) string { return d.PlatformID },
		func(e model.ShowPlatform) string { return e.PlatformID },
	)
	if err != nil {
		return nil, withPlanKey(err, "platform", func(i int) string { return desired[i].UID })
	}

	result := &ReconcileResult{}

	if len(plan.Deletes) > 0 {
		ids := make([]string, len(plan.Deletes))
		for i, e := range plan.Deletes {
			ids[i] = e.ShowPlatformID
		}
		if err := tx.ShowPlatform.SoftDelete(ctx, ids, actorID, now); err != nil {
			return nil, err
		}
		result.SoftDeleted = ids
	}

	for _, m := range plan.Matches {
		d, e := m.Desired, m.Existing
		fields := map[string]interface{}{}
		if d.LiveStreamLink != nil && *d.LiveStreamLink != model.StrVal(e.LiveStreamLink) {
			fields["live_stream_link"] = *d.LiveStreamLink
		}
		if d.PlatformShowID != nil && *d.PlatformShowID != model.StrVal(e.PlatformShowID) {
			fields["platform_show_id"] = *d.PlatformShowID
		}
		if d.ViewerCount != nil && *d.ViewerCount != e.ViewerCount {
			fields["viewer_count"] = *d.ViewerCount
		}
		if d.Metadata != nil {
			if meta := model.MetadataJSON(d.Metadata); !model.SameJSON(meta, e.Metadata) {
				fields["metadata"] = meta
			}
		}
		if len(fields) == 0 {
			result.Unchanged = append(result.Unchanged, e.ShowPlatformID)
			continue
		}
		touch(fields, actorID, now)
		if err := tx.ShowPlatform.UpdateFields(ctx, e.ShowPlatformID, fields); err != nil {
			return nil, err
		}
		result.Updated = append(result.Updated, e.ShowPlatformID)
	}

	if len(plan.Creates) > 0 {
		rows := make([]model.ShowPlatform, len(plan.Creates))
		for i, d := range plan.Creates {
			rows[i] = model.ShowPlatform{
				ShowPlatformID: r.ids.New(),
				ShowID:         showID,
				PlatformID:     d.PlatformID,
				LiveStreamLink: d.LiveStreamLink,
				PlatformShowID: d.PlatformShowID,
				Metadata:       model.MetadataJSON(d.Metadata),
			}
			if d.ViewerCount != nil {
				rows[i].ViewerCount = *d.ViewerCount
			}
			rows[i].CreatedBy = model.StrPtr(actorID)
			rows[i].UpdatedBy = model.StrPtr(actorID)
			result.Created = append(result.Created, rows[i].ShowPlatformID)
		}
		if err := tx.ShowPlatform.BatchCreate(ctx, rows); err != nil {
			return nil, err
		}
	}

	metrics.RecordReconcile("show_platform", len(result.Created), len(result.Updated), len(result.SoftDeleted))
	return result, nil
}

func touch(fields map[string]interface{}, actorID string, now time.Time) {
	fields["updated_at"] = now
	fields["updated_by"] = model.StrPtr(actorID)
}
