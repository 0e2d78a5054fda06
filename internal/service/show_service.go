package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"showplan/backend/internal/dto"
	"showplan/backend/internal/model"
	"showplan/backend/internal/repository"
	pkgerrors "showplan/backend/pkg/errors"
	"showplan/backend/pkg/uid"
)

// ── 节目模块业务错误 ──

var ErrShowNotFound = pkgerrors.NotFoundError("节目不存在")

// ShowService 已发布节目及其分配
//
// 节目行只由对账写入：发布时按排期整体对账，或在此按单个节目整体替换分配。
type ShowService interface {
	GetShow(ctx context.Context, showID string) (*dto.ShowResponse, error)
	// includeDeleted 为 true 时返回含软删除记录的分配历史
	ListShowMCs(ctx context.Context, showID string, includeDeleted bool) ([]dto.ShowMCResponse, error)
	ReplaceShowMCs(ctx context.Context, showID string, mcs []model.PlanMC, actorID string) (*dto.ReconcileResultResponse, error)
	ReplaceShowPlatforms(ctx context.Context, showID string, platforms []model.PlanPlatform, actorID string) (*dto.ReconcileResultResponse, error)
}

type showService struct {
	repo       *repository.Repository
	resolver   *IdentityResolver
	reconciler *assignmentReconciler
	validator  *PlanValidator
	logger     *zap.Logger
	now        func() time.Time
}

// NewShowService 创建 ShowService 实例
func NewShowService(repo *repository.Repository, resolver *IdentityResolver, ids uid.Generator, logger *zap.Logger) ShowService {
	return &showService{
		repo:       repo,
		resolver:   resolver,
		reconciler: newAssignmentReconciler(ids),
		validator:  NewPlanValidator(),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *showService) GetShow(ctx context.Context, showID string) (*dto.ShowResponse, error) {
	show, err := s.getShow(ctx, s.repo, showID)
	if err != nil {
		return nil, err
	}

	mcs, err := s.repo.ShowMC.ListByShow(ctx, showID, false)
	if err != nil {
		return nil, pkgerrors.MapDBError(err)
	}
	platforms, err := s.repo.ShowPlatform.ListByShow(ctx, showID, false)
	if err != nil {
		return nil, pkgerrors.MapDBError(err)
	}

	resp := toShowResponse(show)
	for i := range mcs {
		resp.MCs = append(resp.MCs, toShowMCResponse(&mcs[i]))
	}
	for i := range platforms {
		resp.Platforms = append(resp.Platforms, toShowPlatformResponse(&platforms[i]))
	}
	return resp, nil
}

func (s *showService) ListShowMCs(ctx context.Context, showID string, includeDeleted bool) ([]dto.ShowMCResponse, error) {
	if _, err := s.getShow(ctx, s.repo, showID); err != nil {
		return nil, err
	}

	rows, err := s.repo.ShowMC.ListByShow(ctx, showID, includeDeleted)
	if err != nil {
		return nil, pkgerrors.MapDBError(err)
	}
	list := make([]dto.ShowMCResponse, len(rows))
	for i := range rows {
		list[i] = toShowMCResponse(&rows[i])
	}
	return list, nil
}

// ReplaceShowMCs 以 mcs 为期望集合对账节目主持人，单个节目范围的事务
func (s *showService) ReplaceShowMCs(ctx context.Context, showID string, mcs []model.PlanMC, actorID string) (*dto.ReconcileResultResponse, error) {
	if actorID == "" {
		return nil, ErrActorRequired
	}
	if err := s.validator.CheckMCs(mcs); err != nil {
		return nil, err
	}

	var result *ReconcileResult
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := s.getShow(ctx, tx, showID); err != nil {
			return err
		}

		refs := RefSet{}
		for _, mc := range mcs {
			refs.Add(model.LookupMC, mc.MCID)
		}
		resolved, err := s.resolver.ResolveAll(ctx, tx.Lookup, refs)
		if err != nil {
			return err
		}

		existing, err := tx.ShowMC.ListActiveByShows(ctx, []string{showID})
		if err != nil {
			return err
		}
		result, err = s.reconciler.ReconcileMCs(ctx, tx, showID, resolveMCs(mcs, resolved), existing, actorID, s.now())
		return err
	})
	if err != nil {
		return nil, pkgerrors.MapDBError(err)
	}

	s.logger.Info("节目主持人已更新",
		zap.String("show_id", showID),
		zap.Int("created", len(result.Created)),
		zap.Int("updated", len(result.Updated)),
		zap.Int("soft_deleted", len(result.SoftDeleted)),
	)
	return toReconcileResponse(result), nil
}

// ReplaceShowPlatforms 以 platforms 为期望集合对账节目平台
func (s *showService) ReplaceShowPlatforms(ctx context.Context, showID string, platforms []model.PlanPlatform, actorID string) (*dto.ReconcileResultResponse, error) {
	if actorID == "" {
		return nil, ErrActorRequired
	}
	if err := s.validator.CheckPlatforms(platforms); err != nil {
		return nil, err
	}

	var result *ReconcileResult
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := s.getShow(ctx, tx, showID); err != nil {
			return err
		}

		refs := RefSet{}
		for _, p := range platforms {
			refs.Add(model.LookupPlatform, p.PlatformID)
		}
		resolved, err := s.resolver.ResolveAll(ctx, tx.Lookup, refs)
		if err != nil {
			return err
		}

		existing, err := tx.ShowPlatform.ListActiveByShows(ctx, []string{showID})
		if err != nil {
			return err
		}
		result, err = s.reconciler.ReconcilePlatforms(ctx, tx, showID, resolvePlatforms(platforms, resolved), existing, actorID, s.now())
		return err
	})
	if err != nil {
		return nil, pkgerrors.MapDBError(err)
	}

	s.logger.Info("节目平台已更新",
		zap.String("show_id", showID),
		zap.Int("created", len(result.Created)),
		zap.Int("updated", len(result.Updated)),
		zap.Int("soft_deleted", len(result.SoftDeleted)),
	)
	return toReconcileResponse(result), nil
}

func (s *showService) getShow(ctx context.Context, repo *repository.Repository, showID string) (*model.Show, error) {
	show, err := repo.Show.GetByID(ctx, showID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShowNotFound
		}
		return nil, pkgerrors.MapDBError(err)
	}
	return show, nil
}

// ── 转换 ──

func toShowResponse(show *model.Show) *dto.ShowResponse {
	return &dto.ShowResponse{
		ShowID:         show.ShowID,
		ScheduleID:     model.StrVal(show.ScheduleID),
		PlanKey:        model.StrVal(show.PlanKey),
		ClientID:       model.StrVal(show.ClientID),
		StudioRoomID:   model.StrVal(show.StudioRoomID),
		ShowTypeID:     show.ShowTypeID,
		ShowStatusID:   show.ShowStatusID,
		ShowStandardID: show.ShowStandardID,
		Name:           show.Name,
		StartTime:      show.StartTime,
		EndTime:        show.EndTime,
		Metadata:       json.RawMessage(show.Metadata),
		MCs:            []dto.ShowMCResponse{},
		Platforms:      []dto.ShowPlatformResponse{},
	}
}

func toShowMCResponse(row *model.ShowMC) dto.ShowMCResponse {
	resp := dto.ShowMCResponse{
		ShowMCID:  row.ShowMCID,
		ShowID:    row.ShowID,
		MCID:      row.MCID,
		Note:      row.Note,
		Metadata:  json.RawMessage(row.Metadata),
		CreatedAt: row.CreatedAt,
		DeletedBy: model.StrVal(row.DeletedBy),
	}
	if row.DeletedAt.Valid {
		at := row.DeletedAt.Time
		resp.DeletedAt = &at
	}
	return resp
}

func toShowPlatformResponse(row *model.ShowPlatform) dto.ShowPlatformResponse {
	return dto.ShowPlatformResponse{
		ShowPlatformID: row.ShowPlatformID,
		ShowID:         row.ShowID,
		PlatformID:     row.PlatformID,
		LiveStreamLink: row.LiveStreamLink,
		PlatformShowID: row.PlatformShowID,
		ViewerCount:    row.ViewerCount,
		Metadata:       json.RawMessage(row.Metadata),
		CreatedAt:      row.CreatedAt,
	}
}

func toReconcileResponse(r *ReconcileResult) *dto.ReconcileResultResponse {
	nonNil := func(ids []string) []string {
		if ids == nil {
			return []string{}
		}
		return ids
	}
	return &dto.ReconcileResultResponse{
		Created:     nonNil(r.Created),
		Updated:     nonNil(r.Updated),
		Unchanged:   nonNil(r.Unchanged),
		SoftDeleted: nonNil(r.SoftDeleted),
	}
}
