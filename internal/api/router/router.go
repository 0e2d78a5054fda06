package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"showplan/backend/config"
	"showplan/backend/internal/api/handler"
	"showplan/backend/internal/api/middleware"
	"showplan/backend/pkg/jwt"
)

// Setup 初始化并返回 Gin 路由引擎
// limiter 为 nil 时写接口不限流；db 为 nil 时健康检查不探测数据库
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, limiter middleware.RateLimiter, db *gorm.DB, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": "unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Prometheus 指标 ──
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// 写接口：仅 planner，且按用户限流
	write := []gin.HandlerFunc{
		middleware.RoleAuth(jwt.RolePlanner),
		middleware.RateLimit(limiter, cfg.Server.RateLimit.Limit, cfg.Server.RateLimit.Window),
	}
	withWrite := func(hf gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, write...), hf)
	}
	read := middleware.RoleAuth(jwt.RolePlanner, jwt.RoleViewer)

	// ── API v1（全部需要认证）──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr))
	{
		// 排期与计划文档
		schedules := v1.Group("/schedules")
		{
			schedules.POST("", withWrite(h.Schedule.CreateSchedule)...)
			schedules.GET("/:id", read, h.Schedule.GetSchedule)
			schedules.PUT("/:id/plan", withWrite(h.Schedule.UpdatePlan)...)
			schedules.PATCH("/:id/plan", withWrite(h.Schedule.PatchPlan)...)
			schedules.POST("/:id/validate", read, h.Schedule.Validate)
			schedules.POST("/:id/publish", withWrite(h.Schedule.Publish)...)

			// 快照
			schedules.GET("/:id/snapshots", read, h.Schedule.ListSnapshots)
			schedules.POST("/:id/snapshots", withWrite(h.Schedule.CreateSnapshot)...)
			schedules.GET("/:id/snapshots/:snapshot_id", read, h.Schedule.GetSnapshot)
			schedules.GET("/:id/snapshots/:snapshot_id/diff", read, h.Schedule.DiffSnapshot)
			schedules.POST("/:id/snapshots/:snapshot_id/restore", withWrite(h.Schedule.RestoreSnapshot)...)
		}

		// 已发布节目
		shows := v1.Group("/shows")
		{
			shows.GET("/:id", read, h.Show.GetShow)
			shows.GET("/:id/mcs", read, h.Show.ListMCs)
			shows.PUT("/:id/mcs", withWrite(h.Show.ReplaceMCs)...)
			shows.PUT("/:id/platforms", withWrite(h.Show.ReplacePlatforms)...)
		}

		// 导出
		export := v1.Group("/export")
		{
			export.GET("/schedules/:id", read, h.Export.ExportSchedule)
		}
	}

	return r
}
