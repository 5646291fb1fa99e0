package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/scoutbase/portal-api/api/swagger"
	"github.com/scoutbase/portal-api/internal/handler"
	"github.com/scoutbase/portal-api/internal/middleware"
	"github.com/scoutbase/portal-api/internal/models"
	"github.com/scoutbase/portal-api/internal/service"
	"github.com/scoutbase/portal-api/internal/session"
	"github.com/scoutbase/portal-api/internal/upstream"
	"github.com/scoutbase/portal-api/pkg/cache"
	"github.com/scoutbase/portal-api/pkg/config"
	"github.com/scoutbase/portal-api/pkg/logger"
	corsmiddleware "github.com/scoutbase/portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/scoutbase/portal-api/pkg/middleware/requestid"
	"github.com/scoutbase/portal-api/pkg/storage"
)

// @title Scout Portal API
// @version 1.0.0
// @description Gateway between the scout portal front ends and the core membership service
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := service.NewMetricsService()
	membership := upstream.New(cfg.Upstream, logr).WithObserver(metrics)

	cacheService := service.NewCacheService(
		cache.NewRepository(redisClient, logr),
		metrics,
		cfg.Roster.StatsCacheTTL,
		logr,
		true,
	)

	sessions := session.NewStore(redisClient, cfg.Sessions.TTL, logr)
	tokenEvents := session.NewRedisTokenEvents(redisClient, cfg.Sessions.Channel, logr)

	authService := service.NewAuthService(service.AuthServiceParams{
		Upstream: membership,
		Sessions: sessions,
		Events:   tokenEvents,
		Secret:   cfg.JWT.Secret,
		Expiry:   cfg.JWT.Expiration,
		Issuer:   cfg.JWT.Issuer,
		Logger:   logr,
	})
	inviteService := service.NewInviteService(service.NewRedisInviteRepository(redisClient), cfg.Invites.TTL, logr)
	reviewService := service.NewReviewService(service.ReviewServiceParams{
		Upstream:        membership,
		DefaultPageSize: cfg.Roster.DefaultPageSize,
		Logger:          logr,
	})
	rosterService := service.NewRosterService(membership, cacheService, cfg.Roster.StatsCacheTTL, logr)
	listService := service.NewListService(membership, cfg.Lists.BulkFetchLimit, cfg.Lists.DefaultPageSize, logr)

	authHandler := handler.NewAuthHandler(authService, inviteService, logr)
	pendingHandler := handler.NewPendingHandler(reviewService, rosterService, cfg.Search.DebounceSettle, cfg.Sessions.TTL, logr)
	defer pendingHandler.Close()
	listHandler := handler.NewListHandler(listService, logr)
	systemHandler := handler.NewSystemHandler(redisClient, membership, metrics, logr)

	// revocations broadcast from any instance free this one's per-session
	// review state
	watcher := session.NewWatcher(tokenEvents, func(ev session.Event) {
		pendingHandler.Evict(ev.SessionID)
	}, cfg.Sessions.TTL, logr)
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			logr.Sugar().Errorw("revocation watcher stopped", "error", err)
		}
	}()

	var exportHandler *handler.ExportHandler
	if cfg.Exports.Enabled {
		fileStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		exportService := service.NewExportService(service.ExportServiceParams{
			Upstream:        membership,
			Storage:         fileStore,
			Signer:          storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
			Workers:         cfg.Exports.WorkerConcurrency,
			WorkerRetries:   cfg.Exports.WorkerRetries,
			CleanupInterval: cfg.Exports.CleanupInterval,
			FileTTL:         cfg.Exports.SignedURLTTL,
			Logger:          logr,
		})
		exportService.Start(ctx)
		defer exportService.Stop()
		exportHandler = handler.NewExportHandler(exportService, logr)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", systemHandler.Health)
	r.GET("/ready", systemHandler.Ready)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/invites/:id/redeem", authHandler.RedeemInvite)

	authed := api.Group("")
	authed.Use(middleware.Authenticate(authService, watcher))
	authed.POST("/auth/logout", authHandler.Logout)
	authed.GET("/auth/me", authHandler.Me)

	authed.GET("/submissions/pending", pendingHandler.List)
	authed.GET("/submissions/:id", pendingHandler.Detail)
	authed.PATCH("/submissions/:id/approve", pendingHandler.Approve)
	authed.PATCH("/submissions/:id/reject", pendingHandler.Reject)
	authed.GET("/roster/pending-stats", pendingHandler.Stats)

	admin := authed.Group("/admin")
	admin.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleStateAdmin))
	admin.POST("/invites", authHandler.CreateInvite)
	admin.GET("/lists/:resource", listHandler.List)
	admin.GET("/audit-trails", listHandler.AuditTrail)
	admin.GET("/metrics", systemHandler.MetricsSnapshot)
	if exportHandler != nil {
		admin.POST("/exports", exportHandler.Create)
		admin.GET("/exports/:id", exportHandler.Status)
	}

	if exportHandler != nil {
		// the signed token is the credential; no session required
		api.GET("/exports/download", exportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
