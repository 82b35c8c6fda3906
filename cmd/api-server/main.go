package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/stagehub/internship-api/api/swagger"
	"github.com/stagehub/internship-api/internal/handler"
	"github.com/stagehub/internship-api/internal/middleware"
	"github.com/stagehub/internship-api/internal/models"
	"github.com/stagehub/internship-api/internal/repository"
	"github.com/stagehub/internship-api/internal/service"
	"github.com/stagehub/internship-api/pkg/cache"
	"github.com/stagehub/internship-api/pkg/config"
	"github.com/stagehub/internship-api/pkg/database"
	"github.com/stagehub/internship-api/pkg/logger"
	corsmiddleware "github.com/stagehub/internship-api/pkg/middleware/cors"
	reqidmiddleware "github.com/stagehub/internship-api/pkg/middleware/requestid"
	"github.com/stagehub/internship-api/pkg/storage"
)

// @title Internship Management API
// @version 1.0.0
// @description Internship request workflow, placements and document issuance
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, request list cache disabled", "error", err)
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	internshipRepo := repository.NewInternshipRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	documentRepo := repository.NewDocumentRepository(db)

	metricsSvc := service.NewMetricsService()
	listCache := service.NewRequestListCache(redisClient, cfg.Requests.CacheTTL, metricsSvc, logr)

	var email service.EmailSender
	if cfg.Notifications.EmailEnabled {
		email = &service.LogEmailSender{Logger: logr}
	}
	notificationSvc := service.NewNotificationService(notificationRepo, userRepo, internshipRepo, email, service.NotificationServiceConfig{
		Workers:    cfg.Notifications.WorkerConcurrency,
		BufferSize: cfg.Notifications.QueueBuffer,
		MaxRetries: cfg.Notifications.WorkerRetries,
	}, logr)
	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	workflowSvc := service.NewWorkflowService(requestRepo, internshipRepo, userRepo, logr,
		service.WithTransitionDispatcher(notificationSvc),
		service.WithTransitionRecorder(metricsSvc),
		service.WithRequestListCache(listCache),
	)

	authSvc := service.NewAuthService(userRepo, validator.New(), logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, logr)
	internshipSvc := service.NewInternshipService(internshipRepo, userRepo, logr)

	documentStore, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("document storage init failed", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)
	documentSvc := service.NewDocumentService(documentRepo, requestRepo, userRepo, internshipRepo, userRepo, documentStore, signer, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	requestHandler := handler.NewRequestHandler(workflowSvc)
	internshipHandler := handler.NewInternshipHandler(internshipSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	documentHandler := handler.NewDocumentHandler(documentSvc)
	userHandler := handler.NewUserHandler(userSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	api.GET("/documents/download", documentHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.GET("/auth/me", authHandler.Me)
	authed.POST("/auth/logout", authHandler.Logout)
	authed.PUT("/auth/password", authHandler.ChangePassword)

	requests := authed.Group("/requests")
	requests.POST("", requestHandler.Create)
	requests.GET("", requestHandler.List)
	requests.GET("/stats", middleware.RequireRoles(models.RoleHR, models.RoleAdmin), requestHandler.Stats)
	requests.GET("/export", requestHandler.Export)
	requests.GET("/:id", requestHandler.Get)
	requests.PATCH("/:id", requestHandler.Update)
	requests.DELETE("/:id", requestHandler.Delete)
	requests.POST("/:id/submit", requestHandler.Submit)
	requests.POST("/:id/approve", requestHandler.Approve)
	requests.POST("/:id/reject", requestHandler.Reject)
	requests.POST("/:id/document",
		middleware.RequireRoles(models.RoleHR, models.RoleAdmin),
		middleware.Audit(userRepo, models.AuditActionDocumentIssue, "document"),
		documentHandler.Issue)

	notifications := authed.Group("/notifications")
	notifications.GET("", notificationHandler.List)
	notifications.POST("/:id/read", notificationHandler.MarkRead)
	notifications.POST("/read-all", notificationHandler.MarkAllRead)

	internships := authed.Group("/internships", middleware.RequireRoles(models.RoleHR, models.RoleAdmin))
	internships.POST("", internshipHandler.Create)
	internships.GET("", internshipHandler.List)
	internships.GET("/:id", internshipHandler.Get)
	internships.PATCH("/:id", internshipHandler.Update)

	users := authed.Group("/users")
	users.POST("", middleware.RequireRoles(models.RoleAdmin), userHandler.Create)
	users.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleHR), userHandler.List)
	users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RoleHR), "SELF"), userHandler.Get)
	users.PATCH("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Update)
	users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Deactivate)

	authed.GET("/metrics/summary", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}
