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

	_ "github.com/campusworks/campus/api/swagger"
	"github.com/campusworks/campus/internal/handler"
	"github.com/campusworks/campus/internal/middleware"
	"github.com/campusworks/campus/internal/models"
	"github.com/campusworks/campus/internal/repository"
	"github.com/campusworks/campus/internal/service"
	"github.com/campusworks/campus/pkg/cache"
	"github.com/campusworks/campus/pkg/config"
	"github.com/campusworks/campus/pkg/database"
	"github.com/campusworks/campus/pkg/logger"
	corsmiddleware "github.com/campusworks/campus/pkg/middleware/cors"
	reqidmiddleware "github.com/campusworks/campus/pkg/middleware/requestid"
	"github.com/campusworks/campus/pkg/storage"
)

// @title Campus API
// @version 1.0.0
// @description Course catalog, enrollment, messaging and document service
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The catalog cache and presence degrade gracefully without Redis.
		logr.Sugar().Warnw("redis unavailable, running without cache and presence", "error", err)
		redisClient = nil
	}

	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}

	uploadSigner := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)
	exportSigner := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Exports.ResultTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	chatRepo := repository.NewChatRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	presenceRepo := repository.NewPresenceRepository(redisClient, cfg.Presence.TTL)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, presenceRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, cacheRepo, cfg.Catalog.CacheTTL, validate, logr)
	chatSvc := service.NewChatService(chatRepo, userRepo, validate, logr)
	documentSvc := service.NewDocumentService(documentRepo, courseRepo, uploadStore, uploadSigner, service.DocumentConfig{
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Uploads.AllowedMIMEs,
	}, logr)
	exportSvc := service.NewExportService(courseRepo, exportStore, exportSigner, metricsSvc, validate, service.ExportConfig{
		WorkerConcurrency: cfg.Exports.WorkerConcurrency,
		WorkerRetries:     cfg.Exports.WorkerRetries,
	}, logr)
	dashboardSvc := service.NewDashboardService(courseRepo, chatRepo, documentRepo, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exportSvc.Start(ctx)
	defer exportSvc.Stop()

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	courseHandler := handler.NewCourseHandler(courseSvc, metricsSvc)
	chatHandler := handler.NewChatHandler(chatSvc)
	documentHandler := handler.NewDocumentHandler(documentSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/register", authHandler.Register)

	// Signed-token downloads carry their own authorization.
	api.GET("/documents/download", documentHandler.Download)
	api.GET("/exports/download", exportHandler.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	users := protected.Group("/users")
	users.GET("", userHandler.List)
	users.GET("/profile/me", userHandler.Me)
	users.PUT("/profile", userHandler.UpdateProfile)
	users.PUT("/dark-mode", userHandler.SetDarkMode)
	users.POST("/online-status", userHandler.OnlineStatus)

	courses := protected.Group("/courses")
	courses.GET("", courseHandler.List)
	courses.POST("", middleware.RequireRoles(models.RoleTeacher), courseHandler.Create)
	courses.PUT("/:id", middleware.RequireRoles(models.RoleTeacher), courseHandler.Update)
	courses.POST("/:id/enroll", middleware.RequireRoles(models.RoleStudent), courseHandler.Enroll)
	courses.DELETE("/:id/enroll", middleware.RequireRoles(models.RoleStudent), courseHandler.Drop)
	courses.GET("/:id/roster", middleware.RequireRoles(models.RoleTeacher), courseHandler.Roster)
	courses.POST("/:id/documents", middleware.RequireRoles(models.RoleTeacher), documentHandler.Upload)
	courses.POST("/:id/roster/export", middleware.RequireRoles(models.RoleTeacher), exportHandler.Enqueue)

	chat := protected.Group("/chat")
	chat.GET("", chatHandler.Conversations)
	chat.GET("/with/:participantId", chatHandler.OpenWith)
	chat.GET("/:id/messages", chatHandler.Messages)
	chat.POST("/message", chatHandler.Send)

	documents := protected.Group("/documents")
	documents.GET("", documentHandler.List)
	documents.GET("/:id/link", documentHandler.Link)
	documents.DELETE("/:id", middleware.RequireRoles(models.RoleTeacher), documentHandler.Delete)

	exports := protected.Group("/exports")
	exports.GET("/:id", middleware.RequireRoles(models.RoleTeacher), exportHandler.Status)

	protected.GET("/dashboard", dashboardHandler.Summary)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
