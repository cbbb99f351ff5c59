package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/saessak-edu/saessak-api/api/swagger"
	"github.com/saessak-edu/saessak-api/internal/handler"
	"github.com/saessak-edu/saessak-api/internal/middleware"
	"github.com/saessak-edu/saessak-api/internal/repository"
	"github.com/saessak-edu/saessak-api/internal/service"
	"github.com/saessak-edu/saessak-api/pkg/cache"
	"github.com/saessak-edu/saessak-api/pkg/config"
	"github.com/saessak-edu/saessak-api/pkg/database"
	"github.com/saessak-edu/saessak-api/pkg/export"
	"github.com/saessak-edu/saessak-api/pkg/jobs"
	"github.com/saessak-edu/saessak-api/pkg/llm"
	"github.com/saessak-edu/saessak-api/pkg/logger"
	corsmiddleware "github.com/saessak-edu/saessak-api/pkg/middleware/cors"
	reqidmiddleware "github.com/saessak-edu/saessak-api/pkg/middleware/requestid"
	"github.com/saessak-edu/saessak-api/pkg/storage"
)

// @title Saessak Activity API
// @version 1.0.0
// @description Activity logging and reporting backend for special education classrooms
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	cacheEnabled := cfg.Dashboard.CacheEnabled
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboard cache disabled", "error", err)
		redisClient = nil
		cacheEnabled = false
	} else {
		defer redisClient.Close() //nolint:errcheck
	}

	uploadsStorage, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init uploads storage", "error", err)
	}
	reportsStorage, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init reports storage", "error", err)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	llmClient := llm.NewClient(cfg.LLM)

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	uploadRepo := repository.NewUploadRepository(db)
	logRepo := repository.NewLogRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cacheEnabled)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	uploadSvc := service.NewUploadService(service.UploadServiceParams{
		Repo:         uploadRepo,
		Storage:      uploadsStorage,
		MaxSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
		Logger:       logr,
	})
	extractionSvc := service.NewExtractionService(llmClient, metricsSvc, logr)
	pdfExporter := export.NewPDFExporter(cfg.Reports.PDFFontPath)
	logSvc := service.NewLogService(service.LogServiceParams{
		Repo:     logRepo,
		Students: studentRepo,
		Cache:    cacheSvc,
		PDF:      pdfExporter,
		Logger:   logr,
	})
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Logs:     logRepo,
		Students: studentRepo,
		Cache:    cacheSvc,
		Metrics:  metricsSvc,
		Logger:   logr,
		CacheTTL: cfg.Dashboard.CacheTTL,
	})

	generator := service.NewReportGenerator(service.ReportGeneratorParams{
		Logs:     logRepo,
		Students: studentRepo,
		Client:   llmClient,
		PDF:      pdfExporter,
		Files:    reportsStorage,
		Metrics:  metricsSvc,
		Logger:   logr,
	})
	reportWorker := service.NewReportWorker(reportRepo, generator, metricsSvc, cfg.Reports.WorkerRetries, logr)
	reportQueue := jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportQueue.Start(context.Background())
	defer reportQueue.Stop()

	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	reportSvc := service.NewReportService(service.ReportServiceParams{
		Repo:     reportRepo,
		Students: studentRepo,
		Queue:    reportQueue,
		Signer:   signer,
		Files:    reportsStorage,
		Logger:   logr,
	})

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	uploadHandler := handler.NewUploadHandler(uploadSvc, extractionSvc, logSvc)
	logHandler := handler.NewLogHandler(logSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db, redisClient)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	// downloads are authorized by the signed token, not a session
	api.GET("/reports/:id/download", reportHandler.Download)

	protected := api.Group("", middleware.JWT(authSvc))
	protected.GET("/auth/me", authHandler.Me)

	protected.GET("/students", studentHandler.List)
	protected.POST("/students", studentHandler.Create)
	protected.GET("/students/:id", studentHandler.Get)
	protected.PUT("/students/:id", studentHandler.Update)
	protected.DELETE("/students/:id", studentHandler.Delete)

	protected.POST("/uploads", uploadHandler.Create)
	protected.GET("/uploads", uploadHandler.List)
	protected.GET("/uploads/:id", uploadHandler.Get)
	protected.POST("/uploads/:id/extract", uploadHandler.Extract)
	protected.POST("/uploads/:id/logs", uploadHandler.CommitLogs)

	protected.GET("/dashboard", dashboardHandler.View)

	protected.GET("/logs", logHandler.List)
	protected.GET("/logs/export", logHandler.Export)
	protected.GET("/logs/:id", logHandler.Get)
	protected.PUT("/logs/:id", logHandler.Update)
	protected.DELETE("/logs/:id", logHandler.Delete)

	protected.POST("/reports", reportHandler.Create)
	protected.GET("/reports/:id", reportHandler.Get)

	protected.GET("/metrics/summary", metricsHandler.Summary)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
