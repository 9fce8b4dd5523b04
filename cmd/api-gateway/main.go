package main

import (
	"context"
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

	_ "github.com/noah-isme/eduschedule-api/api/swagger"
	"github.com/noah-isme/eduschedule-api/internal/handler"
	"github.com/noah-isme/eduschedule-api/internal/middleware"
	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/internal/repository"
	"github.com/noah-isme/eduschedule-api/internal/service"
	"github.com/noah-isme/eduschedule-api/pkg/cache"
	"github.com/noah-isme/eduschedule-api/pkg/config"
	"github.com/noah-isme/eduschedule-api/pkg/database"
	"github.com/noah-isme/eduschedule-api/pkg/export"
	"github.com/noah-isme/eduschedule-api/pkg/jobs"
	"github.com/noah-isme/eduschedule-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/eduschedule-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/eduschedule-api/pkg/middleware/requestid"
	"github.com/noah-isme/eduschedule-api/pkg/storage"
)

// @title EduSchedule API
// @version 1.0.0
// @description Timetable generation engine: constraint solving, candidate ranking, manual moves and exports
// @BasePath /
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("redis connection failed", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	timetableRepo := repository.NewTimetableRepository(db)
	candidateRepo := repository.NewCandidateRepository(db)
	generationJobRepo := repository.NewGenerationJobRepository(db)
	schoolRepo := repository.NewSchoolDataRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)
	progressRepo := repository.NewProgressRepository(redisClient, cfg.Solver.ProgressTTL)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metrics := service.NewMetricsService()
	validate := validator.New()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Analysis.CacheTTL, logr, true)

	var generationSvc *service.GenerationService
	generationQueue := jobs.NewQueue("generation", func(ctx context.Context, job jobs.Job) error {
		return generationSvc.Handle(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Solver.MaxWorkers,
		BufferSize: cfg.Solver.QueueSize,
		Logger:     logr,
	})
	generationSvc = service.NewGenerationService(timetableRepo, generationJobRepo, candidateRepo, schoolRepo, progressRepo, generationQueue, metrics, validate, logr, service.GenerationConfig{
		Days:            cfg.Schedule.Days,
		PeriodsPerDay:   cfg.Schedule.PeriodsPerDay,
		MaxSolutions:    cfg.Solver.SolutionLimit,
		TimeBudget:      cfg.Solver.TimeBudget,
		NodeBudget:      int64(cfg.Solver.NodeBudget),
		CleanupInterval: cfg.Cleanup.Interval,
		CleanupMaxAge:   cfg.Cleanup.MaxAge,
	})
	metrics.RegisterQueueDepth("generation", func() float64 { return float64(generationQueue.Depth()) })

	candidateSvc := service.NewCandidateService(candidateRepo, timetableRepo, logr)
	analysisSvc := service.NewAnalysisService(candidateRepo, timetableRepo, schoolRepo, cacheSvc, metrics, logr, service.AnalysisConfig{
		Days:          cfg.Schedule.Days,
		PeriodsPerDay: cfg.Schedule.PeriodsPerDay,
		CacheTTL:      cfg.Analysis.CacheTTL,
	})
	explanationSvc := service.NewExplanationService(candidateRepo, timetableRepo, cacheSvc, logr, cfg.Analysis.CacheTTL)
	moveSvc := service.NewMoveService(candidateRepo, timetableRepo, schoolRepo, cacheSvc, metrics, validate, logr, service.MoveServiceConfig{
		Days:          cfg.Schedule.Days,
		PeriodsPerDay: cfg.Schedule.PeriodsPerDay,
	})

	generationQueue.Start(ctx)
	defer generationQueue.Stop()
	generationSvc.RecoverPending(ctx)
	generationSvc.StartCleanup(ctx)

	var exportH *handler.ExportHandler
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("export storage init failed", "dir", cfg.Exports.StorageDir, "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exporter := service.NewExportService(candidateRepo, timetableRepo, store, signer, service.ExportConfig{
			APIPrefix:     cfg.APIPrefix,
			ResultTTL:     cfg.Exports.SignedURLTTL,
			Days:          cfg.Schedule.Days,
			PeriodsPerDay: cfg.Schedule.PeriodsPerDay,
		}, logr, export.NewCSVExporter(), export.NewPDFExporter())
		exportWorker := service.NewExportWorker(exportJobRepo, exporter, metrics, cfg.Exports.WorkerRetries, logr)
		exportQueue := jobs.NewQueue("exports", exportWorker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportJobSvc := service.NewExportJobService(exportJobRepo, candidateRepo, timetableRepo, exportQueue, exporter, validate, logr, service.ExportJobConfig{
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
			MaxRetries:      cfg.Exports.WorkerRetries,
		})
		exportQueue.Start(ctx)
		defer exportQueue.Stop()
		exportJobSvc.RecoverPendingJobs(ctx)
		exportJobSvc.StartCleanup(ctx)
		metrics.RegisterQueueDepth("exports", func() float64 { return float64(exportQueue.Depth()) })
		exportH = handler.NewExportHandler(exportJobSvc)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	metricsH := handler.NewMetricsHandler(metrics)
	r.GET("/health", metricsH.Health)
	r.GET("/ready", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "reason": "database unreachable"})
			return
		}
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "reason": "cache unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsH.Prometheus)
	r.GET("/status", metricsH.Status)

	generationH := handler.NewGenerationHandler(generationSvc)
	candidateH := handler.NewCandidateHandler(candidateSvc, analysisSvc, explanationSvc)
	moveH := handler.NewMoveHandler(moveSvc)

	scheduling := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))
	api.POST("/timetables/:id/generate", scheduling, generationH.Generate)
	api.GET("/timetables/:id/candidates", candidateH.List)
	api.GET("/generation-jobs/:id", generationH.Status)
	api.DELETE("/generation-jobs/:id", scheduling, generationH.Cancel)
	api.GET("/candidates/:id", candidateH.Get)
	api.GET("/candidates/:id/analysis", candidateH.Analysis)
	api.GET("/candidates/:id/explanation", candidateH.Explanation)
	api.POST("/candidates/:id/moves/validate", scheduling, moveH.Validate)
	api.POST("/candidates/:id/moves", scheduling, moveH.Apply)
	if exportH != nil {
		api.POST("/candidates/:id/exports", scheduling, exportH.Create)
		api.GET("/exports/:id", exportH.Status)
		// Signed token downloads authenticate themselves; no JWT.
		r.GET(cfg.APIPrefix+"/exports/download/:token", exportH.Download)
	}

	if cfg.Swagger.Enabled && cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logr.Sugar().Errorw("server shutdown failed", "error", err)
		}
	}()

	logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}
