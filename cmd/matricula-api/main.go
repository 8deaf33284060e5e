package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/matricula-api/api/swagger"
	"github.com/noah-isme/matricula-api/internal/handler"
	internalmiddleware "github.com/noah-isme/matricula-api/internal/middleware"
	"github.com/noah-isme/matricula-api/internal/repository"
	"github.com/noah-isme/matricula-api/internal/service"
	"github.com/noah-isme/matricula-api/pkg/cache"
	"github.com/noah-isme/matricula-api/pkg/config"
	"github.com/noah-isme/matricula-api/pkg/database"
	"github.com/noah-isme/matricula-api/pkg/export"
	"github.com/noah-isme/matricula-api/pkg/jobs"
	"github.com/noah-isme/matricula-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/matricula-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/matricula-api/pkg/middleware/requestid"
	"github.com/noah-isme/matricula-api/pkg/storage"
)

// @title Matricula API
// @version 1.0.0
// @description School enrollment requests, document completeness and section capacity
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Catalog.CacheEnabled || cfg.Notifications.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close() //nolint:errcheck
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	enrollmentRepo := repository.NewEnrollmentRepository(db)
	periodRepo := repository.NewPeriodRepository(db)
	gradeLevelRepo := repository.NewGradeLevelRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	requirementRepo := repository.NewRequirementRepository(db)
	documentRepo := repository.NewDocumentRepository(db)

	var events service.EventSink = service.NopEventSink{}
	if cfg.Notifications.Enabled {
		publisher := repository.NewRedisEventPublisher(redisClient, cfg.Notifications.Channel)
		queue := jobs.NewQueue("enrollment-events", service.EventJobHandler(publisher), jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			MaxRetries: cfg.Notifications.Retries,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()
		events = service.NewQueueEventSink(queue, logr)
	}

	var catalogCache *service.CacheService
	if redisClient != nil {
		catalogCache = service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metrics, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled)
	}

	store, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		return fmt.Errorf("init document storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)

	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, sectionRepo, periodRepo, events, metrics, service.EnrollmentServiceConfig{
		CodePrefix:     cfg.Enrollment.CodePrefix,
		EnforceWindow:  cfg.Enrollment.EnforceWindow,
		CodeMaxRetries: cfg.Enrollment.CodeMaxRetries,
	}, validate, logr)
	periodSvc := service.NewPeriodService(periodRepo, validate, logr)
	gradeLevelSvc := service.NewGradeLevelService(gradeLevelRepo, validate, logr)
	sectionSvc := service.NewSectionService(sectionRepo, periodRepo, gradeLevelRepo, validate, logr)
	requirementSvc := service.NewRequirementService(requirementRepo, catalogCache, validate, logr)
	documentSvc := service.NewDocumentService(documentRepo, enrollmentRepo, studentRepo, requirementSvc, store, signer, metrics, cfg.APIPrefix, logr)
	reportSvc := service.NewReportService(enrollmentRepo, sectionRepo, periodRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr)
	tokenSvc := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if cfg.Metrics.Enabled {
		r.Use(internalmiddleware.Metrics(metrics))
	}

	checks := map[string]handler.Pinger{"database": db}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), tokenSvc, handler.Handlers{
		Periods:      handler.NewPeriodHandler(periodSvc),
		GradeLevels:  handler.NewGradeLevelHandler(gradeLevelSvc),
		Sections:     handler.NewSectionHandler(sectionSvc),
		Requirements: handler.NewRequirementHandler(requirementSvc),
		Enrollments:  handler.NewEnrollmentHandler(enrollmentSvc),
		Documents:    handler.NewDocumentHandler(documentSvc),
		Reports:      handler.NewReportHandler(reportSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
