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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/swim-scheduler-api/api/swagger"
	"github.com/noah-isme/swim-scheduler-api/internal/handler"
	internalmiddleware "github.com/noah-isme/swim-scheduler-api/internal/middleware"
	"github.com/noah-isme/swim-scheduler-api/internal/repository"
	"github.com/noah-isme/swim-scheduler-api/internal/service"
	"github.com/noah-isme/swim-scheduler-api/pkg/cache"
	"github.com/noah-isme/swim-scheduler-api/pkg/config"
	"github.com/noah-isme/swim-scheduler-api/pkg/database"
	"github.com/noah-isme/swim-scheduler-api/pkg/export"
	"github.com/noah-isme/swim-scheduler-api/pkg/jobs"
	"github.com/noah-isme/swim-scheduler-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/swim-scheduler-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/swim-scheduler-api/pkg/middleware/requestid"
)

// @title Swim Scheduler API
// @version 1.0.0
// @description Scheduling wizard for swim-school classes, fronting the scheduling backend.
// @BasePath /api/v1
// @schemes http

const (
	shutdownTimeout = 15 * time.Second
	sweepInterval   = 5 * time.Minute
)

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	backend := repository.NewBackendClient(cfg.Backend.BaseURL, &http.Client{Timeout: cfg.Backend.Timeout}, logr, metricsSvc)

	var store service.WizardStore
	switch cfg.Wizard.Store {
	case config.WizardStoreRedis:
		redisClient, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close() //nolint:errcheck
		store = repository.NewWizardRedisStore(redisClient, cfg.Wizard.TTL)
		metricsHandler.AddReadinessCheck("redis", cache.Probe(redisClient))
	default:
		memory := service.NewMemoryWizardStore(cfg.Wizard.TTL)
		go sweepWizards(ctx, memory, logr)
		store = memory
	}

	wizardCfg := service.WizardServiceConfig{InstructorRole: cfg.Backend.InstructorRole}

	var (
		commitLogHandler *handler.CommitLogHandler
		commitQueue      *jobs.Queue
	)
	if cfg.CommitLog.Enabled {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer db.Close() //nolint:errcheck
		metricsHandler.AddReadinessCheck("postgres", database.Probe(db))

		var commitLogs *service.CommitLogService
		commitQueue = jobs.NewQueue("commit-log", func(ctx context.Context, job jobs.Job) error {
			return commitLogs.Handle(ctx, job)
		}, jobs.QueueConfig{
			Workers:    cfg.CommitLog.Workers,
			MaxRetries: cfg.CommitLog.Retries,
			RetryDelay: cfg.CommitLog.RetryDelay,
			Logger:     logr,
		})
		commitLogs = service.NewCommitLogService(repository.NewCommitLogRepository(db), commitQueue, metricsSvc, logr)
		// Workers outlive the signal context so Stop can drain the buffer.
		commitQueue.Start(context.Background())

		wizardCfg.OnCommitted = commitLogs.Record
		commitLogHandler = handler.NewCommitLogHandler(commitLogs)
	}

	wizards := service.NewWizardService(backend, store, metricsSvc, validator.New(), logr, wizardCfg)
	exports := service.NewExportService(wizards, logr, export.NewCSVExporter(), export.NewPDFExporter())

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/metrics/summary", metricsHandler.Summary)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix, internalmiddleware.BackendCredentials())
	handler.NewWizardHandler(wizards, exports).Register(api)
	if commitLogHandler != nil {
		api.GET("/schedule-commits", commitLogHandler.List)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "wizard_store", cfg.Wizard.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("http shutdown failed", zap.Error(err))
	}
	if commitQueue != nil {
		if err := commitQueue.Stop(shutdownCtx); err != nil {
			logr.Warn("commit log queue did not drain", zap.Error(err))
		}
	}
}

func sweepWizards(ctx context.Context, store *service.MemoryWizardStore, logr *zap.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dropped := store.Sweep(); dropped > 0 {
				logr.Debug("expired wizards swept", zap.Int("count", dropped))
			}
		}
	}
}
