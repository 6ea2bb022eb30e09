package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	duesapp "github.com/duesledger/backend/internal/application/dues"
	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/duesledger/backend/internal/infrastructure/auth"
	"github.com/duesledger/backend/internal/infrastructure/cache"
	"github.com/duesledger/backend/internal/infrastructure/config"
	"github.com/duesledger/backend/internal/infrastructure/event"
	"github.com/duesledger/backend/internal/infrastructure/logger"
	"github.com/duesledger/backend/internal/infrastructure/persistence"
	"github.com/duesledger/backend/internal/infrastructure/scheduler"
	"github.com/duesledger/backend/internal/infrastructure/storage"
	"github.com/duesledger/backend/internal/infrastructure/telemetry"
	"github.com/duesledger/backend/internal/interfaces/http/handler"
	"github.com/duesledger/backend/internal/interfaces/http/middleware"
	"github.com/duesledger/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx := context.Background()

	baseLog, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	// OTLP log export tees into the zap core when enabled
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
		Level:             cfg.Telemetry.LogsLevel,
	})
	if err != nil {
		baseLog.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	log := baseLog
	if loggerProvider.IsEnabled() {
		otelCore := telemetry.NewZapOTELCore(loggerProvider, cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Telemetry.LogsLevel))
		log = telemetry.NewBridgedLogger(baseLog, otelCore)
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting dues ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("timezone", cfg.App.Location().String()),
	)

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	meter := meterProvider.Meter("dues-ledger")

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
		Tags:            map[string]string{"env": cfg.App.Env},
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsRunning() {
		tracerProvider.EnableSpanProfiles()
	}

	ledgerMetrics, err := telemetry.NewLedgerMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create ledger metrics", zap.Error(err))
	}

	// Database
	db, err := persistence.NewDatabase(&cfg.Database, persistence.Options{
		Logger: log,
		Tracing: telemetry.DBTracingConfig{
			Enabled:          cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
			DBName:           cfg.Database.DBName,
			SlowQueryThresh:  cfg.Telemetry.DBSlowQueryThresh,
			WithoutVariables: !cfg.Telemetry.DBLogFullSQL,
		},
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Repositories
	dueRepo := persistence.NewGormDueRecordRepository(db.DB)
	transactionRepo := persistence.NewGormTransactionRepository(db.DB)
	memberRepo := persistence.NewGormMemberRepository(db.DB)
	reportRepo := persistence.NewGormReportRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Event bus with audit logging. Redelivered events are dropped by the
	// idempotent wrapper.
	eventBus := event.NewInMemoryEventBus(log)
	eventSerializer := event.NewLedgerSerializer()
	eventDedup := cache.NewInMemoryIdempotencyStore()
	defer func() {
		_ = eventDedup.Close()
	}()
	auditHandler := event.NewIdempotentHandler(event.NewAuditLogHandler(eventSerializer, log), eventDedup, log)
	eventBus.Subscribe(auditHandler)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Application services
	paymentService := duesapp.NewPaymentService(txScope, dueRepo, transactionRepo)
	paymentService.SetEventPublisher(eventBus)
	paymentService.SetMetrics(ledgerMetrics)
	paymentService.SetMaxRetries(cfg.Dues.OptimisticRetries)

	dueService := duesapp.NewDueService(txScope, dueRepo, memberRepo)
	dueService.SetEventPublisher(eventBus)
	dueService.SetMaxRetries(cfg.Dues.OptimisticRetries)

	bulkGenerator := duesapp.NewBulkGenerator(txScope, dueRepo, memberRepo, duesapp.BulkConfig{
		Concurrency: cfg.Dues.BulkConcurrency,
		ChunkSize:   cfg.Dues.BulkChunkSize,
		ErrorCap:    cfg.Dues.BulkErrorCap,
	})
	bulkGenerator.SetEventPublisher(eventBus)
	bulkGenerator.SetMetrics(ledgerMetrics)

	reportService := duesapp.NewReportService(reportRepo, cfg.App.Location())

	var archiveStore duesapp.ArchiveStore
	if cfg.Storage.Enabled {
		s3Store, err := storage.NewS3ArchiveStore(ctx, &cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to create S3 archive store", zap.Error(err))
		}
		if err := s3Store.EnsureBucket(ctx); err != nil {
			log.Fatal("Archive bucket is not reachable", zap.String("bucket", s3Store.Bucket()), zap.Error(err))
		}
		archiveStore = s3Store
	} else {
		log.Warn("Archive storage disabled, exports are kept in memory")
		archiveStore = storage.NewMemoryArchiveStore("")
	}
	exportService := duesapp.NewExportService(dueRepo, transactionRepo, archiveStore, cfg.Storage.PresignTTL)

	// Monthly generation
	if cfg.Scheduler.Enabled {
		jobScheduler, err := scheduler.NewScheduler(scheduler.SchedulerConfig{
			MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
			QueueSize:         scheduler.DefaultSchedulerConfig().QueueSize,
			JobTimeout:        cfg.Scheduler.JobTimeout,
			RetryAttempts:     cfg.Scheduler.RetryAttempts,
			RetryDelay:        cfg.Scheduler.RetryDelay,
		}, scheduler.NewMonthlyDuesExecutor(bulkGenerator, log), log)
		if err != nil {
			log.Fatal("Invalid scheduler configuration", zap.Error(err))
		}
		if err := jobScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		defer func() {
			if err := jobScheduler.Stop(context.Background()); err != nil {
				log.Error("Error stopping scheduler", zap.Error(err))
			}
		}()

		trigger, err := scheduler.NewCronTrigger(scheduler.CronTriggerConfig{
			Schedule: cfg.Scheduler.MonthlyCronSchedule,
			Location: cfg.App.Location(),
		}, jobScheduler, memberRepo, log)
		if err != nil {
			log.Fatal("Invalid monthly cron schedule", zap.Error(err))
		}
		if err := trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start cron trigger", zap.Error(err))
		}
		defer func() {
			if err := trigger.Stop(context.Background()); err != nil {
				log.Error("Error stopping cron trigger", zap.Error(err))
			}
		}()
		log.Info("Monthly generation scheduled",
			zap.String("schedule", cfg.Scheduler.MonthlyCronSchedule),
			zap.Time("next_run", trigger.NextRun()),
		)
	}

	// Request idempotency
	idempotencyStore, err := cache.NewIdempotencyStoreFactory(
		cfg.Dues.IdempotencyBackend,
		cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		_ = idempotencyStore.Close()
	}()

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	cors := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine, err := router.NewEngine(router.EngineConfig{
		Logger:           log,
		TokenValidator:   auth.NewJWTService(cfg.JWT),
		IdempotencyStore: idempotencyStore,
		Idempotency:      shared.IdempotencyConfig{TTL: cfg.Dues.IdempotencyTTL, Enabled: true},
		Meter:            meter,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		ProfilingEnabled: profiler.IsRunning(),
		CORS:             cors,
		MaxBodySize:      cfg.HTTP.MaxBodySize,
		TrustedProxies:   cfg.HTTP.TrustedProxies,
	}, router.Handlers{
		Health:   handler.NewHealthHandler(cfg.App.Version, map[string]handler.Pinger{"database": db}),
		Dues:     handler.NewDueHandler(dueService),
		Members:  handler.NewMemberHandler(dueService),
		Payments: handler.NewPaymentHandler(paymentService),
		Bulk:     handler.NewBulkHandler(bulkGenerator),
		Reports:  handler.NewReportHandler(reportService),
		Exports:  handler.NewExportHandler(exportService),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down log exporter", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
