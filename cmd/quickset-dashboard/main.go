package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	// Application
	applicationPort "github.com/dreschagin/quickset-dashboard/internal/application/port"
	"github.com/dreschagin/quickset-dashboard/internal/application/usecase"

	// Domain
	"github.com/dreschagin/quickset-dashboard/internal/domain/repository"
	"github.com/dreschagin/quickset-dashboard/internal/domain/service"

	// Infrastructure
	"github.com/dreschagin/quickset-dashboard/internal/infrastructure/backend"
	redisCache "github.com/dreschagin/quickset-dashboard/internal/infrastructure/cache/redis"
	natsInfra "github.com/dreschagin/quickset-dashboard/internal/infrastructure/messaging/nats"
	wsInfra "github.com/dreschagin/quickset-dashboard/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/quickset-dashboard/internal/infrastructure/observability"
	"github.com/dreschagin/quickset-dashboard/internal/infrastructure/observability/cloudwatch"
	"github.com/dreschagin/quickset-dashboard/internal/infrastructure/observability/metrics"
	dynamodbRepo "github.com/dreschagin/quickset-dashboard/internal/infrastructure/persistence/dynamodb"
	"github.com/dreschagin/quickset-dashboard/internal/infrastructure/persistence/memory"
	"github.com/dreschagin/quickset-dashboard/internal/infrastructure/persistence/postgres"
	s3storage "github.com/dreschagin/quickset-dashboard/internal/infrastructure/storage/s3"

	// Interfaces
	httpInterface "github.com/dreschagin/quickset-dashboard/internal/interfaces/http"
	"github.com/dreschagin/quickset-dashboard/internal/interfaces/http/handler"
	"github.com/dreschagin/quickset-dashboard/internal/interfaces/http/middleware"
	"github.com/dreschagin/quickset-dashboard/internal/verdictdigest"

	// Shared
	"github.com/dreschagin/quickset-dashboard/pkg/config"
	"github.com/dreschagin/quickset-dashboard/pkg/logger"

	_ "github.com/lib/pq"
)

func main() {
	// 1. Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Инициализируем logger
	log := logger.New(os.Getenv("LOG_LEVEL"))
	log.Info("Starting QuickSet Dashboard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// CloudWatch Logs подключаем первым, чтобы в него попал весь старт
	var logsPublisher *cloudwatch.LogsPublisher
	if cfg.CloudWatch.LogsEnabled {
		logsPublisher, err = cloudwatch.NewLogsPublisher(ctx, cloudwatch.LogsPublisherConfig{
			LogGroupName:    cfg.CloudWatch.LogGroupName,
			LogStreamName:   cfg.CloudWatch.LogStreamName,
			Region:          cfg.CloudWatch.Region,
			Endpoint:        cfg.CloudWatch.Endpoint,
			AccessKeyID:     cfg.CloudWatch.AccessKeyID,
			SecretAccessKey: cfg.CloudWatch.SecretAccessKey,
			BufferSize:      cfg.CloudWatch.LogsBufferSize,
			FlushInterval:   cfg.CloudWatch.LogsFlushInterval,
			AutoCreate:      true,
		})
		if err != nil {
			log.Error("Failed to initialize CloudWatch logs publisher", err)
			os.Exit(1)
		}
		log.SetLogPublisher(logsPublisher)
		log.Info("CloudWatch logs publisher initialized")
	} else {
		log.Warn("CloudWatch logs publishing is disabled")
	}

	// 3. QuickSet backend
	quicksetClient, err := backend.NewQuickSetClient(cfg.Backend.BaseURL, cfg.Backend.RequestTimeout)
	if err != nil {
		log.Error("Failed to initialize QuickSet client", err)
		os.Exit(1)
	}
	if cfg.Backend.APIKey == "" {
		log.Warn("QUICKSET_API_KEY is empty, clients must send " + handler.APIKeyHeader)
	}

	readiness := make(map[string]httpInterface.ReadinessCheck)

	// 4. История вердиктов: Postgres или in-memory
	var verdictRepository repository.VerdictRepository
	if cfg.Database.Enabled {
		db, err := sql.Open("postgres", cfg.Database.DSN())
		if err != nil {
			log.Error("Failed to connect to database", err)
			os.Exit(1)
		}
		defer db.Close()

		// Настраиваем connection pool
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
		db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

		if err := db.PingContext(ctx); err != nil {
			log.Error("Failed to ping database", err)
			os.Exit(1)
		}

		postgresRepository := postgres.NewPostgresVerdictRepository(db)
		if err := postgresRepository.EnsureSchema(ctx); err != nil {
			log.Error("Failed to prepare database schema", err)
			os.Exit(1)
		}
		verdictRepository = postgresRepository
		readiness["postgres"] = db.PingContext
		log.Info("Database connected successfully")
	} else {
		verdictRepository = memory.NewVerdictRepository()
		log.Warn("Database is disabled, verdict history is kept in memory")
	}

	// 5. Redis кеш терминальных сессий
	var sessionCache applicationPort.Cache
	if cfg.Redis.Enabled {
		cacheImpl, initErr := redisCache.NewSessionCache(redisCache.Options{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			TTL:          cfg.Redis.TTL,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if initErr != nil {
			log.Warn("Failed to connect to Redis, continuing without cache", "error", initErr.Error())
		} else {
			defer cacheImpl.Close()
			sessionCache = cacheImpl
			readiness["redis"] = cacheImpl.Ping
			log.Info("Redis session cache initialized", "host", cfg.Redis.Host)
		}
	} else {
		log.Warn("Redis cache is disabled")
	}

	// 6. NATS события о финальных вердиктах
	var eventPublisher applicationPort.EventPublisher
	if cfg.NATS.Enabled {
		publisherImpl, initErr := natsInfra.NewVerdictPublisher(cfg.NATS.URL, cfg.NATS.Subject, log)
		if initErr != nil {
			log.Warn("Failed to connect to NATS, continuing without event publishing", "error", initErr.Error())
		} else {
			eventPublisher = publisherImpl
			defer eventPublisher.Close()
			log.Info("NATS event publisher initialized", "url", cfg.NATS.URL, "subject", cfg.NATS.Subject)
		}
	} else {
		log.Warn("NATS event publishing is disabled")
	}

	// 7. Архив snapshot'ов: S3 + индекс в DynamoDB
	var snapshotStorage applicationPort.SnapshotStorage
	if cfg.S3.Enabled {
		storageImpl, initErr := s3storage.NewSnapshotStorage(ctx, s3storage.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
			URLMode:         s3storage.URLMode(cfg.S3.URLMode),
			PresignedTTL:    cfg.S3.PresignedTTL,
		})
		if initErr != nil {
			log.Error("Failed to initialize snapshot storage", initErr)
			os.Exit(1)
		}
		snapshotStorage = storageImpl
	} else {
		log.Warn("S3 storage is disabled, snapshot export is unavailable")
	}

	var snapshotMetadata applicationPort.SnapshotMetadataRepository
	if cfg.Dynamo.Enabled {
		repoImpl, initErr := dynamodbRepo.NewSnapshotMetadataRepository(ctx, dynamodbRepo.Config{
			TableName:       cfg.Dynamo.TableSnapshotMetadata,
			Region:          cfg.Dynamo.Region,
			Endpoint:        cfg.Dynamo.Endpoint,
			AccessKeyID:     cfg.Dynamo.AccessKeyID,
			SecretAccessKey: cfg.Dynamo.SecretAccessKey,
			StrongReads:     cfg.Dynamo.StrongReads,
		})
		if initErr != nil {
			log.Error("Failed to initialize snapshot metadata repository", initErr)
			os.Exit(1)
		}
		snapshotMetadata = repoImpl
		log.Info("Snapshot metadata repository initialized", "provider", "dynamodb")
	} else {
		log.Warn("DynamoDB snapshot index is disabled")
	}

	// 8. Метрики: Prometheus всегда, CloudWatch опционально
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promMetrics := metrics.New(registry)

	verdictMetrics := observability.VerdictMetrics{promMetrics}
	var cloudwatchMetrics *cloudwatch.MetricsPublisher
	if cfg.CloudWatch.MetricsEnabled {
		cloudwatchMetrics, err = cloudwatch.NewMetricsPublisher(ctx, cloudwatch.MetricsPublisherConfig{
			Namespace:         cfg.CloudWatch.MetricsNamespace,
			Region:            cfg.CloudWatch.Region,
			Endpoint:          cfg.CloudWatch.Endpoint,
			AccessKeyID:       cfg.CloudWatch.AccessKeyID,
			SecretAccessKey:   cfg.CloudWatch.SecretAccessKey,
			DefaultDimensions: cfg.CloudWatch.MetricsDimensions,
			BufferSize:        cfg.CloudWatch.MetricsBufferSize,
			FlushInterval:     cfg.CloudWatch.MetricsFlushInterval,
			StorageResolution: cfg.CloudWatch.MetricsStorageResolution,
		})
		if err != nil {
			log.Error("Failed to initialize CloudWatch metrics publisher", err)
			os.Exit(1)
		}
		verdictMetrics = append(verdictMetrics, cloudwatchMetrics)
		log.Info("CloudWatch metrics publisher initialized")
	} else {
		log.Warn("CloudWatch metrics publishing is disabled")
	}

	// 9. Dependency Injection - Domain + Application Layer
	reconciler := service.NewVerdictReconciler()

	hub := wsInfra.NewHub(wsInfra.HubConfig{
		Fetcher:           quicksetClient,
		Reconciler:        reconciler,
		Observer:          promMetrics,
		ClientsGauge:      promMetrics.WebSocketClients,
		PollInterval:      cfg.Polling.Interval,
		DefaultCredential: cfg.Backend.APIKey,
	}, log)

	archiver := usecase.NewSnapshotArchiver(
		snapshotStorage,
		snapshotMetadata,
		usecase.SnapshotArchiverConfig{
			KeyPrefix:   cfg.S3.KeyPrefix,
			MetadataTTL: time.Duration(cfg.Dynamo.MetadataTTLDays) * 24 * time.Hour,
		},
		log,
	)

	finalizeSessionUC := usecase.NewFinalizeSessionUseCase(usecase.FinalizeSessionDeps{
		Repository: verdictRepository,
		Archiver:   archiver,
		Events:     eventPublisher,
		Metrics:    verdictMetrics,
		Notifier:   hub,
	}, reconciler, log)

	getSessionVerdictUC := usecase.NewGetSessionVerdictUseCase(quicksetClient, reconciler, sessionCache, finalizeSessionUC, log)
	submitAnswerUC := usecase.NewSubmitAnswerUseCase(quicksetClient, reconciler, finalizeSessionUC, log)
	exportSnapshotUC := usecase.NewExportSnapshotUseCase(quicksetClient, archiver)
	listSnapshotsUC := usecase.NewListSnapshotsUseCase(snapshotMetadata)
	runScenarioUC := usecase.NewRunScenarioUseCase(quicksetClient, log)
	listVerdictsUC := usecase.NewListVerdictsUseCase(verdictRepository)

	hub.SetFinalizer(finalizeSessionUC)
	hub.SetAnswerSubmitter(submitAnswerUC)

	var digestRunner *verdictdigest.Runner
	var digestHandler *verdictdigest.Handler
	if cfg.Digest.Enabled {
		digestRunner = verdictdigest.NewRunner(
			verdictdigest.NewService(verdictRepository, cfg.Digest.Window),
			log,
			cfg.Digest.Interval,
		)
		digestHandler = verdictdigest.NewHandler(digestRunner)
	}

	// 10. Dependency Injection - Interfaces Layer (HTTP Handlers)
	authConfig := middleware.AuthConfig{
		Enabled:     cfg.Security.AuthEnabled,
		BearerToken: cfg.Security.AuthToken,
	}

	router := httpInterface.NewRouter(
		handler.NewSessionAPIHandler(
			getSessionVerdictUC,
			submitAnswerUC,
			exportSnapshotUC,
			listSnapshotsUC,
			runScenarioUC,
			cfg.Backend.APIKey,
			log,
		),
		handler.NewVerdictAPIHandler(listVerdictsUC, log),
		handler.NewWebSocketHandler(hub, cfg.Security.AllowedOrigins, authConfig, log),
		handler.NewAuthAPIHandler(authConfig, promMetrics.AuthFailures, log),
		digestHandler,
		promMetrics,
		registry,
		readiness,
		cfg.Security,
		cfg.RateLimit,
		log,
	)

	// 11. Запускаем фоновые процессы
	go hub.Run(ctx)
	if digestRunner != nil {
		go digestRunner.Start(ctx)
		log.Info("Verdict digest started", "interval", cfg.Digest.Interval.String(), "window", cfg.Digest.Window)
	}

	// 12. Настраиваем HTTP сервер
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Канал для получения сигналов ОС
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Запускаем сервер в отдельной goroutine
	go func() {
		log.Info("HTTP server starting", "port", cfg.Server.Port)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", err)
			os.Exit(1)
		}
	}()

	// 13. Ожидаем сигнал для graceful shutdown
	<-sigChan
	log.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", err)
	}

	// Останавливаем hub и pollers клиентов
	cancel()

	if cloudwatchMetrics != nil {
		if err := cloudwatchMetrics.Close(shutdownCtx); err != nil {
			log.Error("Failed to flush CloudWatch metrics", err)
		}
	}

	log.Info("Server stopped gracefully")

	if logsPublisher != nil {
		log.SetLogPublisher(nil)
		if err := logsPublisher.Close(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to flush CloudWatch logs: %v\n", err)
		}
	}
}
