package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/idan157001/TestShuffleFinal/internal/auth"
	"github.com/idan157001/TestShuffleFinal/internal/config"
	"github.com/idan157001/TestShuffleFinal/internal/database"
	"github.com/idan157001/TestShuffleFinal/internal/exams"
	"github.com/idan157001/TestShuffleFinal/internal/extract"
	"github.com/idan157001/TestShuffleFinal/internal/handler"
	"github.com/idan157001/TestShuffleFinal/internal/jobs"
	"github.com/idan157001/TestShuffleFinal/internal/logger"
	"github.com/idan157001/TestShuffleFinal/internal/middleware"
	"github.com/idan157001/TestShuffleFinal/internal/queue"
	"github.com/idan157001/TestShuffleFinal/internal/routes"
	"github.com/idan157001/TestShuffleFinal/internal/scylladb"
	"github.com/idan157001/TestShuffleFinal/internal/server"
	"github.com/idan157001/TestShuffleFinal/internal/service"
	"github.com/idan157001/TestShuffleFinal/internal/storage"
	"github.com/idan157001/TestShuffleFinal/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	lg, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer lg.Sync()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.HealthCheck{}
	stats := map[string]handler.HealthStats{}

	repo, closeRepo, err := openExamRepository(ctx, cfg, lg, checks, stats)
	if err != nil {
		return err
	}
	defer closeRepo()

	jobStore, closeStore, err := openJobStore(cfg, lg, checks)
	if err != nil {
		return err
	}
	defer closeStore()

	var (
		blobs     service.BlobStore
		presigner service.Presigner
	)
	if cfg.Minio.Enabled() {
		storageClient, err := storage.NewStorage(ctx, &storage.Config{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			return err
		}
		blobs, presigner = storageClient, storageClient
		lg.Info("connected to MinIO", zap.String("bucket", cfg.Minio.Bucket))
	}

	extractor, err := extract.NewGemini(ctx, extract.GeminiConfig{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	}, lg.Named("extract"))
	if err != nil {
		return err
	}

	registry := jobs.NewRegistry()
	manager := jobs.NewManager(jobStore, registry, lg.Named("jobs"))
	uploadCfg := service.UploadConfig{
		MaxFileSize:       cfg.Upload.MaxFileSize,
		MaxExams:          cfg.Upload.MaxExams,
		ExtractionTimeout: cfg.Worker.ExtractionTimeout,
	}

	var (
		uploadService *service.Upload
		shutdownWork  func(context.Context) error
	)
	if cfg.RabbitMQURL != "" {
		rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			return err
		}
		defer rabbit.Close()

		producer, err := queue.NewProducer(rabbit, cfg.ExtractionQueue, lg.Named("queue"))
		if err != nil {
			return err
		}
		consumerQueue, err := queue.NewConsumer(rabbit, cfg.ExtractionQueue, cfg.Worker.Concurrency)
		if err != nil {
			return err
		}

		uploadService = service.NewUpload(manager, repo, extractor, producer, blobs, uploadCfg, lg.Named("upload"))
		consumer := worker.NewConsumer(consumerQueue, uploadService.Process, lg.Named("worker"), cfg.Worker.Concurrency)

		consumerCtx, cancelConsumer := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := consumer.Start(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("extraction consumer stopped", zap.Error(err))
			}
		}()
		shutdownWork = func(ctx context.Context) error {
			cancelConsumer()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		lg.Info("extraction dispatch via RabbitMQ", zap.String("queue", cfg.ExtractionQueue))
	} else {
		pool := worker.NewPool(lg.Named("worker"),
			worker.WithWorkers(cfg.Worker.Concurrency),
			worker.WithQueueSize(cfg.Worker.QueueSize),
		)
		uploadService = service.NewUpload(manager, repo, extractor, pool, blobs, uploadCfg, lg.Named("upload"))
		pool.Start(uploadService.Process)
		shutdownWork = pool.Shutdown
		lg.Info("extraction dispatch via in-process pool", zap.Int("workers", cfg.Worker.Concurrency))
	}

	jwtService := auth.NewService(cfg.JWTSecretKey, cfg.AccessTokenTTL)
	g := server.NewServer(routes.Handlers{
		Upload: handler.NewUploadHandler(uploadService, cfg.Upload.MaxFileSize, lg.Named("http")),
		Job:    handler.NewJobHandler(manager, lg.Named("http")),
		WS:     handler.NewWSHandler(manager, registry, lg.Named("ws")),
		Exam:   handler.NewExamHandler(service.NewExams(repo, presigner, lg.Named("exams")), lg.Named("http")),
		Auth:   handler.NewAuthHandler(cfg.CookieSecure),
		Health: handler.NewHealthHandler(registry, checks, stats),
	}, middleware.NewAuthMiddleware(jwtService), lg.Named("http"), cfg.Upload.MaxFileSize)

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           g,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("exam service starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		lg.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Warn("http shutdown", zap.Error(err))
	}
	if err := shutdownWork(shutdownCtx); err != nil {
		lg.Warn("background work did not drain", zap.Error(err))
	}
	return nil
}

func openExamRepository(ctx context.Context, cfg *config.Config, lg *zap.Logger, checks map[string]handler.HealthCheck, stats map[string]handler.HealthStats) (exams.Repository, func(), error) {
	if cfg.DatabaseDriver == "sqlite" {
		db, err := gorm.Open(sqlite.Open(cfg.SQLitePath), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, nil, err
		}
		repo := exams.NewGormRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		checks["sqlite"] = sqlDB.PingContext
		stats["sqlite"] = func() any { return sqlDB.Stats() }
		lg.Info("using SQLite exam store", zap.String("path", cfg.SQLitePath))
		return repo, func() { sqlDB.Close() }, nil
	}

	db, err := database.Connect(ctx, cfg.DatabaseUrl, cfg.Pool)
	if err != nil {
		return nil, nil, err
	}
	if err := database.RunMigrations(cfg.DatabaseUrl); err != nil {
		db.Close()
		return nil, nil, err
	}
	checks["postgres"] = db.HealthCheck
	stats["postgres"] = func() any { return db.Stats() }

	lg.Info("connected to Postgres",
		zap.Int32("max_conns", cfg.Pool.MaxConns),
		zap.Int32("total_conns", db.Stats().TotalConns),
	)
	return exams.NewPostgresRepository(db.Pool), db.Close, nil
}

func openJobStore(cfg *config.Config, lg *zap.Logger, checks map[string]handler.HealthCheck) (jobs.Store, func(), error) {
	if len(cfg.ScyllaHosts) == 0 {
		lg.Warn("SCYLLADB_HOSTS not set, job records are kept in memory")
		return jobs.NewMemoryStore(), func() {}, nil
	}

	db, err := scylladb.Connect(cfg.ScyllaKeyspace, lg.Named("scylladb"), cfg.ScyllaHosts...)
	if err != nil {
		return nil, nil, err
	}
	checks["scylladb"] = db.HealthCheck
	lg.Info("connected to ScyllaDB", zap.Strings("hosts", cfg.ScyllaHosts))
	return scylladb.NewJobStore(db), db.Close, nil
}
