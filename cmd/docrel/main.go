package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrel/internal/backend"
	"github.com/kailas-cloud/docrel/internal/backend/kv"
	"github.com/kailas-cloud/docrel/internal/backend/sqlite"
	"github.com/kailas-cloud/docrel/internal/config"
	dbRedis "github.com/kailas-cloud/docrel/internal/db/redis"
	"github.com/kailas-cloud/docrel/internal/domain/docpart"
	"github.com/kailas-cloud/docrel/internal/domain/meta"
	"github.com/kailas-cloud/docrel/internal/identifier"
	logpkg "github.com/kailas-cloud/docrel/internal/logger"
	"github.com/kailas-cloud/docrel/internal/metainfo"
	"github.com/kailas-cloud/docrel/internal/metrics"
	"github.com/kailas-cloud/docrel/internal/rid"
	chiTransport "github.com/kailas-cloud/docrel/internal/transport/chi"
	documentuc "github.com/kailas-cloud/docrel/internal/usecase/document"
	healthuc "github.com/kailas-cloud/docrel/internal/usecase/health"
	schemauc "github.com/kailas-cloud/docrel/internal/usecase/schema"
	"github.com/kailas-cloud/docrel/internal/version"
)

// storage is what the composition root needs from a backend.
type storage interface {
	backend.Beginner
	Ping(ctx context.Context) error
	LoadSnapshot(ctx context.Context) (*meta.Snapshot, error)
	ReadCollection(ctx context.Context, db *meta.Database, coll *meta.Collection) ([]docpart.Result, error)
}

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docrel server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("backend", cfg.Backend.Driver),
	)

	ctx := logpkg.ContextWithLogger(context.Background(), logger)
	store, closeStore, err := openStorage(ctx, cfg.Backend, logger)
	if err != nil {
		logger.Fatal("Failed to open storage backend", zap.Error(err))
	}
	defer closeStore()

	snapshot, err := store.LoadSnapshot(ctx)
	if err != nil {
		logger.Fatal("Failed to load metadata", zap.Error(err))
	}
	logger.Info("Metadata loaded",
		zap.Uint64("version", snapshot.Version()),
		zap.Int("databases", len(snapshot.Databases())),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterCommitMetrics()
	metrics.RegisterTranslationMetrics()

	repo := metainfo.New(snapshot, metainfo.Config{
		MaxAttempts: cfg.Commit.MaxAttempts,
		MinBackoff:  cfg.Commit.MinBackoff(),
		MaxBackoff:  cfg.Commit.MaxBackoff(),
	})
	rids := rid.NewGenerator()
	rids.Load(snapshot)
	ids := identifier.NewFactory(identifier.NewDefaultConstraints(cfg.Identifiers.MaxLength))

	docSvc := documentuc.New(repo, store, ids, rids)
	schemaSvc := schemauc.New(repo, store, ids, rids)
	healthSvc := healthuc.New(store, &metadataHealthChecker{repo: repo, store: store})

	server := chiTransport.NewServer(docSvc, schemaSvc, healthSvc, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// openStorage opens the configured backend and returns it with its closer.
func openStorage(ctx context.Context, cfg config.BackendConfig, logger *zap.Logger) (storage, func(), error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		b, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLite.Path, err)
		}
		logger.Info("Opened SQLite database", zap.String("path", cfg.SQLite.Path))
		return b, func() {
			if err := b.Close(); err != nil {
				logger.Error("Failed to close SQLite database", zap.Error(err))
			}
		}, nil
	case config.DriverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Redis.Addrs,
			Password: cfg.Redis.Password,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create redis store: %w", err)
		}
		if err := s.WaitForReady(ctx, time.Duration(cfg.Redis.ReadinessTimeout)*time.Second); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("redis not ready: %w", err)
		}
		logger.Info("Connected to Redis", zap.Strings("addrs", cfg.Redis.Addrs))
		return kv.New(s, cfg.Redis.KeyPrefix), s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend driver %q", cfg.Driver)
	}
}

// metadataHealthChecker reports an error when the persisted metadata is
// older than the published snapshot.
type metadataHealthChecker struct {
	repo  *metainfo.Repository
	store storage
}

func (h *metadataHealthChecker) Name() string { return "metadata" }

func (h *metadataHealthChecker) HealthCheck(ctx context.Context) error {
	persisted, err := h.store.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}
	// a commit in flight can be ahead of the published snapshot, never behind
	if current := h.repo.Current().Version(); persisted.Version() < current {
		return fmt.Errorf("persisted metadata version %d behind published %d", persisted.Version(), current)
	}
	return nil
}
