package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/insight-relay/internal/application"
	appinsights "github.com/bryanwahyu/insight-relay/internal/application/insights"
	"github.com/bryanwahyu/insight-relay/internal/config"
	domain "github.com/bryanwahyu/insight-relay/internal/domain/insights"
	"github.com/bryanwahyu/insight-relay/internal/infra/crewai"
	mysqlp "github.com/bryanwahyu/insight-relay/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/insight-relay/internal/infra/db/postgres"
	"github.com/bryanwahyu/insight-relay/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/insight-relay/internal/infra/storage"
	"github.com/bryanwahyu/insight-relay/internal/logger"
	"github.com/bryanwahyu/insight-relay/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zl, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer zl.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checkers := map[string]middleware.HealthChecker{}

	// run history (optional)
	var repo domain.Repository
	if cfg.Database.Driver != "" {
		db, r, err := openHistory(ctx, cfg)
		if err != nil {
			zl.Fatal("database init error", zap.String("driver", cfg.Database.Driver), zap.Error(err))
		}
		defer db.Close()
		repo = r
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
		zl.Info("run history enabled", zap.String("driver", cfg.Database.Driver))
	}

	// result archive (optional)
	var archive domain.ArtifactStore
	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			zl.Fatal("minio init error", zap.Error(err))
		}
		archive = store
		checkers["minio"] = store
		zl.Info("result archive enabled", zap.String("bucket", cfg.Minio.BucketName))
	}

	// init service
	svc := &appinsights.Service{
		Upstream: crewai.NewClient(cfg.CrewAI.BaseURL, cfg.CrewAI.BearerToken, cfg.CrewAI.RequestTimeout),
		Runs:     repo,
		Archive:  archive,
		Clock:    application.SystemClock{},
		Policy:   cfg.PollPolicy(),
		Logger:   zl,
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillRate)
	go limiter.Run(ctx)

	readiness := &middleware.Readiness{}

	// init router
	handler := httpserver.NewRouter(svc, httpserver.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		APIKeys:        cfg.Server.APIKeys,
		RateLimiter:    limiter,
		HealthCheckers: checkers,
		Readiness:      readiness,
		Logger:         zl,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// run server
	go func() {
		zl.Info("server listening", zap.String("addr", addr), zap.String("upstream", cfg.CrewAI.BaseURL))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	zl.Info("shutting down server...")
	readiness.Drain()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		zl.Warn("shutdown error", zap.Error(err))
	}
	cancel()
}

// openHistory connects the configured driver, creates the runs table and
// returns the matching repository.
func openHistory(ctx context.Context, cfg *config.Config) (*sql.DB, domain.Repository, error) {
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, err
		}
		if err := mysqlp.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return db, mysqlp.NewRunRepository(db), nil
	case "postgres":
		db, err := pgp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, err
		}
		if err := pgp.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return db, pgp.NewRunRepository(db), nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}
