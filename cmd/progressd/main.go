package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/deenly/progress-core/pkg/api"
	"github.com/deenly/progress-core/pkg/app"
	"github.com/deenly/progress-core/pkg/cache"
	"github.com/deenly/progress-core/pkg/common"
	"github.com/deenly/progress-core/pkg/config"
	"github.com/deenly/progress-core/pkg/db"
	"github.com/deenly/progress-core/pkg/kv"
	"github.com/deenly/progress-core/pkg/logger"
	"github.com/deenly/progress-core/pkg/metrics"
	"github.com/deenly/progress-core/pkg/outbox"
	"github.com/deenly/progress-core/pkg/repository"
	"github.com/deenly/progress-core/pkg/scheduler"
)

func main() {
	if err := run(); err != nil {
		slog.Error("progressd exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	logOpts := logger.Options{Development: cfg.IsDevelopment()}
	if cfg.ErrorLog != "" {
		f, err := os.OpenFile(cfg.ErrorLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		logOpts.ErrorOutput = f
	}
	log := logger.Init(logOpts)

	catalog, err := config.NewCatalogLoader(cfg.CatalogPath, log).LoadCatalog()
	if err != nil {
		return err
	}
	catalogCache := cache.NewInMemoryCatalogCache(catalog, cfg.CatalogPath, log)

	store, err := kv.New(kv.Config{
		Driver:        cfg.KVDriver,
		Path:          cfg.KVPath,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		return err
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	var repo repository.ProgressRepository
	if cfg.HasRemoteIdentity() {
		dbCfg := db.NewConfigFromEnv()
		conn, err := db.Connect(dbCfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := db.RunMigrations(conn.DB, dbCfg.Driver, log); err != nil {
			return err
		}
		repo = repository.NewSQLProgressRepository(conn)
		log.Info("Remote mirror enabled", "user_id", cfg.UserID, "driver", dbCfg.Driver)
	} else {
		log.Info("No remote identity, running local-only")
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	state := app.New(app.Deps{
		UserID:  cfg.UserID,
		Catalog: catalogCache,
		Store:   store,
		Repo:    repo,
		Clock:   common.SystemClock{Location: cfg.Location},
		Logger:  log,
		Outbox:  outbox.Config{MaxElapsed: cfg.OutboxMaxElapsed},
	})
	defer state.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := state.Load(ctx); err != nil {
		return err
	}

	// The scheduler owns the periodic flush; Run only reacts to enqueues.
	if ob := state.Outbox(); ob != nil {
		go ob.Run(ctx, 0)
	}

	sched := scheduler.New(state, catalogCache, cfg.Location, cfg.OutboxFlushInterval, log.With("component", "scheduler"))
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.NewRouter(api.NewHandler(state, log), log),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", "error", err)
	}
	if sent, err := state.Flush(shutdownCtx); err != nil {
		log.Warn("Final flush incomplete, pending jobs kept", "sent", sent, "error", err)
	}

	log.Info("Server shutdown complete")
	return nil
}
