// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shivanand-hulikatti/course-backoffice/internal/adminapi"
	"github.com/Shivanand-hulikatti/course-backoffice/internal/config"
	"github.com/Shivanand-hulikatti/course-backoffice/internal/database"
	"github.com/Shivanand-hulikatti/course-backoffice/internal/handler"
	"github.com/Shivanand-hulikatti/course-backoffice/internal/repository"
	"github.com/Shivanand-hulikatti/course-backoffice/internal/service"
)

const sweepInterval = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Admin API client ───────────────────────────────────────────────
	api, err := adminapi.New(ctx, adminapi.Config{
		BaseURL:      cfg.AdminAPI.BaseURL,
		Token:        cfg.AdminAPI.Token,
		TokenURL:     cfg.AdminAPI.TokenURL,
		ClientID:     cfg.AdminAPI.ClientID,
		ClientSecret: cfg.AdminAPI.ClientSecret,
		Timeout:      cfg.AdminAPI.Timeout,
		MaxRetries:   cfg.AdminAPI.MaxRetries,
	}, logger)
	if err != nil {
		return err
	}

	// ── 2. Draft store ────────────────────────────────────────────────────
	drafts, closeStore, err := openDraftStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// ── 3. Wire up layers ─────────────────────────────────────────────────
	svc := service.NewComposerService(
		service.Collaborators{Orders: api, Courses: api, Customers: api},
		drafts,
		cfg.Drafts.TTL,
		logger,
	)
	go svc.Run(ctx, sweepInterval)

	r := handler.NewRouter(handler.NewComposerHandler(svc), logger, cfg.Server.AllowedOrigins)

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "draft_store", cfg.Drafts.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// openDraftStore connects the configured draft backend. The returned func
// releases its connections.
func openDraftStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (service.DraftStore, func(), error) {
	switch cfg.Drafts.Store {
	case config.StorePostgres:
		pool, err := database.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		if err := database.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("connected to postgres", "host", cfg.Database.Host, "db", cfg.Database.DBName)
		return repository.NewPostgresDraftRepository(pool, cfg.Drafts.TTL), pool.Close, nil

	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
		return repository.NewRedisDraftRepository(rdb, cfg.Drafts.TTL), func() { _ = rdb.Close() }, nil
	}

	return repository.NewMemoryDraftRepository(cfg.Drafts.TTL), func() {}, nil
}
