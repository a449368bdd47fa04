// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/task-forge/internal/auth"
	"github.com/yourusername/task-forge/internal/config"
	"github.com/yourusername/task-forge/internal/logging"
	"github.com/yourusername/task-forge/internal/server"
	"github.com/yourusername/task-forge/internal/tasks"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server_stopped_with_error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	credentials, err := auth.NewCredentialStore(cfg.BcryptCost)
	if err != nil {
		return err
	}
	limiter, closeLimiter, err := setupLimiter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	router := server.New(server.Options{
		Config: cfg,
		Logger: logger,
		Auth:   auth.NewManager(credentials, auth.NewTokenIssuer(), limiter, logger),
		Tasks:  tasks.NewStore(),
	})
	srv := server.NewHTTPServer(cfg, router)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_starting", "addr", srv.Addr, "mode", cfg.GinMode)
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

	logger.Info("server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
