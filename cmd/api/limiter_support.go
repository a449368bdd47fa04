package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourusername/task-forge/internal/auth"
	"github.com/yourusername/task-forge/internal/config"
)

// setupLimiter はログイン試行制限を構築します。
// LOGIN_LIMIT_REDIS_URL が設定されていれば Redis、そうでなければプロセス内で管理します。
func setupLimiter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (auth.AttemptLimiter, func(), error) {
	policy := auth.LimiterPolicy{
		MaxAttempts:  cfg.LoginMaxAttempts,
		Window:       cfg.LoginWindow(),
		LockDuration: cfg.LoginLock(),
	}

	if cfg.LoginLimitRedisURL == "" {
		return auth.NewMemoryLimiter(policy), func() {}, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	limiter, err := auth.NewRedisLimiterFromURL(pingCtx, cfg.LoginLimitRedisURL, policy)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("login_limiter_redis_enabled")

	cleanup := func() {
		if err := limiter.Close(); err != nil {
			logger.Warn("login_limiter_close_failed", "error", err)
		}
	}
	return limiter, cleanup, nil
}
