// Package server は API のルーティングと HTTP サーバーの組み立てを行います。
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/task-forge/internal/apperr"
	"github.com/yourusername/task-forge/internal/auth"
	"github.com/yourusername/task-forge/internal/config"
	"github.com/yourusername/task-forge/internal/logging"
	"github.com/yourusername/task-forge/internal/tasks"
)

const (
	serviceName = "task-forge-api"
	version     = "0.1.0"
)

// Options はルーター構築に必要な依存関係です。
type Options struct {
	Config *config.Config
	Logger *slog.Logger
	Auth   *auth.Manager
	Tasks  tasks.Service
}

// New はミドルウェアとルートを登録した gin.Engine を返します。
func New(opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	// ClientIP はログイン試行制限のキーになるため、明示したプロキシの X-Forwarded-For だけを採用する
	if err := router.SetTrustedProxies(trustedProxies(opts.Config)); err != nil {
		logger.Error("trusted_proxies_invalid", "error", err)
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(apperr.Recovery(), logging.RequestID(), logging.AccessLog(logger))
	if mw := corsMiddleware(opts.Config); mw != nil {
		router.Use(mw)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "error": "指定されたパスは存在しません。"})
	})
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"code": "METHOD_NOT_ALLOWED", "error": "このメソッドは利用できません。"})
	})

	setupRoutes(router, opts)
	return router
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": serviceName,
		"version": version,
	})
}

func setupRoutes(router *gin.Engine, opts Options) {
	router.GET("/health", handleHealth)

	// 登録とログインはトークン不要
	router.POST("/register", opts.Auth.Register)
	router.POST("/login", opts.Auth.Login)

	protected := router.Group("")
	protected.Use(opts.Auth.RequireLogin())
	tasks.RegisterRoutes(protected, opts.Tasks)
}

func trustedProxies(cfg *config.Config) []string {
	if cfg == nil {
		return nil
	}
	return cfg.TrustedProxyList()
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	if cfg == nil {
		return nil
	}
	origins := cfg.AllowedOrigins()
	if len(origins) == 0 {
		return nil
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
		logging.RequestIDHeader,
	}
	corsConfig.ExposeHeaders = []string{logging.RequestIDHeader, "Retry-After"}
	for _, origin := range origins {
		if origin == "*" {
			corsConfig.AllowAllOrigins = true
			return cors.New(corsConfig)
		}
	}
	corsConfig.AllowOrigins = origins
	return cors.New(corsConfig)
}

// NewHTTPServer は設定されたタイムアウトを持つ http.Server を作成します。
func NewHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
