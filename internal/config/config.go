// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// X-Forwarded-For を信頼するプロキシの IP または CIDR（カンマ区切り）。空の場合はどれも信頼しない
	TrustedProxies string

	// 認証設定
	BcryptCost int // パスワードハッシュのコスト

	// ログイン試行制限
	LoginMaxAttempts   int    // ロックまでの失敗回数
	LoginWindowMinutes int    // 失敗回数を数える期間（分）
	LoginLockMinutes   int    // ロック時間（分）
	LoginLimitRedisURL string // 設定時は試行回数を Redis で共有する

	// ログ設定
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text

	// タイムアウト設定
	ReadTimeoutSeconds     int
	WriteTimeoutSeconds    int
	ShutdownTimeoutSeconds int
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		TrustedProxies:     getEnv("TRUSTED_PROXIES", ""),

		BcryptCost: getEnvAsInt("BCRYPT_COST", bcrypt.DefaultCost),

		LoginMaxAttempts:   getEnvAsInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginWindowMinutes: getEnvAsInt("LOGIN_WINDOW_MINUTES", 15),
		LoginLockMinutes:   getEnvAsInt("LOGIN_LOCK_MINUTES", 10),
		LoginLimitRedisURL: getEnv("LOGIN_LIMIT_REDIS_URL", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		ReadTimeoutSeconds:     getEnvAsInt("HTTP_READ_TIMEOUT_SECONDS", 15),
		WriteTimeoutSeconds:    getEnvAsInt("HTTP_WRITE_TIMEOUT_SECONDS", 15),
		ShutdownTimeoutSeconds: getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 10),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if c.LoginMaxAttempts <= 0 || c.LoginWindowMinutes <= 0 || c.LoginLockMinutes <= 0 {
		return fmt.Errorf("LOGIN_MAX_ATTEMPTS, LOGIN_WINDOW_MINUTES and LOGIN_LOCK_MINUTES must be positive")
	}

	for _, proxy := range c.TrustedProxyList() {
		if net.ParseIP(proxy) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(proxy); err != nil {
			return fmt.Errorf("TRUSTED_PROXIES contains invalid IP or CIDR %q", proxy)
		}
	}

	// 本番環境ではワイルドカードのオリジンを許可しない
	if c.GinMode == "release" {
		for _, origin := range c.AllowedOrigins() {
			if origin == "*" {
				return fmt.Errorf("CORS_ALLOWED_ORIGINS must not contain * in release mode")
			}
		}
	}

	return nil
}

// AllowedOrigins は CORS 許可オリジンを配列で返します。
func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// TrustedProxyList は信頼するプロキシを配列で返します。未設定の場合は nil です。
func (c *Config) TrustedProxyList() []string {
	return splitList(c.TrustedProxies)
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// LoginWindow は失敗回数を数える期間を返します。
func (c *Config) LoginWindow() time.Duration {
	return time.Duration(c.LoginWindowMinutes) * time.Minute
}

// LoginLock はロック時間を返します。
func (c *Config) LoginLock() time.Duration {
	return time.Duration(c.LoginLockMinutes) * time.Minute
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
