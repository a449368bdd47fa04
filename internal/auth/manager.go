// Package auth はユーザー登録・ログイン・トークン認証を提供します。
package auth

import (
	"log/slog"
)

// ContextUserKey は、ハンドラー間でログイン済みユーザー名を共有するためのキーです。
const ContextUserKey = "auth.user"

// Credentials はユーザー登録とパスワード照合を提供します。
type Credentials interface {
	Register(username, password string) (User, error)
	Verify(username, password string) bool
}

// Tokens はトークンの払い出しと解決を提供します。
type Tokens interface {
	Issue(username string) (string, error)
	Resolve(token string) (string, error)
}

// Manager は認証処理と状態をまとめた構造体です。
type Manager struct {
	credentials Credentials
	tokens      Tokens
	limiter     AttemptLimiter
	logger      *slog.Logger
}

// NewManager は認証マネージャーを作成します。limiter が nil の場合は試行制限を行いません。
func NewManager(credentials Credentials, tokens Tokens, limiter AttemptLimiter, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		credentials: credentials,
		tokens:      tokens,
		limiter:     limiter,
		logger:      logger,
	}
}
