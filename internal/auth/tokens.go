package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/yourusername/task-forge/internal/apperr"
)

const tokenBytes = 32

// TokenIssuer はログイン成功時に不透明なトークンを払い出し、ユーザー名との対応を保持します。
// トークンはプロセスが動いている間有効です。
type TokenIssuer struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewTokenIssuer は空の TokenIssuer を作成します。
func NewTokenIssuer() *TokenIssuer {
	return &TokenIssuer{tokens: make(map[string]string)}
}

// Issue は username に紐づく新しいトークンを払い出します。
func (t *TokenIssuer) Issue(username string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("username is required")
	}
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokens[token] = username
	return token, nil
}

// Resolve はトークンに紐づくユーザー名を返します。
func (t *TokenIssuer) Resolve(token string) (string, error) {
	if !wellFormed(token) {
		return "", errUnauthenticated()
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	username, ok := t.tokens[token]
	if !ok {
		return "", errUnauthenticated()
	}
	return username, nil
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func wellFormed(token string) bool {
	if len(token) != tokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}

func errUnauthenticated() *apperr.Error {
	return apperr.Unauthenticated("UNAUTHORIZED", "ログインが必要です。")
}
