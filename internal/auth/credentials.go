package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/task-forge/internal/apperr"
)

// User は登録済みユーザーです。登録後は変更されません。
type User struct {
	Username     string    `json:"username"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CredentialStore はユーザー名とパスワードハッシュの対応をメモリ上に保持します。
type CredentialStore struct {
	cost      int
	dummyHash []byte

	mu    sync.RWMutex
	users map[string]*User
}

// NewCredentialStore は指定コストで bcrypt を使う CredentialStore を作成します。
func NewCredentialStore(cost int) (*CredentialStore, error) {
	// 未登録ユーザーの照合にも同じコストの比較を走らせるためのハッシュ
	dummy, err := bcrypt.GenerateFromPassword([]byte("task-forge-dummy-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	return &CredentialStore{
		cost:      cost,
		dummyHash: dummy,
		users:     make(map[string]*User),
	}, nil
}

// Register はユーザーを登録します。ユーザー名が既に存在する場合は Conflict を返します。
func (s *CredentialStore) Register(username, password string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, apperr.Validation("username を指定してください。")
	}
	if password == "" {
		return User{}, apperr.Validation("password を指定してください。")
	}
	if s.Exists(username) {
		return User{}, errUsernameTaken()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return User{}, apperr.Validation("password は72バイト以内で指定してください。")
		}
		return User{}, apperr.Internal(fmt.Errorf("hash password: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// ハッシュ計算中に同名の登録が完了している可能性がある
	if _, ok := s.users[username]; ok {
		return User{}, errUsernameTaken()
	}
	user := &User{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	s.users[username] = user
	return *user, nil
}

// Verify はユーザー名とパスワードの組を照合します。
// 未登録ユーザーと不一致は区別せず false を返します。
func (s *CredentialStore) Verify(username, password string) bool {
	s.mu.RLock()
	user, ok := s.users[strings.TrimSpace(username)]
	s.mu.RUnlock()

	if !ok {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) == nil
}

// Exists はユーザーが登録済みかを返します。
func (s *CredentialStore) Exists(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[username]
	return ok
}

func errUsernameTaken() *apperr.Error {
	return apperr.Conflict("USERNAME_TAKEN", "このユーザー名は既に使用されています。")
}
