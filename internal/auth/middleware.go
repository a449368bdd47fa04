package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/task-forge/internal/apperr"
)

const bearerPrefix = "bearer "

// RequireLogin は Authorization ヘッダーのトークンを検証するミドルウェアを返します。
// ヘッダーはトークンそのもの、または "Bearer <token>" 形式を受け付けます。
func (m *Manager) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c.GetHeader("Authorization"))
		if token == "" {
			apperr.Respond(c, errUnauthenticated())
			return
		}

		user, err := m.tokens.Resolve(token)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// CurrentUser は RequireLogin が保存したユーザー名を返します。
func CurrentUser(c *gin.Context) (string, bool) {
	user := c.GetString(ContextUserKey)
	return user, user != ""
}

func extractToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):])
	}
	return header
}
