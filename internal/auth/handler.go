package auth

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/task-forge/internal/apperr"
)

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register は POST /register のハンドラーです。
func (m *Manager) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("username と password を JSON で送ってください。"))
		return
	}

	user, err := m.credentials.Register(req.Username, req.Password)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	m.logger.InfoContext(c.Request.Context(), "user_registered", "username", user.Username)
	c.JSON(http.StatusCreated, gin.H{"username": user.Username})
}

// Login は POST /login のハンドラーです。
func (m *Manager) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("username と password を JSON で送ってください。"))
		return
	}

	ctx := c.Request.Context()
	ip := c.ClientIP()
	if m.limiter != nil {
		retryAfter, err := m.limiter.Check(ctx, ip)
		if err != nil {
			apperr.Respond(c, apperr.Internal(err))
			return
		}
		if retryAfter > 0 {
			respondLocked(c, retryAfter)
			return
		}
	}

	username := strings.TrimSpace(req.Username)
	if !m.credentials.Verify(username, req.Password) {
		m.rejectLogin(c, ip, username)
		return
	}

	if m.limiter != nil {
		if err := m.limiter.Reset(ctx, ip); err != nil {
			m.logger.WarnContext(ctx, "login_limiter_reset_failed", "ip", ip, "error", err)
		}
	}

	token, err := m.tokens.Issue(username)
	if err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (m *Manager) rejectLogin(c *gin.Context, ip, username string) {
	ctx := c.Request.Context()
	rejected := apperr.Unauthenticated("INVALID_CREDENTIALS", "ユーザー名またはパスワードが正しくありません。")

	if m.limiter != nil {
		remaining, retryAfter, err := m.limiter.RecordFailure(ctx, ip)
		if err != nil {
			apperr.Respond(c, apperr.Internal(err))
			return
		}
		// 同じ IP からの並行リクエストが先にロックを確定させた
		if retryAfter > 0 {
			respondLocked(c, retryAfter)
			return
		}
		if remaining == 0 {
			m.logger.WarnContext(ctx, "login_locked", "ip", ip)
		}
		rejected.With("remainingAttempts", remaining)
	}

	m.logger.InfoContext(ctx, "login_failed", "ip", ip, "username", username)
	apperr.Respond(c, rejected)
}

func respondLocked(c *gin.Context, retryAfter time.Duration) {
	// Retry-After は秒数で返す（端数は切り上げ）
	c.Header("Retry-After", strconv.FormatInt(int64(math.Ceil(retryAfter.Seconds())), 10))
	apperr.Respond(c, apperr.TooManyRequests("一定時間後に再度お試しください。"))
}
