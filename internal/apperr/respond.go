package apperr

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Respond はエラーを JSON レスポンス {"code", "error"} に変換して書き込みます。
// *Error の Details はボディに追加されます。
func Respond(c *gin.Context, err error) {
	var appErr *Error
	switch {
	case errors.As(err, &appErr):
		if appErr.Kind == KindInternal {
			slog.ErrorContext(c.Request.Context(), "request_failed",
				"path", c.Request.URL.Path,
				"error", err,
			)
		}
		payload := body(appErr.Code, appErr.Message)
		for key, value := range appErr.Details {
			// code と error は上書きさせない
			if _, reserved := payload[key]; !reserved {
				payload[key] = value
			}
		}
		c.AbortWithStatusJSON(appErr.Status(), payload)
	case errors.Is(err, context.Canceled):
		c.AbortWithStatusJSON(http.StatusRequestTimeout, body("REQUEST_CANCELED", "リクエストがキャンセルされました。"))
	default:
		slog.ErrorContext(c.Request.Context(), "request_failed",
			"path", c.Request.URL.Path,
			"error", err,
		)
		internal := Internal(err)
		c.AbortWithStatusJSON(internal.Status(), body(internal.Code, internal.Message))
	}
}

// Recovery は panic を 500 の JSON レスポンスに変換するミドルウェアです。
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		slog.ErrorContext(c.Request.Context(), "panic_recovered",
			"path", c.Request.URL.Path,
			"panic", recovered,
		)
		internal := Internal(nil)
		c.AbortWithStatusJSON(internal.Status(), body(internal.Code, internal.Message))
	})
}

func body(code, message string) gin.H {
	return gin.H{
		"code":  code,
		"error": message,
	}
}
