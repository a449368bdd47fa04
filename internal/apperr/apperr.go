// Package apperr はAPI全体で共有するエラー分類と HTTP レスポンスへの変換を提供します。
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind はエラーの分類を表します。
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindNotFound
	KindConflict
	KindTooManyRequests
)

// Error はステータスコードに対応付け可能なアプリケーションエラーです。
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
	// Details はレスポンスボディに code と error 以外に追加するフィールドです。
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// With は Details に key と value を追加した e を返します。
func (e *Error) With(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Status はエラー種別に対応する HTTP ステータスを返します。
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Validation は入力不備を表すエラーを作成します。
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Code: "INVALID_INPUT", Message: message}
}

// Unauthenticated は認証失敗を表すエラーを作成します。
func Unauthenticated(code, message string) *Error {
	return &Error{Kind: KindUnauthenticated, Code: code, Message: message}
}

// NotFound は対象が存在しない（または参照できない）ことを表すエラーを作成します。
func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// Conflict は一意制約違反を表すエラーを作成します。
func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// TooManyRequests は試行回数超過を表すエラーを作成します。
func TooManyRequests(message string) *Error {
	return &Error{Kind: KindTooManyRequests, Code: "TOO_MANY_ATTEMPTS", Message: message}
}

// Internal は想定外の失敗を包むエラーを作成します。
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: "サーバー内部でエラーが発生しました。", Err: err}
}

// IsKind は err の連鎖に指定種別の *Error が含まれるかを判定します。
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}
