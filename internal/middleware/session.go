// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/skibase/internal/auth"
	"github.com/hitoshi/skibase/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストに検証済みセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// SessionVerifier はリクエストからセッションを検証するインターフェース。
// auth.SessionCodecが実装する。
type SessionVerifier interface {
	VerifyRequest(r *http.Request) (*auth.SessionPayload, error)
}

// NewSessionMiddleware はCookieまたはBearerトークンからセッションを検証し、
// ペイロードをリクエストコンテキストに注入するミドルウェアを返す。
// 未認証リクエストには401を返す。
func NewSessionMiddleware(verifier SessionVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			payload, err := verifier.VerifyRequest(r)
			if err != nil || payload == nil {
				if err != nil {
					slog.Debug("session verification failed", slog.String("error", err.Error()))
				}
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), payload)))
		})
	}
}

// NewAdminMiddleware は管理者権限を要求するミドルウェアを返す。
// NewSessionMiddlewareの後に配置する。
func NewAdminMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			payload, err := SessionFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if !auth.RequireRole(payload, model.RoleAdmin) {
				slog.Warn("non-admin access to admin endpoint",
					slog.String("user_id", payload.UserID),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromContext はリクエストコンテキストから検証済みセッションを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func SessionFromContext(ctx context.Context) (*auth.SessionPayload, error) {
	payload, ok := ctx.Value(sessionContextKey).(*auth.SessionPayload)
	if !ok || payload == nil {
		return nil, fmt.Errorf("session not found in context")
	}
	return payload, nil
}

// ContextWithSession はコンテキストにセッションを注入する。
func ContextWithSession(ctx context.Context, payload *auth.SessionPayload) context.Context {
	return context.WithValue(ctx, sessionContextKey, payload)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	payload, err := SessionFromContext(ctx)
	if err != nil {
		return "", err
	}
	if payload.UserID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return payload.UserID, nil
}
