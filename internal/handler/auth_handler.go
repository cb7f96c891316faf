// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/skibase/internal/auth"
	"github.com/hitoshi/skibase/internal/middleware"
	"github.com/hitoshi/skibase/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Start(ctx context.Context, client auth.ClientInfo) (*auth.StartResult, error)
	Callback(ctx context.Context, in auth.CallbackInput) *auth.CallbackResult
	LoginWithPassword(ctx context.Context, email, password string, client auth.ClientInfo) (*auth.LoginResult, error)
	Logout()
	Me(payload *auth.SessionPayload) (*auth.SessionPayload, error)
}

// StateCookieStore はOAuth state Cookieの発行と取り出しを行う。
type StateCookieStore interface {
	Cookie(state string) *http.Cookie
	Take(w http.ResponseWriter, r *http.Request) string
}

// SessionCookieStore はセッションCookieの発行と削除を行う。
type SessionCookieStore interface {
	Cookie(token string) *http.Cookie
	ClearCookie() *http.Cookie
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	SuccessURL string // ログイン成功時のリダイレクト先
	ErrorURL   string // ログイン失敗時のリダイレクト先（auth_error=access_denied付き）
	TrustProxy bool
}

// AuthHandler はログイン・ログアウト関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	state    StateCookieStore
	sessions SessionCookieStore
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, state StateCookieStore, sessions SessionCookieStore, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		state:    state,
		sessions: sessions,
		config:   config,
	}
}

// Start はYandex OAuthフローを開始する。
// GET /auth/yandex/start
func (h *AuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Start(r.Context(), clientInfo(r, h.config.TrustProxy))
	if err != nil {
		if errors.Is(err, auth.ErrUnavailable) {
			middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewUnavailableError())
			return
		}
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, h.state.Cookie(result.State))
	http.Redirect(w, r, result.AuthorizationURL, http.StatusFound)
}

// Callback はYandexからのコールバックを処理する。
// GET /auth/yandex/callback
// 結果にかかわらず常にリダイレクトし、失敗理由はクライアントに返さない。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// state Cookieは結果にかかわらず削除する
	cookieState := h.state.Take(w, r)

	result := h.service.Callback(r.Context(), auth.CallbackInput{
		RawQuery:    r.URL.RawQuery,
		CookieState: cookieState,
		Client:      clientInfo(r, h.config.TrustProxy),
	})

	if !result.Admitted() {
		http.Redirect(w, r, h.config.ErrorURL, http.StatusFound)
		return
	}

	http.SetCookie(w, h.sessions.Cookie(result.SessionToken))
	http.Redirect(w, r, h.config.SuccessURL, http.StatusFound)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login はメールアドレスとパスワードでログインする。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Invalid credentials"))
		return
	}

	result, err := h.service.LoginWithPassword(r.Context(), req.Email, req.Password, clientInfo(r, h.config.TrustProxy))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrValidation):
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Invalid credentials"))
		case errors.Is(err, auth.ErrUnauthenticated):
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
		default:
			handleServiceError(w, err)
		}
		return
	}

	http.SetCookie(w, h.sessions.Cookie(result.SessionToken))
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserResponse(result.User)})
}

// Logout はセッションCookieを削除する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout()
	http.SetCookie(w, h.sessions.ClearCookie())
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	payload, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	me, err := h.service.Me(payload)
	if err != nil {
		slog.Debug("session without identity", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": sessionToUserResponse(me)})
}
