package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/skibase/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionVerifier   middleware.SessionVerifier
	CORSAllowedOrigin string
	AllowedOrigins    []string // 状態変更リクエストで許可するOrigin
	RateLimiter       *middleware.RateLimiter
	TrustProxy        bool

	// 認証
	AuthService    AuthServiceInterface
	StateCookies   StateCookieStore
	SessionCookies SessionCookieStore
	AuthConfig     AuthHandlerConfig

	// 管理者向け
	AllowlistService AllowlistServiceInterface
	StatsService     StatsServiceInterface

	// 運用
	DB             Pinger
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → OriginGuard
//	  → (ルートごと) RateLimit / Session → Admin → RateLimit
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	allowedOrigins := deps.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{deps.CORSAllowedOrigin}
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.TrustProxy))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewOriginGuardMiddleware(allowedOrigins...))

	authHandler := NewAuthHandler(deps.AuthService, deps.StateCookies, deps.SessionCookies, deps.AuthConfig)
	allowlistHandler := NewAllowlistHandler(deps.AllowlistService, deps.TrustProxy)
	statsHandler := NewStatsHandler(deps.StatsService)
	healthHandler := NewHealthHandler(deps.DB)

	requireSession := middleware.NewSessionMiddleware(deps.SessionVerifier)
	requireAdmin := middleware.NewAdminMiddleware()

	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		// OAuthフロー
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.OAuthMiddleware())
			r.Get("/yandex/start", authHandler.Start)
			r.Get("/yandex/callback", authHandler.Callback)
		})

		// パスワードログインとセッション
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.With(requireSession).Get("/me", authHandler.Me)

		// 管理者のみ
		r.Group(func(r chi.Router) {
			r.Use(requireSession, requireAdmin)

			r.Get("/allowlist", allowlistHandler.List)
			r.With(deps.RateLimiter.AllowlistMiddleware()).Post("/allowlist", allowlistHandler.Upsert)
			r.With(deps.RateLimiter.AllowlistMiddleware()).Patch("/allowlist/{id}", allowlistHandler.Update)

			r.Get("/security/stats", statsHandler.SecurityStats)
		})
	})

	return r
}
