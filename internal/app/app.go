package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/skibase/internal/auth"
	"github.com/hitoshi/skibase/internal/config"
	"github.com/hitoshi/skibase/internal/database"
	"github.com/hitoshi/skibase/internal/handler"
	"github.com/hitoshi/skibase/internal/logger"
	"github.com/hitoshi/skibase/internal/metrics"
	"github.com/hitoshi/skibase/internal/middleware"
	"github.com/hitoshi/skibase/internal/model"
	"github.com/hitoshi/skibase/internal/repository"
	"github.com/hitoshi/skibase/internal/security"
	"github.com/hitoshi/skibase/internal/worker/cleanup"
)

const defaultServerPort = "3001"

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込みの失敗もJSONで出力できるよう、先にinfoで初期化しておく
	logger.SetupDefault(w, "info")

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.LogLevel)
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = defaultServerPort
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("env", cfg.AppEnv),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	router, rateLimiter := buildRouter(cfg, db, collector, metrics.Handler(registry))
	defer rateLimiter.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	if cfg.AuditRetentionDays > 0 {
		go cleanup.NewCleanupJob(db, slog.Default(), cfg.AuditRetentionDays).Start(jobCtx, cfg.AuditCleanupPeriod)
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")
	cancelJobs()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// buildRouter は全依存関係をワイヤリングしてルーターを構築する。
// 返すRateLimiterは呼び出し側で停止する。
func buildRouter(cfg *config.Config, db *sql.DB, collector *metrics.Collector, metricsHandler http.Handler) (http.Handler, *middleware.RateLimiter) {
	userRepo := repository.NewPostgresUserRepo(db)
	allowedEmailRepo := repository.NewPostgresAllowedEmailRepo(db)
	authEventRepo := repository.NewPostgresAuthEventRepo(db)

	// 未設定の場合はnilのままにし、開始エンドポイントを503にする
	var provider auth.OAuthProvider
	if cfg.YandexConfigured() {
		provider = auth.NewYandexOAuthProvider(auth.YandexOAuthConfig{
			ClientID:     cfg.YandexClientID,
			ClientSecret: cfg.YandexClientSecret,
			RedirectURL:  cfg.YandexRedirectURI,
			Scope:        cfg.YandexScope,
		}, security.NewProviderClient(cfg.OAuthHTTPTimeout), collector)
	} else {
		slog.Warn("yandex oauth is not configured; sign-in via yandex is disabled")
	}

	stateGuard := auth.NewStateGuard(cfg.CookieSecure())
	sessionCodec := auth.NewSessionCodec(cfg.JWTSecret, cfg.CookieSecure(), cfg.CookieDomain)
	authService := auth.NewService(
		provider,
		stateGuard,
		sessionCodec,
		auth.NewAllowlistGate(allowedEmailRepo, security.NewCommentSanitizer()),
		userRepo,
		auth.NewAuditRecorder(authEventRepo, collector),
		auth.NewStatsAggregator(authEventRepo),
	)

	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.TrustProxy = cfg.TrustProxy
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg, collector)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		SessionVerifier:   sessionCodec,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		AllowedOrigins:    []string{cfg.CORSAllowedOrigin, cfg.FrontendBaseURL, originOf(cfg.PublicBaseURL)},
		RateLimiter:       rateLimiter,
		TrustProxy:        cfg.TrustProxy,

		AuthService:    authService,
		StateCookies:   stateGuard,
		SessionCookies: sessionCodec,
		AuthConfig: handler.AuthHandlerConfig{
			SuccessURL: cfg.OAuthSuccessURL(),
			ErrorURL:   cfg.OAuthErrorURL(),
			TrustProxy: cfg.TrustProxy,
		},

		AllowlistService: authService,
		StatsService:     authService,

		DB:             db,
		MetricsHandler: metricsHandler,
	})
	return router, rateLimiter
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runSeed は初期管理者と許可リストの初期エントリを投入する。
// 何度実行しても同じ状態になる。
func runSeed(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	return seed(ctx, cfg,
		repository.NewPostgresUserRepo(db),
		auth.NewAllowlistGate(repository.NewPostgresAllowedEmailRepo(db), security.NewCommentSanitizer()),
	)
}

// adminSeeder は初期管理者の作成に使うリポジトリ操作。
type adminSeeder interface {
	UpsertAdmin(ctx context.Context, email, passwordHash string) (*model.User, error)
}

func seed(ctx context.Context, cfg *config.Config, users adminSeeder, allowlist *auth.AllowlistGate) error {
	if cfg.AdminPassword != "" {
		email := auth.NormalizeEmail(cfg.AdminEmail)
		if !auth.IsWellFormedEmail(email) {
			return fmt.Errorf("ADMIN_EMAIL is invalid: %q", cfg.AdminEmail)
		}
		hash, err := auth.HashPassword(cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("failed to hash admin password: %w", err)
		}
		user, err := users.UpsertAdmin(ctx, email, hash)
		if err != nil {
			return fmt.Errorf("failed to seed admin user: %w", err)
		}
		slog.Info("admin user seeded", slog.String("user_id", user.ID))
	} else {
		slog.Info("ADMIN_PASSWORD is not set; skipping admin user")
	}

	for _, email := range cfg.BootstrapAllowedEmails {
		// 作成者はシステム（null）として記録する
		entry, err := allowlist.Upsert(ctx, email, nil, "")
		if err != nil {
			return fmt.Errorf("failed to seed allowlist entry %q: %w", email, err)
		}
		slog.Info("allowlist entry seeded", slog.String("id", entry.ID))
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// originOf はURLからscheme://hostの部分を取り出す。解析できない場合は空文字列を返す。
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
