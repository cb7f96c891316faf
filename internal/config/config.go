package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	// EnvProduction は本番環境を示すAPP_ENVの値。
	EnvProduction = "production"

	// MinAuditRetentionDays は監査イベントの最短保持日数。
	MinAuditRetentionDays = 30

	insecureDefaultSecret = "change-me"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// グローバル変数には保持せず、必要なコンポーネントへ明示的に渡す。
type Config struct {
	// Runtime
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Database
	DatabaseURL          string `env:"DATABASE_URL"`
	PostgresHost         string `env:"POSTGRESQL_HOST"`
	PostgresPort         string `env:"POSTGRESQL_PORT" envDefault:"5432"`
	PostgresUser         string `env:"POSTGRESQL_USER"`
	PostgresPassword     string `env:"POSTGRESQL_PASSWORD"`
	PostgresDBName       string `env:"POSTGRESQL_DBNAME"`
	PostgresDBNameLegacy string `env:"POSTGRESQL_DATABASE"`

	// Session
	JWTSecret string `env:"JWT_SECRET"`

	// Yandex OAuth
	YandexClientID     string        `env:"YANDEX_CLIENT_ID"`
	YandexClientSecret string        `env:"YANDEX_CLIENT_SECRET"`
	YandexRedirectURI  string        `env:"YANDEX_REDIRECT_URI"`
	YandexScope        string        `env:"YANDEX_SCOPE"`
	OAuthHTTPTimeout   time.Duration `env:"OAUTH_HTTP_TIMEOUT" envDefault:"5s"`

	// Redirect
	PublicBaseURL    string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:3001"`
	FrontendBaseURL  string `env:"FRONTEND_BASE_URL" envDefault:"http://localhost:5173"`
	OAuthSuccessPath string `env:"OAUTH_SUCCESS_PATH" envDefault:"/admin"`
	OAuthErrorPath   string `env:"OAUTH_ERROR_PATH" envDefault:"/login"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"3001"`
	TrustProxy bool   `env:"TRUST_PROXY" envDefault:"false"`

	// Cookie
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ORIGIN" envDefault:"http://localhost:5173"`

	// Audit
	AuditRetentionDays int           `env:"AUDIT_RETENTION_DAYS" envDefault:"180"` // 0で削除しない
	AuditCleanupPeriod time.Duration `env:"AUDIT_CLEANUP_INTERVAL" envDefault:"24h"`

	// Bootstrap (seedコマンド用)
	AdminEmail             string   `env:"ADMIN_EMAIL" envDefault:"admin@ski-base.local"`
	AdminPassword          string   `env:"ADMIN_PASSWORD"`
	BootstrapAllowedEmails []string `env:"BOOTSTRAP_ALLOWED_EMAILS" envSeparator:","`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// DATABASE_URLが未指定ならPOSTGRESQL_*から組み立てる
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = cfg.buildDatabaseURL()
	}

	// Required fields
	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if cfg.IsProduction() && cfg.JWTSecret == insecureDefaultSecret {
		return nil, fmt.Errorf("JWT_SECRET must not use the default value in production")
	}
	if cfg.OAuthHTTPTimeout <= 0 {
		return nil, fmt.Errorf("OAUTH_HTTP_TIMEOUT must be positive: %s", cfg.OAuthHTTPTimeout)
	}
	// 統計APIの最大集計期間（30日）より短い保持期間は許可しない
	if cfg.AuditRetentionDays != 0 && cfg.AuditRetentionDays < MinAuditRetentionDays {
		return nil, fmt.Errorf("AUDIT_RETENTION_DAYS must be 0 or at least %d: %d", MinAuditRetentionDays, cfg.AuditRetentionDays)
	}
	if cfg.AuditCleanupPeriod <= 0 {
		return nil, fmt.Errorf("AUDIT_CLEANUP_INTERVAL must be positive: %s", cfg.AuditCleanupPeriod)
	}

	cfg.BootstrapAllowedEmails = trimCSV(cfg.BootstrapAllowedEmails)

	return cfg, nil
}

// IsProduction は本番環境で動作しているかを返す。
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// CookieSecure はCookieにSecure属性を付与するかを返す。本番環境のみ有効。
func (c *Config) CookieSecure() bool {
	return c.IsProduction()
}

// YandexConfigured はYandex OAuthに必要な3項目がすべて設定されているかを返す。
func (c *Config) YandexConfigured() bool {
	return c.YandexClientID != "" && c.YandexClientSecret != "" && c.YandexRedirectURI != ""
}

// OAuthSuccessURL はログイン成功時のリダイレクト先を返す。
func (c *Config) OAuthSuccessURL() string {
	return strings.TrimRight(c.FrontendBaseURL, "/") + c.OAuthSuccessPath
}

// OAuthErrorURL はログイン失敗時のリダイレクト先を返す。
// 失敗理由は含めず、汎用マーカーauth_error=access_deniedのみを付与する。
func (c *Config) OAuthErrorURL() string {
	return strings.TrimRight(c.FrontendBaseURL, "/") + c.OAuthErrorPath + "?auth_error=access_denied"
}

// buildDatabaseURL はPOSTGRESQL_*環境変数から接続URLを組み立てる。
// 必要な値が揃っていない場合は空文字列を返す。
func (c *Config) buildDatabaseURL() string {
	dbName := c.PostgresDBName
	if dbName == "" {
		dbName = c.PostgresDBNameLegacy
	}
	if c.PostgresHost == "" || c.PostgresUser == "" || c.PostgresPassword == "" || dbName == "" {
		return ""
	}
	u := &url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:   c.PostgresHost + ":" + c.PostgresPort,
		Path:   "/" + dbName,
	}
	return u.String()
}

// trimCSV はカンマ区切りで分割した値から空要素を取り除く。
func trimCSV(values []string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			result = append(result, v)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
