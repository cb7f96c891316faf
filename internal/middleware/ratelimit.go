package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/skibase/internal/metrics"
	"github.com/hitoshi/skibase/internal/model"
)

// RateLimitRule は1つのルート群に適用する固定ウィンドウの制限。
type RateLimitRule struct {
	Family string        // メトリクスとログに使う識別子
	Limit  int           // ウィンドウ内で許可するリクエスト数
	Window time.Duration // ウィンドウの長さ
}

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	Login           RateLimitRule
	OAuth           RateLimitRule
	Allowlist       RateLimitRule
	CleanupInterval time.Duration // 期限切れウィンドウのクリーンアップ間隔
	TrustProxy      bool          // X-Forwarded-Forをクライアントの判定に使うか
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// パスワードログイン 5回/10分、OAuth 20回/5分、許可リスト操作 30回/10分（いずれもIP単位）。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Login:           RateLimitRule{Family: "login", Limit: 5, Window: 10 * time.Minute},
		OAuth:           RateLimitRule{Family: "oauth", Limit: 20, Window: 5 * time.Minute},
		Allowlist:       RateLimitRule{Family: "allowlist", Limit: 30, Window: 10 * time.Minute},
		CleanupInterval: time.Minute,
	}
}

// fixedWindow はクライアントごとのウィンドウ内のリクエスト数を保持する。
type fixedWindow struct {
	count     int
	expiresAt time.Time
}

// RateLimiter はクライアントIP単位の固定ウィンドウ方式でリクエスト数を制限する。
// 認証処理や監査ログには関与しない。
type RateLimiter struct {
	config  RateLimiterConfig
	metrics metrics.MetricsCollector
	now     func() time.Time

	mu      sync.Mutex
	windows map[string]*fixedWindow

	// 超過ログが大量に出ないよう間引く
	warnSometimes rate.Sometimes

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter は新しいRateLimiterを生成する。collectorはnilでもよい。
// バックグラウンドで期限切れウィンドウのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig, collector metrics.MetricsCollector) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}
	rl := &RateLimiter{
		config:        config,
		metrics:       collector,
		now:           time.Now,
		windows:       make(map[string]*fixedWindow),
		warnSometimes: rate.Sometimes{First: 5, Interval: 10 * time.Second},
		stopCh:        make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// LoginMiddleware はパスワードログイン用のミドルウェアを返す。
func (rl *RateLimiter) LoginMiddleware() func(next http.Handler) http.Handler {
	return rl.Middleware(rl.config.Login)
}

// OAuthMiddleware はOAuth開始・コールバック用のミドルウェアを返す。
func (rl *RateLimiter) OAuthMiddleware() func(next http.Handler) http.Handler {
	return rl.Middleware(rl.config.OAuth)
}

// AllowlistMiddleware は許可リスト変更用のミドルウェアを返す。
func (rl *RateLimiter) AllowlistMiddleware() func(next http.Handler) http.Handler {
	return rl.Middleware(rl.config.Allowlist)
}

// Middleware は指定ルールでリクエスト数を制限するミドルウェアを返す。
// 超過時は429とRetry-After（ウィンドウ終了までの秒数）を返す。
func (rl *RateLimiter) Middleware(rule RateLimitRule) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r, rl.config.TrustProxy)

			allowed, retryAfter := rl.allow(rule, ip)
			if !allowed {
				if rl.metrics != nil {
					rl.metrics.RecordRateLimited(rule.Family)
				}
				rl.warnSometimes.Do(func() {
					slog.Warn("rate limit exceeded",
						slog.String("ip", ip),
						slog.String("limit_type", rule.Family),
						slog.String("path", r.URL.Path),
					)
				})
				writeRateLimitResponse(w, retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WindowCount は現在管理されているウィンドウの数を返す。テスト用。
func (rl *RateLimiter) WindowCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

// allow はリクエストを許可するかを判定し、拒否時はウィンドウ終了までの時間を返す。
func (rl *RateLimiter) allow(rule RateLimitRule, ip string) (bool, time.Duration) {
	key := rule.Family + "|" + ip
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	win, exists := rl.windows[key]
	if !exists || !now.Before(win.expiresAt) {
		rl.windows[key] = &fixedWindow{count: 1, expiresAt: now.Add(rule.Window)}
		return true, 0
	}
	if win.count >= rule.Limit {
		return false, win.expiresAt.Sub(now)
	}
	win.count++
	return true, 0
}

// cleanupLoop はバックグラウンドで期限切れウィンドウを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は終了したウィンドウを削除する。
func (rl *RateLimiter) cleanup() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, win := range rl.windows {
		if !now.Before(win.expiresAt) {
			delete(rl.windows, key)
		}
	}
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
func writeRateLimitResponse(w http.ResponseWriter, retryAfter time.Duration) {
	retryAfterSec := int(math.Ceil(retryAfter.Seconds()))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, &model.APIError{
		Code:    model.ErrCodeRateLimited,
		Message: "Too many requests",
	})
}
