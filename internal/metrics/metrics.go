// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービス、監査記録、レート制限ミドルウェアから利用する。
type MetricsCollector interface {
	RecordAuthEvent(action, status, reason string)
	RecordAuditWriteFailure(action string)
	RecordUpstreamLatency(operation, outcome string, duration time.Duration)
	RecordRateLimited(family string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authEvents        *prometheus.CounterVec
	auditWriteFailure *prometheus.CounterVec
	upstreamLatency   *prometheus.HistogramVec
	rateLimited       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skibase_auth_events_total",
			Help: "記録された認証イベントの合計数",
		}, []string{"action", "status", "reason"}),
		auditWriteFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skibase_audit_write_failures_total",
			Help: "監査ログの書き込みに失敗した回数",
		}, []string{"action"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skibase_oauth_upstream_latency_seconds",
			Help:    "OAuthプロバイダ呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skibase_rate_limited_total",
			Help: "レート制限で拒否したリクエスト数",
		}, []string{"family"}),
	}

	reg.MustRegister(
		c.authEvents,
		c.auditWriteFailure,
		c.upstreamLatency,
		c.rateLimited,
	)

	return c
}

// RecordAuthEvent は認証イベントを記録する。
func (c *Collector) RecordAuthEvent(action, status, reason string) {
	c.authEvents.WithLabelValues(action, status, reason).Inc()
}

// RecordAuditWriteFailure は監査ログの書き込み失敗を記録する。
func (c *Collector) RecordAuditWriteFailure(action string) {
	c.auditWriteFailure.WithLabelValues(action).Inc()
}

// RecordUpstreamLatency はプロバイダ呼び出しのレイテンシを記録する。
// operationは"token"または"profile"、outcomeは"ok"または"error"。
func (c *Collector) RecordUpstreamLatency(operation, outcome string, duration time.Duration) {
	c.upstreamLatency.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(family string) {
	c.rateLimited.WithLabelValues(family).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
