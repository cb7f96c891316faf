package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/skibase/internal/metrics"
	"github.com/hitoshi/skibase/internal/model"
	"github.com/hitoshi/skibase/internal/repository"
)

// auditWriteTimeout は監査ログ1件の書き込みに許容する時間。
const auditWriteTimeout = 3 * time.Second

// AuditRecorder は認証イベントを監査ログに記録する。
// 書き込みの失敗は運用ログに残すのみで、呼び出し元の処理結果には影響させない。
type AuditRecorder struct {
	repo    repository.AuthEventRepository
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewAuditRecorder はAuditRecorderを生成する。collectorはnilでもよい。
func NewAuditRecorder(repo repository.AuthEventRepository, collector metrics.MetricsCollector) *AuditRecorder {
	return &AuditRecorder{repo: repo, metrics: collector, now: time.Now}
}

// Record はイベントを1件記録する。エラーは返さない。
// リクエストがキャンセルされた後でも記録が残るよう、親contextのキャンセルは引き継がない。
func (a *AuditRecorder) Record(ctx context.Context, event model.AuthEvent) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = a.now().UTC()
	}
	if a.metrics != nil {
		a.metrics.RecordAuthEvent(event.Action, string(event.Status), event.Reason)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if err := a.repo.Create(writeCtx, &event); err != nil {
		slog.Error("failed to write auth event",
			slog.String("action", event.Action),
			slog.String("status", string(event.Status)),
			slog.String("reason", event.Reason),
			slog.String("error", err.Error()),
		)
		if a.metrics != nil {
			a.metrics.RecordAuditWriteFailure(event.Action)
		}
	}
}
