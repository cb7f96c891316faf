package auth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/hitoshi/skibase/internal/model"
)

// captureLogs はテスト中のslog出力をバッファに切り替える。
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestAuditRecorder_Record_Persists(t *testing.T) {
	repo := &mockAuthEventRepo{}
	collector := &mockMetrics{}
	recorder := NewAuditRecorder(repo, collector)

	recorder.Record(context.Background(), model.AuthEvent{
		Action: model.ActionOAuthCallback,
		Status: model.AuthStatusDenied,
		Reason: ReasonInvalidState,
		IP:     "198.51.100.4",
	})

	events := repo.recorded()
	if len(events) != 1 {
		t.Fatalf("recorded %d events, want 1", len(events))
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("CreatedAt must be set")
	}
	if len(collector.authEvents) != 1 || collector.authEvents[0] != "oauth_yandex_callback/denied/invalid_state" {
		t.Errorf("auth event metrics = %v", collector.authEvents)
	}
}

func TestAuditRecorder_Record_SwallowsFailure(t *testing.T) {
	logs := captureLogs(t)
	repo := &mockAuthEventRepo{
		createFn: func(context.Context, *model.AuthEvent) error { return errors.New("disk full") },
	}
	collector := &mockMetrics{}
	recorder := NewAuditRecorder(repo, collector)

	// panicやエラー返却が無いこと
	recorder.Record(context.Background(), model.AuthEvent{
		Action: model.ActionOAuthStart,
		Status: model.AuthStatusSuccess,
		Reason: ReasonRedirectIssued,
	})

	if len(collector.auditFailures) != 1 || collector.auditFailures[0] != model.ActionOAuthStart {
		t.Errorf("audit failure metrics = %v", collector.auditFailures)
	}
	out := logs.String()
	if !strings.Contains(out, "failed to write auth event") || !strings.Contains(out, "disk full") {
		t.Errorf("expected operational error log, got %s", out)
	}
	if !strings.Contains(out, `"level":"ERROR"`) {
		t.Errorf("expected error level, got %s", out)
	}
}

func TestAuditRecorder_Record_SurvivesCanceledRequest(t *testing.T) {
	repo := &mockAuthEventRepo{
		createFn: func(ctx context.Context, _ *model.AuthEvent) error { return ctx.Err() },
	}
	recorder := NewAuditRecorder(repo, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	recorder.Record(ctx, model.AuthEvent{Action: model.ActionOAuthCallback, Status: model.AuthStatusError})

	if len(repo.recorded()) != 1 {
		t.Error("event must be written even after the request context is canceled")
	}
}
