package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/skibase/internal/model"
)

func TestStatsAggregator_Summarize_Fixture(t *testing.T) {
	fixed := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	var gotAction string
	var gotSince time.Time
	repo := &mockAuthEventRepo{
		countFn: func(_ context.Context, action string, since time.Time) ([]model.StatusReasonCount, error) {
			gotAction, gotSince = action, since
			return []model.StatusReasonCount{
				{Status: model.AuthStatusSuccess, Reason: ReasonOAuthLoginSuccess, Count: 3},
				{Status: model.AuthStatusDenied, Reason: ReasonInvalidState, Count: 1},
				{Status: model.AuthStatusDenied, Reason: ReasonEmailNotInAllowlist, Count: 2},
			}, nil
		},
	}
	agg := NewStatsAggregator(repo)
	agg.now = func() time.Time { return fixed }

	summary, err := agg.Summarize(context.Background(), 24)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	if gotAction != model.ActionOAuthCallback {
		t.Errorf("action = %q", gotAction)
	}
	if !gotSince.Equal(fixed.Add(-24 * time.Hour)) {
		t.Errorf("since = %v", gotSince)
	}
	if summary.SuccessCount != 3 || summary.DeniedCount != 3 || summary.ErrorCount != 0 {
		t.Errorf("unexpected counts: %+v", summary)
	}
	if summary.Total != 6 {
		t.Errorf("Total = %d, want 6", summary.Total)
	}
	if summary.DeniedAllowlistCount != 2 {
		t.Errorf("DeniedAllowlistCount = %d, want 2", summary.DeniedAllowlistCount)
	}
	want := []model.ReasonCount{
		{Reason: "email_not_in_allowlist", Count: 2},
		{Reason: "invalid_state", Count: 1},
	}
	if len(summary.DeniedByReason) != len(want) {
		t.Fatalf("DeniedByReason = %+v", summary.DeniedByReason)
	}
	for i := range want {
		if summary.DeniedByReason[i] != want[i] {
			t.Errorf("DeniedByReason[%d] = %+v, want %+v", i, summary.DeniedByReason[i], want[i])
		}
	}
}

func TestStatsAggregator_Summarize_TieBreaksByReason(t *testing.T) {
	repo := &mockAuthEventRepo{
		countFn: func(context.Context, string, time.Time) ([]model.StatusReasonCount, error) {
			return []model.StatusReasonCount{
				{Status: model.AuthStatusDenied, Reason: "provider_error", Count: 2},
				{Status: model.AuthStatusDenied, Reason: "invalid_state", Count: 2},
				{Status: model.AuthStatusError, Reason: "oauth_exchange_failed", Count: 4},
			}, nil
		},
	}
	summary, err := NewStatsAggregator(repo).Summarize(context.Background(), 1)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.DeniedByReason[0].Reason != "invalid_state" || summary.DeniedByReason[1].Reason != "provider_error" {
		t.Errorf("unexpected order: %+v", summary.DeniedByReason)
	}
	if summary.ErrorCount != 4 || summary.Total != 8 {
		t.Errorf("unexpected counts: %+v", summary)
	}
	if summary.SuccessCount+summary.DeniedCount+summary.ErrorCount != summary.Total {
		t.Error("component counts must sum to total")
	}
}

func TestStatsAggregator_Summarize_WindowBounds(t *testing.T) {
	agg := NewStatsAggregator(&mockAuthEventRepo{})

	for _, hours := range []int{-1, 721, 10000} {
		if _, err := agg.Summarize(context.Background(), hours); !errors.Is(err, ErrValidation) {
			t.Errorf("hours=%d: expected ErrValidation, got %v", hours, err)
		}
	}
	for _, hours := range []int{1, 720} {
		if _, err := agg.Summarize(context.Background(), hours); err != nil {
			t.Errorf("hours=%d: unexpected error %v", hours, err)
		}
	}

	summary, err := agg.Summarize(context.Background(), 0)
	if err != nil {
		t.Fatalf("Summarize(0): %v", err)
	}
	if summary.WindowHours != DefaultStatsWindowHours {
		t.Errorf("WindowHours = %d, want %d", summary.WindowHours, DefaultStatsWindowHours)
	}
	if summary.DeniedByReason == nil {
		t.Error("DeniedByReason must be an empty slice, not nil")
	}
}

func TestStatsAggregator_Summarize_StoreError(t *testing.T) {
	dbErr := errors.New("db down")
	agg := NewStatsAggregator(&mockAuthEventRepo{
		countFn: func(context.Context, string, time.Time) ([]model.StatusReasonCount, error) { return nil, dbErr },
	})

	if _, err := agg.Summarize(context.Background(), 24); !errors.Is(err, dbErr) {
		t.Errorf("expected db error, got %v", err)
	}
}
