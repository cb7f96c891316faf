package auth

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hitoshi/skibase/internal/model"
	"github.com/hitoshi/skibase/internal/repository"
)

const (
	// DefaultStatsWindowHours は集計期間が指定されない場合の時間数。
	DefaultStatsWindowHours = 24
	// MinStatsWindowHours は集計期間の下限。
	MinStatsWindowHours = 1
	// MaxStatsWindowHours は集計期間の上限（30日）。
	MaxStatsWindowHours = 720

	// allowlistDenyReason は許可リストによる拒否を示すreason。
	allowlistDenyReason = "email_not_in_allowlist"
)

// StatsAggregator はOAuthコールバックの監査ログを期間集計する。
type StatsAggregator struct {
	repo repository.AuthEventRepository
	now  func() time.Time
}

// NewStatsAggregator はStatsAggregatorを生成する。
func NewStatsAggregator(repo repository.AuthEventRepository) *StatsAggregator {
	return &StatsAggregator{repo: repo, now: time.Now}
}

// Summarize は直近hours時間のOAuthコールバック結果を集計する。
// hoursが0の場合は24時間とし、[1, 720]の範囲外はErrValidationを返す。
// 集計は1回のクエリで行い、各件数の合計がTotalと一致する。
func (s *StatsAggregator) Summarize(ctx context.Context, hours int) (*model.SecuritySummary, error) {
	if hours == 0 {
		hours = DefaultStatsWindowHours
	}
	if hours < MinStatsWindowHours || hours > MaxStatsWindowHours {
		return nil, fmt.Errorf("%w: hours must be between %d and %d", ErrValidation, MinStatsWindowHours, MaxStatsWindowHours)
	}

	since := s.now().UTC().Add(-time.Duration(hours) * time.Hour)
	rows, err := s.repo.CountByStatusReason(ctx, model.ActionOAuthCallback, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate auth events: %w", err)
	}

	summary := &model.SecuritySummary{
		WindowHours:    hours,
		Since:          since,
		DeniedByReason: []model.ReasonCount{},
	}
	denied := make(map[string]int)
	for _, row := range rows {
		summary.Total += row.Count
		switch row.Status {
		case model.AuthStatusSuccess:
			summary.SuccessCount += row.Count
		case model.AuthStatusDenied:
			summary.DeniedCount += row.Count
			denied[row.Reason] += row.Count
			if row.Reason == allowlistDenyReason {
				summary.DeniedAllowlistCount += row.Count
			}
		case model.AuthStatusError:
			summary.ErrorCount += row.Count
		}
	}

	for reason, count := range denied {
		summary.DeniedByReason = append(summary.DeniedByReason, model.ReasonCount{Reason: reason, Count: count})
	}
	sort.Slice(summary.DeniedByReason, func(i, j int) bool {
		a, b := summary.DeniedByReason[i], summary.DeniedByReason[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Reason < b.Reason
	})

	return summary, nil
}
