package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/skibase/internal/model"
)

// PostgresAuthEventRepo はPostgreSQLを使用した監査ログリポジトリ。
type PostgresAuthEventRepo struct {
	db *sql.DB
}

// NewPostgresAuthEventRepo はPostgresAuthEventRepoを生成する。
func NewPostgresAuthEventRepo(db *sql.DB) *PostgresAuthEventRepo {
	return &PostgresAuthEventRepo{db: db}
}

// Create は監査イベントを1件追加する。
// IDと作成日時が未設定の場合はここで採番する。空文字列の任意項目はNULLとして保存する。
func (r *PostgresAuthEventRepo) Create(ctx context.Context, event *model.AuthEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	var userID sql.NullString
	if _, err := uuid.Parse(event.UserID); err == nil {
		userID = sql.NullString{String: event.UserID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_events (id, action, status, reason, email_normalized, user_id, ip, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID,
		event.Action,
		string(event.Status),
		emptyToNull(event.Reason),
		emptyToNull(event.EmailNormalized),
		userID,
		emptyToNull(event.IP),
		emptyToNull(event.UserAgent),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auth event: %w", err)
	}
	return nil
}

// CountByStatusReason はstatusとreasonでグループ化した件数を返す。
// 単一のSELECT文で集計するため、各グループの件数は同一スナップショットに基づく。
// reasonがNULLの行は空文字列として返す。
func (r *PostgresAuthEventRepo) CountByStatusReason(ctx context.Context, action string, since time.Time) ([]model.StatusReasonCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COALESCE(reason, ''), COUNT(*)
		 FROM auth_events
		 WHERE action = $1 AND created_at >= $2
		 GROUP BY status, reason`,
		action, since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count auth events: %w", err)
	}
	defer rows.Close()

	var counts []model.StatusReasonCount
	for rows.Next() {
		var (
			c      model.StatusReasonCount
			status string
		)
		if err := rows.Scan(&status, &c.Reason, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan auth event count: %w", err)
		}
		c.Status = model.AuthStatus(status)
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate auth event counts: %w", err)
	}
	return counts, nil
}

func emptyToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// compile-time interface check
var _ AuthEventRepository = (*PostgresAuthEventRepo)(nil)
