package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/skibase/internal/model"
)

const allowedEmailColumns = `id, email, email_normalized, is_active, comment, created_by, updated_by, last_used_at, created_at, updated_at`

// PostgresAllowedEmailRepo はPostgreSQLを使用した許可リストリポジトリ。
type PostgresAllowedEmailRepo struct {
	db *sql.DB
}

// NewPostgresAllowedEmailRepo はPostgresAllowedEmailRepoを生成する。
func NewPostgresAllowedEmailRepo(db *sql.DB) *PostgresAllowedEmailRepo {
	return &PostgresAllowedEmailRepo{db: db}
}

// FindByNormalized は正規化済みメールアドレスでエントリを取得する。見つからない場合はnilを返す。
func (r *PostgresAllowedEmailRepo) FindByNormalized(ctx context.Context, emailNormalized string) (*model.AllowedEmail, error) {
	entry, err := scanAllowedEmail(r.db.QueryRowContext(ctx,
		`SELECT `+allowedEmailColumns+` FROM allowed_emails WHERE email_normalized = $1`,
		emailNormalized,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find allowed email: %w", err)
	}
	return entry, nil
}

// TouchLastUsed はlast_used_atを更新する。
// 該当エントリが無い場合（確認後に削除された場合など）はsql.ErrNoRowsをラップして返す。
func (r *PostgresAllowedEmailRepo) TouchLastUsed(ctx context.Context, emailNormalized string, usedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE allowed_emails SET last_used_at = $1 WHERE email_normalized = $2`,
		usedAt, emailNormalized,
	)
	if err != nil {
		return fmt.Errorf("failed to touch allowed email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read touched rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("allowed email to touch does not exist: %w", sql.ErrNoRows)
	}
	return nil
}

// Upsert はemail_normalizedの一意制約でエントリを作成または再有効化する。
// 新規作成時はcreated_byとupdated_byの両方にactorUserIDを設定する。
func (r *PostgresAllowedEmailRepo) Upsert(ctx context.Context, email, emailNormalized string, comment, actorUserID *string) (*model.AllowedEmail, error) {
	entry, err := scanAllowedEmail(r.db.QueryRowContext(ctx,
		`INSERT INTO allowed_emails (id, email, email_normalized, is_active, comment, created_by, updated_by)
		 VALUES ($1, $2, $3, TRUE, $4, $5, $5)
		 ON CONFLICT (email_normalized) DO UPDATE
		 SET is_active = TRUE,
		     email = EXCLUDED.email,
		     comment = EXCLUDED.comment,
		     updated_by = EXCLUDED.updated_by,
		     updated_at = now()
		 RETURNING `+allowedEmailColumns,
		uuid.NewString(), email, emailNormalized, nullString(comment), nullString(actorUserID),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert allowed email: %w", err)
	}
	return entry, nil
}

// UpdateActive はエントリの有効状態を更新する。指定IDが存在しない場合はnilを返す。
// commentがnilなら既存値を維持し、空文字列ならNULLにする。
func (r *PostgresAllowedEmailRepo) UpdateActive(ctx context.Context, id string, isActive bool, comment, actorUserID *string) (*model.AllowedEmail, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	entry, err := scanAllowedEmail(r.db.QueryRowContext(ctx,
		`UPDATE allowed_emails
		 SET is_active = $2,
		     comment = CASE WHEN $3::text IS NULL THEN comment ELSE NULLIF($3::text, '') END,
		     updated_by = $4,
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+allowedEmailColumns,
		id, isActive, nullString(comment), nullString(actorUserID),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update allowed email: %w", err)
	}
	return entry, nil
}

// List は全エントリを作成日時の降順で返す。
func (r *PostgresAllowedEmailRepo) List(ctx context.Context) ([]model.AllowedEmail, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+allowedEmailColumns+` FROM allowed_emails ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list allowed emails: %w", err)
	}
	defer rows.Close()

	entries := make([]model.AllowedEmail, 0)
	for rows.Next() {
		entry, err := scanAllowedEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan allowed email: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate allowed emails: %w", err)
	}
	return entries, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAllowedEmail(row rowScanner) (*model.AllowedEmail, error) {
	var (
		entry      model.AllowedEmail
		comment    sql.NullString
		createdBy  sql.NullString
		updatedBy  sql.NullString
		lastUsedAt sql.NullTime
	)
	err := row.Scan(
		&entry.ID, &entry.Email, &entry.EmailNormalized, &entry.IsActive,
		&comment, &createdBy, &updatedBy, &lastUsedAt,
		&entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	entry.Comment = stringPtr(comment)
	entry.CreatedBy = stringPtr(createdBy)
	entry.UpdatedBy = stringPtr(updatedBy)
	if lastUsedAt.Valid {
		t := lastUsedAt.Time
		entry.LastUsedAt = &t
	}
	return &entry, nil
}

// nullString は*stringをNULL許容のSQLパラメータに変換する。
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// compile-time interface check
var _ AllowedEmailRepository = (*PostgresAllowedEmailRepo)(nil)
