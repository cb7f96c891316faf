// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/skibase/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// emailはすべて正規化済みの値を渡す。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は正規化済みメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindOrCreateOAuthAdmin は管理者ユーザーを条件付きINSERTで作成し、
	// 既に存在する場合は既存行をそのまま返す（権限の昇格は行わない）。
	// 同一メールアドレスでの同時初回ログインに対して安全である。
	FindOrCreateOAuthAdmin(ctx context.Context, email, passwordHash string) (*model.User, error)

	// UpsertAdmin は管理者ユーザーを作成し、既存の場合はパスワードと権限を更新する。
	// ブートストラップ（seedコマンド）専用。
	UpsertAdmin(ctx context.Context, email, passwordHash string) (*model.User, error)
}

// AllowedEmailRepository は許可リストの永続化インターフェース。
type AllowedEmailRepository interface {
	// FindByNormalized は正規化済みメールアドレスでエントリを取得する。見つからない場合はnilを返す。
	FindByNormalized(ctx context.Context, emailNormalized string) (*model.AllowedEmail, error)

	// TouchLastUsed はlast_used_atを更新する。該当エントリが無い場合はエラーを返す。
	TouchLastUsed(ctx context.Context, emailNormalized string, usedAt time.Time) error

	// Upsert はemail_normalizedの一意制約でエントリを作成または再有効化する。
	// 既存の場合はis_active=true、email、comment、updated_byを更新する。
	Upsert(ctx context.Context, email, emailNormalized string, comment, actorUserID *string) (*model.AllowedEmail, error)

	// UpdateActive はエントリの有効状態を更新する。commentがnilの場合は既存値を維持し、
	// 空文字列の場合はNULLに戻す。
	// 指定IDが存在しない場合はnilを返す。
	UpdateActive(ctx context.Context, id string, isActive bool, comment, actorUserID *string) (*model.AllowedEmail, error)

	// List は全エントリを作成日時の降順で返す。
	List(ctx context.Context) ([]model.AllowedEmail, error)
}

// AuthEventRepository は監査ログの永続化インターフェース。追記のみを提供する。
type AuthEventRepository interface {
	// Create は監査イベントを1件追加する。
	Create(ctx context.Context, event *model.AuthEvent) error

	// CountByStatusReason は指定action・指定時刻以降のイベントを
	// statusとreasonでグループ化した件数を1回のクエリで返す。
	CountByStatusReason(ctx context.Context, action string, since time.Time) ([]model.StatusReasonCount, error)
}
