package auth

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/skibase/internal/model"
	"github.com/hitoshi/skibase/internal/repository"
)

// MaxCommentLength は許可リストのコメントの最大文字数（HTML除去後）。
const MaxCommentLength = 500

// CommentSanitizer はコメントからHTMLを除去するインターフェース。
type CommentSanitizer interface {
	Sanitize(raw string) string
}

// AllowlistGate はOAuthログインを許可するメールアドレスの判定と管理を行う。
// 比較は常にNormalizeEmailの結果で行う。
type AllowlistGate struct {
	repo      repository.AllowedEmailRepository
	sanitizer CommentSanitizer
	now       func() time.Time
}

// NewAllowlistGate はAllowlistGateを生成する。
func NewAllowlistGate(repo repository.AllowedEmailRepository, sanitizer CommentSanitizer) *AllowlistGate {
	return &AllowlistGate{repo: repo, sanitizer: sanitizer, now: time.Now}
}

// IsAllowed は有効な許可リストエントリが存在するかを返す。
// エントリが無い場合はエラーではなくfalseを返す。
func (g *AllowlistGate) IsAllowed(ctx context.Context, rawEmail string) (bool, error) {
	normalized := NormalizeEmail(rawEmail)
	if normalized == "" {
		return false, nil
	}
	entry, err := g.repo.FindByNormalized(ctx, normalized)
	if err != nil {
		return false, fmt.Errorf("failed to look up allowlist: %w", err)
	}
	return entry != nil && entry.IsActive, nil
}

// TouchUsage はエントリの最終利用日時を現在時刻に更新する。
// 失敗はセッション発行を妨げないが、呼び出し側が記録できるようにエラーを返す。
func (g *AllowlistGate) TouchUsage(ctx context.Context, rawEmail string) error {
	if err := g.repo.TouchLastUsed(ctx, NormalizeEmail(rawEmail), g.now().UTC()); err != nil {
		return fmt.Errorf("failed to touch allowlist usage: %w", err)
	}
	return nil
}

// Upsert はエントリを作成し、既存の場合は再有効化してemail、comment、更新者を更新する。
// 同一入力の繰り返しに対して冪等である。
func (g *AllowlistGate) Upsert(ctx context.Context, email string, comment *string, actorUserID string) (*model.AllowedEmail, error) {
	display := collapseSpaces(email)
	normalized := NormalizeEmail(email)
	if !IsWellFormedEmail(normalized) {
		return nil, fmt.Errorf("%w: email is invalid", ErrValidation)
	}
	cleaned, err := g.cleanComment(comment)
	if err != nil {
		return nil, err
	}
	if cleaned != nil && *cleaned == "" {
		cleaned = nil
	}

	entry, err := g.repo.Upsert(ctx, display, normalized, cleaned, optionalID(actorUserID))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert allowlist entry: %w", err)
	}
	return entry, nil
}

// SetActive はエントリの有効状態を変更する。commentがnilの場合は既存値を維持し、
// 空文字列（HTML除去後に空になったものを含む）の場合はコメントを消去する。
// 指定IDが存在しない場合はErrNotFoundを返す。
func (g *AllowlistGate) SetActive(ctx context.Context, id string, isActive bool, comment *string, actorUserID string) (*model.AllowedEmail, error) {
	cleaned, err := g.cleanComment(comment)
	if err != nil {
		return nil, err
	}
	entry, err := g.repo.UpdateActive(ctx, id, isActive, cleaned, optionalID(actorUserID))
	if err != nil {
		return nil, fmt.Errorf("failed to update allowlist entry: %w", err)
	}
	if entry == nil {
		return nil, fmt.Errorf("allowlist entry %s: %w", id, ErrNotFound)
	}
	return entry, nil
}

// List は全エントリを作成日時の降順で返す。
func (g *AllowlistGate) List(ctx context.Context) ([]model.AllowedEmail, error) {
	entries, err := g.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list allowlist: %w", err)
	}
	return entries, nil
}

// cleanComment はHTMLを除去したコメントを返す。
// nilはそのままnilを返し、空になった場合は空文字列へのポインタを返す。
func (g *AllowlistGate) cleanComment(comment *string) (*string, error) {
	if comment == nil {
		return nil, nil
	}
	cleaned := *comment
	if g.sanitizer != nil {
		cleaned = g.sanitizer.Sanitize(cleaned)
	}
	if utf8.RuneCountInString(cleaned) > MaxCommentLength {
		return nil, fmt.Errorf("%w: comment must be at most %d characters", ErrValidation, MaxCommentLength)
	}
	return &cleaned, nil
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
