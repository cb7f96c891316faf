package model

import "time"

// AllowedEmail はOAuthログインを許可するメールアドレスの許可リストエントリを表す。
// EmailNormalizedは一意キーであり、常にEmailの正規化結果と一致する。
type AllowedEmail struct {
	ID              string
	Email           string // 表示用
	EmailNormalized string
	IsActive        bool
	Comment         *string
	CreatedBy       *string // ブートストラップ時はnil
	UpdatedBy       *string
	LastUsedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
