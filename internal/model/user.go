// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限を表す。admin以外の権限はすべて非管理者として扱う。
type Role string

const (
	// RoleAdmin は管理者権限。許可リスト経由のOAuthログインで付与される。
	RoleAdmin Role = "admin"
	// RoleEditor は管理者以外の既存ユーザーの権限。
	RoleEditor Role = "editor"
)

// User はサイト管理画面にログインできるユーザーを表す。
// Emailは常に正規化済みの値を保持する。
type User struct {
	ID           string
	Email        string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin はユーザーが管理者権限を持つかを返す。
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
