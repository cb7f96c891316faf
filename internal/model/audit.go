package model

import "time"

// AuthStatus は認証イベントの結果区分を表す。
type AuthStatus string

const (
	AuthStatusSuccess AuthStatus = "success"
	AuthStatusDenied  AuthStatus = "denied"
	AuthStatusError   AuthStatus = "error"
)

// 監査ログのaction値
const (
	ActionOAuthStart      = "oauth_yandex_start"
	ActionOAuthCallback   = "oauth_yandex_callback"
	ActionPasswordLogin   = "password_login"
	ActionAllowlistUpsert = "allowlist_upsert"
	ActionAllowlistUpdate = "allowlist_update"
)

// AuthEvent は認証に関わる操作の監査ログ（追記のみ）を表す。
// 任意項目は空文字列の場合NULLとして保存される。
type AuthEvent struct {
	ID              string
	Action          string
	Status          AuthStatus
	Reason          string
	EmailNormalized string
	UserID          string
	IP              string
	UserAgent       string
	CreatedAt       time.Time
}

// ReasonCount は拒否理由ごとの件数を表す。
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// StatusReasonCount は監査ログをstatusとreasonで集計した1行を表す。
type StatusReasonCount struct {
	Status AuthStatus
	Reason string
	Count  int
}

// SecuritySummary は一定期間のOAuthコールバック結果の集計を表す。
type SecuritySummary struct {
	WindowHours          int           `json:"windowHours"`
	Since                time.Time     `json:"since"`
	Total                int           `json:"total"`
	SuccessCount         int           `json:"successCount"`
	DeniedCount          int           `json:"deniedCount"`
	ErrorCount           int           `json:"errorCount"`
	DeniedAllowlistCount int           `json:"deniedAllowlistCount"`
	DeniedByReason       []ReasonCount `json:"deniedByReason"`
}
