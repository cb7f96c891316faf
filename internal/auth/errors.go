package auth

import "errors"

// 認証処理のエラー分類。呼び出し側はerrors.Isで判定する。
var (
	// ErrUnauthenticated はセッションが無い、不正、または期限切れであることを示す。
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden は有効なセッションだが権限が不足していることを示す。
	ErrForbidden = errors.New("forbidden")
	// ErrValidation はリクエストの入力値が不正であることを示す。
	ErrValidation = errors.New("validation error")
	// ErrNotFound は参照先のエンティティが存在しないことを示す。
	ErrNotFound = errors.New("not found")
	// ErrUnavailable は外部プロバイダが未設定であることを示す。
	ErrUnavailable = errors.New("provider unavailable")
	// ErrUpstreamFailure は外部プロバイダとの通信またはレスポンス形式の異常を示す。
	ErrUpstreamFailure = errors.New("upstream failure")

	// ErrExchangeFailed は認可コードのトークン交換に失敗したことを示す。
	ErrExchangeFailed = upstreamError("code exchange failed")
	// ErrProfileFetchFailed はプロフィール取得に失敗したことを示す。
	ErrProfileFetchFailed = upstreamError("profile fetch failed")
)

// upstreamError はErrUpstreamFailureとしても判定できるエラーを生成する。
func upstreamError(msg string) error {
	return &wrappedSentinel{msg: msg, parent: ErrUpstreamFailure}
}

type wrappedSentinel struct {
	msg    string
	parent error
}

func (e *wrappedSentinel) Error() string { return e.msg }
func (e *wrappedSentinel) Unwrap() error { return e.parent }
