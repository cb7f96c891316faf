// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// クライアントには汎用的なメッセージのみを返し、内部の判定理由は含めない。
type APIError struct {
	Code    string // エラーコード
	Message string // エラーメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeUnavailable     = "SERVICE_UNAVAILABLE"
	ErrCodeRateLimited     = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeInvalidLogin    = "INVALID_CREDENTIALS"
	ErrCodeInvalidInterval = "INVALID_WINDOW"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{Code: ErrCodeUnauthorized, Message: "Unauthorized"}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{Code: ErrCodeForbidden, Message: "Forbidden"}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{Code: ErrCodeValidation, Message: message}
}

// NewInvalidCredentialsError はパスワードログイン失敗エラーを生成する。
// ユーザー不在とパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{Code: ErrCodeInvalidLogin, Message: "Invalid credentials"}
}

// NewNotFoundError は対象リソース不在エラーを生成する。
func NewNotFoundError(resource string) *APIError {
	return &APIError{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

// NewUnavailableError は外部プロバイダ未設定などの利用不可エラーを生成する。
func NewUnavailableError() *APIError {
	return &APIError{Code: ErrCodeUnavailable, Message: "Sign-in provider is not available"}
}

// NewInvalidWindowError は統計集計期間が範囲外の場合のエラーを生成する。
func NewInvalidWindowError(min, max int) *APIError {
	return &APIError{
		Code:    ErrCodeInvalidInterval,
		Message: fmt.Sprintf("hours must be an integer between %d and %d", min, max),
	}
}
