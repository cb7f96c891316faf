package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/skibase/internal/auth"
	"github.com/hitoshi/skibase/internal/middleware"
	"github.com/hitoshi/skibase/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限。
const maxRequestBodyBytes = 16 << 10

// userResponse はユーザー情報のレスポンス形式。
type userResponse struct {
	ID    string     `json:"id"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Role: u.Role}
}

func sessionToUserResponse(p *auth.SessionPayload) userResponse {
	return userResponse{ID: p.UserID, Email: p.Email, Role: p.Role}
}

// allowedEmailResponse は許可リストエントリのレスポンス形式。
type allowedEmailResponse struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	EmailNormalized string     `json:"emailNormalized"`
	IsActive        bool       `json:"isActive"`
	Comment         *string    `json:"comment"`
	CreatedBy       *string    `json:"createdBy"`
	UpdatedBy       *string    `json:"updatedBy"`
	LastUsedAt      *time.Time `json:"lastUsedAt"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func toAllowedEmailResponse(e *model.AllowedEmail) allowedEmailResponse {
	return allowedEmailResponse{
		ID:              e.ID,
		Email:           e.Email,
		EmailNormalized: e.EmailNormalized,
		IsActive:        e.IsActive,
		Comment:         e.Comment,
		CreatedBy:       e.CreatedBy,
		UpdatedBy:       e.UpdatedBy,
		LastUsedAt:      e.LastUsedAt,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSONBody はリクエストボディをJSONとして読み取る。未知のフィールドは拒否する。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// 分類できないエラーは内部エラーとして扱い、詳細はログにのみ記録する。
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrValidation):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(validationMessage(err)))
	case errors.Is(err, auth.ErrNotFound):
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewNotFoundError("Allowlist entry"))
	case errors.Is(err, auth.ErrUnauthenticated):
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
	case errors.Is(err, auth.ErrForbidden):
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
	case errors.Is(err, auth.ErrUnavailable):
		middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewUnavailableError())
	default:
		slog.Error("internal server error", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
	}
}

// validationMessage は"validation error: "接頭辞を除いた入力エラーの説明を返す。
func validationMessage(err error) string {
	msg := err.Error()
	if _, after, ok := strings.Cut(msg, auth.ErrValidation.Error()+": "); ok {
		return after
	}
	return "Invalid request"
}

func clientInfo(r *http.Request, trustProxy bool) auth.ClientInfo {
	return auth.ClientInfo{
		IP:        middleware.ClientIP(r, trustProxy),
		UserAgent: r.UserAgent(),
	}
}
