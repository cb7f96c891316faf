package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/skibase/internal/auth"
	"github.com/hitoshi/skibase/internal/middleware"
	"github.com/hitoshi/skibase/internal/model"
)

// AllowlistServiceInterface は許可リストハンドラーが必要とするサービスインターフェース。
type AllowlistServiceInterface interface {
	ListAllowlist(ctx context.Context) ([]model.AllowedEmail, error)
	UpsertAllowlist(ctx context.Context, email string, comment *string, actor *auth.SessionPayload, client auth.ClientInfo) (*model.AllowedEmail, error)
	UpdateAllowlist(ctx context.Context, id string, isActive bool, comment *string, actor *auth.SessionPayload, client auth.ClientInfo) (*model.AllowedEmail, error)
}

// AllowlistHandler は許可リスト管理のHTTPハンドラー。管理者のみが利用する。
type AllowlistHandler struct {
	service    AllowlistServiceInterface
	trustProxy bool
}

// NewAllowlistHandler はAllowlistHandlerを生成する。
func NewAllowlistHandler(service AllowlistServiceInterface, trustProxy bool) *AllowlistHandler {
	return &AllowlistHandler{service: service, trustProxy: trustProxy}
}

// List は許可リストを返す。
// GET /auth/allowlist
func (h *AllowlistHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListAllowlist(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]allowedEmailResponse, len(entries))
	for i := range entries {
		items[i] = toAllowedEmailResponse(&entries[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type upsertAllowlistRequest struct {
	Email   string  `json:"email"`
	Comment *string `json:"comment"`
}

// Upsert はエントリを追加する。既存の場合は再有効化する。
// POST /auth/allowlist
func (h *AllowlistHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req upsertAllowlistRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Invalid request body"))
		return
	}

	entry, err := h.service.UpsertAllowlist(r.Context(), req.Email, req.Comment, actor, clientInfo(r, h.trustProxy))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": toAllowedEmailResponse(entry)})
}

type updateAllowlistRequest struct {
	IsActive *bool   `json:"isActive"`
	Comment  *string `json:"comment"`
}

// Update はエントリの有効状態とコメントを更新する。
// PATCH /auth/allowlist/{id}
func (h *AllowlistHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req updateAllowlistRequest
	if err := decodeJSONBody(w, r, &req); err != nil || req.IsActive == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("isActive is required"))
		return
	}

	id := chi.URLParam(r, "id")
	entry, err := h.service.UpdateAllowlist(r.Context(), id, *req.IsActive, req.Comment, actor, clientInfo(r, h.trustProxy))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": toAllowedEmailResponse(entry)})
}
