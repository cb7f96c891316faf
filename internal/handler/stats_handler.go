package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/hitoshi/skibase/internal/auth"
	"github.com/hitoshi/skibase/internal/middleware"
	"github.com/hitoshi/skibase/internal/model"
)

// StatsServiceInterface はセキュリティ統計ハンドラーが必要とするサービスインターフェース。
type StatsServiceInterface interface {
	SecuritySummary(ctx context.Context, hours int) (*model.SecuritySummary, error)
}

// StatsHandler はOAuthコールバック統計のHTTPハンドラー。
type StatsHandler struct {
	service StatsServiceInterface
}

// NewStatsHandler はStatsHandlerを生成する。
func NewStatsHandler(service StatsServiceInterface) *StatsHandler {
	return &StatsHandler{service: service}
}

// SecurityStats は直近hours時間の統計を返す。hours未指定時は24時間。
// GET /auth/security/stats?hours=N
func (h *StatsHandler) SecurityStats(w http.ResponseWriter, r *http.Request) {
	hours := 0
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n == 0 {
			writeInvalidWindow(w)
			return
		}
		hours = n
	}

	summary, err := h.service.SecuritySummary(r.Context(), hours)
	if err != nil {
		if errors.Is(err, auth.ErrValidation) {
			writeInvalidWindow(w)
			return
		}
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeInvalidWindow(w http.ResponseWriter) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest,
		model.NewInvalidWindowError(auth.MinStatsWindowHours, auth.MaxStatsWindowHours))
}
