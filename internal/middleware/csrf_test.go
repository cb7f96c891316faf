package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOriginGuardMiddleware(t *testing.T) {
	guard := NewOriginGuardMiddleware("http://localhost:5173", "https://ski-base.example/")

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
	}{
		{"GETは検証しない", http.MethodGet, "https://evil.example", http.StatusOK},
		{"OPTIONSは検証しない", http.MethodOptions, "https://evil.example", http.StatusOK},
		{"Originなし", http.MethodPost, "", http.StatusOK},
		{"許可オリジン", http.MethodPost, "http://localhost:5173", http.StatusOK},
		{"末尾スラッシュと大文字の違い", http.MethodPatch, "HTTPS://SKI-BASE.EXAMPLE", http.StatusOK},
		{"別オリジンのPOST", http.MethodPost, "https://evil.example", http.StatusForbidden},
		{"別オリジンのPATCH", http.MethodPatch, "http://localhost:5174", http.StatusForbidden},
		{"別オリジンのDELETE", http.MethodDelete, "null", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/auth/allowlist", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()

			guard(okHandler()).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
