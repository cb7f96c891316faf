package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		trustProxy bool
		want       string
	}{
		{"RemoteAddrのホスト部", "198.51.100.1:5000", "", false, "198.51.100.1"},
		{"プロキシを信頼しない場合はXFFを無視", "10.0.0.1:5000", "203.0.113.9", false, "10.0.0.1"},
		{"XFFの先頭", "10.0.0.1:5000", " 203.0.113.9 , 10.0.0.2", true, "203.0.113.9"},
		{"XFFが空ならRemoteAddr", "10.0.0.1:5000", "", true, "10.0.0.1"},
		{"IPv6", "[2001:db8::1]:443", "", false, "2001:db8::1"},
		{"ポートなし", "198.51.100.1", "", false, "198.51.100.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := ClientIP(req, tt.trustProxy); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
