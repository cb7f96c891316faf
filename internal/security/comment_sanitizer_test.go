package security

import (
	"strings"
	"testing"
)

func TestCommentSanitizer_StripsTags(t *testing.T) {
	sanitizer := NewCommentSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキストはそのまま", "Инструктор, сезон 2026", "Инструктор, сезон 2026"},
		{"強調タグを除去", "<b>VIP</b> coach", "VIP coach"},
		{"scriptタグは中身ごと除去", `<script>alert(1)</script>ops`, "ops"},
		{"イベント属性付きimgを除去", `<img src=x onerror=alert(1)>note`, "note"},
		{"前後の空白を除去", "  staff  ", "staff"},
		{"空文字列", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizer.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCommentSanitizer_NoAngleBracketsSurvive(t *testing.T) {
	sanitizer := NewCommentSanitizer()

	payloads := []string{
		`<a href="javascript:alert(1)">x</a>`,
		`<iframe src="https://evil.example"></iframe>`,
		`<svg onload=alert(1)>`,
		`<<b>b>nested`,
	}
	for _, p := range payloads {
		got := sanitizer.Sanitize(p)
		if strings.ContainsAny(got, "<>") {
			t.Errorf("Sanitize(%q) = %q, must not contain raw angle brackets", p, got)
		}
	}
}
