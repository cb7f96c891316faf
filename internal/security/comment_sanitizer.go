package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// CommentSanitizer は許可リストのコメントからHTMLを除去する。
// コメントは管理画面に表示されるため、タグは一切通さない。
type CommentSanitizer struct {
	policy *bluemonday.Policy
}

// NewCommentSanitizer はbluemondayのStrictPolicyを使うCommentSanitizerを生成する。
func NewCommentSanitizer() *CommentSanitizer {
	return &CommentSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はHTMLタグを除去し、前後の空白を取り除いた文字列を返す。
func (s *CommentSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
