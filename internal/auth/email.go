package auth

import (
	"net/mail"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	// maxEmailLength はRFC 5321上のアドレス長の上限。
	maxEmailLength = 320

	// maxNormalizePasses は正規化を繰り返す上限。実際の入力は2回以内で収束する。
	maxNormalizePasses = 4
)

// NormalizeEmail はメールアドレスを比較用の正規形に変換する。
// 空白の連続を1つにまとめて前後を除去し、NFKC正規化と小文字化を結果が変わらなくなるまで繰り返す。
// 小文字化でNFKCの形が崩れる文字（İ+結合アクセントなど）があるため1回では冪等にならない。
// 許可リストとユーザーの検索キーは必ずこの関数の結果を使う。
func NormalizeEmail(raw string) string {
	s := collapseSpaces(raw)
	for i := 0; i < maxNormalizePasses; i++ {
		next := normalizePass(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

// normalizePass はNFKC正規化、空白の整理、小文字化を1回ずつ適用する。
// NFKCで全角空白などが半角空白に変わるため、正規化の後にも空白をまとめる。
func normalizePass(s string) string {
	s = norm.NFKC.String(s)
	s = collapseSpaces(s)
	return strings.ToLower(s)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// IsWellFormedEmail は表示名を含まない単一のメールアドレスとして妥当かを返す。
func IsWellFormedEmail(s string) bool {
	if s == "" || len(s) > maxEmailLength {
		return false
	}
	if strings.Count(s, "@") != 1 || strings.ContainsAny(s, " \t\r\n<>") {
		return false
	}
	local, domain, _ := strings.Cut(s, "@")
	if local == "" || domain == "" || !strings.Contains(domain, ".") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Name == "" && addr.Address == s
}
