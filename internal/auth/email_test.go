package auth

import (
	"testing"
	"unicode/utf8"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"前後の空白と大文字", " Foo@Bar.COM ", "foo@bar.com"},
		{"既に正規形", "foo@bar.com", "foo@bar.com"},
		{"全角英数字", "ｕｓｅｒ＠ｃｏｒｐ．ｒｕ", "user@corp.ru"},
		{"全角空白を含む", "　user@corp.ru　", "user@corp.ru"},
		{"連続する空白を1つにまとめる", "a  \t b", "a b"},
		{"キリル文字の小文字化", "ИВАН@ПОЧТА.РФ", "иван@почта.рф"},
		{"空文字列", "", ""},
		{"空白のみ", " \t\n ", ""},
		{"小文字化でNFKCが崩れる文字", "\u0130\u0301@corp.ru", "\u00ed@corp.ru"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeEmail(tt.in); got != tt.want {
				t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeEmail_Idempotent(t *testing.T) {
	inputs := []string{
		" Foo@Bar.COM ",
		"ｕｓｅｒ＠ｃｏｒｐ．ｒｕ",
		"a  b@x.com",
		"　 mixed　　Space@X.com",
		"ﬁle@example.com",
		"Straße@Example.DE",
		"\u0130\u0301@corp.ru",
		"\u03aa\u0301@corp.ru",
	}
	for _, in := range inputs {
		once := NormalizeEmail(in)
		twice := NormalizeEmail(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

// TestNormalizeEmail_IdempotentForAllRunes は基本面から第3面までの全コードポイントについて、
// 単独と結合アクセント付きの両方で冪等性を検証する。
func TestNormalizeEmail_IdempotentForAllRunes(t *testing.T) {
	var failures int
	for r := rune(0); r <= 0x2FFFF; r++ {
		if !utf8.ValidRune(r) {
			continue
		}
		for _, in := range []string{string(r), string(r) + "\u0301"} {
			in += "@corp.ru"
			once := NormalizeEmail(in)
			if twice := NormalizeEmail(once); once != twice {
				failures++
				if failures <= 10 {
					t.Errorf("not idempotent for U+%04X %q: %q -> %q", r, in, once, twice)
				}
			}
		}
	}
	if failures > 10 {
		t.Errorf("%d non-idempotent inputs in total", failures)
	}
}

func TestNormalizeEmail_CaseWidthSpaceInsensitive(t *testing.T) {
	if NormalizeEmail(" Foo@Bar.COM ") != NormalizeEmail("foo@bar.com") {
		t.Error("expected case and surrounding space to be ignored")
	}
	if NormalizeEmail("ＦＯＯ@bar.com") != NormalizeEmail("foo@bar.com") {
		t.Error("expected full-width letters to be folded")
	}
}

func TestIsWellFormedEmail(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"user@corp.ru", true},
		{"first.last+tag@sub.example.com", true},
		{"", false},
		{"user", false},
		{"@corp.ru", false},
		{"user@", false},
		{"user@localhost", false},
		{"a@b@c.com", false},
		{"user name@corp.ru", false},
		{"Ivan <ivan@corp.ru>", false},
		{"<ivan@corp.ru>", false},
	}
	for _, tt := range tests {
		if got := IsWellFormedEmail(tt.in); got != tt.want {
			t.Errorf("IsWellFormedEmail(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
