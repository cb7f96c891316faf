package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// StateCookieName はOAuth stateを保持するCookie名。
	StateCookieName = "oauth_yandex_state"
	// StateCookiePath はstate Cookieのスコープ。認証パス配下に限定する。
	StateCookiePath = "/auth/yandex"
	// StateTTL はstate Cookieの有効期間。
	StateTTL = 10 * time.Minute

	stateEntropyBytes = 32
)

// StateGuard はOAuth認可リクエストとコールバックを結び付ける
// 使い捨てのstate値を発行・検証する。
type StateGuard struct {
	secure bool
	random io.Reader
}

// NewStateGuard はStateGuardを生成する。secureは本番環境でtrueを指定する。
func NewStateGuard(secure bool) *StateGuard {
	return &StateGuard{secure: secure, random: rand.Reader}
}

// Issue は256ビットの乱数からbase64url（パディングなし）のstate値を生成する。
func (g *StateGuard) Issue() (string, error) {
	b := make([]byte, stateEntropyBytes)
	if _, err := io.ReadFull(g.random, b); err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Validate はプロバイダから返されたstateとCookieのstateを比較する。
// どちらかが空、または長さが異なる場合は内容を比較せずにfalseを返す。
// 同じ長さの場合は定数時間で比較する。
func (g *StateGuard) Validate(returned, cookie string) bool {
	if returned == "" || cookie == "" {
		return false
	}
	if len(returned) != len(cookie) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(returned), []byte(cookie)) == 1
}

// Take はリクエストのstate Cookieの値を取り出し、同時にCookieを削除する。
// 検証結果に関わらず削除するため、state値は1回限りの使い捨てとなる。
func (g *StateGuard) Take(w http.ResponseWriter, r *http.Request) string {
	var value string
	if c, err := r.Cookie(StateCookieName); err == nil {
		value = c.Value
	}
	http.SetCookie(w, g.ClearCookie())
	return value
}

// Cookie はstate値を保持するCookieを生成する。
func (g *StateGuard) Cookie(state string) *http.Cookie {
	return &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     StateCookiePath,
		MaxAge:   int(StateTTL.Seconds()),
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie はstate Cookieを削除するCookieを生成する。
func (g *StateGuard) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     StateCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
