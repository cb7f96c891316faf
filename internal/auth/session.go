package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/skibase/internal/model"
)

const (
	// SessionCookieName はセッショントークンを保持するCookie名。
	SessionCookieName = "auth"
	// SessionTTL はセッショントークンの有効期間。
	SessionTTL = 7 * 24 * time.Hour
)

// SessionPayload は検証済みセッショントークンから取り出した利用者情報。
// 他のリソースのルートはRoleの比較のみに使用する。
type SessionPayload struct {
	UserID    string     `json:"id"`
	Role      model.Role `json:"role"`
	Email     string     `json:"email"`
	ExpiresAt time.Time  `json:"-"`
}

type sessionClaims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// SessionCodec はHS256で署名したセッショントークンの発行・検証とCookie管理を行う。
type SessionCodec struct {
	secret []byte
	secure bool
	domain string
	now    func() time.Time
}

// NewSessionCodec はSessionCodecを生成する。
// secureは本番環境でtrue、domainは空の場合ホスト限定Cookieになる。
func NewSessionCodec(secret string, secure bool, domain string) *SessionCodec {
	return &SessionCodec{
		secret: []byte(secret),
		secure: secure,
		domain: domain,
		now:    time.Now,
	}
}

// Issue はユーザーのセッショントークンを発行し、トークンと有効期限を返す。
func (c *SessionCodec) Issue(user *model.User) (string, time.Time, error) {
	if user == nil || user.ID == "" {
		return "", time.Time{}, fmt.Errorf("cannot issue session without user")
	}
	now := c.now()
	expiresAt := now.Add(SessionTTL)
	claims := sessionClaims{
		Role:  string(user.Role),
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify は署名と有効期限を検証し、ペイロードを返す。
// トークンが空、不正、期限切れ、HS256以外の場合はErrUnauthenticatedを返す。
func (c *SessionCodec) Verify(token string) (*SessionPayload, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrUnauthenticated)
	}
	return &SessionPayload{
		UserID:    claims.Subject,
		Role:      model.Role(claims.Role),
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// TokenFromRequest はリクエストからセッショントークンを取り出す。
// Authorization: Bearerヘッダーがある場合はCookieより優先する。
func (c *SessionCodec) TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// VerifyRequest はリクエストのトークンを取り出して検証する。
func (c *SessionCodec) VerifyRequest(r *http.Request) (*SessionPayload, error) {
	return c.Verify(c.TokenFromRequest(r))
}

// Cookie はセッショントークンを保持するCookieを生成する。
func (c *SessionCodec) Cookie(token string) *http.Cookie {
	cookie := c.baseCookie()
	cookie.Value = token
	cookie.MaxAge = int(SessionTTL.Seconds())
	return cookie
}

// ClearCookie はセッションCookieを削除するCookieを生成する。
// ブラウザに確実に削除させるため、発行時と同じdomain・path・属性を使う。
func (c *SessionCodec) ClearCookie() *http.Cookie {
	cookie := c.baseCookie()
	cookie.MaxAge = -1
	return cookie
}

func (c *SessionCodec) baseCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Path:     "/",
		Domain:   c.domain,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// RequireRole はペイロードのroleが指定roleと一致するかを返す。
func RequireRole(payload *SessionPayload, role model.Role) bool {
	return payload != nil && payload.Role == role
}
