package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/hitoshi/skibase/internal/metrics"
)

const (
	defaultYandexAuthURL    = "https://oauth.yandex.ru/authorize"
	defaultYandexTokenURL   = "https://oauth.yandex.ru/token"
	defaultYandexProfileURL = "https://login.yandex.ru/info?format=json"

	// maxProviderResponseBytes はプロバイダのレスポンスとして読み込む上限。
	maxProviderResponseBytes = 1 << 20
)

// YandexOAuthConfig はYandex OAuthプロバイダーの設定。
type YandexOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string // 空白区切り。空の場合はscopeを送らない

	// テスト用にオーバーライド可能なURL
	AuthURL    string
	TokenURL   string
	ProfileURL string
}

// YandexProfile はYandexのプロフィールエンドポイントのレスポンス。
// IDのみ必須で、その他は型が一致する場合に限り受け付ける。
type YandexProfile struct {
	ID           string   `json:"id"`
	Login        string   `json:"login,omitempty"`
	DefaultEmail string   `json:"default_email,omitempty"`
	Emails       []string `json:"emails,omitempty"`
	RealName     string   `json:"real_name,omitempty"`
	FirstName    string   `json:"first_name,omitempty"`
	LastName     string   `json:"last_name,omitempty"`
}

// yandexProfileResponse は必須項目の欠落を判別するためのデコード用構造体。
type yandexProfileResponse struct {
	ID           *string  `json:"id"`
	Login        *string  `json:"login"`
	DefaultEmail *string  `json:"default_email"`
	Emails       []string `json:"emails"`
	RealName     *string  `json:"real_name"`
	FirstName    *string  `json:"first_name"`
	LastName     *string  `json:"last_name"`
}

// YandexOAuthProvider はYandex OAuth 2.0の認可URL生成、コード交換、プロフィール取得を提供する。
type YandexOAuthProvider struct {
	oauth      *oauth2.Config
	profileURL string
	client     *http.Client
	metrics    metrics.MetricsCollector
}

// NewYandexOAuthProvider はYandexOAuthProviderを生成する。
// clientには外部呼び出し用のタイムアウト付きHTTPクライアントを渡す。
// collectorがnilの場合はレイテンシを記録しない。
func NewYandexOAuthProvider(config YandexOAuthConfig, client *http.Client, collector metrics.MetricsCollector) *YandexOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultYandexAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultYandexTokenURL
	}
	if config.ProfileURL == "" {
		config.ProfileURL = defaultYandexProfileURL
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &YandexOAuthProvider{
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       strings.Fields(config.Scope),
			Endpoint: oauth2.Endpoint{
				AuthURL:   config.AuthURL,
				TokenURL:  config.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		profileURL: config.ProfileURL,
		client:     client,
		metrics:    collector,
	}
}

// BuildAuthorizationURL はYandexの認可URLを生成する。ネットワーク通信は行わない。
func (p *YandexOAuthProvider) BuildAuthorizationURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// ExchangeCode は認可コードをアクセストークンに交換する。
// 非2xx応答、access_tokenの欠落や型不一致はErrExchangeFailedとして返す。
func (p *YandexOAuthProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	start := time.Now()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	token, err := p.oauth.Exchange(ctx, code)
	if err == nil && token.AccessToken == "" {
		err = fmt.Errorf("empty access token in response")
	}
	p.observe("token", start, err)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	return token.AccessToken, nil
}

// FetchProfile はアクセストークンでYandexのプロフィールを取得する。
// 非2xx応答、不正なJSON、idの欠落や型不一致はErrProfileFetchFailedとして返す。
func (p *YandexOAuthProvider) FetchProfile(ctx context.Context, accessToken string) (*YandexProfile, error) {
	start := time.Now()
	profile, err := p.fetchProfile(ctx, accessToken)
	p.observe("profile", start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}
	return profile, nil
}

func (p *YandexOAuthProvider) fetchProfile(ctx context.Context, accessToken string) (*YandexProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.profileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read profile response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("profile fetch failed with status %d", resp.StatusCode)
	}

	return decodeYandexProfile(body)
}

// decodeYandexProfile はプロフィールJSONを型付きで検証する。
// 型の合わない項目があればその時点でエラーとし、部分的な値は信用しない。
func decodeYandexProfile(body []byte) (*YandexProfile, error) {
	var raw yandexProfileResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse profile response: %w", err)
	}
	if raw.ID == nil || strings.TrimSpace(*raw.ID) == "" {
		return nil, fmt.Errorf("missing id in profile response")
	}
	return &YandexProfile{
		ID:           *raw.ID,
		Login:        deref(raw.Login),
		DefaultEmail: deref(raw.DefaultEmail),
		Emails:       raw.Emails,
		RealName:     deref(raw.RealName),
		FirstName:    deref(raw.FirstName),
		LastName:     deref(raw.LastName),
	}, nil
}

// ResolvePrimaryEmail はプロフィールから認証に使うメールアドレスを正規化済みの形で決定する。
// default_emailが妥当ならそれを、無ければemailsの先頭から最初の妥当なものを返す。
// どれも無い場合はfalseを返し、呼び出し側は認証を拒否する。
func ResolvePrimaryEmail(profile *YandexProfile) (string, bool) {
	if profile == nil {
		return "", false
	}
	if email, ok := cleanEmail(profile.DefaultEmail); ok {
		return email, true
	}
	for _, candidate := range profile.Emails {
		if email, ok := cleanEmail(candidate); ok {
			return email, true
		}
	}
	return "", false
}

func cleanEmail(s string) (string, bool) {
	s = NormalizeEmail(s)
	if !IsWellFormedEmail(s) {
		return "", false
	}
	return s, true
}

func (p *YandexOAuthProvider) observe(operation string, start time.Time, err error) {
	if p.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.metrics.RecordUpstreamLatency(operation, outcome, time.Since(start))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
