// Package auth はYandex OAuthログイン、許可リスト、セッション、監査ログを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/skibase/internal/model"
	"github.com/hitoshi/skibase/internal/repository"
)

// 監査ログのreason値
const (
	ReasonRedirectIssued         = "redirect_issued"
	ReasonOAuthNotConfigured     = "oauth_not_configured"
	ReasonStateIssueFailed       = "state_issue_failed"
	ReasonInvalidCallbackPayload = "invalid_callback_payload"
	ReasonProviderError          = "provider_error"
	ReasonMissingCodeOrState     = "missing_code_or_state"
	ReasonInvalidState           = "invalid_state"
	ReasonOAuthExchangeFailed    = "oauth_exchange_failed"
	ReasonMissingProfileEmail    = "missing_profile_email"
	ReasonEmailNotInAllowlist    = allowlistDenyReason
	ReasonAllowlistLookupFailed  = "allowlist_lookup_failed"
	ReasonUserRoleNotAdmin       = "user_role_not_admin"
	ReasonUserCreateFailed       = "user_create_failed"
	ReasonSessionIssueFailed     = "session_issue_failed"
	ReasonOAuthLoginSuccess      = "oauth_login_success"

	ReasonPasswordLoginSuccess = "password_login_success"
	ReasonInvalidCredentials   = "invalid_credentials"
	ReasonUserLookupFailed     = "user_lookup_failed"

	ReasonEntryUpserted    = "entry_upserted"
	ReasonEntryActivated   = "entry_activated"
	ReasonEntryDeactivated = "entry_deactivated"
)

const (
	maxIPLength        = 64
	maxUserAgentLength = 512
)

// OAuthProvider は外部IdPとの通信を抽象化する。
type OAuthProvider interface {
	// BuildAuthorizationURL は認可URLを生成する。
	BuildAuthorizationURL(state string) string
	// ExchangeCode は認可コードをアクセストークンに交換する。
	ExchangeCode(ctx context.Context, code string) (string, error)
	// FetchProfile はアクセストークンでプロフィールを取得する。
	FetchProfile(ctx context.Context, accessToken string) (*YandexProfile, error)
}

// ClientInfo は監査ログに残すリクエスト元の情報。
type ClientInfo struct {
	IP        string
	UserAgent string
}

// StartResult はログイン開始時にハンドラーへ返す値。
type StartResult struct {
	AuthorizationURL string
	State            string
}

// CallbackInput はコールバックの入力。
// RawQueryはURLのクエリ文字列をそのまま渡す。
// CookieStateはハンドラーがCookieを削除した上で取り出した値を渡す。
type CallbackInput struct {
	RawQuery    string
	CookieState string
	Client      ClientInfo
}

// CallbackResult はコールバックの判定結果。
// StatusがsuccessのときのみUserとSessionTokenが設定される。
// Reasonは監査ログ専用で、クライアントには返さない。
type CallbackResult struct {
	Status       model.AuthStatus
	Reason       string
	User         *model.User
	SessionToken string
	ExpiresAt    time.Time
}

// Admitted はログインが許可されたかを返す。
func (r *CallbackResult) Admitted() bool {
	return r.Status == model.AuthStatusSuccess
}

// LoginResult はパスワードログイン成功時の値。
type LoginResult struct {
	User         *model.User
	SessionToken string
	ExpiresAt    time.Time
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	provider  OAuthProvider
	state     *StateGuard
	sessions  *SessionCodec
	allowlist *AllowlistGate
	users     repository.UserRepository
	audit     *AuditRecorder
	stats     *StatsAggregator
}

// NewService はServiceを生成する。
// providerがnilの場合、OAuthプロバイダは未設定として扱う。
func NewService(
	provider OAuthProvider,
	state *StateGuard,
	sessions *SessionCodec,
	allowlist *AllowlistGate,
	users repository.UserRepository,
	audit *AuditRecorder,
	stats *StatsAggregator,
) *Service {
	return &Service{
		provider:  provider,
		state:     state,
		sessions:  sessions,
		allowlist: allowlist,
		users:     users,
		audit:     audit,
		stats:     stats,
	}
}

// Start はOAuthログインを開始する。
// プロバイダが未設定の場合はErrUnavailableを返し、リダイレクトは行わない。
func (s *Service) Start(ctx context.Context, client ClientInfo) (*StartResult, error) {
	if s.provider == nil {
		slog.Warn("oauth start requested but provider is not configured")
		s.record(ctx, model.ActionOAuthStart, model.AuthStatusError, ReasonOAuthNotConfigured, client, "", "")
		return nil, ErrUnavailable
	}

	state, err := s.state.Issue()
	if err != nil {
		slog.Error("failed to issue oauth state", slog.String("error", err.Error()))
		s.record(ctx, model.ActionOAuthStart, model.AuthStatusError, ReasonStateIssueFailed, client, "", "")
		return nil, err
	}
	s.record(ctx, model.ActionOAuthStart, model.AuthStatusSuccess, ReasonRedirectIssued, client, "", "")

	return &StartResult{
		AuthorizationURL: s.provider.BuildAuthorizationURL(state),
		State:            state,
	}, nil
}

// Callback はプロバイダからのコールバックを処理する。
// 判定は以下の順に行い、最初に失敗した段階で監査ログを1件書いて終了する。
//  1. プロバイダ設定
//  2. クエリの形式
//  3. プロバイダのエラー応答、code/stateの有無
//  4. stateとCookieの一致
//  5. コード交換とプロフィール取得
//  6. メールアドレスの決定
//  7. 許可リスト
//  8. 既存ユーザーの権限
//  9. ユーザー作成とセッション発行
func (s *Service) Callback(ctx context.Context, in CallbackInput) *CallbackResult {
	deny := func(reason, email string) *CallbackResult {
		return s.finishCallback(ctx, in.Client, model.AuthStatusDenied, reason, email, "")
	}
	fail := func(reason, email string) *CallbackResult {
		return s.finishCallback(ctx, in.Client, model.AuthStatusError, reason, email, "")
	}

	if s.provider == nil {
		return fail(ReasonOAuthNotConfigured, "")
	}

	params, ok := parseCallbackQuery(in.RawQuery)
	if !ok {
		return deny(ReasonInvalidCallbackPayload, "")
	}
	if params.Error != "" {
		slog.Info("oauth provider returned error",
			slog.String("provider_error", params.Error),
			slog.String("description", params.ErrorDescription),
		)
		return deny(ReasonProviderError, "")
	}
	if params.Code == "" || params.State == "" {
		return deny(ReasonMissingCodeOrState, "")
	}
	if !s.state.Validate(params.State, in.CookieState) {
		return deny(ReasonInvalidState, "")
	}

	accessToken, err := s.provider.ExchangeCode(ctx, params.Code)
	if err != nil {
		slog.Warn("oauth code exchange failed", slog.String("error", err.Error()))
		return fail(ReasonOAuthExchangeFailed, "")
	}
	profile, err := s.provider.FetchProfile(ctx, accessToken)
	if err != nil {
		slog.Warn("oauth profile fetch failed", slog.String("error", err.Error()))
		return fail(ReasonOAuthExchangeFailed, "")
	}

	// ResolvePrimaryEmailの結果は正規化済みで、以降の検索キーとしてそのまま使う
	normalized, ok := ResolvePrimaryEmail(profile)
	if !ok {
		return deny(ReasonMissingProfileEmail, "")
	}

	allowed, err := s.allowlist.IsAllowed(ctx, normalized)
	if err != nil {
		slog.Error("allowlist lookup failed", slog.String("error", err.Error()))
		return fail(ReasonAllowlistLookupFailed, normalized)
	}
	if !allowed {
		return deny(ReasonEmailNotInAllowlist, normalized)
	}

	passwordHash, err := unusablePasswordHash()
	if err != nil {
		slog.Error("failed to prepare oauth user", slog.String("error", err.Error()))
		return fail(ReasonUserCreateFailed, normalized)
	}
	user, err := s.users.FindOrCreateOAuthAdmin(ctx, normalized, passwordHash)
	if err != nil {
		slog.Error("failed to materialize oauth user", slog.String("error", err.Error()))
		return fail(ReasonUserCreateFailed, normalized)
	}
	if !user.IsAdmin() {
		// 既存の非管理者ユーザーは昇格させずに拒否する
		return s.finishCallback(ctx, in.Client, model.AuthStatusDenied, ReasonUserRoleNotAdmin, normalized, user.ID)
	}

	token, expiresAt, err := s.sessions.Issue(user)
	if err != nil {
		slog.Error("failed to issue session", slog.String("error", err.Error()))
		return s.finishCallback(ctx, in.Client, model.AuthStatusError, ReasonSessionIssueFailed, normalized, user.ID)
	}

	if err := s.allowlist.TouchUsage(ctx, normalized); err != nil {
		slog.Warn("failed to update allowlist usage",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	result := s.finishCallback(ctx, in.Client, model.AuthStatusSuccess, ReasonOAuthLoginSuccess, normalized, user.ID)
	result.User = user
	result.SessionToken = token
	result.ExpiresAt = expiresAt
	slog.Info("oauth login succeeded", slog.String("user_id", user.ID))
	return result
}

func (s *Service) finishCallback(ctx context.Context, client ClientInfo, status model.AuthStatus, reason, email, userID string) *CallbackResult {
	s.record(ctx, model.ActionOAuthCallback, status, reason, client, email, userID)
	return &CallbackResult{Status: status, Reason: reason}
}

// Logout はセッションを破棄する。トークンはサーバー側に保持しないため常に成功する。
func (s *Service) Logout() {}

// Me は検証済みセッションのペイロードを返す。
func (s *Service) Me(payload *SessionPayload) (*SessionPayload, error) {
	if payload == nil || payload.UserID == "" {
		return nil, ErrUnauthenticated
	}
	return payload, nil
}

// LoginWithPassword はメールアドレスとパスワードでログインする。
// ユーザー不在とパスワード不一致はどちらもErrUnauthenticatedとし、区別しない。
func (s *Service) LoginWithPassword(ctx context.Context, email, password string, client ClientInfo) (*LoginResult, error) {
	normalized := NormalizeEmail(email)
	if !IsWellFormedEmail(normalized) {
		return nil, fmt.Errorf("%w: email is invalid", ErrValidation)
	}
	if len([]rune(password)) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
	}

	user, err := s.users.FindByEmail(ctx, normalized)
	if err != nil {
		s.record(ctx, model.ActionPasswordLogin, model.AuthStatusError, ReasonUserLookupFailed, client, normalized, "")
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	var hash string
	if user != nil {
		hash = user.PasswordHash
	}
	if !CheckPassword(hash, password) {
		s.record(ctx, model.ActionPasswordLogin, model.AuthStatusDenied, ReasonInvalidCredentials, client, normalized, "")
		return nil, ErrUnauthenticated
	}

	token, expiresAt, err := s.sessions.Issue(user)
	if err != nil {
		s.record(ctx, model.ActionPasswordLogin, model.AuthStatusError, ReasonSessionIssueFailed, client, normalized, user.ID)
		return nil, err
	}
	s.record(ctx, model.ActionPasswordLogin, model.AuthStatusSuccess, ReasonPasswordLoginSuccess, client, normalized, user.ID)

	return &LoginResult{User: user, SessionToken: token, ExpiresAt: expiresAt}, nil
}

// ListAllowlist は許可リストの全エントリを返す。
func (s *Service) ListAllowlist(ctx context.Context) ([]model.AllowedEmail, error) {
	return s.allowlist.List(ctx)
}

// UpsertAllowlist は許可リストにエントリを追加または再有効化する。
func (s *Service) UpsertAllowlist(ctx context.Context, email string, comment *string, actor *SessionPayload, client ClientInfo) (*model.AllowedEmail, error) {
	actorID := actorUserID(actor)
	entry, err := s.allowlist.Upsert(ctx, email, comment, actorID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, model.ActionAllowlistUpsert, model.AuthStatusSuccess, ReasonEntryUpserted, client, entry.EmailNormalized, actorID)
	return entry, nil
}

// UpdateAllowlist は許可リストエントリの有効状態とコメントを更新する。
func (s *Service) UpdateAllowlist(ctx context.Context, id string, isActive bool, comment *string, actor *SessionPayload, client ClientInfo) (*model.AllowedEmail, error) {
	actorID := actorUserID(actor)
	entry, err := s.allowlist.SetActive(ctx, id, isActive, comment, actorID)
	if err != nil {
		return nil, err
	}
	reason := ReasonEntryDeactivated
	if entry.IsActive {
		reason = ReasonEntryActivated
	}
	s.record(ctx, model.ActionAllowlistUpdate, model.AuthStatusSuccess, reason, client, entry.EmailNormalized, actorID)
	return entry, nil
}

// SecuritySummary は直近hours時間のOAuthコールバック統計を返す。
func (s *Service) SecuritySummary(ctx context.Context, hours int) (*model.SecuritySummary, error) {
	return s.stats.Summarize(ctx, hours)
}

func (s *Service) record(ctx context.Context, action string, status model.AuthStatus, reason string, client ClientInfo, email, userID string) {
	s.audit.Record(ctx, model.AuthEvent{
		Action:          action,
		Status:          status,
		Reason:          reason,
		EmailNormalized: email,
		UserID:          userID,
		IP:              truncate(client.IP, maxIPLength),
		UserAgent:       truncate(client.UserAgent, maxUserAgentLength),
	})
}

func actorUserID(actor *SessionPayload) string {
	if actor == nil {
		return ""
	}
	return actor.UserID
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
