package auth

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/skibase/internal/model"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn    func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
	findOrCreate  func(ctx context.Context, email, passwordHash string) (*model.User, error)
	upsertAdminFn func(ctx context.Context, email, passwordHash string) (*model.User, error)

	createdEmails []string
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) FindOrCreateOAuthAdmin(ctx context.Context, email, passwordHash string) (*model.User, error) {
	if m.findOrCreate != nil {
		return m.findOrCreate(ctx, email, passwordHash)
	}
	m.createdEmails = append(m.createdEmails, email)
	return &model.User{ID: "user-1", Email: email, Role: model.RoleAdmin, PasswordHash: passwordHash}, nil
}

func (m *mockUserRepo) UpsertAdmin(ctx context.Context, email, passwordHash string) (*model.User, error) {
	if m.upsertAdminFn != nil {
		return m.upsertAdminFn(ctx, email, passwordHash)
	}
	return &model.User{ID: "admin-1", Email: email, Role: model.RoleAdmin, PasswordHash: passwordHash}, nil
}

type mockAllowedEmailRepo struct {
	findFn     func(ctx context.Context, emailNormalized string) (*model.AllowedEmail, error)
	touchFn    func(ctx context.Context, emailNormalized string, usedAt time.Time) error
	upsertFn   func(ctx context.Context, email, emailNormalized string, comment, actorUserID *string) (*model.AllowedEmail, error)
	updateFn   func(ctx context.Context, id string, isActive bool, comment, actorUserID *string) (*model.AllowedEmail, error)
	listFn     func(ctx context.Context) ([]model.AllowedEmail, error)
	touched    []string
	lookupKeys []string
}

func (m *mockAllowedEmailRepo) FindByNormalized(ctx context.Context, emailNormalized string) (*model.AllowedEmail, error) {
	m.lookupKeys = append(m.lookupKeys, emailNormalized)
	if m.findFn != nil {
		return m.findFn(ctx, emailNormalized)
	}
	return nil, nil
}

func (m *mockAllowedEmailRepo) TouchLastUsed(ctx context.Context, emailNormalized string, usedAt time.Time) error {
	m.touched = append(m.touched, emailNormalized)
	if m.touchFn != nil {
		return m.touchFn(ctx, emailNormalized, usedAt)
	}
	return nil
}

func (m *mockAllowedEmailRepo) Upsert(ctx context.Context, email, emailNormalized string, comment, actorUserID *string) (*model.AllowedEmail, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, email, emailNormalized, comment, actorUserID)
	}
	return &model.AllowedEmail{ID: "entry-1", Email: email, EmailNormalized: emailNormalized, IsActive: true, Comment: comment}, nil
}

func (m *mockAllowedEmailRepo) UpdateActive(ctx context.Context, id string, isActive bool, comment, actorUserID *string) (*model.AllowedEmail, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, isActive, comment, actorUserID)
	}
	return nil, nil
}

func (m *mockAllowedEmailRepo) List(ctx context.Context) ([]model.AllowedEmail, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []model.AllowedEmail{}, nil
}

type mockAuthEventRepo struct {
	mu       sync.Mutex
	events   []model.AuthEvent
	createFn func(ctx context.Context, event *model.AuthEvent) error
	countFn  func(ctx context.Context, action string, since time.Time) ([]model.StatusReasonCount, error)
}

func (m *mockAuthEventRepo) Create(ctx context.Context, event *model.AuthEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createFn != nil {
		if err := m.createFn(ctx, event); err != nil {
			return err
		}
	}
	m.events = append(m.events, *event)
	return nil
}

func (m *mockAuthEventRepo) CountByStatusReason(ctx context.Context, action string, since time.Time) ([]model.StatusReasonCount, error) {
	if m.countFn != nil {
		return m.countFn(ctx, action, since)
	}
	return nil, nil
}

func (m *mockAuthEventRepo) recorded() []model.AuthEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.AuthEvent(nil), m.events...)
}

type mockProvider struct {
	buildURLFn     func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (string, error)
	fetchProfileFn func(ctx context.Context, accessToken string) (*YandexProfile, error)
}

func (m *mockProvider) BuildAuthorizationURL(state string) string {
	if m.buildURLFn != nil {
		return m.buildURLFn(state)
	}
	return "https://oauth.example/authorize?state=" + state
}

func (m *mockProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return "access-token", nil
}

func (m *mockProvider) FetchProfile(ctx context.Context, accessToken string) (*YandexProfile, error) {
	if m.fetchProfileFn != nil {
		return m.fetchProfileFn(ctx, accessToken)
	}
	return &YandexProfile{ID: "42", DefaultEmail: "user@corp.ru"}, nil
}

type mockMetrics struct {
	mu            sync.Mutex
	authEvents    []string
	auditFailures []string
	upstreamCalls []string
	rateLimited   []string
}

func (m *mockMetrics) RecordAuthEvent(action, status, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authEvents = append(m.authEvents, action+"/"+status+"/"+reason)
}

func (m *mockMetrics) RecordAuditWriteFailure(action string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditFailures = append(m.auditFailures, action)
}

func (m *mockMetrics) RecordUpstreamLatency(operation, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upstreamCalls = append(m.upstreamCalls, operation+"/"+outcome)
}

func (m *mockMetrics) RecordRateLimited(family string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimited = append(m.rateLimited, family)
}

type stubSanitizer struct{}

// Sanitize はテスト用に"<"以降を切り捨てる簡易実装。
func (stubSanitizer) Sanitize(raw string) string {
	for i, r := range raw {
		if r == '<' {
			return raw[:i]
		}
	}
	return raw
}
