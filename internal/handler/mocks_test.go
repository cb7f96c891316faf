package handler

import (
	"context"
	"errors"

	"github.com/hitoshi/skibase/internal/auth"
	"github.com/hitoshi/skibase/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	startFn    func(ctx context.Context, client auth.ClientInfo) (*auth.StartResult, error)
	callbackFn func(ctx context.Context, in auth.CallbackInput) *auth.CallbackResult
	loginFn    func(ctx context.Context, email, password string, client auth.ClientInfo) (*auth.LoginResult, error)

	lastCallback *auth.CallbackInput
	logoutCalls  int
}

func (m *mockAuthService) Start(ctx context.Context, client auth.ClientInfo) (*auth.StartResult, error) {
	if m.startFn != nil {
		return m.startFn(ctx, client)
	}
	return &auth.StartResult{AuthorizationURL: "https://oauth.example/authorize?state=s1", State: "s1"}, nil
}

func (m *mockAuthService) Callback(ctx context.Context, in auth.CallbackInput) *auth.CallbackResult {
	m.lastCallback = &in
	if m.callbackFn != nil {
		return m.callbackFn(ctx, in)
	}
	return &auth.CallbackResult{Status: model.AuthStatusDenied, Reason: auth.ReasonInvalidState}
}

func (m *mockAuthService) LoginWithPassword(ctx context.Context, email, password string, client auth.ClientInfo) (*auth.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password, client)
	}
	return nil, auth.ErrUnauthenticated
}

func (m *mockAuthService) Logout() { m.logoutCalls++ }

func (m *mockAuthService) Me(payload *auth.SessionPayload) (*auth.SessionPayload, error) {
	if payload == nil {
		return nil, auth.ErrUnauthenticated
	}
	return payload, nil
}

type mockAllowlistService struct {
	listFn   func(ctx context.Context) ([]model.AllowedEmail, error)
	upsertFn func(ctx context.Context, email string, comment *string, actor *auth.SessionPayload, client auth.ClientInfo) (*model.AllowedEmail, error)
	updateFn func(ctx context.Context, id string, isActive bool, comment *string, actor *auth.SessionPayload, client auth.ClientInfo) (*model.AllowedEmail, error)
}

func (m *mockAllowlistService) ListAllowlist(ctx context.Context) ([]model.AllowedEmail, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []model.AllowedEmail{}, nil
}

func (m *mockAllowlistService) UpsertAllowlist(ctx context.Context, email string, comment *string, actor *auth.SessionPayload, client auth.ClientInfo) (*model.AllowedEmail, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, email, comment, actor, client)
	}
	return &model.AllowedEmail{ID: "entry-1", Email: email, EmailNormalized: email, IsActive: true}, nil
}

func (m *mockAllowlistService) UpdateAllowlist(ctx context.Context, id string, isActive bool, comment *string, actor *auth.SessionPayload, client auth.ClientInfo) (*model.AllowedEmail, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, isActive, comment, actor, client)
	}
	return nil, auth.ErrNotFound
}

type mockStatsService struct {
	summaryFn func(ctx context.Context, hours int) (*model.SecuritySummary, error)
}

func (m *mockStatsService) SecuritySummary(ctx context.Context, hours int) (*model.SecuritySummary, error) {
	if m.summaryFn != nil {
		return m.summaryFn(ctx, hours)
	}
	return &model.SecuritySummary{WindowHours: hours, DeniedByReason: []model.ReasonCount{}}, nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(context.Context) error { return m.err }

var errDBDown = errors.New("connection refused")
