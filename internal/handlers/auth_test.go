package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/forumkit/discussion-board/internal/middleware"
	"github.com/forumkit/discussion-board/internal/models"
	"github.com/forumkit/discussion-board/internal/services/oidc"
)

type stubFlow struct {
	attempt     *oidc.LoginAttempt
	beginErr    error
	identity    models.Identity
	completeErr error

	gotAttemptID string
	gotState     string
	gotCode      string
}

func (s *stubFlow) Begin(ctx context.Context) (*oidc.LoginAttempt, error) {
	return s.attempt, s.beginErr
}

func (s *stubFlow) Complete(ctx context.Context, attemptID, state, code string) (models.Identity, error) {
	s.gotAttemptID = attemptID
	s.gotState = state
	s.gotCode = code
	return s.identity, s.completeErr
}

type stubSessions struct {
	token      string
	createErr  error
	destroyErr error
	destroyed  []string
	ttl        time.Duration
}

func (s *stubSessions) Create(ctx context.Context, identity models.Identity) (string, error) {
	return s.token, s.createErr
}

func (s *stubSessions) Destroy(ctx context.Context, token string) error {
	s.destroyed = append(s.destroyed, token)
	return s.destroyErr
}

func (s *stubSessions) TTL() time.Duration {
	if s.ttl == 0 {
		return time.Hour
	}
	return s.ttl
}

type stubReconciler struct {
	user *models.User
	err  error
}

func (s *stubReconciler) Reconcile(ctx context.Context, identity models.Identity) (*models.User, error) {
	return s.user, s.err
}

type stubUsers struct {
	user *models.User
	err  error
}

func (s *stubUsers) Upsert(ctx context.Context, user *models.User) error { return nil }

func (s *stubUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.user, s.err
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginRedirectsToProvider(t *testing.T) {
	t.Parallel()

	flow := &stubFlow{attempt: &oidc.LoginAttempt{
		ID:          "attempt-1",
		RedirectURL: "https://idp.example.com/auth?state=abc",
	}}
	h := NewAuthHandler(flow, &stubSessions{}, &stubReconciler{}, &stubUsers{}, "http://localhost:8095", zap.NewNop())

	req := httptest.NewRequest("GET", "/api/login", nil)
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://idp.example.com/auth?state=abc" {
		t.Errorf("unexpected redirect target: %s", loc)
	}

	cookie := cookieByName(rec.Result().Cookies(), loginAttemptCookie)
	if cookie == nil {
		t.Fatal("expected login attempt cookie to be set")
	}
	if cookie.Value != "attempt-1" {
		t.Errorf("expected attempt-1, got %s", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("expected HttpOnly cookie")
	}
}

func TestLoginBeginFailure(t *testing.T) {
	t.Parallel()

	flow := &stubFlow{beginErr: errors.New("store down")}
	h := NewAuthHandler(flow, &stubSessions{}, &stubReconciler{}, &stubUsers{}, "http://localhost:8095", zap.NewNop())

	req := httptest.NewRequest("GET", "/api/login", nil)
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestLoginCallbackHappyPath(t *testing.T) {
	t.Parallel()

	flow := &stubFlow{identity: models.Identity{Subject: "subject-1", Name: "Alice"}}
	sessions := &stubSessions{token: "session-token", ttl: 14 * 24 * time.Hour}
	reconciler := &stubReconciler{user: &models.User{
		ID:    "subject-1",
		Name:  "Alice",
		Roles: []string{"user", "moderator"},
	}}
	h := NewAuthHandler(flow, sessions, reconciler, &stubUsers{}, "http://localhost:8095", zap.NewNop())

	req := httptest.NewRequest("GET", "/api/login-callback?state=abc&code=xyz", nil)
	req.AddCookie(&http.Cookie{Name: loginAttemptCookie, Value: "attempt-1"})
	rec := httptest.NewRecorder()
	h.LoginCallback(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != homePath {
		t.Errorf("expected redirect home, got %s", loc)
	}

	if flow.gotAttemptID != "attempt-1" || flow.gotState != "abc" || flow.gotCode != "xyz" {
		t.Errorf("flow received wrong inputs: %s %s %s", flow.gotAttemptID, flow.gotState, flow.gotCode)
	}

	sessionCookie := cookieByName(rec.Result().Cookies(), middleware.SessionCookieName)
	if sessionCookie == nil {
		t.Fatal("expected session cookie to be set")
	}
	if sessionCookie.Value != "session-token" {
		t.Errorf("expected session-token, got %s", sessionCookie.Value)
	}
	if sessionCookie.MaxAge != int((14 * 24 * time.Hour).Seconds()) {
		t.Errorf("expected cookie lifetime to match session TTL, got %d", sessionCookie.MaxAge)
	}
	if !sessionCookie.HttpOnly {
		t.Error("expected HttpOnly session cookie")
	}

	attemptCookie := cookieByName(rec.Result().Cookies(), loginAttemptCookie)
	if attemptCookie == nil || attemptCookie.MaxAge >= 0 {
		t.Error("expected login attempt cookie to be cleared")
	}
}

func TestLoginCallbackRejectedAttemptsRedirectToLogin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{name: "invalid state", err: oidc.ErrInvalidState},
		{name: "exchange failure", err: &oidc.ExchangeError{Stage: "code exchange", Err: errors.New("invalid_grant")}},
		{name: "wrapped invalid state", err: fmt.Errorf("checking state: %w", oidc.ErrInvalidState)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flow := &stubFlow{completeErr: tt.err}
			sessions := &stubSessions{token: "session-token"}
			h := NewAuthHandler(flow, sessions, &stubReconciler{}, &stubUsers{}, "http://localhost:8095", zap.NewNop())

			req := httptest.NewRequest("GET", "/api/login-callback?state=forged&code=xyz", nil)
			req.AddCookie(&http.Cookie{Name: loginAttemptCookie, Value: "attempt-1"})
			rec := httptest.NewRecorder()
			h.LoginCallback(rec, req)

			if rec.Code != http.StatusFound {
				t.Fatalf("expected 302, got %d", rec.Code)
			}
			if loc := rec.Header().Get("Location"); loc != loginPath {
				t.Errorf("expected redirect to %s, got %s", loginPath, loc)
			}
			if cookieByName(rec.Result().Cookies(), middleware.SessionCookieName) != nil {
				t.Error("expected no session cookie on rejected login")
			}
		})
	}
}

func TestLoginCallbackStoreFailure(t *testing.T) {
	t.Parallel()

	flow := &stubFlow{completeErr: errors.New("redis: connection refused")}
	h := NewAuthHandler(flow, &stubSessions{}, &stubReconciler{}, &stubUsers{}, "http://localhost:8095", zap.NewNop())

	req := httptest.NewRequest("GET", "/api/login-callback?state=abc&code=xyz", nil)
	req.AddCookie(&http.Cookie{Name: loginAttemptCookie, Value: "attempt-1"})
	rec := httptest.NewRecorder()
	h.LoginCallback(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for store failure, got %d", rec.Code)
	}
}

func TestLoginCallbackSessionCreateFailure(t *testing.T) {
	t.Parallel()

	flow := &stubFlow{identity: models.Identity{Subject: "subject-1"}}
	sessions := &stubSessions{createErr: errors.New("redis: connection refused")}
	reconciler := &stubReconciler{user: &models.User{ID: "subject-1", Roles: []string{"user"}}}
	h := NewAuthHandler(flow, sessions, reconciler, &stubUsers{}, "http://localhost:8095", zap.NewNop())

	req := httptest.NewRequest("GET", "/api/login-callback?state=abc&code=xyz", nil)
	req.AddCookie(&http.Cookie{Name: loginAttemptCookie, Value: "attempt-1"})
	rec := httptest.NewRecorder()
	h.LoginCallback(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	t.Parallel()

	sessions := &stubSessions{}
	h := NewAuthHandler(&stubFlow{}, sessions, &stubReconciler{}, &stubUsers{}, "http://localhost:8095", zap.NewNop())

	req := httptest.NewRequest("POST", "/api/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-token"})
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if len(sessions.destroyed) != 1 || sessions.destroyed[0] != "session-token" {
		t.Errorf("expected session to be destroyed, got %v", sessions.destroyed)
	}

	cookie := cookieByName(rec.Result().Cookies(), middleware.SessionCookieName)
	if cookie == nil || cookie.MaxAge >= 0 {
		t.Error("expected session cookie to be cleared")
	}
}

func TestLogoutWithoutSession(t *testing.T) {
	t.Parallel()

	sessions := &stubSessions{}
	h := NewAuthHandler(&stubFlow{}, sessions, &stubReconciler{}, &stubUsers{}, "http://localhost:8095", zap.NewNop())

	req := httptest.NewRequest("POST", "/api/logout", nil)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusFound {
		t.Errorf("expected 302 even without a session, got %d", rec.Code)
	}
	if len(sessions.destroyed) != 0 {
		t.Errorf("expected no destroy calls, got %v", sessions.destroyed)
	}
}

func TestGetUser(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		users      *stubUsers
		identity   *models.Identity
		wantStatus int
	}{
		{
			name:       "found",
			users:      &stubUsers{user: &models.User{ID: "subject-1", Name: "Alice", Roles: []string{"user"}}},
			identity:   &models.Identity{Subject: "subject-1"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "no record",
			users:      &stubUsers{err: fmt.Errorf("user not found: %w", sql.ErrNoRows)},
			identity:   &models.Identity{Subject: "subject-1"},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "database failure",
			users:      &stubUsers{err: errors.New("connection refused")},
			identity:   &models.Identity{Subject: "subject-1"},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "no identity in context",
			users:      &stubUsers{},
			identity:   nil,
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewAuthHandler(&stubFlow{}, &stubSessions{}, &stubReconciler{}, tt.users, "http://localhost:8095", zap.NewNop())

			req := httptest.NewRequest("GET", "/api/user", nil)
			if tt.identity != nil {
				req = req.WithContext(middleware.SetIdentityInContext(req.Context(), *tt.identity))
			}
			rec := httptest.NewRecorder()
			h.GetUser(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}
