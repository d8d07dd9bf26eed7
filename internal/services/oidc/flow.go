package oidc

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	logpkg "github.com/forumkit/discussion-board/internal/logger"
	"github.com/forumkit/discussion-board/internal/models"
	"github.com/forumkit/discussion-board/internal/session"
)

const (
	// pendingAuthTTL bounds how long a login attempt may wait for its
	// callback. An attempt whose callback never arrives simply expires.
	pendingAuthTTL = 10 * time.Minute

	exchangeTimeout = 30 * time.Second
)

// LoginAttempt is the result of initiating a login: the opaque attempt ID to
// deliver as a short-lived cookie, and the provider URL to redirect to
type LoginAttempt struct {
	ID          string
	RedirectURL string
}

// Flow drives the three-leg redirect protocol against the discovered issuer.
// It returns values rather than writing responses; the HTTP layer translates
// outcomes into redirects.
type Flow struct {
	issuer *Issuer
	store  session.Store
	logger *zap.Logger
}

// NewFlow creates an authentication flow controller
func NewFlow(issuer *Issuer, store session.Store, logger *zap.Logger) *Flow {
	return &Flow{issuer: issuer, store: store, logger: logger}
}

// Begin starts a login attempt: it stores a fresh state and nonce keyed by a
// random attempt ID scoped to this browser, and returns the authorization
// URL. Concurrent attempts from different browsers get distinct IDs and
// never collide.
func (f *Flow) Begin(ctx context.Context) (*LoginAttempt, error) {
	state, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}
	nonce, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	attemptID, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate attempt id: %w", err)
	}

	pending := session.PendingAuth{
		State:     state,
		Nonce:     nonce,
		CreatedAt: time.Now(),
	}
	if err := f.store.SavePendingAuth(ctx, attemptID, pending, pendingAuthTTL); err != nil {
		return nil, err
	}

	return &LoginAttempt{
		ID:          attemptID,
		RedirectURL: f.issuer.AuthCodeURL(state, nonce),
	}, nil
}

// Complete finishes a login attempt. The pending state is consumed
// atomically before anything else, so replaying a callback fails with
// ErrInvalidState. State mismatch is ErrInvalidState; any provider or
// verification failure is an *ExchangeError. Provider responses are
// untrusted input until the ID token verifies; malformed claims fail closed.
func (f *Flow) Complete(ctx context.Context, attemptID, state, code string) (models.Identity, error) {
	if attemptID == "" || state == "" {
		return models.Identity{}, ErrInvalidState
	}

	pending, err := f.store.ConsumePendingAuth(ctx, attemptID)
	if errors.Is(err, session.ErrNotFound) {
		return models.Identity{}, ErrInvalidState
	}
	if err != nil {
		return models.Identity{}, err
	}

	if pending.State != state {
		f.logger.Warn("oidc_state_mismatch")
		return models.Identity{}, ErrInvalidState
	}

	if code == "" {
		return models.Identity{}, &ExchangeError{Stage: "callback", Err: errors.New("missing authorization code")}
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	token, err := f.issuer.Exchange(exchangeCtx, code)
	if err != nil {
		return models.Identity{}, &ExchangeError{Stage: "code exchange", Err: err}
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return models.Identity{}, &ExchangeError{Stage: "token response", Err: errors.New("no id_token in response")}
	}

	idToken, err := f.issuer.VerifyIDToken(exchangeCtx, rawIDToken)
	if err != nil {
		return models.Identity{}, &ExchangeError{Stage: "id_token verification", Err: err}
	}

	if idToken.Nonce != pending.Nonce {
		f.logger.Warn("oidc_nonce_mismatch", zap.String("subject", logpkg.SanitizeSubject(idToken.Subject)))
		return models.Identity{}, ErrInvalidState
	}

	var claims struct {
		PreferredUsername string `json:"preferred_username"`
		Name              string `json:"name"`
		Email             string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return models.Identity{}, &ExchangeError{Stage: "claims parsing", Err: err}
	}

	identity := models.Identity{
		Subject:  idToken.Subject,
		Username: claims.PreferredUsername,
		Name:     claims.Name,
		Email:    claims.Email,
	}
	if err := identity.Validate(); err != nil {
		return models.Identity{}, &ExchangeError{Stage: "claims validation", Err: err}
	}

	f.logger.Info("login_completed", zap.String("subject", logpkg.SanitizeSubject(identity.Subject)))

	return identity, nil
}

// randomToken returns an unguessable 128-bit value in hex
func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
