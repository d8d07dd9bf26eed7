package session

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
)

// ErrNoSession is the expected negative result of Resolve: the token maps to
// no live session. It is not a store failure.
var ErrNoSession = errors.New("session: no active session")

// Manager serializes authenticated identities into TTL-bounded session
// records keyed by opaque tokens
type Manager struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewManager creates a session manager backed by the given store
func NewManager(store Store, ttl time.Duration, logger *zap.Logger) *Manager {
	return &Manager{store: store, ttl: ttl, logger: logger}
}

// TTL returns the configured session lifetime
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create persists a new session for the identity and returns the opaque
// token to be delivered as an HTTP cookie
func (m *Manager) Create(ctx context.Context, identity models.Identity) (string, error) {
	if err := identity.Validate(); err != nil {
		return "", fmt.Errorf("refusing to create session: %w", err)
	}

	token, err := newToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now()
	rec := Record{
		Identity:  identity,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	if err := m.store.SaveSession(ctx, token, rec, m.ttl); err != nil {
		return "", err
	}

	m.logger.Info("session_created",
		zap.String("subject", logpkg.SanitizeSubject(identity.Subject)),
		zap.Time("expires_at", rec.ExpiresAt),
	)

	return token, nil
}

// Resolve restores the identity for a session token. ErrNoSession means the
// token is unknown or expired; any other error is a store failure.
func (m *Manager) Resolve(ctx context.Context, token string) (models.Identity, error) {
	if token == "" {
		return models.Identity{}, ErrNoSession
	}

	rec, err := m.store.GetSession(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return models.Identity{}, ErrNoSession
	}
	if err != nil {
		return models.Identity{}, err
	}

	return rec.Identity, nil
}

// Destroy deletes the session; destroying an absent session succeeds
func (m *Manager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.store.DeleteSession(ctx, token)
}

// newToken returns an unguessable 256-bit token in hex
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
