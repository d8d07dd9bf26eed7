package session

import (
	"context"
	"errors"
	"time"

	"github.com/forumkit/discussion-board/internal/models"
)

// ErrNotFound is returned by store reads when no record exists for the key
// or the record has expired
var ErrNotFound = errors.New("session: not found")

// Record is the durable state behind an active session. The identity is the
// verified claim set captured at login; the store owns expiry.
type Record struct {
	Identity  models.Identity `json:"identity"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// PendingAuth is the per-login-attempt state created when a login is
// initiated and consumed exactly once on the matching callback
type PendingAuth struct {
	State     string    `json:"state"`
	Nonce     string    `json:"nonce"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists sessions and pending login attempts. Implementations must
// give ConsumePendingAuth atomic read-and-delete semantics so a state value
// can never be redeemed twice.
type Store interface {
	SaveSession(ctx context.Context, token string, rec Record, ttl time.Duration) error
	GetSession(ctx context.Context, token string) (Record, error)
	DeleteSession(ctx context.Context, token string) error

	SavePendingAuth(ctx context.Context, id string, pending PendingAuth, ttl time.Duration) error
	ConsumePendingAuth(ctx context.Context, id string) (PendingAuth, error)

	Ping(ctx context.Context) error
	Close() error
}
