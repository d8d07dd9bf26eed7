package session

import (
	"context"
	"testing"
	"time"

	"github.com/forumkit/discussion-board/internal/models"
)

func TestMemoryStoreSessionRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	rec := Record{
		Identity:  models.Identity{Subject: "subject-1", Name: "Alice"},
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}

	if err := store.SaveSession(ctx, "token-1", rec, time.Hour); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	got, err := store.GetSession(ctx, "token-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Identity.Subject != "subject-1" {
		t.Errorf("expected subject subject-1, got %s", got.Identity.Subject)
	}
	if got.Identity.Name != "Alice" {
		t.Errorf("expected name Alice, got %s", got.Identity.Name)
	}
}

func TestMemoryStoreSessionExpiry(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	current := time.Now()
	store.now = func() time.Time { return current }

	rec := Record{Identity: models.Identity{Subject: "subject-1"}}
	if err := store.SaveSession(ctx, "token-1", rec, time.Hour); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	// Still live just before the deadline
	current = current.Add(59 * time.Minute)
	if _, err := store.GetSession(ctx, "token-1"); err != nil {
		t.Fatalf("expected live session, got %v", err)
	}

	// Gone after the deadline
	current = current.Add(2 * time.Minute)
	if _, err := store.GetSession(ctx, "token-1"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestMemoryStoreGetSessionUnknownToken(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	if _, err := store.GetSession(context.Background(), "no-such-token"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreDeleteSessionIdempotent(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	rec := Record{Identity: models.Identity{Subject: "subject-1"}}
	if err := store.SaveSession(ctx, "token-1", rec, time.Hour); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	if err := store.DeleteSession(ctx, "token-1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if err := store.DeleteSession(ctx, "token-1"); err != nil {
		t.Errorf("expected repeated delete to succeed, got %v", err)
	}
	if err := store.DeleteSession(ctx, "never-existed"); err != nil {
		t.Errorf("expected delete of unknown token to succeed, got %v", err)
	}
}

func TestMemoryStoreConsumePendingAuthSingleUse(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	pending := PendingAuth{State: "state-1", Nonce: "nonce-1", CreatedAt: time.Now()}
	if err := store.SavePendingAuth(ctx, "attempt-1", pending, 10*time.Minute); err != nil {
		t.Fatalf("SavePendingAuth failed: %v", err)
	}

	got, err := store.ConsumePendingAuth(ctx, "attempt-1")
	if err != nil {
		t.Fatalf("first consume failed: %v", err)
	}
	if got.State != "state-1" || got.Nonce != "nonce-1" {
		t.Errorf("unexpected pending auth: %+v", got)
	}

	if _, err := store.ConsumePendingAuth(ctx, "attempt-1"); err != ErrNotFound {
		t.Errorf("expected second consume to fail with ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreConsumePendingAuthExpired(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	current := time.Now()
	store.now = func() time.Time { return current }

	pending := PendingAuth{State: "state-1", Nonce: "nonce-1"}
	if err := store.SavePendingAuth(ctx, "attempt-1", pending, 10*time.Minute); err != nil {
		t.Fatalf("SavePendingAuth failed: %v", err)
	}

	current = current.Add(11 * time.Minute)
	if _, err := store.ConsumePendingAuth(ctx, "attempt-1"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for expired pending auth, got %v", err)
	}
}

func TestMemoryStoreConsumePendingAuthUnknown(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	if _, err := store.ConsumePendingAuth(context.Background(), "no-such-attempt"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
