package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Sessions do not survive a
// restart and are never shared across instances, so it is only suitable for
// single-instance development deployments and must be requested explicitly
// via SESSION_STORE=memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	pending  map[string]memoryPending
	now      func() time.Time
}

type memoryEntry struct {
	rec       Record
	expiresAt time.Time
}

type memoryPending struct {
	pending   PendingAuth
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		pending:  make(map[string]memoryPending),
		now:      time.Now,
	}
}

// SaveSession stores a session record with the given TTL
func (s *MemoryStore) SaveSession(ctx context.Context, token string, rec Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = memoryEntry{rec: rec, expiresAt: s.now().Add(ttl)}
	return nil
}

// GetSession retrieves a session record; ErrNotFound if missing or expired
func (s *MemoryStore) GetSession(ctx context.Context, token string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[token]
	if !ok {
		return Record{}, ErrNotFound
	}
	if s.now().After(entry.expiresAt) {
		delete(s.sessions, token)
		return Record{}, ErrNotFound
	}
	return entry.rec, nil
}

// DeleteSession removes a session record; idempotent
func (s *MemoryStore) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

// SavePendingAuth stores per-login-attempt state with a short TTL
func (s *MemoryStore) SavePendingAuth(ctx context.Context, id string, pending PendingAuth, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[id] = memoryPending{pending: pending, expiresAt: s.now().Add(ttl)}
	return nil
}

// ConsumePendingAuth reads and deletes the pending state under the store
// lock, so a state value can never be redeemed twice
func (s *MemoryStore) ConsumePendingAuth(ctx context.Context, id string) (PendingAuth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.pending[id]
	if !ok {
		return PendingAuth{}, ErrNotFound
	}
	delete(s.pending, id)
	if s.now().After(entry.expiresAt) {
		return PendingAuth{}, ErrNotFound
	}
	return entry.pending, nil
}

// Ping always succeeds for the in-memory store
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*RedisStore)(nil)
