package identity

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/forumkit/discussion-board/internal/models"
)

// fakeUserStore mimics the atomic upsert semantics of the database: first
// write creates the record, later writes refresh the name and keep roles
type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*models.User)}
}

func (s *fakeUserStore) Upsert(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if ok {
		existing.Name = user.Name
		existing.UpdatedAt = time.Now()
		user.Roles = append([]string(nil), existing.Roles...)
		user.CreatedAt = existing.CreatedAt
		return nil
	}

	now := time.Now()
	stored := &models.User{
		ID:        user.ID,
		Name:      user.Name,
		Roles:     append([]string(nil), user.Roles...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.users[user.ID] = stored
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (s *fakeUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[id]
	return user, nil
}

func (s *fakeUserStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func TestReconcileFirstLogin(t *testing.T) {
	t.Parallel()

	store := newFakeUserStore()
	reconciler := NewReconciler(store, zap.NewNop())

	identity := models.Identity{Subject: "subject-1", Name: "Alice Example", Username: "alice"}
	user, err := reconciler.Reconcile(context.Background(), identity)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if user.ID != "subject-1" {
		t.Errorf("expected user keyed by subject, got %s", user.ID)
	}
	if user.Name != "Alice Example" {
		t.Errorf("expected name Alice Example, got %s", user.Name)
	}
	if len(user.Roles) != 1 || user.Roles[0] != models.RoleUser {
		t.Errorf("expected default role set, got %v", user.Roles)
	}
}

func TestReconcileRepeatLoginKeepsRoles(t *testing.T) {
	t.Parallel()

	store := newFakeUserStore()
	reconciler := NewReconciler(store, zap.NewNop())
	ctx := context.Background()

	if _, err := reconciler.Reconcile(ctx, models.Identity{Subject: "subject-1", Name: "Alice"}); err != nil {
		t.Fatalf("first Reconcile failed: %v", err)
	}

	// Grant a role out of band, then log in again with a changed name
	stored, _ := store.GetByID(ctx, "subject-1")
	stored.Roles = append(stored.Roles, "moderator")

	user, err := reconciler.Reconcile(ctx, models.Identity{Subject: "subject-1", Name: "Alice Renamed"})
	if err != nil {
		t.Fatalf("second Reconcile failed: %v", err)
	}

	if user.Name != "Alice Renamed" {
		t.Errorf("expected refreshed name, got %s", user.Name)
	}
	if len(user.Roles) != 2 {
		t.Errorf("expected locally granted roles to survive login, got %v", user.Roles)
	}
	if store.count() != 1 {
		t.Errorf("expected one record per subject, got %d", store.count())
	}
}

func TestReconcileFallsBackToUsername(t *testing.T) {
	t.Parallel()

	store := newFakeUserStore()
	reconciler := NewReconciler(store, zap.NewNop())

	user, err := reconciler.Reconcile(context.Background(), models.Identity{Subject: "subject-1", Username: "alice"})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if user.Name != "alice" {
		t.Errorf("expected username fallback, got %s", user.Name)
	}
}

func TestReconcileConcurrentSameSubject(t *testing.T) {
	t.Parallel()

	store := newFakeUserStore()
	reconciler := NewReconciler(store, zap.NewNop())
	identity := models.Identity{Subject: "subject-1", Name: "Alice"}

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reconciler.Reconcile(context.Background(), identity); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Reconcile failed: %v", err)
	}
	if store.count() != 1 {
		t.Errorf("expected exactly one record for the subject, got %d", store.count())
	}
}
