package database

import (
	"context"

	"github.com/google/uuid"

	"github.com/forumkit/discussion-board/internal/models"
)

// UserStore defines the interface for user repository operations
// This interface enables better testability by allowing mock implementations
type UserStore interface {
	Upsert(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// PostStore defines the interface for post repository operations
type PostStore interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	List(ctx context.Context, limit int) ([]*models.Post, error)
}

// Ensure concrete types implement the interfaces
var (
	_ UserStore = (*UserRepository)(nil)
	_ PostStore = (*PostRepository)(nil)
)
