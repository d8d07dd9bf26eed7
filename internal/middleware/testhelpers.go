package middleware

import (
	"context"

	"github.com/forumkit/discussion-board/internal/models"
	"github.com/forumkit/discussion-board/internal/request"
)

// SetIdentityInContext is a helper function for testing - attaches an
// identity the way the authorization gate does.
// This is exported so other test packages can use it
func SetIdentityInContext(ctx context.Context, identity models.Identity) context.Context {
	return request.WithIdentity(ctx, identity)
}
