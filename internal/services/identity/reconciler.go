package identity

import (
	"context"

	"go.uber.org/zap"

	"github.com/forumkit/discussion-board/internal/database"
	logpkg "github.com/forumkit/discussion-board/internal/logger"
	"github.com/forumkit/discussion-board/internal/models"
)

// Reconciler merges externally-asserted identity attributes into the local
// user record keyed by the provider's stable subject identifier
type Reconciler struct {
	users  database.UserStore
	logger *zap.Logger
}

// NewReconciler creates an identity reconciler
func NewReconciler(users database.UserStore, logger *zap.Logger) *Reconciler {
	return &Reconciler{users: users, logger: logger}
}

// Reconcile upserts the user record for the identity's subject. First login
// creates the record with the default role set; later logins refresh the
// display name and leave roles untouched. The upsert is atomic at the
// subject key, so concurrent logins for one subject yield exactly one
// record. Roles are not provider-asserted; elevation of specific subjects to
// a privileged role is an unresolved policy question and is deliberately not
// implemented.
func (r *Reconciler) Reconcile(ctx context.Context, identity models.Identity) (*models.User, error) {
	user := &models.User{
		ID:    identity.Subject,
		Name:  identity.DisplayName(),
		Roles: []string{models.RoleUser},
	}

	if err := r.users.Upsert(ctx, user); err != nil {
		return nil, err
	}

	r.logger.Info("identity_reconciled",
		zap.String("subject", logpkg.SanitizeSubject(user.ID)),
		zap.Strings("roles", user.Roles),
	)

	return user, nil
}
