package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	logpkg "github.com/forumkit/discussion-board/internal/logger"
	"github.com/forumkit/discussion-board/internal/models"
	"github.com/forumkit/discussion-board/internal/request"
	"github.com/forumkit/discussion-board/internal/session"
)

// SessionCookieName is the cookie carrying the opaque session token. The
// cookie is the sole authentication credential for requests.
const SessionCookieName = "session"

// SessionResolver restores an identity from a session token
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (models.Identity, error)
}

// Auth creates the authorization gate: it resolves the session cookie and
// either admits the request with the identity attached to the context, or
// rejects it. Missing or expired sessions are 401; an unreachable session
// store is 500, never a silent unauthenticated pass-through.
func Auth(sessions SessionResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			identity, err := sessions.Resolve(r.Context(), cookie.Value)
			if errors.Is(err, session.ErrNoSession) {
				respondError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if err != nil {
				logger.Error("session_store_unavailable", zap.String("error", logpkg.SanitizeError(err)))
				respondError(w, http.StatusInternalServerError, "Session store unavailable")
				return
			}

			ctx := request.WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success": false,
		"error":   message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		_ = err
	}
}
