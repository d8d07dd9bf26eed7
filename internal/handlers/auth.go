package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/forumkit/discussion-board/internal/database"
	"github.com/forumkit/discussion-board/internal/middleware"
	"github.com/forumkit/discussion-board/internal/models"
	"github.com/forumkit/discussion-board/internal/request"
	"github.com/forumkit/discussion-board/internal/services/oidc"
)

const (
	// loginAttemptCookie correlates the redirect to the provider with the
	// eventual callback for this browser
	loginAttemptCookie = "login_attempt"

	loginAttemptMaxAge = 600 // seconds, matches the pending-state TTL

	loginPath = "/api/login"
	homePath  = "/"
)

// LoginFlow drives the redirect login protocol
type LoginFlow interface {
	Begin(ctx context.Context) (*oidc.LoginAttempt, error)
	Complete(ctx context.Context, attemptID, state, code string) (models.Identity, error)
}

// SessionWriter creates and destroys sessions
type SessionWriter interface {
	Create(ctx context.Context, identity models.Identity) (string, error)
	Destroy(ctx context.Context, token string) error
	TTL() time.Duration
}

// IdentityReconciler merges a verified identity into the local user record
type IdentityReconciler interface {
	Reconcile(ctx context.Context, identity models.Identity) (*models.User, error)
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	flow          LoginFlow
	sessions      SessionWriter
	reconciler    IdentityReconciler
	users         database.UserStore
	secureCookies bool
	logger        *zap.Logger
}

// NewAuthHandler creates a new auth handler. secureCookies should be true
// whenever the service is reached over HTTPS.
func NewAuthHandler(flow LoginFlow, sessions SessionWriter, reconciler IdentityReconciler, users database.UserStore, baseURL string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		flow:          flow,
		sessions:      sessions,
		reconciler:    reconciler,
		users:         users,
		secureCookies: strings.HasPrefix(baseURL, "https"),
		logger:        logger,
	}
}

// RegisterPublicRoutes registers the login endpoints on the given router
func (h *AuthHandler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/login", h.Login).Methods("GET")
	r.HandleFunc("/login-callback", h.LoginCallback).Methods("GET")
	r.HandleFunc("/logout", h.Logout).Methods("POST")
}

// Login initiates the redirect login: it stores a fresh pending attempt,
// scopes it to this browser via a short-lived cookie, and redirects to the
// provider's authorization endpoint
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.flow.Begin(r.Context())
	if err != nil {
		h.logger.Error("login_begin_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Login unavailable", "Failed to initiate login")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     loginAttemptCookie,
		Value:    attempt.ID,
		Path:     "/api",
		MaxAge:   loginAttemptMaxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, attempt.RedirectURL, http.StatusFound)
}

// LoginCallback finishes the login. Failed attempts (forged or replayed
// state, provider errors) redirect back to the login entry point; only store
// failures surface as errors.
func (h *AuthHandler) LoginCallback(w http.ResponseWriter, r *http.Request) {
	attemptID := ""
	if cookie, err := r.Cookie(loginAttemptCookie); err == nil {
		attemptID = cookie.Value
	}

	query := r.URL.Query()
	identity, err := h.flow.Complete(r.Context(), attemptID, query.Get("state"), query.Get("code"))

	var exchangeErr *oidc.ExchangeError
	switch {
	case err == nil:
	case errors.Is(err, oidc.ErrInvalidState):
		h.logger.Warn("login_rejected_invalid_state")
		h.clearCookie(w, loginAttemptCookie, "/api")
		http.Redirect(w, r, loginPath, http.StatusFound)
		return
	case errors.As(err, &exchangeErr):
		h.logger.Warn("login_exchange_failed", zap.Error(err))
		h.clearCookie(w, loginAttemptCookie, "/api")
		http.Redirect(w, r, loginPath, http.StatusFound)
		return
	default:
		h.logger.Error("login_callback_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Login unavailable", "Failed to complete login")
		return
	}

	user, err := h.reconciler.Reconcile(r.Context(), identity)
	if err != nil {
		h.logger.Error("identity_reconcile_failed",
			zap.String("subject", identity.Subject),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusInternalServerError, "Login unavailable", "Failed to record user")
		return
	}
	identity.Roles = user.Roles

	token, err := h.sessions.Create(r.Context(), identity)
	if err != nil {
		h.logger.Error("session_create_failed",
			zap.String("subject", identity.Subject),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusInternalServerError, "Login unavailable", "Failed to create session")
		return
	}

	h.clearCookie(w, loginAttemptCookie, "/api")
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, homePath, http.StatusFound)
}

// Logout destroys the session and clears the cookie. Logging out without a
// live session still succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		if err := h.sessions.Destroy(r.Context(), cookie.Value); err != nil {
			h.logger.Error("session_destroy_failed", zap.Error(err))
			respondJSONError(w, http.StatusInternalServerError, "Logout failed", "Failed to destroy session")
			return
		}
	}

	h.clearCookie(w, middleware.SessionCookieName, "/")
	http.Redirect(w, r, homePath, http.StatusFound)
}

// GetUser returns the current user's persisted record
func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := request.IdentityFromContext(r)
	if !ok {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "No identity in context")
		return
	}

	user, err := h.users.GetByID(r.Context(), identity.Subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondJSONError(w, http.StatusNotFound, "Not found", "No user record for this session")
			return
		}
		h.logger.Error("user_lookup_failed",
			zap.String("subject", identity.Subject),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusInternalServerError, "Database error", "Failed to load user")
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
