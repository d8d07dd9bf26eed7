package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/forumkit/discussion-board/internal/database"
	"github.com/forumkit/discussion-board/internal/queue"
	"github.com/forumkit/discussion-board/internal/session"
)

// HealthChecker handles health check requests
type HealthChecker struct {
	db       *database.DB
	sessions session.Store
	events   queue.Publisher
}

// NewHealthChecker creates a new health checker. events may be nil when no
// queue is configured.
func NewHealthChecker(db *database.DB, sessions session.Store, events queue.Publisher) *HealthChecker {
	return &HealthChecker{db: db, sessions: sessions, events: events}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if mode == "extended" {
		checks := make(map[string]string)

		if err := h.checkDatabase(r.Context()); err != nil {
			response.Status = "unhealthy"
			checks["database"] = "unhealthy: " + err.Error()
		} else {
			checks["database"] = "healthy"
		}

		if err := h.checkSessionStore(r.Context()); err != nil {
			response.Status = "unhealthy"
			checks["session_store"] = "unhealthy: " + err.Error()
		} else {
			checks["session_store"] = "healthy"
		}

		if h.events != nil {
			if err := h.events.HealthCheck(r.Context()); err != nil {
				response.Status = "unhealthy"
				checks["queue"] = "unhealthy: " + err.Error()
			} else {
				checks["queue"] = "healthy"
			}
		}

		response.Checks = checks

		statusCode := http.StatusOK
		if response.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(response)
		return
	}

	// Basic mode - just return that the server is running
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// checkDatabase verifies the database connection
func (h *HealthChecker) checkDatabase(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return h.db.PingContext(ctx)
}

// checkSessionStore verifies the session store connection
func (h *HealthChecker) checkSessionStore(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return h.sessions.Ping(ctx)
}
