package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/forumkit/discussion-board/internal/database"
	"github.com/forumkit/discussion-board/internal/models"
	"github.com/forumkit/discussion-board/internal/queue"
	"github.com/forumkit/discussion-board/internal/request"
	"github.com/forumkit/discussion-board/internal/validation"
)

// CreatePostRequest is the payload for creating a post
type CreatePostRequest struct {
	Title   string `json:"title" validate:"required,min=1,max=200"`
	Content string `json:"content" validate:"required,min=1,max=20000"`
}

// PostHandler handles post-related requests
type PostHandler struct {
	posts  database.PostStore
	events queue.Publisher
	logger *zap.Logger
}

// NewPostHandler creates a new post handler. events may be nil when no
// queue is configured.
func NewPostHandler(posts database.PostStore, events queue.Publisher, logger *zap.Logger) *PostHandler {
	return &PostHandler{
		posts:  posts,
		events: events,
		logger: logger,
	}
}

// List returns posts, newest first
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Invalid request", "limit must be an integer")
			return
		}
		limit = parsed
	}

	posts, err := h.posts.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("posts_list_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Database error", "Failed to list posts")
		return
	}

	respondJSON(w, http.StatusOK, posts)
}

// Get returns a single post by ID
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["postId"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Invalid request", "Invalid post ID")
		return
	}

	post, err := h.posts.GetByID(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			respondJSONError(w, http.StatusNotFound, "Not found", "Post not found")
			return
		}
		h.logger.Error("post_get_failed",
			zap.String("post_id", id.String()),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusInternalServerError, "Database error", "Failed to get post")
		return
	}

	respondJSON(w, http.StatusOK, post)
}

// Create creates a post owned by the authenticated user
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := request.IdentityFromContext(r)
	if !ok {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "No identity in context")
		return
	}

	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Invalid request", "Invalid JSON body")
		return
	}

	req.Title = validation.SanitizeText(req.Title)
	req.Content = validation.SanitizeText(req.Content)

	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	post := &models.Post{
		ID:      uuid.New(),
		UserID:  identity.Subject,
		Title:   req.Title,
		Content: req.Content,
	}

	if err := h.posts.Create(r.Context(), post); err != nil {
		h.logger.Error("post_create_failed",
			zap.String("subject", identity.Subject),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusInternalServerError, "Database error", "Failed to create post")
		return
	}

	h.publishPostCreated(r.Context(), identity.Subject, post.ID)

	respondJSON(w, http.StatusCreated, post)
}

// publishPostCreated emits a post_created event. Publish failures are logged
// and do not fail the request.
func (h *PostHandler) publishPostCreated(ctx context.Context, subject string, postID uuid.UUID) {
	if h.events == nil {
		return
	}

	event := queue.NewEvent(queue.EventTypePostCreated, subject, &postID)
	if err := h.events.Publish(ctx, event); err != nil {
		h.logger.Warn("event_publish_failed",
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
	}
}
