package queue

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of board event
type EventType string

const (
	// EventTypePostCreated is published when a post is created
	EventTypePostCreated EventType = "post_created"
	// EventTypeUserFirstLogin is published when a subject logs in for the first time
	EventTypeUserFirstLogin EventType = "user_first_login"
)

// Event is a board event published for downstream consumers (feeds,
// moderation tooling, notifications)
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Type      EventType      `json:"type"`
	Subject   string         `json:"subject"`
	PostID    *uuid.UUID     `json:"post_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewEvent creates a new event
func NewEvent(eventType EventType, subject string, postID *uuid.UUID) *Event {
	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Subject:   subject,
		PostID:    postID,
		Metadata:  make(map[string]any),
		CreatedAt: time.Now(),
	}
}
