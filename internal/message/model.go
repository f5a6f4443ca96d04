package message

import (
	"time"

	"github.com/google/uuid"
)

// Message represents a chat message. Messages are immutable once created;
// the only mutation is a hard delete. For AI messages the user_id column
// holds the triggering user's account (the store requires an owner) but
// is_ai is authoritative for display attribution.
type Message struct {
	ID        uuid.UUID  `json:"id"`
	GroupID   uuid.UUID  `json:"group_id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	Content   string     `json:"content"`
	IsAI      bool       `json:"is_ai"`
	ReplyToID *uuid.UUID `json:"reply_to_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	// Denormalized for display, not stored
	Author  *Author       `json:"author,omitempty"`
	ReplyTo *ReplyPreview `json:"reply_to,omitempty"`
}

// Author is a message's resolved display identity
type Author struct {
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

// ReplyPreview is the inline preview of a message's immediate parent.
// Reply chains are never resolved recursively.
type ReplyPreview struct {
	Content    string `json:"content"`
	AuthorName string `json:"author_name"`
}
