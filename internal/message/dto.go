package message

// SendMessageRequest represents the request to post a message
type SendMessageRequest struct {
	Content   string  `json:"content" validate:"required,min=1,max=4000"`
	ReplyToID *string `json:"reply_to_id,omitempty" validate:"omitempty,uuid"`
}

// MessageResponse represents a message in API responses
type MessageResponse struct {
	ID        string        `json:"id"`
	GroupID   string        `json:"group_id"`
	UserID    *string       `json:"user_id,omitempty"`
	Content   string        `json:"content"`
	IsAI      bool          `json:"is_ai"`
	ReplyToID *string       `json:"reply_to_id,omitempty"`
	CreatedAt string        `json:"created_at"`
	Author    *Author       `json:"author,omitempty"`
	ReplyTo   *ReplyPreview `json:"reply_to,omitempty"`

	// Set on send: whether the content tags the AI participant, so the
	// caller knows to fire the responder.
	AIMentioned bool `json:"ai_mentioned,omitempty"`
}

// ToResponse converts a Message model to a MessageResponse DTO
func (m *Message) ToResponse() *MessageResponse {
	resp := &MessageResponse{
		ID:        m.ID.String(),
		GroupID:   m.GroupID.String(),
		Content:   m.Content,
		IsAI:      m.IsAI,
		CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Author:    m.Author,
		ReplyTo:   m.ReplyTo,
	}
	if m.UserID != nil {
		userID := m.UserID.String()
		resp.UserID = &userID
	}
	if m.ReplyToID != nil {
		replyToID := m.ReplyToID.String()
		resp.ReplyToID = &replyToID
	}
	return resp
}
