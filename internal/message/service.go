package message

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"tertulia/internal/group"
	"tertulia/internal/profile"
	"tertulia/internal/realtime"
)

// Common errors
var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotMember       = errors.New("not a member of this group")
	ErrNotAuthorized   = errors.New("not authorized to delete this message")
	ErrEmptyContent    = errors.New("message content is required")
)

// replyPreviewLimit caps the inline preview of a replied-to message
const replyPreviewLimit = 120

// Store is the persistence contract the service depends on
type Store interface {
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*Message, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Message, error)
	Create(ctx context.Context, groupID, userID uuid.UUID, content string, isAI bool, replyToID *uuid.UUID) (*Message, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProfileDirectory resolves display identities in one batched lookup
type ProfileDirectory interface {
	GetByUserIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*profile.Profile, error)
}

// GroupDirectory answers membership questions and supplies the AI persona
type GroupDirectory interface {
	IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
	IsAdmin(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
	AIPersona(ctx context.Context, groupID uuid.UUID) (*group.AIPersona, error)
}

// Publisher pushes a change event to realtime subscribers
type Publisher interface {
	Publish(channel, event, id string)
}

// Service handles message assembly: ordered denormalized reads and the
// write path shared by humans and the AI responder.
type Service struct {
	store      Store
	profiles   ProfileDirectory
	groups     GroupDirectory
	publisher  Publisher
	mentionsAI func(string) bool
}

// NewService creates a new message service. mentionsAI reports whether a
// message tags the AI participant; it is injected to keep the trigger
// pattern in one place.
func NewService(store Store, profiles ProfileDirectory, groups GroupDirectory, publisher Publisher, mentionsAI func(string) bool) *Service {
	return &Service{
		store:      store,
		profiles:   profiles,
		groups:     groups,
		publisher:  publisher,
		mentionsAI: mentionsAI,
	}
}

// List returns a group's messages in creation order with authors and reply
// previews resolved. Member only.
func (s *Service) List(ctx context.Context, groupID, viewerID uuid.UUID) ([]*Message, error) {
	if err := s.requireMember(ctx, groupID, viewerID); err != nil {
		return nil, err
	}

	messages, err := s.store.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return messages, nil
	}

	persona, err := s.groups.AIPersona(ctx, groupID)
	if err != nil {
		return nil, err
	}

	// One batched profile lookup for the distinct author set; AI messages
	// skip it and take the group's configured persona name.
	authorIDs := distinctAuthorIDs(messages)
	profiles, err := s.profiles.GetByUserIDs(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	// One batched lookup for the distinct set of replied-to messages. Only
	// the immediate parent is resolved; chains are not followed.
	parents, err := s.store.GetByIDs(ctx, distinctReplyIDs(messages))
	if err != nil {
		return nil, err
	}

	for _, msg := range messages {
		msg.Author = s.resolveAuthor(msg, persona.Name, profiles)
		if msg.ReplyToID != nil {
			if parent, ok := parents[*msg.ReplyToID]; ok {
				msg.ReplyTo = &ReplyPreview{
					Content:    truncate(parent.Content, replyPreviewLimit),
					AuthorName: s.resolveAuthor(parent, persona.Name, profiles).DisplayName,
				}
			}
		}
	}

	return messages, nil
}

// Send appends a human message to a group. Member only.
func (s *Service) Send(ctx context.Context, groupID, userID uuid.UUID, req *SendMessageRequest) (*Message, bool, error) {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, false, err
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, false, ErrEmptyContent
	}

	var replyToID *uuid.UUID
	if req.ReplyToID != nil {
		id, err := uuid.Parse(*req.ReplyToID)
		if err != nil {
			return nil, false, ErrMessageNotFound
		}
		parent, err := s.store.GetByID(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if parent == nil || parent.GroupID != groupID {
			return nil, false, ErrMessageNotFound
		}
		replyToID = &id
	}

	msg, err := s.store.Create(ctx, groupID, userID, req.Content, false, replyToID)
	if err != nil {
		return nil, false, err
	}

	s.publisher.Publish(realtime.MessagesChannel(groupID), "message_created", msg.ID.String())
	return msg, s.mentionsAI(req.Content), nil
}

// CreateAIMessage persists an AI reply. The triggering user's account fills
// the owner column; is_ai marks the true author for display.
func (s *Service) CreateAIMessage(ctx context.Context, groupID, userID uuid.UUID, content string) (*Message, error) {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	msg, err := s.store.Create(ctx, groupID, userID, content, true, nil)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(realtime.MessagesChannel(groupID), "message_created", msg.ID.String())
	return msg, nil
}

// Delete removes a message. Authors may delete their own human messages;
// group admins may delete any message, AI messages included.
func (s *Service) Delete(ctx context.Context, groupID, actorID, messageID uuid.UUID) error {
	msg, err := s.store.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil || msg.GroupID != groupID {
		return ErrMessageNotFound
	}

	allowed := false
	if !msg.IsAI && msg.UserID != nil && *msg.UserID == actorID {
		allowed = true
	}
	if !allowed {
		isAdmin, err := s.groups.IsAdmin(ctx, groupID, actorID)
		if err != nil {
			return err
		}
		allowed = isAdmin
	}
	if !allowed {
		return ErrNotAuthorized
	}

	if err := s.store.Delete(ctx, messageID); err != nil {
		return err
	}

	s.publisher.Publish(realtime.MessagesChannel(groupID), "message_deleted", messageID.String())
	return nil
}

func (s *Service) requireMember(ctx context.Context, groupID, userID uuid.UUID) error {
	isMember, err := s.groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return ErrNotMember
	}
	return nil
}

// resolveAuthor picks the display identity for a message. is_ai wins over
// whatever sits in the owner column.
func (s *Service) resolveAuthor(msg *Message, aiName string, profiles map[uuid.UUID]*profile.Profile) *Author {
	if msg.IsAI {
		return &Author{DisplayName: aiName}
	}
	if msg.UserID != nil {
		if p, ok := profiles[*msg.UserID]; ok {
			return &Author{DisplayName: p.DisplayName, AvatarURL: p.AvatarURL}
		}
	}
	return &Author{DisplayName: "Usuario"}
}

func distinctAuthorIDs(messages []*Message) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, msg := range messages {
		if msg.IsAI || msg.UserID == nil {
			continue
		}
		if !seen[*msg.UserID] {
			seen[*msg.UserID] = true
			ids = append(ids, *msg.UserID)
		}
	}
	return ids
}

func distinctReplyIDs(messages []*Message) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, msg := range messages {
		if msg.ReplyToID == nil {
			continue
		}
		if !seen[*msg.ReplyToID] {
			seen[*msg.ReplyToID] = true
			ids = append(ids, *msg.ReplyToID)
		}
	}
	return ids
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}
