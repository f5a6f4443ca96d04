package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"tertulia/internal/group"
	"tertulia/internal/message"
)

// ErrNotTagged is returned when a group only answers when tagged and the
// trigger text carries no mention token.
var ErrNotTagged = errors.New("this group's ai only responds when tagged")

// PersonaSource supplies a group's AI configuration and answers the
// membership question that gates every trigger
type PersonaSource interface {
	AIPersona(ctx context.Context, groupID uuid.UUID) (*group.AIPersona, error)
	IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
}

// MessageWriter persists the AI reply through the regular write path
type MessageWriter interface {
	CreateAIMessage(ctx context.Context, groupID, userID uuid.UUID, content string) (*message.Message, error)
}

// Service orchestrates one AI response: load persona, build the prompt,
// call the gateway, persist the reply.
type Service struct {
	groups   PersonaSource
	messages MessageWriter
	client   Client
	logger   *zap.Logger

	// Deduplicates concurrent triggers per (group, user): a duplicate
	// joins the in-flight call instead of racing it on the same context.
	inflight singleflight.Group
}

// NewService creates a new AI responder service
func NewService(groups PersonaSource, messages MessageWriter, client Client, logger *zap.Logger) *Service {
	return &Service{groups: groups, messages: messages, client: client, logger: logger}
}

// Respond generates and persists the AI reply for a trigger message. On any
// gateway failure no message row is created.
func (s *Service) Respond(ctx context.Context, groupID, userID uuid.UUID, triggerText string, recent []TranscriptEntry) (*message.Message, error) {
	key := groupID.String() + ":" + userID.String()

	result, err, _ := s.inflight.Do(key, func() (interface{}, error) {
		return s.respond(ctx, groupID, userID, triggerText, recent)
	})
	if err != nil {
		return nil, err
	}
	return result.(*message.Message), nil
}

func (s *Service) respond(ctx context.Context, groupID, userID uuid.UUID, triggerText string, recent []TranscriptEntry) (*message.Message, error) {
	// Membership gates the whole path: a non-member must not cost a
	// gateway call or learn a group's persona.
	isMember, err := s.groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, message.ErrNotMember
	}

	persona, err := s.groups.AIPersona(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if persona.OnlyWhenTagged && !MentionsAI(triggerText) {
		return nil, ErrNotTagged
	}

	systemPrompt := NewPromptBuilder(persona.Name, persona.SystemPrompt).
		WithTranscript(recent).
		Build()

	reply, err := s.client.CompleteWithSystem(ctx, systemPrompt, triggerText)
	if err != nil {
		s.logger.Warn("ai completion failed",
			zap.String("group_id", groupID.String()),
			zap.Error(err))
		return nil, err
	}
	if reply == "" {
		return nil, fmt.Errorf("empty completion")
	}

	msg, err := s.messages.CreateAIMessage(ctx, groupID, userID, reply)
	if err != nil {
		return nil, fmt.Errorf("failed to persist ai reply: %w", err)
	}

	s.logger.Info("ai reply persisted",
		zap.String("group_id", groupID.String()),
		zap.String("message_id", msg.ID.String()))
	return msg, nil
}
