package group

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"tertulia/internal/realtime"
)

// Common errors
var (
	ErrGroupNotFound       = errors.New("group not found")
	ErrInvalidAccessType   = errors.New("access type must be open or approval_required")
	ErrGroupOpen           = errors.New("group is open: join it directly")
	ErrMemberNotFound      = errors.New("member not found")
	ErrMemberAlreadyExists = errors.New("user is already a member of this group")
	ErrRequestPending      = errors.New("an access request is already pending for this group")
	ErrRequestNotFound     = errors.New("access request not found")
	ErrRequestNotPending   = errors.New("access request has already been reviewed")
	ErrNotAuthorized       = errors.New("not authorized to perform this action")
	ErrApprovalRequired    = errors.New("this group requires an approved access request to join")
	ErrLastAdmin           = errors.New("a group must keep at least one admin")
)

// Store is the persistence contract the service depends on
type Store interface {
	Create(ctx context.Context, creatorID uuid.UUID, req *CreateGroupRequest) (*Group, error)
	GetByID(ctx context.Context, id, viewerID uuid.UUID) (*Group, error)
	List(ctx context.Context, viewerID uuid.UUID) ([]*Group, error)
	Update(ctx context.Context, id uuid.UUID, req *UpdateGroupRequest) (*Group, error)
	GetMember(ctx context.Context, groupID, userID uuid.UUID) (*Member, error)
	AddMember(ctx context.Context, groupID, userID uuid.UUID, role MemberRole) (*Member, error)
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]*Member, error)
	UpdateMemberRole(ctx context.Context, groupID, userID uuid.UUID, role MemberRole) (*Member, error)
	RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error
	CountAdmins(ctx context.Context, groupID uuid.UUID) (int, error)
	CountMembers(ctx context.Context, groupID uuid.UUID) (int, error)
	CreateAccessRequest(ctx context.Context, groupID, userID uuid.UUID, message *string) (*AccessRequest, error)
	GetAccessRequest(ctx context.Context, requestID uuid.UUID) (*AccessRequest, error)
	ListPendingRequests(ctx context.Context, groupID uuid.UUID) ([]*AccessRequest, error)
	ApproveRequest(ctx context.Context, requestID, reviewerID uuid.UUID) (*AccessRequest, error)
	RejectRequest(ctx context.Context, requestID, reviewerID uuid.UUID) (*AccessRequest, error)
}

// Notifier delivers a notification to a user about a membership decision
type Notifier interface {
	Notify(ctx context.Context, recipientID uuid.UUID, message, entityType string, entityID uuid.UUID)
}

// Publisher pushes a change event to realtime subscribers
type Publisher interface {
	Publish(channel, event, id string)
}

// Service handles the membership state machine
type Service struct {
	store     Store
	notifier  Notifier
	publisher Publisher
}

// NewService creates a new group service
func NewService(store Store, notifier Notifier, publisher Publisher) *Service {
	return &Service{store: store, notifier: notifier, publisher: publisher}
}

// Create creates a new group with the creator as its first admin
func (s *Service) Create(ctx context.Context, creatorID uuid.UUID, req *CreateGroupRequest) (*Group, error) {
	if req.AccessType != AccessTypeOpen && req.AccessType != AccessTypeApproval {
		return nil, ErrInvalidAccessType
	}
	return s.store.Create(ctx, creatorID, req)
}

// List retrieves all groups with fields derived for the viewer
func (s *Service) List(ctx context.Context, viewerID uuid.UUID) ([]*Group, error) {
	return s.store.List(ctx, viewerID)
}

// GetByID retrieves a group with fields derived for the viewer
func (s *Service) GetByID(ctx context.Context, id, viewerID uuid.UUID) (*Group, error) {
	group, err := s.store.GetByID(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	return group, nil
}

// Update modifies group settings. Admin only; access type is immutable.
func (s *Service) Update(ctx context.Context, groupID, actorID uuid.UUID, req *UpdateGroupRequest) (*Group, error) {
	if err := s.requireAdmin(ctx, groupID, actorID); err != nil {
		return nil, err
	}

	group, err := s.store.Update(ctx, groupID, req)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	return group, nil
}

// Join adds the caller to an open group. Closed groups require an approved
// access request and never admit directly.
func (s *Service) Join(ctx context.Context, groupID, userID uuid.UUID) (*Member, error) {
	group, err := s.GetByID(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if group.AccessType != AccessTypeOpen {
		return nil, ErrApprovalRequired
	}
	if group.IsMember {
		return nil, ErrMemberAlreadyExists
	}

	member, err := s.store.AddMember(ctx, groupID, userID, MemberRoleMember)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(realtime.MembersChannel(groupID), "member_joined", member.ID.String())
	return member, nil
}

// RequestAccess files a pending access request for a closed group. At most
// one pending request may exist per (group, user); a historical rejection
// does not block a new request.
func (s *Service) RequestAccess(ctx context.Context, groupID, userID uuid.UUID, message *string) (*AccessRequest, error) {
	group, err := s.GetByID(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if group.AccessType == AccessTypeOpen {
		// Open groups are joined directly, not petitioned.
		return nil, ErrGroupOpen
	}
	if group.IsMember {
		return nil, ErrMemberAlreadyExists
	}

	request, err := s.store.CreateAccessRequest(ctx, groupID, userID, message)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(realtime.RequestsChannel(groupID), "request_created", request.ID.String())
	return request, nil
}

// ApproveRequest marks a pending request approved and admits the requester
// as a member. The two effects are a single transaction in the store.
func (s *Service) ApproveRequest(ctx context.Context, groupID, actorID, requestID uuid.UUID) (*AccessRequest, error) {
	if err := s.requireAdmin(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	if err := s.checkRequestGroup(ctx, groupID, requestID); err != nil {
		return nil, err
	}

	request, err := s.store.ApproveRequest(ctx, requestID, actorID)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, request.UserID, "Tu solicitud de acceso fue aprobada. ¡Bienvenido al grupo!", "group", groupID)
	s.publisher.Publish(realtime.RequestsChannel(groupID), "request_reviewed", request.ID.String())
	s.publisher.Publish(realtime.MembersChannel(groupID), "member_joined", request.UserID.String())
	return request, nil
}

// RejectRequest marks a pending request rejected. No member row is created.
func (s *Service) RejectRequest(ctx context.Context, groupID, actorID, requestID uuid.UUID) (*AccessRequest, error) {
	if err := s.requireAdmin(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	if err := s.checkRequestGroup(ctx, groupID, requestID); err != nil {
		return nil, err
	}

	request, err := s.store.RejectRequest(ctx, requestID, actorID)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, request.UserID, "Tu solicitud de acceso fue rechazada.", "group", groupID)
	s.publisher.Publish(realtime.RequestsChannel(groupID), "request_reviewed", request.ID.String())
	return request, nil
}

// ListPendingRequests retrieves pending requests. Admin only.
func (s *Service) ListPendingRequests(ctx context.Context, groupID, actorID uuid.UUID) ([]*AccessRequest, error) {
	if err := s.requireAdmin(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	return s.store.ListPendingRequests(ctx, groupID)
}

// ListMembers retrieves the group's members. Member only.
func (s *Service) ListMembers(ctx context.Context, groupID, actorID uuid.UUID) ([]*Member, error) {
	if err := s.requireMember(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, groupID)
}

// PromoteMember raises a member to admin. Admin only.
func (s *Service) PromoteMember(ctx context.Context, groupID, actorID, userID uuid.UUID) (*Member, error) {
	if err := s.requireAdmin(ctx, groupID, actorID); err != nil {
		return nil, err
	}

	member, err := s.store.UpdateMemberRole(ctx, groupID, userID, MemberRoleAdmin)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}

	s.notifier.Notify(ctx, userID, "Ahora eres administrador del grupo.", "group", groupID)
	s.publisher.Publish(realtime.MembersChannel(groupID), "member_updated", member.ID.String())
	return member, nil
}

// DemoteMember lowers an admin to member. Admin only; the last admin of a
// group cannot be demoted.
func (s *Service) DemoteMember(ctx context.Context, groupID, actorID, userID uuid.UUID) (*Member, error) {
	if err := s.requireAdmin(ctx, groupID, actorID); err != nil {
		return nil, err
	}

	target, err := s.store.GetMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrMemberNotFound
	}
	if target.Role == MemberRoleAdmin {
		if err := s.ensureNotLastAdmin(ctx, groupID); err != nil {
			return nil, err
		}
	}

	member, err := s.store.UpdateMemberRole(ctx, groupID, userID, MemberRoleMember)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}

	s.publisher.Publish(realtime.MembersChannel(groupID), "member_updated", member.ID.String())
	return member, nil
}

// RemoveMember removes a user from the group. Admin only; removing the sole
// admin of a group that still has other members is rejected.
func (s *Service) RemoveMember(ctx context.Context, groupID, actorID, userID uuid.UUID) error {
	if err := s.requireAdmin(ctx, groupID, actorID); err != nil {
		return err
	}
	return s.remove(ctx, groupID, userID, true)
}

// Leave removes the caller from the group. Any member may leave; the sole
// admin may only leave when nobody else would be left behind.
func (s *Service) Leave(ctx context.Context, groupID, userID uuid.UUID) error {
	return s.remove(ctx, groupID, userID, false)
}

func (s *Service) remove(ctx context.Context, groupID, userID uuid.UUID, notify bool) error {
	target, err := s.store.GetMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrMemberNotFound
	}

	if target.Role == MemberRoleAdmin {
		memberCount, err := s.store.CountMembers(ctx, groupID)
		if err != nil {
			return err
		}
		if memberCount > 1 {
			if err := s.ensureNotLastAdmin(ctx, groupID); err != nil {
				return err
			}
		}
	}

	if err := s.store.RemoveMember(ctx, groupID, userID); err != nil {
		return err
	}

	if notify {
		s.notifier.Notify(ctx, userID, "Has sido eliminado del grupo.", "group", groupID)
	}
	s.publisher.Publish(realtime.MembersChannel(groupID), "member_removed", userID.String())
	return nil
}

// Defaults for groups that never configured their AI participant
const (
	DefaultAIName         = "Asistente"
	DefaultAISystemPrompt = "Eres un asistente útil y amigable. Responde de forma clara y concisa."
)

// AIPersona describes a group's AI participant configuration
type AIPersona struct {
	Name           string
	SystemPrompt   string
	OnlyWhenTagged bool
}

// AIPersona returns the group's AI configuration with defaults applied
func (s *Service) AIPersona(ctx context.Context, groupID uuid.UUID) (*AIPersona, error) {
	group, err := s.store.GetByID(ctx, groupID, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}

	persona := &AIPersona{
		Name:           DefaultAIName,
		SystemPrompt:   DefaultAISystemPrompt,
		OnlyWhenTagged: group.AIOnlyWhenTagged,
	}
	if group.AIName != nil && *group.AIName != "" {
		persona.Name = *group.AIName
	}
	if group.AISystemPrompt != nil && *group.AISystemPrompt != "" {
		persona.SystemPrompt = *group.AISystemPrompt
	}
	return persona, nil
}

// IsMember reports whether a user belongs to the group
func (s *Service) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	member, err := s.store.GetMember(ctx, groupID, userID)
	if err != nil {
		return false, err
	}
	return member != nil, nil
}

// IsAdmin reports whether a user holds the admin role in the group
func (s *Service) IsAdmin(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	member, err := s.store.GetMember(ctx, groupID, userID)
	if err != nil {
		return false, err
	}
	return member != nil && member.Role == MemberRoleAdmin, nil
}

// requireAdmin is the authorization guard for every mutating membership
// operation. The role comes from the members table, never from the client.
func (s *Service) requireAdmin(ctx context.Context, groupID, actorID uuid.UUID) error {
	member, err := s.store.GetMember(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if member == nil || member.Role != MemberRoleAdmin {
		return ErrNotAuthorized
	}
	return nil
}

func (s *Service) requireMember(ctx context.Context, groupID, actorID uuid.UUID) error {
	member, err := s.store.GetMember(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrNotAuthorized
	}
	return nil
}

func (s *Service) ensureNotLastAdmin(ctx context.Context, groupID uuid.UUID) error {
	admins, err := s.store.CountAdmins(ctx, groupID)
	if err != nil {
		return err
	}
	if admins <= 1 {
		return ErrLastAdmin
	}
	return nil
}

func (s *Service) checkRequestGroup(ctx context.Context, groupID, requestID uuid.UUID) error {
	request, err := s.store.GetAccessRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request == nil {
		return ErrRequestNotFound
	}
	if request.GroupID != groupID {
		return ErrRequestNotFound
	}
	return nil
}
