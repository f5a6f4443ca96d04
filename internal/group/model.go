package group

import (
	"time"

	"github.com/google/uuid"
)

// AccessType represents a group's access policy
type AccessType string

const (
	AccessTypeOpen     AccessType = "open"
	AccessTypeApproval AccessType = "approval_required"
)

// MemberRole represents the role of a group member
type MemberRole string

const (
	MemberRoleMember MemberRole = "member"
	MemberRoleAdmin  MemberRole = "admin"
)

// RequestStatus represents the status of an access request
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// Group represents a chat group. Access type is fixed at creation: open
// groups admit any user directly, approval_required groups only through an
// approved access request.
type Group struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Description      *string    `json:"description,omitempty"`
	ImageURL         *string    `json:"image_url,omitempty"`
	AccessType       AccessType `json:"access_type"`
	Rules            *string    `json:"rules,omitempty"`
	AIName           *string    `json:"ai_name,omitempty"`
	AISystemPrompt   *string    `json:"ai_system_prompt,omitempty"`
	AIOnlyWhenTagged bool       `json:"ai_only_when_tagged"`
	CreatedBy        *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`

	// Computed per viewer, not stored
	MemberCount   int            `json:"member_count"`
	IsMember      bool           `json:"is_member"`
	IsAdmin       bool           `json:"is_admin"`
	RequestStatus *RequestStatus `json:"request_status,omitempty"`
}

// Member represents a user's membership in a group
type Member struct {
	ID       uuid.UUID  `json:"id"`
	GroupID  uuid.UUID  `json:"group_id"`
	UserID   uuid.UUID  `json:"user_id"`
	Role     MemberRole `json:"role"`
	JoinedAt time.Time  `json:"joined_at"`

	// Populated from the profile store
	DisplayName string  `json:"display_name,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

// AccessRequest represents a petition to join an approval_required group.
// Status never reverts once set; a rejected request does not block a
// future request by the same user.
type AccessRequest struct {
	ID         uuid.UUID     `json:"id"`
	GroupID    uuid.UUID     `json:"group_id"`
	UserID     uuid.UUID     `json:"user_id"`
	Message    *string       `json:"message,omitempty"`
	Status     RequestStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	ReviewedBy *uuid.UUID    `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time    `json:"reviewed_at,omitempty"`

	// Populated from the profile store
	DisplayName string  `json:"display_name,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}
