package group

// CreateGroupRequest represents the request to create a new group
type CreateGroupRequest struct {
	Name             string     `json:"name" validate:"required,min=1,max=100"`
	Description      *string    `json:"description,omitempty"`
	ImageURL         *string    `json:"image_url,omitempty"`
	AccessType       AccessType `json:"access_type" validate:"required,oneof=open approval_required"`
	Rules            *string    `json:"rules,omitempty"`
	AIName           *string    `json:"ai_name,omitempty"`
	AISystemPrompt   *string    `json:"ai_system_prompt,omitempty"`
	AIOnlyWhenTagged bool       `json:"ai_only_when_tagged"`
}

// UpdateGroupRequest represents the request to update group settings.
// Access type is immutable and deliberately absent.
type UpdateGroupRequest struct {
	Name             *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description      *string `json:"description,omitempty"`
	ImageURL         *string `json:"image_url,omitempty"`
	Rules            *string `json:"rules,omitempty"`
	AIName           *string `json:"ai_name,omitempty"`
	AISystemPrompt   *string `json:"ai_system_prompt,omitempty"`
	AIOnlyWhenTagged *bool   `json:"ai_only_when_tagged,omitempty"`
}

// RequestAccessRequest represents the request to petition for group access
type RequestAccessRequest struct {
	Message *string `json:"message,omitempty" validate:"omitempty,max=500"`
}

// UpdateMemberRequest represents the request to change a member's role
type UpdateMemberRequest struct {
	Role MemberRole `json:"role" validate:"required,oneof=member admin"`
}

// GroupResponse represents the response for a group
type GroupResponse struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Description      *string        `json:"description,omitempty"`
	ImageURL         *string        `json:"image_url,omitempty"`
	AccessType       AccessType     `json:"access_type"`
	Rules            *string        `json:"rules,omitempty"`
	AIName           *string        `json:"ai_name,omitempty"`
	AISystemPrompt   *string        `json:"ai_system_prompt,omitempty"`
	AIOnlyWhenTagged bool           `json:"ai_only_when_tagged"`
	CreatedBy        *string        `json:"created_by,omitempty"`
	CreatedAt        string         `json:"created_at"`
	MemberCount      int            `json:"member_count"`
	IsMember         bool           `json:"is_member"`
	IsAdmin          bool           `json:"is_admin"`
	RequestStatus    *RequestStatus `json:"request_status,omitempty"`
}

// MemberResponse represents a member in a group response
type MemberResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Role        MemberRole `json:"role"`
	JoinedAt    string     `json:"joined_at"`
	DisplayName string     `json:"display_name"`
	AvatarURL   *string    `json:"avatar_url,omitempty"`
}

// AccessRequestResponse represents a pending access request in responses
type AccessRequestResponse struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	Message     *string       `json:"message,omitempty"`
	Status      RequestStatus `json:"status"`
	CreatedAt   string        `json:"created_at"`
	DisplayName string        `json:"display_name"`
	AvatarURL   *string       `json:"avatar_url,omitempty"`
}

// ToResponse converts a Group model to a GroupResponse DTO
func (g *Group) ToResponse() *GroupResponse {
	resp := &GroupResponse{
		ID:               g.ID.String(),
		Name:             g.Name,
		Description:      g.Description,
		ImageURL:         g.ImageURL,
		AccessType:       g.AccessType,
		Rules:            g.Rules,
		AIName:           g.AIName,
		AISystemPrompt:   g.AISystemPrompt,
		AIOnlyWhenTagged: g.AIOnlyWhenTagged,
		CreatedAt:        g.CreatedAt.Format("2006-01-02T15:04:05Z"),
		MemberCount:      g.MemberCount,
		IsMember:         g.IsMember,
		IsAdmin:          g.IsAdmin,
		RequestStatus:    g.RequestStatus,
	}
	if g.CreatedBy != nil {
		createdBy := g.CreatedBy.String()
		resp.CreatedBy = &createdBy
	}
	return resp
}

// ToResponse converts a Member model to a MemberResponse DTO
func (m *Member) ToResponse() *MemberResponse {
	return &MemberResponse{
		ID:          m.ID.String(),
		UserID:      m.UserID.String(),
		Role:        m.Role,
		JoinedAt:    m.JoinedAt.Format("2006-01-02T15:04:05Z"),
		DisplayName: m.DisplayName,
		AvatarURL:   m.AvatarURL,
	}
}

// ToResponse converts an AccessRequest model to an AccessRequestResponse DTO
func (r *AccessRequest) ToResponse() *AccessRequestResponse {
	return &AccessRequestResponse{
		ID:          r.ID.String(),
		UserID:      r.UserID.String(),
		Message:     r.Message,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		DisplayName: r.DisplayName,
		AvatarURL:   r.AvatarURL,
	}
}
