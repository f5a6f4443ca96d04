package group

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations
const uniqueViolation = "23505"

// Repository handles group, membership and access request persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new group repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const groupColumns = `g.id, g.name, g.description, g.image_url, g.access_type, g.rules,
		       g.ai_name, g.ai_system_prompt, g.ai_only_when_tagged, g.created_by, g.created_at`

func scanGroup(row interface{ Scan(...interface{}) error }, g *Group) error {
	return row.Scan(
		&g.ID,
		&g.Name,
		&g.Description,
		&g.ImageURL,
		&g.AccessType,
		&g.Rules,
		&g.AIName,
		&g.AISystemPrompt,
		&g.AIOnlyWhenTagged,
		&g.CreatedBy,
		&g.CreatedAt,
	)
}

// Create inserts a new group and its creator's admin membership in one transaction
func (r *Repository) Create(ctx context.Context, creatorID uuid.UUID, req *CreateGroupRequest) (*Group, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	group := &Group{}
	err = scanGroup(tx.QueryRowContext(ctx, `
		INSERT INTO groups (name, description, image_url, access_type, rules, ai_name, ai_system_prompt, ai_only_when_tagged, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, name, description, image_url, access_type, rules, ai_name, ai_system_prompt, ai_only_when_tagged, created_by, created_at
	`, req.Name, req.Description, req.ImageURL, req.AccessType, req.Rules, req.AIName, req.AISystemPrompt, req.AIOnlyWhenTagged, creatorID), group)
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id, role)
		VALUES ($1, $2, $3)
	`, group.ID, creatorID, MemberRoleAdmin); err != nil {
		return nil, fmt.Errorf("failed to add creator as admin: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit group creation: %w", err)
	}

	group.MemberCount = 1
	group.IsMember = true
	group.IsAdmin = true
	return group, nil
}

// GetByID retrieves a group with viewer-derived fields
func (r *Repository) GetByID(ctx context.Context, id, viewerID uuid.UUID) (*Group, error) {
	query := `
		SELECT ` + groupColumns + `,
		       (SELECT COUNT(*) FROM group_members gm WHERE gm.group_id = g.id) AS member_count,
		       vm.role,
		       vr.status
		FROM groups g
		LEFT JOIN group_members vm ON vm.group_id = g.id AND vm.user_id = $2
		LEFT JOIN LATERAL (
			SELECT status FROM access_requests ar
			WHERE ar.group_id = g.id AND ar.user_id = $2
			ORDER BY ar.created_at DESC
			LIMIT 1
		) vr ON true
		WHERE g.id = $1
	`

	group, err := r.scanGroupWithViewer(r.db.QueryRowContext(ctx, query, id, viewerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

// List retrieves all groups with viewer-derived fields, newest first
func (r *Repository) List(ctx context.Context, viewerID uuid.UUID) ([]*Group, error) {
	query := `
		SELECT ` + groupColumns + `,
		       (SELECT COUNT(*) FROM group_members gm WHERE gm.group_id = g.id) AS member_count,
		       vm.role,
		       vr.status
		FROM groups g
		LEFT JOIN group_members vm ON vm.group_id = g.id AND vm.user_id = $1
		LEFT JOIN LATERAL (
			SELECT status FROM access_requests ar
			WHERE ar.group_id = g.id AND ar.user_id = $1
			ORDER BY ar.created_at DESC
			LIMIT 1
		) vr ON true
		ORDER BY g.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*Group
	for rows.Next() {
		group, err := r.scanGroupWithViewer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}

	return groups, rows.Err()
}

func (r *Repository) scanGroupWithViewer(row interface{ Scan(...interface{}) error }) (*Group, error) {
	group := &Group{}
	var viewerRole *MemberRole
	var requestStatus *RequestStatus
	err := row.Scan(
		&group.ID,
		&group.Name,
		&group.Description,
		&group.ImageURL,
		&group.AccessType,
		&group.Rules,
		&group.AIName,
		&group.AISystemPrompt,
		&group.AIOnlyWhenTagged,
		&group.CreatedBy,
		&group.CreatedAt,
		&group.MemberCount,
		&viewerRole,
		&requestStatus,
	)
	if err != nil {
		return nil, err
	}
	if viewerRole != nil {
		group.IsMember = true
		group.IsAdmin = *viewerRole == MemberRoleAdmin
	} else {
		// Request status only matters while the viewer is outside the group.
		group.RequestStatus = requestStatus
	}
	return group, nil
}

// Update modifies group settings. Access type is never touched.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, req *UpdateGroupRequest) (*Group, error) {
	query := `
		UPDATE groups
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    image_url = COALESCE($4, image_url),
		    rules = COALESCE($5, rules),
		    ai_name = COALESCE($6, ai_name),
		    ai_system_prompt = COALESCE($7, ai_system_prompt),
		    ai_only_when_tagged = COALESCE($8, ai_only_when_tagged)
		WHERE id = $1
		RETURNING id, name, description, image_url, access_type, rules, ai_name, ai_system_prompt, ai_only_when_tagged, created_by, created_at
	`

	group := &Group{}
	err := scanGroup(r.db.QueryRowContext(ctx, query, id,
		req.Name, req.Description, req.ImageURL, req.Rules,
		req.AIName, req.AISystemPrompt, req.AIOnlyWhenTagged), group)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update group: %w", err)
	}

	return group, nil
}

// GetMember retrieves a specific member of a group
func (r *Repository) GetMember(ctx context.Context, groupID, userID uuid.UUID) (*Member, error) {
	query := `
		SELECT gm.id, gm.group_id, gm.user_id, gm.role, gm.joined_at, p.display_name, p.avatar_url
		FROM group_members gm
		JOIN profiles p ON p.user_id = gm.user_id
		WHERE gm.group_id = $1 AND gm.user_id = $2
	`

	member := &Member{}
	err := r.db.QueryRowContext(ctx, query, groupID, userID).Scan(
		&member.ID,
		&member.GroupID,
		&member.UserID,
		&member.Role,
		&member.JoinedAt,
		&member.DisplayName,
		&member.AvatarURL,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return member, nil
}

// AddMember inserts a membership row
func (r *Repository) AddMember(ctx context.Context, groupID, userID uuid.UUID, role MemberRole) (*Member, error) {
	query := `
		INSERT INTO group_members (group_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING id, group_id, user_id, role, joined_at
	`

	member := &Member{}
	err := r.db.QueryRowContext(ctx, query, groupID, userID, role).Scan(
		&member.ID,
		&member.GroupID,
		&member.UserID,
		&member.Role,
		&member.JoinedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return nil, ErrMemberAlreadyExists
		}
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	return member, nil
}

// ListMembers retrieves all members of a group in join order
func (r *Repository) ListMembers(ctx context.Context, groupID uuid.UUID) ([]*Member, error) {
	query := `
		SELECT gm.id, gm.group_id, gm.user_id, gm.role, gm.joined_at, p.display_name, p.avatar_url
		FROM group_members gm
		JOIN profiles p ON p.user_id = gm.user_id
		WHERE gm.group_id = $1
		ORDER BY gm.joined_at
	`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		member := &Member{}
		if err := rows.Scan(
			&member.ID,
			&member.GroupID,
			&member.UserID,
			&member.Role,
			&member.JoinedAt,
			&member.DisplayName,
			&member.AvatarURL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}

	return members, rows.Err()
}

// UpdateMemberRole changes a member's role
func (r *Repository) UpdateMemberRole(ctx context.Context, groupID, userID uuid.UUID, role MemberRole) (*Member, error) {
	query := `
		UPDATE group_members
		SET role = $3
		WHERE group_id = $1 AND user_id = $2
		RETURNING id, group_id, user_id, role, joined_at
	`

	member := &Member{}
	err := r.db.QueryRowContext(ctx, query, groupID, userID, role).Scan(
		&member.ID,
		&member.GroupID,
		&member.UserID,
		&member.Role,
		&member.JoinedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update member role: %w", err)
	}

	return member, nil
}

// RemoveMember deletes a membership row
func (r *Repository) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMemberNotFound
	}

	return nil
}

// CountAdmins returns the number of admins in a group
func (r *Repository) CountAdmins(ctx context.Context, groupID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM group_members WHERE group_id = $1 AND role = $2`
	if err := r.db.QueryRowContext(ctx, query, groupID, MemberRoleAdmin).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return count, nil
}

// CountMembers returns the number of members in a group
func (r *Repository) CountMembers(ctx context.Context, groupID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM group_members WHERE group_id = $1`
	if err := r.db.QueryRowContext(ctx, query, groupID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

// CreateAccessRequest inserts a pending access request. A partial unique
// index on (group_id, user_id) WHERE status='pending' enforces the
// one-pending-request invariant; historical rejected rows do not collide.
func (r *Repository) CreateAccessRequest(ctx context.Context, groupID, userID uuid.UUID, message *string) (*AccessRequest, error) {
	query := `
		INSERT INTO access_requests (group_id, user_id, message)
		VALUES ($1, $2, $3)
		RETURNING id, group_id, user_id, message, status, created_at, reviewed_by, reviewed_at
	`

	request := &AccessRequest{}
	err := r.db.QueryRowContext(ctx, query, groupID, userID, message).Scan(
		&request.ID,
		&request.GroupID,
		&request.UserID,
		&request.Message,
		&request.Status,
		&request.CreatedAt,
		&request.ReviewedBy,
		&request.ReviewedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return nil, ErrRequestPending
		}
		return nil, fmt.Errorf("failed to create access request: %w", err)
	}

	return request, nil
}

// GetAccessRequest retrieves an access request by ID
func (r *Repository) GetAccessRequest(ctx context.Context, requestID uuid.UUID) (*AccessRequest, error) {
	query := `
		SELECT id, group_id, user_id, message, status, created_at, reviewed_by, reviewed_at
		FROM access_requests
		WHERE id = $1
	`

	request := &AccessRequest{}
	err := r.db.QueryRowContext(ctx, query, requestID).Scan(
		&request.ID,
		&request.GroupID,
		&request.UserID,
		&request.Message,
		&request.Status,
		&request.CreatedAt,
		&request.ReviewedBy,
		&request.ReviewedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get access request: %w", err)
	}

	return request, nil
}

// ListPendingRequests retrieves pending access requests for a group in arrival order
func (r *Repository) ListPendingRequests(ctx context.Context, groupID uuid.UUID) ([]*AccessRequest, error) {
	query := `
		SELECT ar.id, ar.group_id, ar.user_id, ar.message, ar.status, ar.created_at, ar.reviewed_by, ar.reviewed_at,
		       p.display_name, p.avatar_url
		FROM access_requests ar
		JOIN profiles p ON p.user_id = ar.user_id
		WHERE ar.group_id = $1 AND ar.status = $2
		ORDER BY ar.created_at
	`

	rows, err := r.db.QueryContext(ctx, query, groupID, RequestStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list access requests: %w", err)
	}
	defer rows.Close()

	var requests []*AccessRequest
	for rows.Next() {
		request := &AccessRequest{}
		if err := rows.Scan(
			&request.ID,
			&request.GroupID,
			&request.UserID,
			&request.Message,
			&request.Status,
			&request.CreatedAt,
			&request.ReviewedBy,
			&request.ReviewedAt,
			&request.DisplayName,
			&request.AvatarURL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan access request: %w", err)
		}
		requests = append(requests, request)
	}

	return requests, rows.Err()
}

// ApproveRequest flips a pending request to approved and inserts the member
// row in a single transaction. Both effects happen or neither does.
func (r *Repository) ApproveRequest(ctx context.Context, requestID, reviewerID uuid.UUID) (*AccessRequest, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	request := &AccessRequest{}
	err = tx.QueryRowContext(ctx, `
		UPDATE access_requests
		SET status = $2, reviewed_by = $3, reviewed_at = now()
		WHERE id = $1 AND status = $4
		RETURNING id, group_id, user_id, message, status, created_at, reviewed_by, reviewed_at
	`, requestID, RequestStatusApproved, reviewerID, RequestStatusPending).Scan(
		&request.ID,
		&request.GroupID,
		&request.UserID,
		&request.Message,
		&request.Status,
		&request.CreatedAt,
		&request.ReviewedBy,
		&request.ReviewedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRequestNotPending
		}
		return nil, fmt.Errorf("failed to approve access request: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id, role)
		VALUES ($1, $2, $3)
	`, request.GroupID, request.UserID, MemberRoleMember); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return nil, ErrMemberAlreadyExists
		}
		return nil, fmt.Errorf("failed to insert approved member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit approval: %w", err)
	}

	return request, nil
}

// RejectRequest flips a pending request to rejected. Terminal for the row.
func (r *Repository) RejectRequest(ctx context.Context, requestID, reviewerID uuid.UUID) (*AccessRequest, error) {
	request := &AccessRequest{}
	err := r.db.QueryRowContext(ctx, `
		UPDATE access_requests
		SET status = $2, reviewed_by = $3, reviewed_at = now()
		WHERE id = $1 AND status = $4
		RETURNING id, group_id, user_id, message, status, created_at, reviewed_by, reviewed_at
	`, requestID, RequestStatusRejected, reviewerID, RequestStatusPending).Scan(
		&request.ID,
		&request.GroupID,
		&request.UserID,
		&request.Message,
		&request.Status,
		&request.CreatedAt,
		&request.ReviewedBy,
		&request.ReviewedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRequestNotPending
		}
		return nil, fmt.Errorf("failed to reject access request: %w", err)
	}

	return request, nil
}
