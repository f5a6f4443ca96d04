package profile

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Repository handles profile data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new profile repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetByUserID retrieves a profile by its owning user ID
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	query := `
		SELECT id, user_id, display_name, avatar_url, bio, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`

	profile := &Profile{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.DisplayName,
		&profile.AvatarURL,
		&profile.Bio,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return profile, nil
}

// GetByUserIDs retrieves profiles for a set of user IDs in one query
func (r *Repository) GetByUserIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*Profile, error) {
	profiles := make(map[uuid.UUID]*Profile, len(userIDs))
	if len(userIDs) == 0 {
		return profiles, nil
	}

	query := `
		SELECT id, user_id, display_name, avatar_url, bio, created_at, updated_at
		FROM profiles
		WHERE user_id = ANY($1)
	`

	ids := make([]string, len(userIDs))
	for i, id := range userIDs {
		ids[i] = id.String()
	}

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		profile := &Profile{}
		if err := rows.Scan(
			&profile.ID,
			&profile.UserID,
			&profile.DisplayName,
			&profile.AvatarURL,
			&profile.Bio,
			&profile.CreatedAt,
			&profile.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles[profile.UserID] = profile
	}

	return profiles, nil
}

// Upsert creates a profile for a user or returns the existing one
func (r *Repository) Upsert(ctx context.Context, userID uuid.UUID, displayName string) (*Profile, error) {
	query := `
		INSERT INTO profiles (user_id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = now()
		RETURNING id, user_id, display_name, avatar_url, bio, created_at, updated_at
	`

	profile := &Profile{}
	err := r.db.QueryRowContext(ctx, query, userID, displayName).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.DisplayName,
		&profile.AvatarURL,
		&profile.Bio,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}

	return profile, nil
}

// Update modifies the caller's profile
func (r *Repository) Update(ctx context.Context, userID uuid.UUID, req *UpdateProfileRequest) (*Profile, error) {
	query := `
		UPDATE profiles
		SET display_name = COALESCE($2, display_name),
		    avatar_url = COALESCE($3, avatar_url),
		    bio = COALESCE($4, bio),
		    updated_at = now()
		WHERE user_id = $1
		RETURNING id, user_id, display_name, avatar_url, bio, created_at, updated_at
	`

	profile := &Profile{}
	err := r.db.QueryRowContext(ctx, query, userID, req.DisplayName, req.AvatarURL, req.Bio).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.DisplayName,
		&profile.AvatarURL,
		&profile.Bio,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return profile, nil
}
