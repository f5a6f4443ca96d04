package profile

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrProfileNotFound = errors.New("profile not found")
)

// Service handles profile business logic
type Service struct {
	repo *Repository
}

// NewService creates a new profile service
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// GetByUserID retrieves a profile by user ID
func (s *Service) GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	profile, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

// GetByUserIDs retrieves profiles for a set of users in one batched lookup
func (s *Service) GetByUserIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*Profile, error) {
	return s.repo.GetByUserIDs(ctx, userIDs)
}

// Ensure creates a profile for a user on first touch, or returns the existing one
func (s *Service) Ensure(ctx context.Context, userID uuid.UUID, displayName string) (*Profile, error) {
	if displayName == "" {
		displayName = "Usuario"
	}
	return s.repo.Upsert(ctx, userID, displayName)
}

// EnsureProfile satisfies the auth handler's profile hook
func (s *Service) EnsureProfile(ctx context.Context, userID uuid.UUID, displayName string) error {
	_, err := s.Ensure(ctx, userID, displayName)
	return err
}

// Update modifies the caller's profile
func (s *Service) Update(ctx context.Context, userID uuid.UUID, req *UpdateProfileRequest) (*Profile, error) {
	profile, err := s.repo.Update(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}
