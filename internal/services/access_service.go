package services

import (
	"context"
	"errors"

	"github.com/ksw5434/realestate/internal/models"
	"github.com/ksw5434/realestate/internal/store"
)

// IAccessService decides what a caller may do. The admin flag always comes
// from the caller's profile row, never from the session or the request.
type IAccessService interface {
	Capability(ctx context.Context, caller models.Caller) (models.Capability, error)
	RequireAdmin(ctx context.Context, caller models.Caller) (*models.Profile, error)
}

type accessService struct {
	profiles store.IProfileStore
}

func NewAccessService(profiles store.IProfileStore) IAccessService {
	return &accessService{profiles: profiles}
}

func (s *accessService) Capability(ctx context.Context, caller models.Caller) (models.Capability, error) {
	if !caller.Authenticated() {
		return models.CapabilityAnonymous, nil
	}
	profile, err := s.profiles.FindProfile(ctx, caller.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return models.CapabilityAuthenticated, nil
	}
	if err != nil {
		return models.CapabilityAnonymous, &StoreError{Op: "load profile", Err: err}
	}
	if profile.IsAdmin {
		return models.CapabilityAdmin, nil
	}
	return models.CapabilityAuthenticated, nil
}

func (s *accessService) RequireAdmin(ctx context.Context, caller models.Caller) (*models.Profile, error) {
	if !caller.Authenticated() {
		return nil, ErrUnauthenticated
	}
	profile, err := s.profiles.FindProfile(ctx, caller.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, &StoreError{Op: "load profile", Err: err}
	}
	if !profile.IsAdmin {
		return nil, ErrForbidden
	}
	return profile, nil
}
