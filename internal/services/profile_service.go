package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ksw5434/realestate/internal/cache"
	"github.com/ksw5434/realestate/internal/db"
	"github.com/ksw5434/realestate/internal/models"
	"github.com/ksw5434/realestate/internal/store"
)

// ProfileUpdate carries the owner-editable profile fields. Email and the admin flag are not among them.
// A nil field is left unchanged; a field sent as "" is cleared.
type ProfileUpdate struct {
	Name           *string `json:"name,omitempty"`
	Phone          *string `json:"phone,omitempty"`
	CompanyName    *string `json:"company_name,omitempty"`
	Position       *string `json:"position,omitempty"`
	CompanyPhone   *string `json:"company_phone,omitempty"`
	CompanyEmail   *string `json:"company_email,omitempty"`
	Address        *string `json:"address,omitempty"`
	BusinessNumber *string `json:"business_number,omitempty"`
	Representative *string `json:"representative,omitempty"`
	Website        *string `json:"website,omitempty"`
	ProfileImage   *string `json:"profile_image,omitempty"`
}

type IProfileService interface {
	// GetOrCreate returns the caller's profile, creating it with only id and email when missing.
	GetOrCreate(ctx context.Context, caller models.Caller) (*models.Profile, error)
	UpdateOwnProfile(ctx context.Context, caller models.Caller, update ProfileUpdate) (*models.Profile, error)
	SetProfileImage(ctx context.Context, caller models.Caller, url string) (*models.Profile, error)
}

type profileService struct {
	profiles    store.IProfileStore
	listings    store.IListingStore
	invalidator cache.IInvalidator
	logger      *zap.Logger
	now         func() time.Time
}

// NewProfileService creates the profile service. Listing views embed the creator profile,
// so every profile write invalidates the views of the listings it created. invalidator may be nil.
func NewProfileService(profiles store.IProfileStore, listings store.IListingStore, invalidator cache.IInvalidator, logger *zap.Logger) IProfileService {
	return &profileService{
		profiles:    profiles,
		listings:    listings,
		invalidator: invalidator,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *profileService) GetOrCreate(ctx context.Context, caller models.Caller) (*models.Profile, error) {
	if !caller.Authenticated() {
		return nil, ErrUnauthenticated
	}

	var profile *models.Profile
	// A concurrent first request may insert the same id; the retry then finds it.
	err := db.WithRetries(func() error {
		found, err := s.profiles.FindProfile(ctx, caller.UserID)
		if err == nil {
			profile = found
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		now := s.now().UTC()
		created := &models.Profile{ID: caller.UserID, Email: caller.Email, CreatedAt: now, UpdatedAt: now}
		if err := s.profiles.InsertProfile(ctx, created); err != nil {
			return err
		}
		s.logger.Info("Profile auto-created", zap.String("user_id", caller.UserID))
		profile = created
		return nil
	}, 1, func(err error) bool { return errors.Is(err, store.ErrDuplicate) })
	if err != nil {
		return nil, &StoreError{Op: "load profile", Err: err}
	}
	return profile, nil
}

func (s *profileService) UpdateOwnProfile(ctx context.Context, caller models.Caller, update ProfileUpdate) (*models.Profile, error) {
	profile, err := s.GetOrCreate(ctx, caller)
	if err != nil {
		return nil, err
	}

	verr := &ValidationError{}
	if e := update.CompanyEmail; e != nil && strings.TrimSpace(*e) != "" && !isEmailAddress(strings.TrimSpace(*e)) {
		verr.add("company_email", "is not a valid email address")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	update.applyTo(profile)
	profile.UpdatedAt = s.now().UTC()

	if err := s.profiles.UpdateProfile(ctx, profile); err != nil {
		return nil, &StoreError{Op: "update profile", Err: err}
	}
	s.invalidateCreatorViews(ctx, profile.ID)
	return profile, nil
}

func (s *profileService) SetProfileImage(ctx context.Context, caller models.Caller, url string) (*models.Profile, error) {
	profile, err := s.GetOrCreate(ctx, caller)
	if err != nil {
		return nil, err
	}
	profile.ProfileImage = url
	profile.UpdatedAt = s.now().UTC()
	if err := s.profiles.UpdateProfile(ctx, profile); err != nil {
		return nil, &StoreError{Op: "update profile image", Err: err}
	}
	s.invalidateCreatorViews(ctx, profile.ID)
	return profile, nil
}

// invalidateCreatorViews drops the aggregate views and the detail view of every listing
// created by profileID. Failures are logged only.
func (s *profileService) invalidateCreatorViews(ctx context.Context, profileID string) {
	if s.invalidator == nil {
		return
	}
	keys := []string{cache.ViewAllListings, cache.ViewSearch}
	if s.listings != nil {
		ids, err := s.listings.ListingIDsByCreator(ctx, profileID)
		if err != nil {
			s.logger.Warn("Failed to look up listings by creator", zap.String("user_id", profileID), zap.Error(err))
		}
		for _, id := range ids {
			keys = append(keys, cache.ViewListingDetail(id))
		}
	}
	if err := s.invalidator.Invalidate(ctx, keys...); err != nil {
		s.logger.Warn("View invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// applyTo copies the present fields onto p, trimmed.
func (u ProfileUpdate) applyTo(p *models.Profile) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&p.Name, u.Name)
	set(&p.Phone, u.Phone)
	set(&p.CompanyName, u.CompanyName)
	set(&p.Position, u.Position)
	set(&p.CompanyPhone, u.CompanyPhone)
	set(&p.CompanyEmail, u.CompanyEmail)
	set(&p.Address, u.Address)
	set(&p.BusinessNumber, u.BusinessNumber)
	set(&p.Representative, u.Representative)
	set(&p.Website, u.Website)
	set(&p.ProfileImage, u.ProfileImage)
}
