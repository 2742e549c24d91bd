package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ksw5434/realestate/internal/cache"
	"github.com/ksw5434/realestate/internal/metrics"
	"github.com/ksw5434/realestate/internal/models"
	"github.com/ksw5434/realestate/internal/store"
)

// MutationResult is returned by successful create and update calls.
// Warnings lists steps that failed after the listing itself was saved.
type MutationResult struct {
	ListingID string   `json:"listing_id"`
	Warnings  []string `json:"warnings,omitempty"`
}

// IListingService defines the admin-only listing mutations.
type IListingService interface {
	CreateListing(ctx context.Context, caller models.Caller, form ListingForm) (*MutationResult, error)
	UpdateListing(ctx context.Context, caller models.Caller, id string, form ListingForm) (*MutationResult, error)
	DeleteListing(ctx context.Context, caller models.Caller, id string) error
}

// ListingStores groups the persistence a listing mutation touches.
type ListingStores struct {
	Listings store.IListingStore
	Images   store.IImageStore
	Tx       store.ITxRunner
}

type listingService struct {
	stores      ListingStores
	access      IAccessService
	invalidator cache.IInvalidator
	metrics     *metrics.MetricsManager
	logger      *zap.Logger
	now         func() time.Time
}

// NewListingService wires the CRUD service. invalidator may be nil.
func NewListingService(stores ListingStores, access IAccessService, invalidator cache.IInvalidator, m *metrics.MetricsManager, logger *zap.Logger) IListingService {
	if m == nil {
		m = metrics.NewMetricsManager("realestate")
	}
	return &listingService{
		stores:      stores,
		access:      access,
		invalidator: invalidator,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *listingService) CreateListing(ctx context.Context, caller models.Caller, form ListingForm) (*MutationResult, error) {
	// An admin always has a profile row, so the profile the gate loaded is the creator.
	creator, err := s.access.RequireAdmin(ctx, caller)
	if err != nil {
		return nil, err
	}
	listing, imageURLs, err := form.toListing()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	listing.ID = models.NewID()
	listing.CreatedBy = creator.ID
	listing.CreatedAt = now
	listing.UpdatedAt = now

	var warnings []string
	err = s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		warnings = nil
		if err := s.stores.Listings.InsertListing(ctx, listing); err != nil {
			return &StoreError{Op: "create listing", Err: err}
		}
		return s.insertImages(ctx, listing.ID, imageURLs, now, &warnings)
	})
	if err != nil {
		s.logger.Error("Failed to create listing", zap.String("user_id", caller.UserID), zap.Error(err))
		return nil, asStoreError("create listing", err)
	}

	s.metrics.ListingsCreatedTotal.Inc()
	s.logger.Info("Listing created", zap.String("listing_id", listing.ID), zap.Int("images", len(imageURLs)))
	s.invalidate(ctx, cache.ViewAllListings, cache.ViewSearch)
	return &MutationResult{ListingID: listing.ID, Warnings: warnings}, nil
}

func (s *listingService) UpdateListing(ctx context.Context, caller models.Caller, id string, form ListingForm) (*MutationResult, error) {
	if _, err := s.access.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	listing, imageURLs, err := form.toListing()
	if err != nil {
		return nil, err
	}

	existing, err := s.stores.Listings.FindListing(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, &StoreError{Op: "load listing", Err: err}
	}

	now := s.now().UTC()
	listing.ID = existing.ID
	listing.CreatedBy = existing.CreatedBy
	listing.CreatedAt = existing.CreatedAt
	listing.UpdatedAt = now

	var warnings []string
	err = s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		warnings = nil
		if err := s.stores.Listings.UpdateListing(ctx, listing); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrListingNotFound
			}
			return &StoreError{Op: "update listing", Err: err}
		}
		if err := s.stores.Images.DeleteImages(ctx, listing.ID); err != nil {
			if s.stores.Tx.Transactional() {
				return &StoreError{Op: "replace listing images", Err: err}
			}
			// Inserting now would mix old and new rows.
			s.imageWriteFailed(listing.ID, err, &warnings)
			return nil
		}
		return s.insertImages(ctx, listing.ID, imageURLs, now, &warnings)
	})
	if err != nil {
		s.logger.Error("Failed to update listing", zap.String("listing_id", id), zap.Error(err))
		return nil, asStoreError("update listing", err)
	}

	s.metrics.ListingUpdatesTotal.Inc()
	s.logger.Info("Listing updated", zap.String("listing_id", listing.ID), zap.Int("images", len(imageURLs)))
	s.invalidate(ctx, cache.ViewAllListings, cache.ViewSearch, cache.ViewListingDetail(listing.ID))
	return &MutationResult{ListingID: listing.ID, Warnings: warnings}, nil
}

// DeleteListing succeeds for ids that do not exist.
func (s *listingService) DeleteListing(ctx context.Context, caller models.Caller, id string) error {
	if _, err := s.access.RequireAdmin(ctx, caller); err != nil {
		return err
	}
	if err := s.stores.Listings.DeleteListing(ctx, id); err != nil {
		s.logger.Error("Failed to delete listing", zap.String("listing_id", id), zap.Error(err))
		return &StoreError{Op: "delete listing", Err: err}
	}

	s.metrics.ListingDeletesTotal.Inc()
	s.logger.Info("Listing deleted", zap.String("listing_id", id))
	s.invalidate(ctx, cache.ViewAllListings, cache.ViewSearch, cache.ViewListingDetail(id))
	return nil
}

// insertImages writes one row per url with order = index and is_main = index == 0.
// Outside a transaction a failure only becomes a warning, since the listing is usable without images.
func (s *listingService) insertImages(ctx context.Context, listingID string, urls []string, now time.Time, warnings *[]string) error {
	if len(urls) == 0 {
		return nil
	}
	if err := s.stores.Images.InsertImages(ctx, models.NewListingImages(listingID, urls, now)); err != nil {
		if s.stores.Tx.Transactional() {
			return &StoreError{Op: "save listing images", Err: err}
		}
		s.imageWriteFailed(listingID, err, warnings)
	}
	return nil
}

func (s *listingService) imageWriteFailed(listingID string, err error, warnings *[]string) {
	s.metrics.ImageWriteFailuresTotal.Inc()
	s.logger.Error("Listing saved but image rows failed", zap.String("listing_id", listingID), zap.Error(err))
	*warnings = append(*warnings, "listing saved, but its images could not be updated: "+err.Error())
}

// invalidate is best effort; a failure never fails the mutation that triggered it.
func (s *listingService) invalidate(ctx context.Context, keys ...string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, keys...); err != nil {
		s.metrics.ViewInvalidationFailures.Inc()
		s.logger.Warn("View invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
