package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ksw5434/realestate/internal/cache"
	"github.com/ksw5434/realestate/internal/models"
	"github.com/ksw5434/realestate/internal/store"
)

// IListingQueryService serves the public listing views. No authorization is needed.
type IListingQueryService interface {
	GetListing(ctx context.Context, id string) (*models.ListingDetail, error)
	// ListListings returns all listings, newest first, cached under view.
	ListListings(ctx context.Context, view string) ([]models.ListingSummary, error)
}

type listingQueryService struct {
	listings  store.IListingStore
	images    store.IImageStore
	profiles  store.IProfileStore
	viewCache cache.IViewCache
	ttl       time.Duration
	logger    *zap.Logger
}

// NewListingQueryService creates the read side. viewCache may be nil.
func NewListingQueryService(listings store.IListingStore, images store.IImageStore, profiles store.IProfileStore, viewCache cache.IViewCache, ttl time.Duration, logger *zap.Logger) IListingQueryService {
	return &listingQueryService{
		listings:  listings,
		images:    images,
		profiles:  profiles,
		viewCache: viewCache,
		ttl:       ttl,
		logger:    logger,
	}
}

func (s *listingQueryService) GetListing(ctx context.Context, id string) (*models.ListingDetail, error) {
	key := cache.ViewListingDetail(id)
	var detail models.ListingDetail
	if s.fromCache(ctx, key, &detail) {
		return &detail, nil
	}

	listing, err := s.listings.FindListing(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, &StoreError{Op: "load listing", Err: err}
	}

	creator, err := s.profiles.FindProfile(ctx, listing.CreatedBy)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, &StoreError{Op: "load listing creator", Err: err}
		}
		s.logger.Debug("Listing creator not found", zap.String("listing_id", id), zap.String("created_by", listing.CreatedBy))
		creator = nil
	}

	images, err := s.images.ListImages(ctx, id)
	if err != nil {
		return nil, &StoreError{Op: "load listing images", Err: err}
	}

	detail = models.ListingDetail{Listing: *listing, Creator: creator, Images: images}
	s.toCache(ctx, key, detail)
	return &detail, nil
}

func (s *listingQueryService) ListListings(ctx context.Context, view string) ([]models.ListingSummary, error) {
	var summaries []models.ListingSummary
	if s.fromCache(ctx, view, &summaries) {
		return summaries, nil
	}

	listings, err := s.listings.ListListings(ctx)
	if err != nil {
		return nil, &StoreError{Op: "list listings", Err: err}
	}

	ids := make([]string, len(listings))
	creatorIDs := make([]string, 0, len(listings))
	seen := make(map[string]bool)
	for i, l := range listings {
		ids[i] = l.ID
		if !seen[l.CreatedBy] {
			seen[l.CreatedBy] = true
			creatorIDs = append(creatorIDs, l.CreatedBy)
		}
	}

	mainImages, err := s.images.MainImageURLs(ctx, ids)
	if err != nil {
		return nil, &StoreError{Op: "load main images", Err: err}
	}
	creators, err := s.profiles.FindProfiles(ctx, creatorIDs)
	if err != nil {
		return nil, &StoreError{Op: "load listing creators", Err: err}
	}

	summaries = make([]models.ListingSummary, len(listings))
	for i, l := range listings {
		summaries[i] = models.ListingSummary{Listing: l, Creator: creators[l.CreatedBy]}
		if u, ok := mainImages[l.ID]; ok {
			summaries[i].ImageURL = &u
		}
	}

	s.toCache(ctx, view, summaries)
	return summaries, nil
}

// fromCache decodes key into dst. Misses, errors and corrupt entries all fall through to the store.
func (s *listingQueryService) fromCache(ctx context.Context, key string, dst interface{}) bool {
	if s.viewCache == nil {
		return false
	}
	raw, err := s.viewCache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("View cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.Error("Failed to unmarshal cached view", zap.String("key", key), zap.Error(err))
		return false
	}
	s.logger.Debug("View served from cache", zap.String("key", key))
	return true
}

func (s *listingQueryService) toCache(ctx context.Context, key string, value interface{}) {
	if s.viewCache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("Failed to marshal view for caching", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.viewCache.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.Warn("View cache write failed", zap.String("key", key), zap.Error(err))
	}
}
