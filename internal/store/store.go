// Package store persists listings, their images, profiles and accounts.
// Two drivers implement the same interfaces: MongoStore and PostgresStore.
package store

import (
	"context"
	"errors"

	"github.com/ksw5434/realestate/internal/models"
)

var (
	// ErrNotFound is returned when a lookup or update matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate key")
)

type IListingStore interface {
	InsertListing(ctx context.Context, listing *models.Listing) error
	// UpdateListing overwrites every mutable field. ErrNotFound when the id is unknown.
	UpdateListing(ctx context.Context, listing *models.Listing) error
	// DeleteListing removes the listing and all of its images. Unknown ids are not an error.
	DeleteListing(ctx context.Context, id string) error
	FindListing(ctx context.Context, id string) (*models.Listing, error)
	// ListListings returns every listing, newest first.
	ListListings(ctx context.Context) ([]models.Listing, error)
	// ListingIDsByCreator returns the ids of every listing created_by the given profile.
	ListingIDsByCreator(ctx context.Context, createdBy string) ([]string, error)
}

type IImageStore interface {
	InsertImages(ctx context.Context, images []models.ListingImage) error
	DeleteImages(ctx context.Context, listingID string) error
	// ListImages returns a listing's images ordered by image_order ascending.
	ListImages(ctx context.Context, listingID string) ([]models.ListingImage, error)
	// MainImageURLs maps listing id to its main image url, for the ids that have one.
	MainImageURLs(ctx context.Context, listingIDs []string) (map[string]string, error)
}

type IProfileStore interface {
	FindProfile(ctx context.Context, id string) (*models.Profile, error)
	FindProfiles(ctx context.Context, ids []string) (map[string]*models.Profile, error)
	// InsertProfile returns ErrDuplicate when the id already exists.
	InsertProfile(ctx context.Context, profile *models.Profile) error
	// UpdateProfile writes the owner-editable fields. email and is_admin are left untouched.
	UpdateProfile(ctx context.Context, profile *models.Profile) error
}

type IAccountStore interface {
	// InsertAccount returns ErrDuplicate when the email is taken.
	InsertAccount(ctx context.Context, account *models.Account) error
	FindAccountByEmail(ctx context.Context, email string) (*models.Account, error)
}

// ITxRunner runs fn so that every store call made with the ctx it receives
// commits or rolls back together. Non-transactional runners call fn directly.
type ITxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	Transactional() bool
}

// Store is the full set of capabilities a driver provides.
type Store interface {
	IListingStore
	IImageStore
	IProfileStore
	IAccountStore
	ITxRunner
}
