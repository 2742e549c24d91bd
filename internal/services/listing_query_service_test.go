package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ksw5434/realestate/internal/cache"
	"github.com/ksw5434/realestate/internal/models"
)

func seedListing(t *testing.T, st *memStore, id, createdBy string, createdAt time.Time, urls ...string) {
	t.Helper()
	require.NoError(t, st.InsertListing(context.Background(), &models.Listing{
		ID:        id,
		Title:     "Listing " + id,
		CreatedBy: createdBy,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}))
	if len(urls) > 0 {
		require.NoError(t, st.InsertImages(context.Background(), models.NewListingImages(id, urls, createdAt)))
	}
}

func TestListingQueryService_ListEmpty(t *testing.T) {
	st := newMemStore()
	svc := NewListingQueryService(st, st, st, nil, time.Minute, zap.NewNop())

	summaries, err := svc.ListListings(context.Background(), cache.ViewAllListings)
	require.NoError(t, err)
	require.NotNil(t, summaries)
	assert.Empty(t, summaries)

	raw, err := json.Marshal(summaries)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestListingQueryService_ListNewestFirstWithMainImage(t *testing.T) {
	st := newMemStore()
	st.addProfile("admin", true)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedListing(t, st, "old", "admin", base, "https://cdn/old-0.jpg", "https://cdn/old-1.jpg")
	seedListing(t, st, "new", "admin", base.Add(time.Hour))
	seedListing(t, st, "orphan", "deleted-user", base.Add(30*time.Minute), "https://cdn/orphan.jpg")

	svc := NewListingQueryService(st, st, st, nil, time.Minute, zap.NewNop())
	summaries, err := svc.ListListings(context.Background(), cache.ViewAllListings)
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	assert.Equal(t, "new", summaries[0].ID)
	assert.Nil(t, summaries[0].ImageURL)
	require.NotNil(t, summaries[0].Creator)

	assert.Equal(t, "orphan", summaries[1].ID)
	assert.Nil(t, summaries[1].Creator)
	require.NotNil(t, summaries[1].ImageURL)

	assert.Equal(t, "old", summaries[2].ID)
	require.NotNil(t, summaries[2].ImageURL)
	assert.Equal(t, "https://cdn/old-0.jpg", *summaries[2].ImageURL)
}

func TestListingQueryService_GetMissing(t *testing.T) {
	st := newMemStore()
	svc := NewListingQueryService(st, st, st, nil, time.Minute, zap.NewNop())

	detail, err := svc.GetListing(context.Background(), "nope")
	assert.Nil(t, detail)
	assert.ErrorIs(t, err, ErrListingNotFound)
}

func TestListingQueryService_GetWithMissingCreator(t *testing.T) {
	st := newMemStore()
	seedListing(t, st, "l1", "gone", time.Now().UTC(), "https://cdn/1.jpg")
	svc := NewListingQueryService(st, st, st, nil, time.Minute, zap.NewNop())

	detail, err := svc.GetListing(context.Background(), "l1")
	require.NoError(t, err)
	assert.Nil(t, detail.Creator)
	require.Len(t, detail.Images, 1)
	assert.True(t, detail.Images[0].IsMain)
}

func TestListingQueryService_CreatorLookupFailure(t *testing.T) {
	st := newMemStore()
	seedListing(t, st, "l1", "admin", time.Now().UTC())
	st.findProfileErr = errors.New("socket closed")
	svc := NewListingQueryService(st, st, st, nil, time.Minute, zap.NewNop())

	_, err := svc.GetListing(context.Background(), "l1")
	var storeErr *StoreError
	assert.ErrorAs(t, err, &storeErr)
}

func TestListingQueryService_ServesFromViewCache(t *testing.T) {
	st := newMemStore()
	st.addProfile("admin", true)
	seedListing(t, st, "l1", "admin", time.Now().UTC(), "https://cdn/1.jpg")
	vc := newMemViewCache()
	svc := NewListingQueryService(st, st, st, vc, time.Minute, zap.NewNop())
	ctx := context.Background()

	first, err := svc.GetListing(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, 1, vc.sets)
	assert.Contains(t, vc.items, cache.ViewListingDetail("l1"))

	// Remove the row; the cached view is still served until invalidated.
	require.NoError(t, st.DeleteListing(ctx, "l1"))
	cached, err := svc.GetListing(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, first.Title, cached.Title)
	assert.Equal(t, 1, vc.sets)

	require.NoError(t, vc.Invalidate(ctx, cache.ViewListingDetail("l1")))
	_, err = svc.GetListing(ctx, "l1")
	assert.ErrorIs(t, err, ErrListingNotFound)
}

func TestListingQueryService_CorruptCacheEntryFallsThrough(t *testing.T) {
	st := newMemStore()
	seedListing(t, st, "l1", "admin", time.Now().UTC())
	vc := newMemViewCache()
	vc.items[cache.ViewSearch] = []byte("{not json")
	svc := NewListingQueryService(st, st, st, vc, time.Minute, zap.NewNop())

	summaries, err := svc.ListListings(context.Background(), cache.ViewSearch)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "l1", summaries[0].ID)
}
