package services

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ksw5434/realestate/internal/cache"
	"github.com/ksw5434/realestate/internal/models"
	"github.com/ksw5434/realestate/internal/storage"
	"github.com/ksw5434/realestate/internal/store"
)

// memStore is an in-memory store.Store with failure injection.
type memStore struct {
	mu            sync.Mutex
	listings      map[string]models.Listing
	images        map[string][]models.ListingImage
	profiles      map[string]models.Profile
	accounts      map[string]models.Account
	transactional bool

	insertImagesErr error
	deleteImagesErr error
	findProfileErr  error
	writes          int

	listingsByCreatorErr error
}

var _ store.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		listings: map[string]models.Listing{},
		images:   map[string][]models.ListingImage{},
		profiles: map[string]models.Profile{},
		accounts: map[string]models.Account{},
	}
}

func (m *memStore) addProfile(id string, admin bool) {
	m.profiles[id] = models.Profile{ID: id, Email: id + "@example.com", Name: "Broker " + id, IsAdmin: admin}
}

func (m *memStore) Transactional() bool { return m.transactional }

// WithinTx restores a snapshot of listings and images when fn fails on a transactional store.
func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !m.transactional {
		return fn(ctx)
	}
	m.mu.Lock()
	listings := make(map[string]models.Listing, len(m.listings))
	for k, v := range m.listings {
		listings[k] = v
	}
	images := make(map[string][]models.ListingImage, len(m.images))
	for k, v := range m.images {
		images[k] = append([]models.ListingImage(nil), v...)
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.listings, m.images = listings, images
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) InsertListing(_ context.Context, l *models.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.listings[l.ID]; ok {
		return store.ErrDuplicate
	}
	m.listings[l.ID] = *l
	m.writes++
	return nil
}

func (m *memStore) UpdateListing(_ context.Context, l *models.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.listings[l.ID]
	if !ok {
		return store.ErrNotFound
	}
	updated := *l
	updated.CreatedBy = existing.CreatedBy
	updated.CreatedAt = existing.CreatedAt
	m.listings[l.ID] = updated
	m.writes++
	return nil
}

func (m *memStore) DeleteListing(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listings, id)
	delete(m.images, id)
	m.writes++
	return nil
}

func (m *memStore) FindListing(_ context.Context, id string) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &l, nil
}

func (m *memStore) ListListings(_ context.Context) ([]models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Listing{}
	for _, l := range m.listings {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) ListingIDsByCreator(_ context.Context, createdBy string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listingsByCreatorErr != nil {
		return nil, m.listingsByCreatorErr
	}
	ids := []string{}
	for id, l := range m.listings {
		if l.CreatedBy == createdBy {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memStore) InsertImages(_ context.Context, images []models.ListingImage) error {
	if m.insertImagesErr != nil {
		return m.insertImagesErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, img := range images {
		m.images[img.ListingID] = append(m.images[img.ListingID], img)
	}
	m.writes++
	return nil
}

func (m *memStore) DeleteImages(_ context.Context, listingID string) error {
	if m.deleteImagesErr != nil {
		return m.deleteImagesErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.images, listingID)
	m.writes++
	return nil
}

func (m *memStore) ListImages(_ context.Context, listingID string) ([]models.ListingImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.ListingImage{}, m.images[listingID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].ImageOrder < out[j].ImageOrder })
	return out, nil
}

func (m *memStore) MainImageURLs(_ context.Context, ids []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for _, id := range ids {
		for _, img := range m.images[id] {
			if img.IsMain {
				out[id] = img.ImageURL
			}
		}
	}
	return out, nil
}

func (m *memStore) FindProfile(_ context.Context, id string) (*models.Profile, error) {
	if m.findProfileErr != nil {
		return nil, m.findProfileErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (m *memStore) FindProfiles(_ context.Context, ids []string) (map[string]*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]*models.Profile{}
	for _, id := range ids {
		if p, ok := m.profiles[id]; ok {
			out[id] = &p
		}
	}
	return out, nil
}

func (m *memStore) InsertProfile(_ context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.ID]; ok {
		return store.ErrDuplicate
	}
	m.profiles[p.ID] = *p
	return nil
}

func (m *memStore) UpdateProfile(_ context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.profiles[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	updated := *p
	updated.Email = existing.Email
	updated.IsAdmin = existing.IsAdmin
	m.profiles[p.ID] = updated
	return nil
}

func (m *memStore) InsertAccount(_ context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.GenIDIfEmpty()
	email := strings.ToLower(a.Email)
	if _, ok := m.accounts[email]; ok {
		return store.ErrDuplicate
	}
	m.accounts[email] = *a
	return nil
}

func (m *memStore) FindAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[strings.ToLower(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

// memObjects is an in-memory storage.IObjectStorage that records every Put.
type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	putErr  error
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}}
}

func (o *memObjects) Put(_ context.Context, key string, body io.Reader, _ int64, opts storage.PutOptions) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.puts++
	if o.putErr != nil {
		return o.putErr
	}
	if _, ok := o.objects[key]; ok && !opts.Overwrite {
		return storage.ErrObjectExists
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	o.objects[key] = data
	return nil
}

func (o *memObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (o *memObjects) PublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

// recordingInvalidator remembers every invalidation call.
type recordingInvalidator struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, keys)
	return r.err
}

// memViewCache is an in-memory cache.IViewCache.
type memViewCache struct {
	mu    sync.Mutex
	items map[string][]byte
	sets  int
}

func newMemViewCache() *memViewCache {
	return &memViewCache{items: map[string][]byte{}}
}

func (c *memViewCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (c *memViewCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	c.sets++
	return nil
}

func (c *memViewCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}
