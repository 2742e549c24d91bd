package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ksw5434/realestate/internal/db"
	"github.com/ksw5434/realestate/internal/models"
)

// MongoStore implements Store on a MongoDB database.
// Transactions need a replica set, so they are opt-in.
type MongoStore struct {
	db            *mongo.Database
	transactional bool
}

func NewMongoStore(database *mongo.Database, transactional bool) *MongoStore {
	return &MongoStore{db: database, transactional: transactional}
}

func (s *MongoStore) listings() *mongo.Collection {
	return s.db.Collection(db.ListingsCollection)
}

func (s *MongoStore) images() *mongo.Collection {
	return s.db.Collection(db.ListingImagesCollection)
}

func (s *MongoStore) profiles() *mongo.Collection {
	return s.db.Collection(db.ProfilesCollection)
}

func (s *MongoStore) accounts() *mongo.Collection {
	return s.db.Collection(db.AccountsCollection)
}

func (s *MongoStore) Transactional() bool {
	return s.transactional
}

func (s *MongoStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transactional || mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	session, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start mongo session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *MongoStore) InsertListing(ctx context.Context, listing *models.Listing) error {
	if _, err := s.listings().InsertOne(ctx, listing); err != nil {
		return mongoErr("insert listing", err)
	}
	return nil
}

func (s *MongoStore) UpdateListing(ctx context.Context, listing *models.Listing) error {
	res, err := s.listings().UpdateByID(ctx, listing.ID, bson.M{"$set": listingMutableFields(listing)})
	if err != nil {
		return mongoErr("update listing", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// listingMutableFields lists every field an update overwrites. created_by and created_at are kept.
func listingMutableFields(l *models.Listing) bson.M {
	return bson.M{
		"property_number":    l.PropertyNumber,
		"title":              l.Title,
		"subtitle":           l.Subtitle,
		"price":              l.Price,
		"address":            l.Address,
		"area":               l.Area,
		"rooms":              l.Rooms,
		"floor":              l.Floor,
		"direction":          l.Direction,
		"supply_area":        l.SupplyArea,
		"floor_info":         l.FloorInfo,
		"rooms_baths":        l.RoomsBaths,
		"move_in_date":       l.MoveInDate,
		"entrance_structure": l.EntranceStructure,
		"maintenance_fee":    l.MaintenanceFee,
		"heating_method":     l.HeatingMethod,
		"approval_date":      l.ApprovalDate,
		"total_households":   l.TotalHouseholds,
		"total_parking":      l.TotalParking,
		"constructor":        l.Constructor,
		"map_url":            l.MapURL,
		"has_basic_options":  l.HasBasicOptions,
		"descriptions":       l.Descriptions,
		"facilities":         l.Facilities,
		"financial_info":     l.FinancialInfo,
		"updated_at":         l.UpdatedAt,
	}
}

func (s *MongoStore) DeleteListing(ctx context.Context, id string) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.images().DeleteMany(ctx, bson.M{"listing_id": id}); err != nil {
			return mongoErr("delete listing images", err)
		}
		if _, err := s.listings().DeleteOne(ctx, bson.M{"_id": id}); err != nil {
			return mongoErr("delete listing", err)
		}
		return nil
	})
}

func (s *MongoStore) FindListing(ctx context.Context, id string) (*models.Listing, error) {
	var listing models.Listing
	if err := s.listings().FindOne(ctx, bson.M{"_id": id}).Decode(&listing); err != nil {
		return nil, mongoErr("find listing", err)
	}
	return &listing, nil
}

func (s *MongoStore) ListListings(ctx context.Context) ([]models.Listing, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.listings().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, mongoErr("list listings", err)
	}
	listings := []models.Listing{}
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, mongoErr("decode listings", err)
	}
	return listings, nil
}

func (s *MongoStore) ListingIDsByCreator(ctx context.Context, createdBy string) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := s.listings().Find(ctx, bson.M{"created_by": createdBy}, opts)
	if err != nil {
		return nil, mongoErr("list listings by creator", err)
	}
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, mongoErr("decode listing ids", err)
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids, nil
}

func (s *MongoStore) InsertImages(ctx context.Context, images []models.ListingImage) error {
	if len(images) == 0 {
		return nil
	}
	docs := make([]interface{}, len(images))
	for i := range images {
		docs[i] = images[i]
	}
	if _, err := s.images().InsertMany(ctx, docs); err != nil {
		return mongoErr("insert listing images", err)
	}
	return nil
}

func (s *MongoStore) DeleteImages(ctx context.Context, listingID string) error {
	if _, err := s.images().DeleteMany(ctx, bson.M{"listing_id": listingID}); err != nil {
		return mongoErr("delete listing images", err)
	}
	return nil
}

func (s *MongoStore) ListImages(ctx context.Context, listingID string) ([]models.ListingImage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "image_order", Value: 1}})
	cursor, err := s.images().Find(ctx, bson.M{"listing_id": listingID}, opts)
	if err != nil {
		return nil, mongoErr("list listing images", err)
	}
	images := []models.ListingImage{}
	if err := cursor.All(ctx, &images); err != nil {
		return nil, mongoErr("decode listing images", err)
	}
	return images, nil
}

func (s *MongoStore) MainImageURLs(ctx context.Context, listingIDs []string) (map[string]string, error) {
	urls := make(map[string]string, len(listingIDs))
	if len(listingIDs) == 0 {
		return urls, nil
	}
	filter := bson.M{"listing_id": bson.M{"$in": listingIDs}, "is_main": true}
	opts := options.Find().SetProjection(bson.M{"listing_id": 1, "image_url": 1})
	cursor, err := s.images().Find(ctx, filter, opts)
	if err != nil {
		return nil, mongoErr("find main images", err)
	}
	var rows []models.ListingImage
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, mongoErr("decode main images", err)
	}
	for _, row := range rows {
		urls[row.ListingID] = row.ImageURL
	}
	return urls, nil
}

func (s *MongoStore) FindProfile(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.profiles().FindOne(ctx, bson.M{"_id": id}).Decode(&profile); err != nil {
		return nil, mongoErr("find profile", err)
	}
	return &profile, nil
}

func (s *MongoStore) FindProfiles(ctx context.Context, ids []string) (map[string]*models.Profile, error) {
	profiles := make(map[string]*models.Profile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}
	cursor, err := s.profiles().Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, mongoErr("find profiles", err)
	}
	var rows []models.Profile
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, mongoErr("decode profiles", err)
	}
	for i := range rows {
		profiles[rows[i].ID] = &rows[i]
	}
	return profiles, nil
}

func (s *MongoStore) InsertProfile(ctx context.Context, profile *models.Profile) error {
	if _, err := s.profiles().InsertOne(ctx, profile); err != nil {
		return mongoErr("insert profile", err)
	}
	return nil
}

func (s *MongoStore) UpdateProfile(ctx context.Context, p *models.Profile) error {
	update := bson.M{"$set": bson.M{
		"name":            p.Name,
		"phone":           p.Phone,
		"profile_image":   p.ProfileImage,
		"company_name":    p.CompanyName,
		"position":        p.Position,
		"company_phone":   p.CompanyPhone,
		"company_email":   p.CompanyEmail,
		"address":         p.Address,
		"business_number": p.BusinessNumber,
		"representative":  p.Representative,
		"website":         p.Website,
		"updated_at":      p.UpdatedAt,
	}}
	res, err := s.profiles().UpdateByID(ctx, p.ID, update)
	if err != nil {
		return mongoErr("update profile", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) InsertAccount(ctx context.Context, account *models.Account) error {
	account.GenIDIfEmpty()
	if _, err := s.accounts().InsertOne(ctx, account); err != nil {
		return mongoErr("insert account", err)
	}
	return nil
}

func (s *MongoStore) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	err := s.accounts().FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&account)
	if err != nil {
		return nil, mongoErr("find account", err)
	}
	return &account, nil
}

// mongoErr maps driver errors onto the store sentinels and wraps the rest.
func mongoErr(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case db.IsMongoDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
