package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ksw5434/realestate/internal/db"
	"github.com/ksw5434/realestate/internal/models"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type txKey struct{}

// PostgresStore implements Store on Postgres. listing_images cascade through their foreign key.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

func (s *PostgresStore) Transactional() bool {
	return true
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

const listingColumns = `id, property_number, title, COALESCE(subtitle, ''), price, address,
	COALESCE(area, ''), COALESCE(rooms, ''), COALESCE(floor, ''), COALESCE(direction, ''),
	COALESCE(supply_area, ''), COALESCE(floor_info, ''), COALESCE(rooms_baths, ''),
	COALESCE(move_in_date, ''), COALESCE(entrance_structure, ''), COALESCE(maintenance_fee, ''),
	COALESCE(heating_method, ''), COALESCE(approval_date, ''), COALESCE(total_households, ''),
	COALESCE(total_parking, ''), COALESCE(constructor, ''), COALESCE(map_url, ''),
	has_basic_options, descriptions, facilities, financial_info, created_by, created_at, updated_at`

func scanListing(row pgx.Row) (*models.Listing, error) {
	var (
		l             models.Listing
		facilities    []byte
		financialInfo []byte
	)
	err := row.Scan(&l.ID, &l.PropertyNumber, &l.Title, &l.Subtitle, &l.Price, &l.Address,
		&l.Area, &l.Rooms, &l.Floor, &l.Direction,
		&l.SupplyArea, &l.FloorInfo, &l.RoomsBaths,
		&l.MoveInDate, &l.EntranceStructure, &l.MaintenanceFee,
		&l.HeatingMethod, &l.ApprovalDate, &l.TotalHouseholds,
		&l.TotalParking, &l.Constructor, &l.MapURL,
		&l.HasBasicOptions, &l.Descriptions, &facilities, &financialInfo, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(facilities) > 0 {
		if err := json.Unmarshal(facilities, &l.Facilities); err != nil {
			return nil, fmt.Errorf("decode facilities: %w", err)
		}
	}
	if len(financialInfo) > 0 {
		l.FinancialInfo = &models.FinancialInfo{}
		if err := json.Unmarshal(financialInfo, l.FinancialInfo); err != nil {
			return nil, fmt.Errorf("decode financial_info: %w", err)
		}
	}
	return &l, nil
}

// jsonColumn encodes v for a jsonb column; empty values become NULL.
func jsonColumn(v any) ([]byte, error) {
	switch t := v.(type) {
	case models.Facilities:
		if len(t) == 0 {
			return nil, nil
		}
	case *models.FinancialInfo:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func listingJSONColumns(l *models.Listing) (facilities, financialInfo []byte, err error) {
	if facilities, err = jsonColumn(l.Facilities); err != nil {
		return nil, nil, err
	}
	if financialInfo, err = jsonColumn(l.FinancialInfo); err != nil {
		return nil, nil, err
	}
	return facilities, financialInfo, nil
}

func (s *PostgresStore) InsertListing(ctx context.Context, l *models.Listing) error {
	facilities, financialInfo, err := listingJSONColumns(l)
	if err != nil {
		return err
	}
	_, err = s.q(ctx).Exec(ctx, `INSERT INTO listings (id, property_number, title, subtitle, price, address,
		area, rooms, floor, direction, supply_area, floor_info, rooms_baths, move_in_date,
		entrance_structure, maintenance_fee, heating_method, approval_date, total_households,
		total_parking, constructor, map_url, has_basic_options, descriptions, facilities,
		financial_info, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
		$19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)`,
		l.ID, l.PropertyNumber, l.Title, l.Subtitle, l.Price, l.Address,
		l.Area, l.Rooms, l.Floor, l.Direction, l.SupplyArea, l.FloorInfo, l.RoomsBaths, l.MoveInDate,
		l.EntranceStructure, l.MaintenanceFee, l.HeatingMethod, l.ApprovalDate, l.TotalHouseholds,
		l.TotalParking, l.Constructor, l.MapURL, l.HasBasicOptions, l.Descriptions, facilities,
		financialInfo, l.CreatedBy, l.CreatedAt, l.UpdatedAt)
	return pgErr("insert listing", err)
}

func (s *PostgresStore) UpdateListing(ctx context.Context, l *models.Listing) error {
	facilities, financialInfo, err := listingJSONColumns(l)
	if err != nil {
		return err
	}
	tag, err := s.q(ctx).Exec(ctx, `UPDATE listings SET property_number = $2, title = $3, subtitle = $4,
		price = $5, address = $6, area = $7, rooms = $8, floor = $9, direction = $10, supply_area = $11,
		floor_info = $12, rooms_baths = $13, move_in_date = $14, entrance_structure = $15,
		maintenance_fee = $16, heating_method = $17, approval_date = $18, total_households = $19,
		total_parking = $20, constructor = $21, map_url = $22, has_basic_options = $23,
		descriptions = $24, facilities = $25, financial_info = $26, updated_at = $27
		WHERE id = $1`,
		l.ID, l.PropertyNumber, l.Title, l.Subtitle, l.Price, l.Address, l.Area, l.Rooms, l.Floor,
		l.Direction, l.SupplyArea, l.FloorInfo, l.RoomsBaths, l.MoveInDate, l.EntranceStructure,
		l.MaintenanceFee, l.HeatingMethod, l.ApprovalDate, l.TotalHouseholds, l.TotalParking,
		l.Constructor, l.MapURL, l.HasBasicOptions, l.Descriptions, facilities, financialInfo, l.UpdatedAt)
	if err != nil {
		return pgErr("update listing", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteListing(ctx context.Context, id string) error {
	_, err := s.q(ctx).Exec(ctx, `DELETE FROM listings WHERE id = $1`, id)
	return pgErr("delete listing", err)
}

func (s *PostgresStore) FindListing(ctx context.Context, id string) (*models.Listing, error) {
	row := s.q(ctx).QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	l, err := scanListing(row)
	if err != nil {
		return nil, pgErr("find listing", err)
	}
	return l, nil
}

func (s *PostgresStore) ListListings(ctx context.Context) ([]models.Listing, error) {
	rows, err := s.q(ctx).Query(ctx, `SELECT `+listingColumns+` FROM listings ORDER BY created_at DESC`)
	if err != nil {
		return nil, pgErr("list listings", err)
	}
	defer rows.Close()

	listings := []models.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, pgErr("scan listing", err)
		}
		listings = append(listings, *l)
	}
	return listings, pgErr("list listings", rows.Err())
}

func (s *PostgresStore) ListingIDsByCreator(ctx context.Context, createdBy string) ([]string, error) {
	rows, err := s.q(ctx).Query(ctx, `SELECT id FROM listings WHERE created_by = $1`, createdBy)
	if err != nil {
		return nil, pgErr("list listings by creator", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, pgErr("scan listing ids", err)
	}
	return ids, nil
}

func (s *PostgresStore) InsertImages(ctx context.Context, images []models.ListingImage) error {
	if len(images) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, img := range images {
		batch.Queue(`INSERT INTO listing_images (id, listing_id, image_url, image_order, is_main, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			img.ID, img.ListingID, img.ImageURL, img.ImageOrder, img.IsMain, img.CreatedAt)
	}
	return pgErr("insert listing images", s.q(ctx).SendBatch(ctx, batch).Close())
}

func (s *PostgresStore) DeleteImages(ctx context.Context, listingID string) error {
	_, err := s.q(ctx).Exec(ctx, `DELETE FROM listing_images WHERE listing_id = $1`, listingID)
	return pgErr("delete listing images", err)
}

func (s *PostgresStore) ListImages(ctx context.Context, listingID string) ([]models.ListingImage, error) {
	rows, err := s.q(ctx).Query(ctx, `SELECT id, listing_id, image_url, image_order, is_main, created_at
		FROM listing_images WHERE listing_id = $1 ORDER BY image_order ASC`, listingID)
	if err != nil {
		return nil, pgErr("list listing images", err)
	}
	images, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ListingImage, error) {
		var img models.ListingImage
		err := row.Scan(&img.ID, &img.ListingID, &img.ImageURL, &img.ImageOrder, &img.IsMain, &img.CreatedAt)
		return img, err
	})
	if err != nil {
		return nil, pgErr("scan listing images", err)
	}
	if images == nil {
		images = []models.ListingImage{}
	}
	return images, nil
}

func (s *PostgresStore) MainImageURLs(ctx context.Context, listingIDs []string) (map[string]string, error) {
	urls := make(map[string]string, len(listingIDs))
	if len(listingIDs) == 0 {
		return urls, nil
	}
	rows, err := s.q(ctx).Query(ctx, `SELECT listing_id, image_url FROM listing_images
		WHERE listing_id = ANY($1) AND is_main`, listingIDs)
	if err != nil {
		return nil, pgErr("find main images", err)
	}
	defer rows.Close()
	for rows.Next() {
		var listingID, url string
		if err := rows.Scan(&listingID, &url); err != nil {
			return nil, pgErr("scan main image", err)
		}
		urls[listingID] = url
	}
	return urls, pgErr("find main images", rows.Err())
}

const profileColumns = `id, email, COALESCE(name, ''), COALESCE(phone, ''), COALESCE(profile_image, ''),
	COALESCE(company_name, ''), COALESCE(position, ''), COALESCE(company_phone, ''),
	COALESCE(company_email, ''), COALESCE(address, ''), COALESCE(business_number, ''),
	COALESCE(representative, ''), COALESCE(website, ''), is_admin, created_at, updated_at`

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(&p.ID, &p.Email, &p.Name, &p.Phone, &p.ProfileImage, &p.CompanyName, &p.Position,
		&p.CompanyPhone, &p.CompanyEmail, &p.Address, &p.BusinessNumber, &p.Representative, &p.Website,
		&p.IsAdmin, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) FindProfile(ctx context.Context, id string) (*models.Profile, error) {
	p, err := scanProfile(s.q(ctx).QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		return nil, pgErr("find profile", err)
	}
	return p, nil
}

func (s *PostgresStore) FindProfiles(ctx context.Context, ids []string) (map[string]*models.Profile, error) {
	profiles := make(map[string]*models.Profile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}
	rows, err := s.q(ctx).Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, pgErr("find profiles", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, pgErr("scan profile", err)
		}
		profiles[p.ID] = p
	}
	return profiles, pgErr("find profiles", rows.Err())
}

func (s *PostgresStore) InsertProfile(ctx context.Context, p *models.Profile) error {
	_, err := s.q(ctx).Exec(ctx, `INSERT INTO profiles (id, email, name, phone, profile_image, company_name,
		position, company_phone, company_email, address, business_number, representative, website,
		is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		p.ID, p.Email, p.Name, p.Phone, p.ProfileImage, p.CompanyName, p.Position, p.CompanyPhone,
		p.CompanyEmail, p.Address, p.BusinessNumber, p.Representative, p.Website, p.IsAdmin,
		p.CreatedAt, p.UpdatedAt)
	return pgErr("insert profile", err)
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, p *models.Profile) error {
	tag, err := s.q(ctx).Exec(ctx, `UPDATE profiles SET name = $2, phone = $3, profile_image = $4,
		company_name = $5, position = $6, company_phone = $7, company_email = $8, address = $9,
		business_number = $10, representative = $11, website = $12, updated_at = $13
		WHERE id = $1`,
		p.ID, p.Name, p.Phone, p.ProfileImage, p.CompanyName, p.Position, p.CompanyPhone,
		p.CompanyEmail, p.Address, p.BusinessNumber, p.Representative, p.Website, p.UpdatedAt)
	if err != nil {
		return pgErr("update profile", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) InsertAccount(ctx context.Context, a *models.Account) error {
	a.GenIDIfEmpty()
	_, err := s.q(ctx).Exec(ctx, `INSERT INTO accounts (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)`, a.ID, strings.ToLower(a.Email), a.PasswordHash, a.CreatedAt)
	return pgErr("insert account", err)
}

func (s *PostgresStore) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var a models.Account
	err := s.q(ctx).QueryRow(ctx, `SELECT id, email, password_hash, created_at FROM accounts WHERE email = $1`,
		strings.ToLower(email)).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		return nil, pgErr("find account", err)
	}
	return &a, nil
}

// pgErr maps driver errors onto the store sentinels. A nil err stays nil.
func pgErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case db.IsPostgresUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
