package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"

	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

var ErrConflict = errors.New("conflict")

// Listing is a locally persisted vehicle listing. StockNumber is the
// natural key used to match records against the remote inventory.
type Listing struct {
	ID            uuid.UUID
	StockNumber   string
	VINNumber     string
	Title         string
	Slug          string
	Attrs         json.RawMessage
	FeaturedMedia *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ListingParams carries the mapped attribute set for a create or update.
type ListingParams struct {
	StockNumber string
	VINNumber   string
	Title       string
	Slug        string
	Attrs       json.RawMessage
}

// MediaAsset is a stored binary keyed by its originating remote URL.
type MediaAsset struct {
	ID          uuid.UUID
	SourceURL   string
	BlobKey     string
	Digest      string
	SizeBytes   int64
	ContentType string
	CreatedAt   time.Time
}

// SyncLog is one immutable audit record per completed or failed run.
type SyncLog struct {
	ID         uuid.UUID
	TargetID   string
	Trigger    string
	Status     string
	Created    int
	Updated    int
	Deleted    int
	Skipped    int
	TotalItems int
	DurationMS int64
	Error      string
	Details    json.RawMessage
	CreatedAt  time.Time
}

// SyncLogFilter narrows a sync log query.
type SyncLogFilter struct {
	TargetID string
	Status   string
	Limit    int
	Offset   int
}

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// ---- Listings ----

func (s *Store) FindListingByStockNumber(ctx context.Context, stockNumber string) (Listing, error) {
	var l Listing
	err := s.db.QueryRow(ctx, `
		SELECT id, stock_number, vin_number, title, slug, attrs, featured_media, created_at, updated_at
		FROM listings
		WHERE stock_number = $1
	`, stockNumber).Scan(
		&l.ID, &l.StockNumber, &l.VINNumber, &l.Title, &l.Slug,
		&l.Attrs, &l.FeaturedMedia, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return Listing{}, err
	}
	return l, nil
}

func (s *Store) GetListing(ctx context.Context, id uuid.UUID) (Listing, error) {
	var l Listing
	err := s.db.QueryRow(ctx, `
		SELECT id, stock_number, vin_number, title, slug, attrs, featured_media, created_at, updated_at
		FROM listings
		WHERE id = $1
	`, id).Scan(
		&l.ID, &l.StockNumber, &l.VINNumber, &l.Title, &l.Slug,
		&l.Attrs, &l.FeaturedMedia, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return Listing{}, err
	}
	return l, nil
}

func (s *Store) CreateListing(ctx context.Context, p ListingParams) (Listing, error) {
	attrs := p.Attrs
	if len(attrs) == 0 {
		attrs = json.RawMessage(`{}`)
	}
	var l Listing
	err := s.db.QueryRow(ctx, `
		INSERT INTO listings (stock_number, vin_number, title, slug, attrs)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		RETURNING id, stock_number, vin_number, title, slug, attrs, featured_media, created_at, updated_at
	`, p.StockNumber, p.VINNumber, p.Title, p.Slug, attrs).Scan(
		&l.ID, &l.StockNumber, &l.VINNumber, &l.Title, &l.Slug,
		&l.Attrs, &l.FeaturedMedia, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Listing{}, ErrConflict
		}
		return Listing{}, err
	}
	return l, nil
}

func (s *Store) UpdateListing(ctx context.Context, id uuid.UUID, p ListingParams) error {
	attrs := p.Attrs
	if len(attrs) == 0 {
		attrs = json.RawMessage(`{}`)
	}
	ct, err := s.db.Exec(ctx, `
		UPDATE listings
		SET vin_number = $2,
			title = $3,
			slug = $4,
			attrs = $5::jsonb,
			updated_at = now()
		WHERE id = $1
	`, id, p.VINNumber, p.Title, p.Slug, attrs)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *Store) DeleteListing(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM listing_media WHERE listing_id = $1`, id); err != nil {
		return err
	}
	ct, err := s.db.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListListingIDs returns the ids of every stored listing. The engine
// snapshots this once at the start of a run to compute the delete set.
func (s *Store) ListListingIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM listings ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) ListListings(ctx context.Context, limit, offset int) ([]Listing, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, stock_number, vin_number, title, slug, attrs, featured_media, created_at, updated_at
		FROM listings
		ORDER BY updated_at DESC, stock_number ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		var l Listing
		if err := rows.Scan(
			&l.ID, &l.StockNumber, &l.VINNumber, &l.Title, &l.Slug,
			&l.Attrs, &l.FeaturedMedia, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (s *Store) CountListings(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM listings`).Scan(&n)
	return n, err
}

func (s *Store) SetFeaturedMedia(ctx context.Context, listingID uuid.UUID, assetID *uuid.UUID) error {
	ct, err := s.db.Exec(ctx, `
		UPDATE listings SET featured_media = $2, updated_at = now() WHERE id = $1
	`, listingID, assetID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ---- Media assets ----

func (s *Store) FindMediaAssetBySourceURL(ctx context.Context, sourceURL string) (MediaAsset, error) {
	var a MediaAsset
	err := s.db.QueryRow(ctx, `
		SELECT id, source_url, blob_key, digest, size_bytes, content_type, created_at
		FROM media_assets
		WHERE source_url = $1
	`, sourceURL).Scan(
		&a.ID, &a.SourceURL, &a.BlobKey, &a.Digest, &a.SizeBytes, &a.ContentType, &a.CreatedAt,
	)
	if err != nil {
		return MediaAsset{}, err
	}
	return a, nil
}

func (s *Store) CreateMediaAsset(ctx context.Context, a MediaAsset) (MediaAsset, error) {
	var out MediaAsset
	err := s.db.QueryRow(ctx, `
		INSERT INTO media_assets (source_url, blob_key, digest, size_bytes, content_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, source_url, blob_key, digest, size_bytes, content_type, created_at
	`, a.SourceURL, a.BlobKey, a.Digest, a.SizeBytes, a.ContentType).Scan(
		&out.ID, &out.SourceURL, &out.BlobKey, &out.Digest, &out.SizeBytes, &out.ContentType, &out.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return MediaAsset{}, ErrConflict
		}
		return MediaAsset{}, err
	}
	return out, nil
}

// ListingGallery returns the asset ids associated with a listing in
// gallery order.
func (s *Store) ListingGallery(ctx context.Context, listingID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT asset_id
		FROM listing_media
		WHERE listing_id = $1
		ORDER BY position ASC
	`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReplaceListingGallery swaps the gallery association for a listing with
// the given ordered asset ids. An empty slice clears the gallery.
func (s *Store) ReplaceListingGallery(ctx context.Context, listingID uuid.UUID, assetIDs []uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM listing_media WHERE listing_id = $1`, listingID); err != nil {
		return err
	}
	for i, assetID := range assetIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO listing_media (listing_id, asset_id, position)
			VALUES ($1, $2, $3)
		`, listingID, assetID, i); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ---- Sync logs ----

func (s *Store) AppendSyncLog(ctx context.Context, entry SyncLog) (uuid.UUID, error) {
	details := entry.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `
		INSERT INTO sync_logs (target_id, trigger, status, created, updated, deleted, skipped, total_items, duration_ms, error, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb)
		RETURNING id
	`, entry.TargetID, entry.Trigger, entry.Status,
		entry.Created, entry.Updated, entry.Deleted, entry.Skipped,
		entry.TotalItems, entry.DurationMS, entry.Error, details,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *Store) ListSyncLogs(ctx context.Context, filter SyncLogFilter) ([]SyncLog, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 25
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, target_id, trigger, status, created, updated, deleted, skipped, total_items, duration_ms, error, details, created_at
		FROM sync_logs
		WHERE ($1 = '' OR target_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, filter.TargetID, filter.Status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []SyncLog
	for rows.Next() {
		var e SyncLog
		if err := rows.Scan(
			&e.ID, &e.TargetID, &e.Trigger, &e.Status,
			&e.Created, &e.Updated, &e.Deleted, &e.Skipped,
			&e.TotalItems, &e.DurationMS, &e.Error, &e.Details, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ---- Sync state (generic key-value) ----

func (s *Store) GetSyncState(ctx context.Context, key string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := s.db.QueryRow(ctx,
		`SELECT value FROM sync_state WHERE state_key = $1`, key,
	).Scan(&raw)
	return raw, err
}

func (s *Store) UpsertSyncState(ctx context.Context, key string, value json.RawMessage) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sync_state (state_key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (state_key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = now()
	`, key, value)
	return err
}

func (s *Store) DeleteSyncState(ctx context.Context, key string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM sync_state WHERE state_key = $1`, key)
	return err
}

// ---- API tokens ----

// APIToken represents a row in the api_tokens table.
type APIToken struct {
	ID        uuid.UUID  `json:"id"`
	Subject   string     `json:"subject"`
	Name      string     `json:"name"`
	Disabled  bool       `json:"disabled"`
	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used_at,omitempty"`
}

func (s *Store) CreateAPIToken(ctx context.Context, subject, name, tokenHash string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `
		INSERT INTO api_tokens (token_hash, subject, name)
		VALUES ($1, $2, $3)
		RETURNING id
	`, tokenHash, subject, name).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, ErrConflict
		}
		return uuid.Nil, err
	}
	return id, nil
}

func (s *Store) FindAPITokenByHash(ctx context.Context, tokenHash string) (APIToken, error) {
	var t APIToken
	err := s.db.QueryRow(ctx, `
		SELECT id, subject, name, disabled, created_at, last_used_at
		FROM api_tokens
		WHERE token_hash = $1
	`, tokenHash).Scan(&t.ID, &t.Subject, &t.Name, &t.Disabled, &t.CreatedAt, &t.LastUsed)
	if err != nil {
		return APIToken{}, err
	}
	return t, nil
}

func (s *Store) TouchTokenLastUsed(ctx context.Context, id uuid.UUID) {
	_, _ = s.db.Exec(ctx, `UPDATE api_tokens SET last_used_at = now() WHERE id = $1`, id)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
