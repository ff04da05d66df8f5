package syncer

import (
	"context"
	"time"

	"dealersync/internal/listing"
	"dealersync/internal/store"

	"github.com/google/uuid"
)

// ResultKind classifies the outcome of processing one remote item.
// Failures are isolated per item: they count toward the skipped total
// and flip the run status to error, but never abort the batch.
type ResultKind int

const (
	ResultCreated ResultKind = iota
	ResultUpdated
	ResultSkipped
	ResultFailed
)

// Result is the per-item outcome of one reconciliation step.
type Result struct {
	Kind        ResultKind
	Key         string
	LocalID     uuid.UUID
	Reason      string
	MediaErrors []string
}

// Summary is what a single Run invocation reports back to its trigger.
// Continue means the run is incomplete and the caller is expected to
// invoke Run again to process the next batch.
type Summary struct {
	TargetID  string
	Trigger   string
	Continue  bool
	Failed    bool
	Processed int
	Total     int
	Created   int
	Updated   int
	Deleted   int
	Skipped   int
	Duration  time.Duration
	Message   string
}

// Config carries the per-run tunables. It is owned by the caller
// (worker or HTTP trigger), never read from ambient state.
type Config struct {
	PageSize      int
	BatchSize     int
	MaxPages      int
	ReportEnabled bool
}

func (c Config) pageSizeOrDefault() int {
	if c.PageSize <= 0 {
		return 100
	}
	return c.PageSize
}

func (c Config) batchSizeOrDefault() int {
	if c.BatchSize <= 0 {
		return 5
	}
	return c.BatchSize
}

// ContentRepository is the slice of the listing store the engine needs.
type ContentRepository interface {
	FindListingByStockNumber(ctx context.Context, stockNumber string) (store.Listing, error)
	CreateListing(ctx context.Context, p store.ListingParams) (store.Listing, error)
	UpdateListing(ctx context.Context, id uuid.UUID, p store.ListingParams) error
	DeleteListing(ctx context.Context, id uuid.UUID) error
	ListListingIDs(ctx context.Context) ([]uuid.UUID, error)
}

// InventoryFetcher retrieves the complete remote item set for a target.
type InventoryFetcher interface {
	FetchAll(ctx context.Context, targetID string, pageSize, maxPages int) ([]listing.Document, error)
}

// MediaIngester attaches a listing's remote images to local storage.
// Per-ref failures are reported as messages, never as a hard error.
type MediaIngester interface {
	Ingest(ctx context.Context, listingID uuid.UUID, refs []string) (attached []uuid.UUID, refErrors []string)
}

// LogStore appends immutable audit records.
type LogStore interface {
	AppendSyncLog(ctx context.Context, entry store.SyncLog) (uuid.UUID, error)
}

// Reporter dispatches a human-readable summary of a finished run.
type Reporter interface {
	Report(ctx context.Context, entry store.SyncLog) error
}
