package handlers

import (
	"context"

	"dealersync/internal/config"
	"dealersync/internal/store"
	"dealersync/internal/syncer"

	"github.com/google/uuid"
)

// Store is the slice of the listing store the handlers need.
type Store interface {
	GetListing(ctx context.Context, id uuid.UUID) (store.Listing, error)
	ListListings(ctx context.Context, limit, offset int) ([]store.Listing, error)
	CountListings(ctx context.Context) (int64, error)
	ListingGallery(ctx context.Context, listingID uuid.UUID) ([]uuid.UUID, error)
	ListSyncLogs(ctx context.Context, filter store.SyncLogFilter) ([]store.SyncLog, error)
	CreateAPIToken(ctx context.Context, subject, name, tokenHash string) (uuid.UUID, error)
}

// SyncController starts manual runs and reports their status.
type SyncController interface {
	Trigger(targetID string) bool
	Status(targetID string) SyncStatus
}

// SettingsStore reads and writes the runtime sync configuration.
type SettingsStore interface {
	Get(ctx context.Context) (syncer.Settings, error)
	Save(ctx context.Context, cfg syncer.Settings) error
}

type Handler struct {
	cfg      config.Config
	store    Store
	sync     SyncController
	settings SettingsStore
}

func New(cfg config.Config, st Store, sync SyncController, settings SettingsStore) *Handler {
	return &Handler{
		cfg:      cfg,
		store:    st,
		sync:     sync,
		settings: settings,
	}
}

// targetOrDefault falls back to the configured target when a request
// does not name one.
func (h *Handler) targetOrDefault(target string) string {
	if target != "" {
		return target
	}
	return h.cfg.SyncTargetID
}
