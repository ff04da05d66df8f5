package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dealersync/internal/listing"
	"dealersync/internal/store"

	"github.com/google/uuid"
)

// ErrStateCorrupt marks a persisted batch state that cannot be resumed.
// Corrupt state is discarded rather than replayed.
var ErrStateCorrupt = errors.New("batch state corrupt")

// BatchState is the resumable progress record of one sync run. It is
// created after a successful fetch, mutated after every batch slice,
// and deleted when the run completes or fails unrecoverably.
type BatchState struct {
	TargetID       string             `json:"target_id"`
	Trigger        string             `json:"trigger"`
	TotalItems     int                `json:"total_items"`
	ProcessedItems int                `json:"processed_items"`
	CurrentIndex   int                `json:"current_index"`
	Items          []listing.Document `json:"full_item_list"`

	ProcessedLocalIDs []uuid.UUID `json:"processed_local_ids"`
	ExistingIDs       []uuid.UUID `json:"existing_local_ids_snapshot"`

	Created     int                 `json:"created"`
	Updated     int                 `json:"updated"`
	Skipped     int                 `json:"skipped"`
	FailedItems int                 `json:"failed_items"`
	SkipReasons map[string]string   `json:"skipped_reasons,omitempty"`
	MediaErrors map[string][]string `json:"media_errors,omitempty"`

	StartTime time.Time `json:"start_time"`
}

func newBatchState(targetID, trigger string, items []listing.Document, existing []uuid.UUID, start time.Time) *BatchState {
	return &BatchState{
		TargetID:    targetID,
		Trigger:     trigger,
		TotalItems:  len(items),
		Items:       items,
		ExistingIDs: existing,
		SkipReasons: map[string]string{},
		MediaErrors: map[string][]string{},
		StartTime:   start,
	}
}

// Validate rejects a reloaded state whose fields contradict each other.
// CurrentIndex always equals the count of items consumed from Items,
// and the running totals always sum to the processed count.
func (st *BatchState) Validate() error {
	switch {
	case st.TotalItems != len(st.Items):
		return fmt.Errorf("%w: total_items=%d but %d items stored", ErrStateCorrupt, st.TotalItems, len(st.Items))
	case st.CurrentIndex < 0 || st.CurrentIndex > st.TotalItems:
		return fmt.Errorf("%w: current_index=%d out of range [0,%d]", ErrStateCorrupt, st.CurrentIndex, st.TotalItems)
	case st.ProcessedItems != st.CurrentIndex:
		return fmt.Errorf("%w: processed_items=%d does not match current_index=%d", ErrStateCorrupt, st.ProcessedItems, st.CurrentIndex)
	case st.Created+st.Updated+st.Skipped != st.ProcessedItems:
		return fmt.Errorf("%w: totals %d+%d+%d do not sum to processed_items=%d", ErrStateCorrupt, st.Created, st.Updated, st.Skipped, st.ProcessedItems)
	case st.StartTime.IsZero():
		return fmt.Errorf("%w: missing start_time", ErrStateCorrupt)
	}
	if st.SkipReasons == nil {
		st.SkipReasons = map[string]string{}
	}
	if st.MediaErrors == nil {
		st.MediaErrors = map[string][]string{}
	}
	return nil
}

func (st *BatchState) remaining() int {
	return st.TotalItems - st.ProcessedItems
}

// CheckpointStore persists BatchState between invocations. Load returns
// (nil, nil) when no state exists for the target.
type CheckpointStore interface {
	Load(ctx context.Context, targetID string) (*BatchState, error)
	Save(ctx context.Context, targetID string, st *BatchState) error
	Clear(ctx context.Context, targetID string) error
}

const checkpointKeyPrefix = "batch_state:"

type syncStateKV interface {
	GetSyncState(ctx context.Context, key string) (json.RawMessage, error)
	UpsertSyncState(ctx context.Context, key string, value json.RawMessage) error
	DeleteSyncState(ctx context.Context, key string) error
}

// PostgresCheckpointStore keeps batch state in the sync_state table.
type PostgresCheckpointStore struct {
	kv syncStateKV
}

func NewPostgresCheckpointStore(kv syncStateKV) *PostgresCheckpointStore {
	return &PostgresCheckpointStore{kv: kv}
}

func (p *PostgresCheckpointStore) Load(ctx context.Context, targetID string) (*BatchState, error) {
	raw, err := p.kv.GetSyncState(ctx, checkpointKeyPrefix+targetID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load batch state: %w", err)
	}
	var st BatchState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}
	return &st, nil
}

func (p *PostgresCheckpointStore) Save(ctx context.Context, targetID string, st *BatchState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode batch state: %w", err)
	}
	return p.kv.UpsertSyncState(ctx, checkpointKeyPrefix+targetID, raw)
}

func (p *PostgresCheckpointStore) Clear(ctx context.Context, targetID string) error {
	return p.kv.DeleteSyncState(ctx, checkpointKeyPrefix+targetID)
}
