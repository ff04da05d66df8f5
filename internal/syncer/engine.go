package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dealersync/internal/listing"
	"dealersync/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Engine reconciles remote inventory against the local listing store.
// One Run call processes at most one batch slice; callers keep invoking
// Run until the returned Summary no longer asks to continue. Overlapping
// runs for the same target must be prevented by the caller.
type Engine struct {
	repo        ContentRepository
	checkpoints CheckpointStore
	fetcher     InventoryFetcher
	media       MediaIngester
	runLog      *RunLogger
	reporter    Reporter
	logger      zerolog.Logger

	now func() time.Time
}

func NewEngine(
	repo ContentRepository,
	checkpoints CheckpointStore,
	fetcher InventoryFetcher,
	media MediaIngester,
	runLog *RunLogger,
	reporter Reporter,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		repo:        repo,
		checkpoints: checkpoints,
		fetcher:     fetcher,
		media:       media,
		runLog:      runLog,
		reporter:    reporter,
		logger:      logger,
		now:         time.Now,
	}
}

// Run executes one invocation of the sync state machine for a target.
// A fresh run fetches the complete remote set, snapshots the existing
// local ids and persists a new batch state; a resumed run picks up at
// the stored index. Deletion happens exactly once, when every item has
// been processed, against the cumulative processed id set.
func (e *Engine) Run(ctx context.Context, targetID, trigger string, cfg Config) (Summary, error) {
	st, err := e.checkpoints.Load(ctx, targetID)
	if err != nil {
		return e.fail(ctx, targetID, trigger, nil, cfg, fmt.Errorf("resume batch state: %w", err))
	}

	if st == nil {
		st, err = e.startRun(ctx, targetID, trigger, cfg)
		if err != nil {
			return e.fail(ctx, targetID, trigger, nil, cfg, err)
		}
	} else if err := st.Validate(); err != nil {
		return e.fail(ctx, targetID, trigger, st, cfg, err)
	}

	e.processBatch(ctx, st, cfg.batchSizeOrDefault())

	if st.remaining() > 0 {
		if err := e.checkpoints.Save(ctx, targetID, st); err != nil {
			return e.fail(ctx, targetID, trigger, st, cfg, fmt.Errorf("persist batch state: %w", err))
		}
		if err := ctx.Err(); err != nil {
			return e.continueSummary(st), err
		}
		e.logger.Info().
			Str("target", targetID).
			Int("processed", st.ProcessedItems).
			Int("total", st.TotalItems).
			Msg("sync batch complete, more items pending")
		return e.continueSummary(st), nil
	}

	return e.finalize(ctx, st, cfg)
}

// startRun is the Fetching phase: pull the whole remote set, snapshot
// the pre-run local ids and persist a fresh batch state so the fetch
// survives an interrupted invocation.
func (e *Engine) startRun(ctx context.Context, targetID, trigger string, cfg Config) (*BatchState, error) {
	items, err := e.fetcher.FetchAll(ctx, targetID, cfg.pageSizeOrDefault(), cfg.MaxPages)
	if err != nil {
		return nil, fmt.Errorf("fetch inventory: %w", err)
	}

	existing, err := e.repo.ListListingIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot existing listings: %w", err)
	}

	st := newBatchState(targetID, trigger, items, existing, e.now())
	if err := e.checkpoints.Save(ctx, targetID, st); err != nil {
		return nil, fmt.Errorf("persist batch state: %w", err)
	}

	e.logger.Info().
		Str("target", targetID).
		Str("trigger", trigger).
		Int("total_items", st.TotalItems).
		Int("existing_listings", len(existing)).
		Msg("sync run started")
	return st, nil
}

// processBatch consumes one slice of the item list. Every item outcome
// is folded into the state's running totals. The index only advances
// past items that were actually consumed, so a context cancellation
// mid-slice leaves the remainder for the next invocation.
func (e *Engine) processBatch(ctx context.Context, st *BatchState, batchSize int) {
	end := st.CurrentIndex + batchSize
	if end > st.TotalItems {
		end = st.TotalItems
	}

	for _, doc := range st.Items[st.CurrentIndex:end] {
		if ctx.Err() != nil {
			break
		}

		res := e.processItem(ctx, doc)
		switch res.Kind {
		case ResultCreated:
			st.Created++
			st.ProcessedLocalIDs = append(st.ProcessedLocalIDs, res.LocalID)
		case ResultUpdated:
			st.Updated++
			st.ProcessedLocalIDs = append(st.ProcessedLocalIDs, res.LocalID)
		case ResultSkipped:
			st.Skipped++
			st.SkipReasons[res.Key] = res.Reason
		case ResultFailed:
			st.Skipped++
			st.FailedItems++
			st.SkipReasons[res.Key] = res.Reason
			e.logger.Warn().Str("target", st.TargetID).Str("key", res.Key).Str("reason", res.Reason).Msg("item failed")
		}
		if len(res.MediaErrors) > 0 {
			st.MediaErrors[res.Key] = append(st.MediaErrors[res.Key], res.MediaErrors...)
		}

		st.CurrentIndex++
		st.ProcessedItems++
	}
}

// processItem maps and persists one remote item. All failures are
// captured in the Result; this function never returns an error.
func (e *Engine) processItem(ctx context.Context, doc listing.Document) Result {
	m := listing.Map(doc)

	if m.Status == listing.StatusNotPublished {
		return Result{Kind: ResultSkipped, Key: m.Key, Reason: "NOT_PUBLISHED status"}
	}

	params := store.ListingParams{
		StockNumber: m.Key,
		VINNumber:   m.VIN,
		Title:       m.Title,
		Slug:        m.Slug,
		Attrs:       m.AttrsJSON(),
	}

	var res Result
	// An "unknown" key never matches an existing record; those items
	// are always treated as new.
	if m.Key != listing.UnknownKey {
		found, err := e.repo.FindListingByStockNumber(ctx, m.Key)
		switch {
		case err == nil:
			if err := e.repo.UpdateListing(ctx, found.ID, params); err != nil {
				return Result{Kind: ResultFailed, Key: m.Key, Reason: fmt.Sprintf("update: %v", err)}
			}
			res = Result{Kind: ResultUpdated, Key: m.Key, LocalID: found.ID}
		case store.IsNotFound(err):
			// fall through to create
		default:
			return Result{Kind: ResultFailed, Key: m.Key, Reason: fmt.Sprintf("lookup: %v", err)}
		}
	}

	if res.Kind != ResultUpdated {
		created, err := e.repo.CreateListing(ctx, params)
		if err != nil {
			return Result{Kind: ResultFailed, Key: m.Key, Reason: fmt.Sprintf("create: %v", err)}
		}
		res = Result{Kind: ResultCreated, Key: m.Key, LocalID: created.ID}
	}

	if e.media != nil {
		_, refErrors := e.media.Ingest(ctx, res.LocalID, m.MediaRefs)
		res.MediaErrors = refErrors
	}
	return res
}

// finalize computes the delete set, writes the aggregate audit entry,
// clears the batch state and dispatches the report.
func (e *Engine) finalize(ctx context.Context, st *BatchState, cfg Config) (Summary, error) {
	processed := make(map[uuid.UUID]struct{}, len(st.ProcessedLocalIDs))
	for _, id := range st.ProcessedLocalIDs {
		processed[id] = struct{}{}
	}

	var (
		deleted    int
		deleteErrs []string
	)
	for _, id := range st.ExistingIDs {
		if _, ok := processed[id]; ok {
			continue
		}
		if err := e.repo.DeleteListing(ctx, id); err != nil {
			deleteErrs = append(deleteErrs, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		deleted++
	}

	status := store.SyncStatusSuccess
	var errText string
	if st.FailedItems > 0 {
		status = store.SyncStatusError
		errText = fmt.Sprintf("%d of %d items failed", st.FailedItems, st.TotalItems)
	}
	if len(deleteErrs) > 0 {
		status = store.SyncStatusError
		if errText != "" {
			errText += "; "
		}
		errText += fmt.Sprintf("%d stale listings could not be deleted", len(deleteErrs))
	}

	duration := e.now().Sub(st.StartTime)
	entry := store.SyncLog{
		TargetID:   st.TargetID,
		Trigger:    st.Trigger,
		Status:     status,
		Created:    st.Created,
		Updated:    st.Updated,
		Deleted:    deleted,
		Skipped:    st.Skipped,
		TotalItems: st.TotalItems,
		DurationMS: duration.Milliseconds(),
		Error:      errText,
		Details:    encodeDetails(st.SkipReasons, st.MediaErrors, deleteErrs),
	}
	e.runLog.Log(ctx, entry)

	if err := e.checkpoints.Clear(ctx, st.TargetID); err != nil {
		e.logger.Error().Err(err).Str("target", st.TargetID).Msg("failed to clear batch state after completed run")
	}

	if cfg.ReportEnabled && e.reporter != nil {
		if err := e.reporter.Report(ctx, entry); err != nil {
			e.logger.Error().Err(err).Str("target", st.TargetID).Msg("report dispatch failed")
		}
	}

	e.logger.Info().
		Str("target", st.TargetID).
		Str("status", status).
		Int("created", st.Created).
		Int("updated", st.Updated).
		Int("deleted", deleted).
		Int("skipped", st.Skipped).
		Dur("duration", duration).
		Msg("sync run finished")

	return Summary{
		TargetID:  st.TargetID,
		Trigger:   st.Trigger,
		Failed:    false,
		Processed: st.ProcessedItems,
		Total:     st.TotalItems,
		Created:   st.Created,
		Updated:   st.Updated,
		Deleted:   deleted,
		Skipped:   st.Skipped,
		Duration:  duration,
		Message:   fmt.Sprintf("completed: %d created, %d updated, %d deleted, %d skipped", st.Created, st.Updated, deleted, st.Skipped),
	}, nil
}

// fail is the unrecoverable path: record an error audit entry with
// whatever partial counts exist, discard the batch state so it cannot
// be resumed blindly, and dispatch a failure report.
func (e *Engine) fail(ctx context.Context, targetID, trigger string, st *BatchState, cfg Config, cause error) (Summary, error) {
	entry := store.SyncLog{
		TargetID: targetID,
		Trigger:  trigger,
		Status:   store.SyncStatusError,
		Error:    cause.Error(),
	}
	if st != nil {
		entry.Created = st.Created
		entry.Updated = st.Updated
		entry.Skipped = st.Skipped
		entry.TotalItems = st.TotalItems
		entry.DurationMS = e.now().Sub(st.StartTime).Milliseconds()
		entry.Details = encodeDetails(st.SkipReasons, st.MediaErrors, nil)
	}
	e.runLog.Log(ctx, entry)

	if err := e.checkpoints.Clear(ctx, targetID); err != nil {
		e.logger.Error().Err(err).Str("target", targetID).Msg("failed to discard batch state")
	}

	if cfg.ReportEnabled && e.reporter != nil {
		if err := e.reporter.Report(ctx, entry); err != nil {
			e.logger.Error().Err(err).Str("target", targetID).Msg("failure report dispatch failed")
		}
	}

	e.logger.Error().Err(cause).Str("target", targetID).Msg("sync run failed")

	summary := Summary{
		TargetID: targetID,
		Trigger:  trigger,
		Failed:   true,
		Message:  cause.Error(),
	}
	if st != nil {
		summary.Processed = st.ProcessedItems
		summary.Total = st.TotalItems
		summary.Created = st.Created
		summary.Updated = st.Updated
		summary.Skipped = st.Skipped
	}
	return summary, cause
}

func (e *Engine) continueSummary(st *BatchState) Summary {
	return Summary{
		TargetID:  st.TargetID,
		Trigger:   st.Trigger,
		Continue:  true,
		Processed: st.ProcessedItems,
		Total:     st.TotalItems,
		Created:   st.Created,
		Updated:   st.Updated,
		Skipped:   st.Skipped,
		Message:   fmt.Sprintf("processed %d/%d items", st.ProcessedItems, st.TotalItems),
	}
}

type logDetails struct {
	SkipReasons  map[string]string   `json:"skipped_reasons,omitempty"`
	MediaErrors  map[string][]string `json:"media_errors,omitempty"`
	DeleteErrors []string            `json:"delete_errors,omitempty"`
}

func encodeDetails(skips map[string]string, media map[string][]string, deleteErrs []string) json.RawMessage {
	d := logDetails{DeleteErrors: deleteErrs}
	if len(skips) > 0 {
		d.SkipReasons = skips
	}
	if len(media) > 0 {
		d.MediaErrors = media
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	return raw
}
