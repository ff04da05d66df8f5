package httpapi

import (
	"context"
	"sync"

	"dealersync/internal/httpapi/handlers"
	"dealersync/internal/store"
	"dealersync/internal/syncer"

	"github.com/rs/zerolog"
)

type triggerRunner interface {
	Run(ctx context.Context, targetID, trigger string, cfg syncer.Config) (syncer.Summary, error)
}

// SyncTrigger starts manual sync runs in the background and remembers
// the latest outcome per target. The runner is shared with the
// scheduled worker, so overlapping invocations coalesce there.
type SyncTrigger struct {
	runner   triggerRunner
	settings *syncer.SettingsService
	logger   zerolog.Logger

	mu      sync.Mutex
	running map[string]bool
	last    map[string]syncer.Summary
	lastErr map[string]error
}

func NewSyncTrigger(runner triggerRunner, settings *syncer.SettingsService, logger zerolog.Logger) *SyncTrigger {
	return &SyncTrigger{
		runner:   runner,
		settings: settings,
		logger:   logger,
		running:  map[string]bool{},
		last:     map[string]syncer.Summary{},
		lastErr:  map[string]error{},
	}
}

// Trigger starts a run for the target unless one is already in flight.
// It returns immediately; progress is exposed through Status.
func (t *SyncTrigger) Trigger(targetID string) bool {
	t.mu.Lock()
	if t.running[targetID] {
		t.mu.Unlock()
		return false
	}
	t.running[targetID] = true
	t.mu.Unlock()

	go t.runToCompletion(targetID)
	return true
}

func (t *SyncTrigger) runToCompletion(targetID string) {
	ctx := context.Background()

	cfg := syncer.Config{}
	if t.settings != nil {
		if s, err := t.settings.Get(ctx); err == nil {
			cfg = s.RunConfig()
		}
	}

	var (
		summary syncer.Summary
		err     error
	)
	for {
		summary, err = t.runner.Run(ctx, targetID, store.TriggerManual, cfg)
		if err != nil || !summary.Continue {
			break
		}
	}

	t.mu.Lock()
	t.running[targetID] = false
	t.last[targetID] = summary
	t.lastErr[targetID] = err
	t.mu.Unlock()

	if err != nil {
		t.logger.Error().Err(err).Str("target", targetID).Msg("manual sync failed")
		return
	}
	t.logger.Info().
		Str("target", targetID).
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("deleted", summary.Deleted).
		Int("skipped", summary.Skipped).
		Msg("manual sync finished")
}

func (t *SyncTrigger) Status(targetID string) handlers.SyncStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := handlers.SyncStatus{
		TargetID: targetID,
		Running:  t.running[targetID],
	}
	if summary, ok := t.last[targetID]; ok {
		status.LastRun = &handlers.SyncOutcome{
			Processed: summary.Processed,
			Total:     summary.Total,
			Created:   summary.Created,
			Updated:   summary.Updated,
			Deleted:   summary.Deleted,
			Skipped:   summary.Skipped,
			Failed:    summary.Failed,
			Message:   summary.Message,
		}
	}
	if err := t.lastErr[targetID]; err != nil {
		status.LastError = err.Error()
	}
	return status
}
