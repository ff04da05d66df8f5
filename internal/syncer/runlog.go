package syncer

import (
	"context"

	"dealersync/internal/store"

	"github.com/rs/zerolog"
)

// RunLogger appends audit entries and swallows store failures: an
// unavailable log store must never fail the run it is recording.
type RunLogger struct {
	logs   LogStore
	logger zerolog.Logger
}

func NewRunLogger(logs LogStore, logger zerolog.Logger) *RunLogger {
	return &RunLogger{logs: logs, logger: logger}
}

func (r *RunLogger) Log(ctx context.Context, entry store.SyncLog) {
	if r.logs == nil {
		return
	}
	if _, err := r.logs.AppendSyncLog(ctx, entry); err != nil {
		r.logger.Error().
			Err(err).
			Str("target", entry.TargetID).
			Str("status", entry.Status).
			Int("created", entry.Created).
			Int("updated", entry.Updated).
			Int("deleted", entry.Deleted).
			Int("skipped", entry.Skipped).
			Msg("failed to append sync log entry")
	}
}
