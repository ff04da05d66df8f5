package syncer

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type workerRunner interface {
	Run(ctx context.Context, targetID, trigger string, cfg Config) (Summary, error)
}

// SettingsProvider dynamically provides worker configuration from the
// database.
type SettingsProvider interface {
	Get(ctx context.Context) (Settings, error)
}

// Worker drives scheduled sync runs. Each tick it invokes the engine
// until the run no longer asks to continue, so a multi-batch run
// completes within one scheduling cycle.
type Worker struct {
	runner       workerRunner
	settings     SettingsProvider
	fallback     Settings
	startupDelay time.Duration
	logger       zerolog.Logger
}

// NewWorker creates a worker. If settings is nil, fallback is used
// statically.
func NewWorker(runner workerRunner, fallback Settings, settings SettingsProvider, startupDelay time.Duration, logger zerolog.Logger) *Worker {
	if startupDelay < 0 {
		startupDelay = 0
	}
	return &Worker{
		runner:       runner,
		settings:     settings,
		fallback:     fallback,
		startupDelay: startupDelay,
		logger:       logger,
	}
}

func (w *Worker) getSettings(ctx context.Context) Settings {
	if w.settings == nil {
		return w.fallback
	}
	cfg, err := w.settings.Get(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Msg("failed to read sync config from DB, using fallback")
		return w.fallback
	}
	return cfg
}

func (w *Worker) Run(ctx context.Context) {
	cfg := w.getSettings(ctx)
	if !cfg.Enabled || w.runner == nil {
		return
	}
	if w.startupDelay > 0 {
		timer := time.NewTimer(w.startupDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}

	w.runOnce(ctx, cfg)

	cfg = w.getSettings(ctx)
	interval := cfg.IntervalOrDefault()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			latest := w.getSettings(ctx)
			if !latest.Enabled {
				w.logger.Info().Msg("scheduled sync disabled via config, pausing")
				continue
			}
			if next := latest.IntervalOrDefault(); next != interval {
				ticker.Reset(next)
				w.logger.Info().Dur("interval", next).Msg("sync interval updated")
				interval = next
			}
			w.runOnce(ctx, latest)
		}
	}
}

// runOnce invokes the engine until one run reaches a terminal state.
// The loop is bounded: every invocation either advances the batch
// index or ends the run.
func (w *Worker) runOnce(ctx context.Context, cfg Settings) {
	start := time.Now()
	runCfg := cfg.RunConfig()

	for {
		if ctx.Err() != nil {
			return
		}
		summary, err := w.runner.Run(ctx, cfg.TargetID, "scheduled", runCfg)
		if err != nil {
			w.logger.Error().
				Err(err).
				Str("target", cfg.TargetID).
				Dur("elapsed", time.Since(start).Round(time.Millisecond)).
				Msg("scheduled sync failed")
			return
		}
		if summary.Continue {
			w.logger.Debug().
				Str("target", cfg.TargetID).
				Int("processed", summary.Processed).
				Int("total", summary.Total).
				Msg("scheduled sync continuing")
			continue
		}

		w.logger.Info().
			Str("target", cfg.TargetID).
			Dur("elapsed", time.Since(start).Round(time.Millisecond)).
			Int("created", summary.Created).
			Int("updated", summary.Updated).
			Int("deleted", summary.Deleted).
			Int("skipped", summary.Skipped).
			Msg("scheduled sync finished")
		return
	}
}
