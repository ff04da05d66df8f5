package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dealersync/internal/store"
)

const settingsKey = "sync_config"

// Settings is the database-backed sync configuration, editable at
// runtime through the admin API. Zero values fall back to defaults.
type Settings struct {
	Enabled         bool   `json:"enabled"`
	IntervalSeconds int    `json:"interval_seconds"`
	PageSize        int    `json:"page_size"`
	BatchSize       int    `json:"batch_size"`
	MaxPages        int    `json:"max_pages"`
	TargetID        string `json:"target_id"`
	ReportEnabled   bool   `json:"report_enabled"`
}

func (s Settings) IntervalOrDefault() time.Duration {
	if s.IntervalSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(s.IntervalSeconds) * time.Second
}

func (s Settings) PageSizeOrDefault() int {
	if s.PageSize <= 0 {
		return 100
	}
	return s.PageSize
}

func (s Settings) BatchSizeOrDefault() int {
	if s.BatchSize <= 0 {
		return 5
	}
	return s.BatchSize
}

// RunConfig converts the stored settings to per-run tunables.
func (s Settings) RunConfig() Config {
	return Config{
		PageSize:      s.PageSizeOrDefault(),
		BatchSize:     s.BatchSizeOrDefault(),
		MaxPages:      s.MaxPages,
		ReportEnabled: s.ReportEnabled,
	}
}

// SettingsService reads and writes the sync configuration row.
type SettingsService struct {
	kv       syncStateKV
	fallback Settings
}

// NewSettingsService wires the settings store. fallback is returned
// when no configuration row exists yet.
func NewSettingsService(kv syncStateKV, fallback Settings) *SettingsService {
	return &SettingsService{kv: kv, fallback: fallback}
}

func (s *SettingsService) Get(ctx context.Context) (Settings, error) {
	raw, err := s.kv.GetSyncState(ctx, settingsKey)
	if err != nil {
		if store.IsNotFound(err) {
			return s.fallback, nil
		}
		return Settings{}, err
	}
	var cfg Settings
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Settings{}, fmt.Errorf("parse sync config: %w", err)
	}
	return cfg, nil
}

func (s *SettingsService) Save(ctx context.Context, cfg Settings) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.kv.UpsertSyncState(ctx, settingsKey, raw)
}

// Seed writes the fallback configuration only when no row exists yet,
// so environment defaults do not clobber runtime edits on restart.
func (s *SettingsService) Seed(ctx context.Context) error {
	_, err := s.kv.GetSyncState(ctx, settingsKey)
	if err == nil {
		return nil
	}
	if !store.IsNotFound(err) {
		return err
	}
	return s.Save(ctx, s.fallback)
}
