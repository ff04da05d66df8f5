package handlers

import (
	"net/http"

	"dealersync/internal/syncer"

	"github.com/labstack/echo/v4"
)

// SyncOutcome is the externally visible result of the most recent run.
type SyncOutcome struct {
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Created   int    `json:"created"`
	Updated   int    `json:"updated"`
	Deleted   int    `json:"deleted"`
	Skipped   int    `json:"skipped"`
	Failed    bool   `json:"failed"`
	Message   string `json:"message,omitempty"`
}

type SyncStatus struct {
	TargetID  string       `json:"target_id"`
	Running   bool         `json:"running"`
	LastRun   *SyncOutcome `json:"last_run,omitempty"`
	LastError string       `json:"last_error,omitempty"`
}

func (h *Handler) TriggerSync(c echo.Context) error {
	target := h.targetOrDefault(c.QueryParam("target"))
	if target == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "no sync target configured")
	}

	started := h.sync.Trigger(target)
	status := http.StatusAccepted
	if !started {
		status = http.StatusConflict
	}
	return c.JSON(status, map[string]any{
		"target":  target,
		"started": started,
	})
}

func (h *Handler) SyncStatus(c echo.Context) error {
	target := h.targetOrDefault(c.QueryParam("target"))
	if target == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "no sync target configured")
	}
	return c.JSON(http.StatusOK, h.sync.Status(target))
}

func (h *Handler) GetSyncConfig(c echo.Context) error {
	cfg, err := h.settings.Get(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *Handler) UpdateSyncConfig(c echo.Context) error {
	var cfg syncer.Settings
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid sync config payload")
	}
	if cfg.IntervalSeconds < 0 || cfg.PageSize < 0 || cfg.BatchSize < 0 || cfg.MaxPages < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "sync config values must not be negative")
	}

	if err := h.settings.Save(c.Request().Context(), cfg); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, cfg)
}
