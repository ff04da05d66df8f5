package handlers

import (
	"encoding/json"
	"net/http"

	"dealersync/internal/store"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type syncLogResponse struct {
	ID         uuid.UUID       `json:"id"`
	TargetID   string          `json:"target_id"`
	Trigger    string          `json:"trigger"`
	Status     string          `json:"status"`
	Created    int             `json:"created"`
	Updated    int             `json:"updated"`
	Deleted    int             `json:"deleted"`
	Skipped    int             `json:"skipped"`
	TotalItems int             `json:"total_items"`
	DurationMS int64           `json:"duration_ms"`
	Error      string          `json:"error,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

func (h *Handler) ListSyncLogs(c echo.Context) error {
	status := c.QueryParam("status")
	if status != "" && status != store.SyncStatusSuccess && status != store.SyncStatusError {
		return echo.NewHTTPError(http.StatusBadRequest, "status must be success or error")
	}

	filter := store.SyncLogFilter{
		TargetID: c.QueryParam("target"),
		Status:   status,
		Limit:    clampInt(queryInt(c, "limit", 25), 1, 100),
		Offset:   queryInt(c, "offset", 0),
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	logs, err := h.store.ListSyncLogs(c.Request().Context(), filter)
	if err != nil {
		return mapStoreError(err)
	}

	items := make([]syncLogResponse, 0, len(logs))
	for _, l := range logs {
		items = append(items, syncLogResponse{
			ID:         l.ID,
			TargetID:   l.TargetID,
			Trigger:    l.Trigger,
			Status:     l.Status,
			Created:    l.Created,
			Updated:    l.Updated,
			Deleted:    l.Deleted,
			Skipped:    l.Skipped,
			TotalItems: l.TotalItems,
			DurationMS: l.DurationMS,
			Error:      l.Error,
			Details:    l.Details,
			CreatedAt:  toRFC3339(l.CreatedAt),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"items":  items,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}
