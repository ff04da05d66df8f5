package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dealersync/internal/store"

	"github.com/labstack/echo/v4"
)

func mapStoreError(err error) error {
	switch {
	case store.IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func queryInt(c echo.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.QueryParam(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func clampInt(v, minV, maxV int) int {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

func toRFC3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
