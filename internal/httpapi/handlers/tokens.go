package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"

	"dealersync/internal/auth"

	"github.com/labstack/echo/v4"
)

func (h *Handler) CreateToken(c echo.Context) error {
	var req struct {
		Subject string `json:"subject"`
		Name    string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	req.Subject = strings.TrimSpace(req.Subject)
	if req.Subject == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "subject is required")
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "token generation failed")
	}
	token := hex.EncodeToString(raw)

	id, err := h.store.CreateAPIToken(c.Request().Context(), req.Subject, req.Name, auth.HashToken(token))
	if err != nil {
		return mapStoreError(err)
	}

	// the raw token is only returned here, once
	return c.JSON(http.StatusOK, map[string]any{
		"id":      id,
		"subject": req.Subject,
		"token":   token,
	})
}
