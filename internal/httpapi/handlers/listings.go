package handlers

import (
	"encoding/json"
	"net/http"

	"dealersync/internal/store"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type listingResponse struct {
	ID            uuid.UUID       `json:"id"`
	StockNumber   string          `json:"stock_number"`
	VINNumber     string          `json:"vin_number,omitempty"`
	Title         string          `json:"title"`
	Slug          string          `json:"slug"`
	Attrs         json.RawMessage `json:"attrs"`
	FeaturedMedia *uuid.UUID      `json:"featured_media,omitempty"`
	Gallery       []uuid.UUID     `json:"gallery,omitempty"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

func toListingResponse(l store.Listing, gallery []uuid.UUID) listingResponse {
	attrs := l.Attrs
	if len(attrs) == 0 {
		attrs = json.RawMessage(`{}`)
	}
	return listingResponse{
		ID:            l.ID,
		StockNumber:   l.StockNumber,
		VINNumber:     l.VINNumber,
		Title:         l.Title,
		Slug:          l.Slug,
		Attrs:         attrs,
		FeaturedMedia: l.FeaturedMedia,
		Gallery:       gallery,
		CreatedAt:     toRFC3339(l.CreatedAt),
		UpdatedAt:     toRFC3339(l.UpdatedAt),
	}
}

func (h *Handler) ListListings(c echo.Context) error {
	ctx := c.Request().Context()
	limit := clampInt(queryInt(c, "limit", 25), 1, 100)
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	listings, err := h.store.ListListings(ctx, limit, offset)
	if err != nil {
		return mapStoreError(err)
	}
	total, err := h.store.CountListings(ctx)
	if err != nil {
		return mapStoreError(err)
	}

	items := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		items = append(items, toListingResponse(l, nil))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"items":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) GetListing(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid listing id")
	}

	l, err := h.store.GetListing(ctx, id)
	if err != nil {
		return mapStoreError(err)
	}
	gallery, err := h.store.ListingGallery(ctx, id)
	if err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, toListingResponse(l, gallery))
}
