package remote

import (
	"context"
	"fmt"
	"time"

	"dealersync/internal/listing"

	"github.com/rs/zerolog"
)

// PageGetter is the slice of Client the fetcher depends on.
type PageGetter interface {
	GetPage(ctx context.Context, targetID string, page, pageSize int) (Page, error)
}

// Fetcher drives a PageGetter across pages until the remote inventory is
// exhausted. Any page failure aborts the whole fetch: reconciling against
// partial remote data would delete listings that were simply not fetched.
type Fetcher struct {
	client    PageGetter
	pageDelay time.Duration
	logger    zerolog.Logger

	sleepFn func(context.Context, time.Duration) error
}

func NewFetcher(client PageGetter, pageDelay time.Duration, logger zerolog.Logger) *Fetcher {
	if pageDelay < 0 {
		pageDelay = 0
	}
	return &Fetcher{
		client:    client,
		pageDelay: pageDelay,
		logger:    logger,
		sleepFn:   sleepWithContext,
	}
}

// FetchAll accumulates every inventory item for the target. Pagination
// stops at the declared total-page count, on a short page when the API
// omits pagination metadata, or at maxPages (0 = unbounded).
func (f *Fetcher) FetchAll(ctx context.Context, targetID string, pageSize, maxPages int) ([]listing.Document, error) {
	if pageSize <= 0 {
		pageSize = 100
	}

	var items []listing.Document
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := f.client.GetPage(ctx, targetID, page, pageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}
		items = append(items, result.Items...)

		f.logger.Debug().
			Str("target", targetID).
			Int("page", page).
			Int("page_items", len(result.Items)).
			Int("total_pages", result.TotalPages).
			Msg("fetched inventory page")

		if result.TotalPages > 0 {
			if page >= result.TotalPages {
				break
			}
		} else if len(result.Items) < pageSize {
			// Last-page heuristic, used only when the API does not
			// declare its page count.
			break
		}
		if maxPages > 0 && page >= maxPages {
			break
		}

		if f.pageDelay > 0 {
			if err := f.sleepFn(ctx, f.pageDelay); err != nil {
				return nil, err
			}
		}
	}

	return items, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
