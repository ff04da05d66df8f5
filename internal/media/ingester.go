// Package media downloads listing images into local blob storage and
// maintains each listing's featured image and gallery associations.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"dealersync/internal/storage"
	"dealersync/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository is the slice of the listing store the ingester needs.
type Repository interface {
	GetListing(ctx context.Context, id uuid.UUID) (store.Listing, error)
	FindMediaAssetBySourceURL(ctx context.Context, sourceURL string) (store.MediaAsset, error)
	CreateMediaAsset(ctx context.Context, a store.MediaAsset) (store.MediaAsset, error)
	SetFeaturedMedia(ctx context.Context, listingID uuid.UUID, assetID *uuid.UUID) error
	ListingGallery(ctx context.Context, listingID uuid.UUID) ([]uuid.UUID, error)
	ReplaceListingGallery(ctx context.Context, listingID uuid.UUID, assetIDs []uuid.UUID) error
}

// Ingester resolves remote image URLs to local media assets. Assets are
// deduplicated by normalized source URL, so the same image referenced
// by two listings is stored once.
type Ingester struct {
	repo       Repository
	blobs      storage.MediaStorage
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewIngester(repo Repository, blobs storage.MediaStorage, httpClient *http.Client, logger zerolog.Logger) *Ingester {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Ingester{
		repo:       repo,
		blobs:      blobs,
		httpClient: httpClient,
		logger:     logger,
	}
}

// resize templates appear as dedicated path segments, either literal
// placeholders ("{width}x{height}", "{resize}") or fixed dimensions
// ("640x480").
var dimensionSegment = regexp.MustCompile(`^\d{1,5}x\d{1,5}$`)

// NormalizeURL strips resize-placeholder path segments so variants of
// the same image share one dedup key.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid url %q: unsupported scheme", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid url %q: missing host", raw)
	}

	segments := strings.Split(u.Path, "/")
	kept := segments[:0]
	for _, seg := range segments {
		if strings.Contains(seg, "{") || dimensionSegment.MatchString(seg) {
			continue
		}
		kept = append(kept, seg)
	}
	u.Path = strings.Join(kept, "/")
	return u.String(), nil
}

// Ingest resolves each ref in order and updates the listing's featured
// image and gallery. Per-ref failures are collected and never abort the
// remaining refs; an empty resolve clears the listing's associations.
func (i *Ingester) Ingest(ctx context.Context, listingID uuid.UUID, refs []string) ([]uuid.UUID, []string) {
	var refErrors []string

	l, err := i.repo.GetListing(ctx, listingID)
	if err != nil {
		return nil, []string{fmt.Sprintf("load listing %s: %v", listingID, err)}
	}

	var (
		resolved []uuid.UUID
		seen     = map[string]struct{}{}
	)
	for _, ref := range refs {
		normalized, err := NormalizeURL(ref)
		if err != nil {
			refErrors = append(refErrors, err.Error())
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}

		asset, err := i.resolve(ctx, normalized)
		if err != nil {
			refErrors = append(refErrors, fmt.Sprintf("%s: %v", normalized, err))
			continue
		}
		resolved = append(resolved, asset.ID)
	}

	if len(resolved) > 0 {
		if l.FeaturedMedia == nil {
			first := resolved[0]
			if err := i.repo.SetFeaturedMedia(ctx, listingID, &first); err != nil {
				refErrors = append(refErrors, fmt.Sprintf("set featured media: %v", err))
			}
		}
		if err := i.updateGallery(ctx, listingID, resolved); err != nil {
			refErrors = append(refErrors, fmt.Sprintf("update gallery: %v", err))
		}
		return resolved, refErrors
	}

	// Nothing resolved: drop stale associations.
	if err := i.repo.ReplaceListingGallery(ctx, listingID, nil); err != nil {
		refErrors = append(refErrors, fmt.Sprintf("clear gallery: %v", err))
	}
	if err := i.repo.SetFeaturedMedia(ctx, listingID, nil); err != nil {
		refErrors = append(refErrors, fmt.Sprintf("clear featured media: %v", err))
	}
	return nil, refErrors
}

// resolve returns the existing asset for a normalized URL or downloads
// and stores a new one.
func (i *Ingester) resolve(ctx context.Context, sourceURL string) (store.MediaAsset, error) {
	asset, err := i.repo.FindMediaAssetBySourceURL(ctx, sourceURL)
	if err == nil {
		return asset, nil
	}
	if !store.IsNotFound(err) {
		return store.MediaAsset{}, fmt.Errorf("lookup: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return store.MediaAsset{}, err
	}
	resp, err := i.httpClient.Do(req)
	if err != nil {
		return store.MediaAsset{}, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return store.MediaAsset{}, fmt.Errorf("download: status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	digest, size, key, err := i.blobs.PutStream(ctx, resp.Body, contentType)
	if err != nil {
		return store.MediaAsset{}, fmt.Errorf("store blob: %w", err)
	}

	created, err := i.repo.CreateMediaAsset(ctx, store.MediaAsset{
		SourceURL:   sourceURL,
		BlobKey:     key,
		Digest:      digest,
		SizeBytes:   size,
		ContentType: contentType,
	})
	if err == nil {
		i.logger.Debug().Str("url", sourceURL).Str("digest", digest).Msg("media asset stored")
		return created, nil
	}
	// A concurrent ingest may have inserted the same URL; reuse it.
	if errors.Is(err, store.ErrConflict) {
		return i.repo.FindMediaAssetBySourceURL(ctx, sourceURL)
	}
	return store.MediaAsset{}, fmt.Errorf("persist asset: %w", err)
}

// updateGallery replaces the listing's gallery with the de-duplicated
// union of its previous assets and the newly resolved ones, keeping
// previous assets first.
func (i *Ingester) updateGallery(ctx context.Context, listingID uuid.UUID, resolved []uuid.UUID) error {
	previous, err := i.repo.ListingGallery(ctx, listingID)
	if err != nil {
		return err
	}

	seen := make(map[uuid.UUID]struct{}, len(previous)+len(resolved))
	union := make([]uuid.UUID, 0, len(previous)+len(resolved))
	for _, id := range previous {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		union = append(union, id)
	}
	for _, id := range resolved {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		union = append(union, id)
	}
	return i.repo.ReplaceListingGallery(ctx, listingID, union)
}
