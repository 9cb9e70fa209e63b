package core

import (
	"context"
	"iter"

	"go.uber.org/zap"

	"playlistfiller/pkg/fuzzy"
)

// nameMatchThreshold is the similarity under which a name search hit is reported as suspicious
const nameMatchThreshold = 0.8

// Resolver turns artist specifications into albums and tracks using the catalog.
// It keeps no state between calls.
type Resolver struct {
	catalog    Catalog
	logger     *zap.Logger
	normalizer *fuzzy.Normalizer
}

// NewResolver creates a resolver reading from catalog.
func NewResolver(catalog Catalog, logger *zap.Logger) *Resolver {
	return &Resolver{
		catalog:    catalog,
		logger:     logger,
		normalizer: fuzzy.NewNormalizer(),
	}
}

// ResolveArtist returns the catalog identifier of the artist. Artists configured by name
// are searched and the first hit is taken as authoritative.
func (r *Resolver) ResolveArtist(ctx context.Context, spec ArtistSpec) (string, error) {
	if !spec.ResolveByName {
		return spec.URI, nil
	}

	r.logger.Debug("Searching artist by name", zap.String("name", spec.Name))

	artists, err := r.catalog.SearchArtists(ctx, spec.Name)
	if err != nil {
		return "", serviceError("search artist", err)
	}
	if len(artists) == 0 || artists[0].ID == "" {
		return "", &ResolutionError{Name: spec.Name}
	}

	first := artists[0]
	similarity := r.normalizer.ArtistSimilarity(spec.Name, first.Name)
	if similarity < nameMatchThreshold {
		r.logger.Warn("First search result name differs from configured artist name",
			zap.String("configured", spec.Name),
			zap.String("found", first.Name),
			zap.String("artistID", first.ID),
			zap.Float64("similarity", similarity))
	}

	return first.ID, nil
}

// Albums lists every full-length album of the artist, following continuation pages.
func (r *Resolver) Albums(ctx context.Context, artistID string) iter.Seq2[Album, error] {
	return Pages(ctx, CatalogPageSize, func(ctx context.Context, offset, limit int) (Page[Album], error) {
		page, err := r.catalog.ArtistAlbums(ctx, artistID, AlbumTypeAlbum, offset, limit)
		if err != nil {
			return page, serviceError("list artist albums", err)
		}
		return page, nil
	})
}

// Tracks lists every track of the album, following continuation pages.
func (r *Resolver) Tracks(ctx context.Context, albumID string) iter.Seq2[Track, error] {
	return Pages(ctx, CatalogPageSize, func(ctx context.Context, offset, limit int) (Page[Track], error) {
		page, err := r.catalog.AlbumTracks(ctx, albumID, offset, limit)
		if err != nil {
			return page, serviceError("list album tracks", err)
		}
		return page, nil
	})
}
