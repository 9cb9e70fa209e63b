package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Runner fills every configured playlist, one after the other.
type Runner struct {
	reconciler *Reconciler
	logger     *zap.Logger
}

// NewRunner creates a runner reconciling playlists with reconciler.
func NewRunner(reconciler *Reconciler, logger *zap.Logger) *Runner {
	return &Runner{
		reconciler: reconciler,
		logger:     logger,
	}
}

// Run reconciles the playlists in order. The first failure stops the run; playlists
// completed before it keep their additions.
func (r *Runner) Run(ctx context.Context, playlists []PlaylistSpec) ([]*Result, error) {
	results := make([]*Result, 0, len(playlists))

	for i := range playlists {
		playlist := &playlists[i]
		if err := ctx.Err(); err != nil {
			return results, err
		}

		r.logger.Info("Filling playlist",
			zap.String("playlist", playlist.Name),
			zap.String("playlistID", playlist.URI),
			zap.Int("artists", len(playlist.Artists)))

		result, err := r.reconciler.Reconcile(ctx, *playlist)
		if err != nil {
			return results, fmt.Errorf("failed to fill playlist %q: %w", playlist.Name, err)
		}
		results = append(results, result)

		r.logger.Info("Playlist filled",
			zap.String("playlist", playlist.Name),
			zap.Int("existingTracks", result.ExistingTracks),
			zap.Int("tracksToAdd", len(result.TracksToAdd)),
			zap.Int("tracksAdded", result.TracksAdded()),
			zap.Int("batches", result.BatchesSent),
			zap.Int("albumsProcessed", result.AlbumsProcessed),
			zap.Int("albumsIgnored", result.AlbumsIgnored),
			zap.Int("albumsDuplicate", result.AlbumsDuplicate),
			zap.Int("trackDuplicates", result.TrackDuplicates),
			zap.Strings("unresolvedArtists", result.UnresolvedNames),
			zap.Bool("dryRun", result.DryRun))
	}

	return results, nil
}
