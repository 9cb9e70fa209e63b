package core

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// setHeadroom is the extra capacity given to membership sets for tracks accepted during a run
const setHeadroom = 1000

// Reconciler appends the missing discography tracks of configured artists to one playlist.
//
// A reconciliation runs three phases in order: Fetch seeds the remote track set from the
// playlist, Accumulate walks artists, albums and tracks in declared order staging every
// track not yet present, and Submit appends the staged tracks in batches. Nothing is ever
// removed from the playlist.
type Reconciler struct {
	catalog  Catalog
	resolver *Resolver
	logger   *zap.Logger
	newSet   SetFactory
	observer Observer
	history  HistoryRecorder
	dryRun   bool
}

// ReconcilerOption configures optional Reconciler behavior.
type ReconcilerOption func(*Reconciler)

// WithObserver reports reconciliation events to o.
func WithObserver(o Observer) ReconcilerOption {
	return func(r *Reconciler) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithHistory persists every submitted batch through h.
func WithHistory(h HistoryRecorder) ReconcilerOption {
	return func(r *Reconciler) {
		r.history = h
	}
}

// WithDryRun computes the tracks to add without submitting them.
func WithDryRun(dryRun bool) ReconcilerOption {
	return func(r *Reconciler) {
		r.dryRun = dryRun
	}
}

// NewReconciler creates a reconciler whose run state sets come from newSet.
func NewReconciler(catalog Catalog, newSet SetFactory, logger *zap.Logger, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		catalog:  catalog,
		resolver: NewResolver(catalog, logger.Named("resolver")),
		logger:   logger,
		newSet:   newSet,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// runState is owned by a single reconciliation and discarded afterwards.
type runState struct {
	// remoteTracks grows by one entry each time a track is accepted and never shrinks
	remoteTracks IDSet
	// albumsAdded holds every album processed so far, ignored ones included
	albumsAdded IDSet
	tracksToAdd []string
}

// accept stages a track unless the playlist already holds it or it was staged earlier.
func (s *runState) accept(trackID string) bool {
	if !s.remoteTracks.Add(trackID) {
		return false
	}
	s.tracksToAdd = append(s.tracksToAdd, trackID)
	return true
}

// Reconcile fetches, accumulates and submits the additions for one playlist.
// Catalog failures abort the reconciliation; batches already submitted stay applied.
func (r *Reconciler) Reconcile(ctx context.Context, spec PlaylistSpec) (*Result, error) {
	start := time.Now()
	result := &Result{
		PlaylistID:   spec.URI,
		PlaylistName: spec.Name,
		DryRun:       r.dryRun,
	}

	err := r.reconcile(ctx, spec, result)

	status := SyncStatusSuccess
	switch {
	case err != nil:
		status = SyncStatusError
	case r.dryRun:
		status = SyncStatusDryRun
	}
	r.observer.RecordSync(spec.Name, status, time.Since(start))

	return result, err
}

func (r *Reconciler) reconcile(ctx context.Context, spec PlaylistSpec, result *Result) error {
	state, err := r.fetch(ctx, spec.URI)
	if err != nil {
		return err
	}
	result.ExistingTracks = state.remoteTracks.Size()

	r.logger.Debug("Fetched playlist membership",
		zap.String("playlist", spec.Name),
		zap.Int("tracks", result.ExistingTracks))

	if err := r.accumulate(ctx, spec, state, result); err != nil {
		return err
	}
	result.TracksToAdd = state.tracksToAdd

	return r.submit(ctx, spec, state.tracksToAdd, result)
}

// fetch reads the whole playlist membership. A page shorter than the page size is the last one.
func (r *Reconciler) fetch(ctx context.Context, playlistID string) (*runState, error) {
	fetchPage := func(ctx context.Context, offset, limit int) (Page[Track], error) {
		tracks, err := r.catalog.PlaylistTracks(ctx, playlistID, offset, limit)
		if err != nil {
			return Page[Track]{}, serviceError("list playlist tracks", err)
		}
		return Page[Track]{Items: tracks, Next: len(tracks) >= limit}, nil
	}

	var existing []string
	for track, err := range Pages(ctx, PlaylistPageSize, fetchPage) {
		if err != nil {
			return nil, err
		}
		if track.ID != "" {
			existing = append(existing, track.ID)
		}
	}

	state := &runState{
		remoteTracks: r.newSet(len(existing) + setHeadroom),
		albumsAdded:  r.newSet(setHeadroom),
	}
	for _, id := range existing {
		state.remoteTracks.Add(id)
	}
	return state, nil
}

func (r *Reconciler) accumulate(ctx context.Context, spec PlaylistSpec, state *runState, result *Result) error {
	ignored := r.ignoredAlbums(spec)

	for _, artist := range spec.Artists {
		artistID, err := r.resolver.ResolveArtist(ctx, artist)
		var resolutionErr *ResolutionError
		if errors.As(err, &resolutionErr) {
			r.logger.Warn("Skipping artist that could not be resolved",
				zap.String("playlist", spec.Name),
				zap.String("artist", artist.DisplayName()),
				zap.Error(err))
			r.observer.RecordResolutionFailure()
			result.UnresolvedNames = append(result.UnresolvedNames, artist.Name)
			continue
		}
		if err != nil {
			return err
		}

		r.logger.Debug("Processing artist albums",
			zap.String("artist", artist.DisplayName()),
			zap.String("artistID", artistID))

		if err := r.accumulateArtist(ctx, artistID, ignored, state, result); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) accumulateArtist(ctx context.Context, artistID string, ignored IDSet, state *runState, result *Result) error {
	for album, err := range r.resolver.Albums(ctx, artistID) {
		if err != nil {
			return err
		}

		if !state.albumsAdded.Add(album.ID) {
			r.logger.Info("Ignoring album already processed for this playlist",
				zap.String("album", album.Name),
				zap.String("albumID", album.ID))
			r.observer.RecordAlbumSkipped(SkipReasonDuplicate)
			result.AlbumsDuplicate++
			continue
		}

		if ignored.Has(album.ID) {
			r.logger.Debug("Ignored album", zap.String("album", album.Name), zap.String("albumID", album.ID))
			r.observer.RecordAlbumSkipped(SkipReasonIgnored)
			result.AlbumsIgnored++
			continue
		}

		result.AlbumsProcessed++
		if err := r.accumulateAlbum(ctx, album, state, result); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) accumulateAlbum(ctx context.Context, album Album, state *runState, result *Result) error {
	for track, err := range r.resolver.Tracks(ctx, album.ID) {
		if err != nil {
			return err
		}
		if track.ID == "" {
			continue
		}

		if !state.accept(track.ID) {
			r.logger.Debug("Ignoring track already in playlist",
				zap.String("track", track.Name),
				zap.String("album", album.Name))
			r.observer.RecordDuplicateTrack()
			result.TrackDuplicates++
			continue
		}

		r.logger.Debug("Adding track to playlist",
			zap.String("track", track.Name),
			zap.String("album", album.Name))
	}
	return nil
}

// ignoredAlbums merges the album exclusions of every artist and of the playlist itself.
// An album excluded by any artist contributes no tracks, whichever artist lists it.
func (r *Reconciler) ignoredAlbums(spec PlaylistSpec) IDSet {
	refs := [][]AlbumRef{spec.IgnoredAlbums}
	capacity := len(spec.IgnoredAlbums)
	for _, artist := range spec.Artists {
		refs = append(refs, artist.IgnoredAlbums)
		capacity += len(artist.IgnoredAlbums)
	}

	ignored := r.newSet(capacity)
	for _, group := range refs {
		for _, ref := range group {
			if ref.URI == "" {
				continue
			}
			ignored.Add(ref.URI)
			r.logger.Debug("Ignoring album", zap.String("album", ref.Name), zap.String("albumID", ref.URI))
		}
	}
	return ignored
}

func (r *Reconciler) submit(ctx context.Context, spec PlaylistSpec, trackIDs []string, result *Result) error {
	batches := Batches(trackIDs, MaxTracksPerAdd)

	if r.dryRun {
		r.logger.Info("Dry run, not submitting tracks",
			zap.String("playlist", spec.Name),
			zap.Int("tracks", len(trackIDs)),
			zap.Int("batches", len(batches)),
			zap.Strings("trackIDs", trackIDs))
		return nil
	}

	if len(batches) == 0 {
		return nil
	}

	runID := r.startHistory(ctx, spec)

	for i, batch := range batches {
		if err := r.catalog.AddTracks(ctx, spec.URI, batch); err != nil {
			err = serviceError("add tracks to playlist", err)
			r.finishHistory(ctx, runID, i*MaxTracksPerAdd, err)
			return err
		}
		result.BatchesSent++
		r.observer.RecordTracksAdded(spec.Name, len(batch))

		r.logger.Debug("Submitted batch",
			zap.String("playlist", spec.Name),
			zap.Int("batch", i+1),
			zap.Int("size", len(batch)))

		if runID != "" {
			if err := r.history.RecordBatch(ctx, runID, i, batch); err != nil {
				r.logger.Warn("Failed to record batch history", zap.Error(err))
			}
		}
	}

	r.finishHistory(ctx, runID, len(trackIDs), nil)
	return nil
}

func (r *Reconciler) startHistory(ctx context.Context, spec PlaylistSpec) string {
	if r.history == nil {
		return ""
	}
	runID, err := r.history.StartRun(ctx, spec.URI, spec.Name)
	if err != nil {
		r.logger.Warn("Failed to start run history", zap.Error(err))
		return ""
	}
	return runID
}

// finishHistory closes the run record even when ctx is already cancelled.
func (r *Reconciler) finishHistory(ctx context.Context, runID string, added int, runErr error) {
	if runID == "" {
		return
	}
	if err := r.history.FinishRun(context.WithoutCancel(ctx), runID, added, runErr); err != nil {
		r.logger.Warn("Failed to finish run history", zap.Error(err))
	}
}

type nopObserver struct{}

func (nopObserver) RecordTracksAdded(string, int) {}
func (nopObserver) RecordAlbumSkipped(string) {}
func (nopObserver) RecordDuplicateTrack() {}
func (nopObserver) RecordResolutionFailure() {}
func (nopObserver) RecordSync(string, string, time.Duration) {}
