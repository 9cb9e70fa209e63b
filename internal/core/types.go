package core

import (
	"context"
	"time"
)

const (
	// PlaylistPageSize is the number of playlist items requested per membership page
	PlaylistPageSize = 100
	// CatalogPageSize is the number of albums or tracks requested per catalog page
	CatalogPageSize = 50
	// MaxTracksPerAdd is the platform maximum number of items per playlist append call
	MaxTracksPerAdd = 100
)

// AlbumType selects which album groups are listed for an artist.
type AlbumType string

const (
	// AlbumTypeAlbum lists full-length albums only; singles and compilations are excluded
	AlbumTypeAlbum AlbumType = "album"
)

// AlbumRef references an album from configuration.
type AlbumRef struct {
	Name string `mapstructure:"name" yaml:"name"`
	URI  string `mapstructure:"uri" yaml:"uri"`
}

// ArtistSpec describes one artist whose discography feeds a playlist.
type ArtistSpec struct {
	Name          string     `mapstructure:"name" yaml:"name"`
	URI           string     `mapstructure:"uri" yaml:"uri"`
	ResolveByName bool       `mapstructure:"use_name_instead_of_uri" yaml:"use_name_instead_of_uri"`
	IgnoredAlbums []AlbumRef `mapstructure:"ignored_albums" yaml:"ignored_albums,omitempty"`
}

// DisplayName returns the name when configured and the URI otherwise.
func (a ArtistSpec) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.URI
}

// PlaylistSpec describes one target playlist and the artists that fill it.
type PlaylistSpec struct {
	Name          string       `mapstructure:"name" yaml:"name"`
	URI           string       `mapstructure:"uri" yaml:"uri"`
	Artists       []ArtistSpec `mapstructure:"artists" yaml:"artists"`
	IgnoredAlbums []AlbumRef   `mapstructure:"ignored_albums" yaml:"ignored_albums,omitempty"`
}

// Artist is a catalog artist returned by a name search.
type Artist struct {
	ID   string
	Name string
}

// Album is one entry of an artist's album listing.
type Album struct {
	ID   string
	Name string
}

// Track is a playlist item or album track. An empty ID marks an item that is not a catalog track.
type Track struct {
	ID   string
	Name string
}

// Page is one page of a paginated catalog listing.
type Page[T any] struct {
	Items []T
	// Next reports whether a continuation page exists
	Next bool
}

// Catalog is the remote catalog and playlist service.
type Catalog interface {
	// PlaylistTracks returns one page of a playlist's tracks starting at offset
	PlaylistTracks(ctx context.Context, playlistID string, offset, limit int) ([]Track, error)
	ArtistAlbums(ctx context.Context, artistID string, albumType AlbumType, offset, limit int) (Page[Album], error)
	AlbumTracks(ctx context.Context, albumID string, offset, limit int) (Page[Track], error)
	SearchArtists(ctx context.Context, name string) ([]Artist, error)
	// AddTracks appends at most MaxTracksPerAdd tracks to the end of a playlist
	AddTracks(ctx context.Context, playlistID string, trackIDs []string) error
}

// IDSet is a grow-only set of catalog identifiers.
type IDSet interface {
	Has(id string) bool
	// Add inserts id and reports whether it was absent
	Add(id string) bool
	Size() int
}

// SetFactory creates an empty IDSet sized for roughly capacity entries.
type SetFactory func(capacity int) IDSet

// Observer receives reconciliation events, typically for metrics.
type Observer interface {
	RecordTracksAdded(playlist string, count int)
	RecordAlbumSkipped(reason string)
	RecordDuplicateTrack()
	RecordResolutionFailure()
	RecordSync(playlist, status string, duration time.Duration)
}

// HistoryRecorder persists submitted additions.
type HistoryRecorder interface {
	StartRun(ctx context.Context, playlistID, playlistName string) (string, error)
	RecordBatch(ctx context.Context, runID string, batch int, trackIDs []string) error
	FinishRun(ctx context.Context, runID string, added int, runErr error) error
}

// Album skip reasons reported to the Observer
const (
	SkipReasonDuplicate = "duplicate"
	SkipReasonIgnored   = "ignored"
)

// Sync statuses reported to the Observer
const (
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
	SyncStatusDryRun  = "dry_run"
)

// Result summarizes one playlist reconciliation.
type Result struct {
	PlaylistID      string
	PlaylistName    string
	ExistingTracks  int
	TracksToAdd     []string
	BatchesSent     int
	AlbumsProcessed int
	AlbumsIgnored   int
	AlbumsDuplicate int
	TrackDuplicates int
	UnresolvedNames []string
	DryRun          bool
}

// TracksAdded returns the number of tracks appended to the playlist, which is zero for a dry run.
func (r *Result) TracksAdded() int {
	if r.DryRun {
		return 0
	}
	return len(r.TracksToAdd)
}
