package core

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// mockCatalog serves paginated listings from in-memory data. Added tracks are appended to
// the playlist so consecutive reconciliations observe each other.
type mockCatalog struct {
	playlists map[string][]Track
	albums    map[string][]Album
	tracks    map[string][]Track
	artists   map[string][]Artist

	playlistErr error
	searchErr   error
	albumsErr   error
	addErr      error
	// failAddAt is the index of the append call that returns addErr
	failAddAt int
	// onAdd runs at the start of every append call
	onAdd func()

	playlistCalls int
	searchCalls   int
	trackCalls    map[string]int
	added         [][]string
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		playlists:  map[string][]Track{},
		albums:     map[string][]Album{},
		tracks:     map[string][]Track{},
		artists:    map[string][]Artist{},
		trackCalls: map[string]int{},
	}
}

func page[T any](items []T, offset, limit int) ([]T, bool) {
	if offset >= len(items) {
		return nil, false
	}
	end := min(offset+limit, len(items))
	return slices.Clone(items[offset:end]), end < len(items)
}

func (m *mockCatalog) PlaylistTracks(_ context.Context, playlistID string, offset, limit int) ([]Track, error) {
	m.playlistCalls++
	if m.playlistErr != nil {
		return nil, m.playlistErr
	}
	items, _ := page(m.playlists[playlistID], offset, limit)
	return items, nil
}

func (m *mockCatalog) ArtistAlbums(_ context.Context, artistID string, albumType AlbumType, offset, limit int) (Page[Album], error) {
	if m.albumsErr != nil {
		return Page[Album]{}, m.albumsErr
	}
	if albumType != AlbumTypeAlbum {
		return Page[Album]{}, fmt.Errorf("unexpected album type %q", albumType)
	}
	items, next := page(m.albums[artistID], offset, limit)
	return Page[Album]{Items: items, Next: next}, nil
}

func (m *mockCatalog) AlbumTracks(_ context.Context, albumID string, offset, limit int) (Page[Track], error) {
	m.trackCalls[albumID]++
	items, next := page(m.tracks[albumID], offset, limit)
	return Page[Track]{Items: items, Next: next}, nil
}

func (m *mockCatalog) SearchArtists(_ context.Context, name string) ([]Artist, error) {
	m.searchCalls++
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.artists[name], nil
}

func (m *mockCatalog) AddTracks(_ context.Context, playlistID string, trackIDs []string) error {
	if m.onAdd != nil {
		m.onAdd()
	}
	if m.addErr != nil && len(m.added) == m.failAddAt {
		return m.addErr
	}
	m.added = append(m.added, slices.Clone(trackIDs))
	for _, id := range trackIDs {
		m.playlists[playlistID] = append(m.playlists[playlistID], Track{ID: id})
	}
	return nil
}

func (m *mockCatalog) addedTracks() []string {
	var all []string
	for _, batch := range m.added {
		all = append(all, batch...)
	}
	return all
}

// mapSet is an exact IDSet backed by a map.
type mapSet map[string]struct{}

func newMapSet(int) IDSet {
	return mapSet{}
}

func (s mapSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s mapSet) Add(id string) bool {
	if s.Has(id) {
		return false
	}
	s[id] = struct{}{}
	return true
}

func (s mapSet) Size() int {
	return len(s)
}

type recordingObserver struct {
	tracksAdded        map[string]int
	albumsSkipped      map[string]int
	duplicateTracks    int
	resolutionFailures int
	syncs              []string
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		tracksAdded:   map[string]int{},
		albumsSkipped: map[string]int{},
	}
}

func (o *recordingObserver) RecordTracksAdded(playlist string, count int) {
	o.tracksAdded[playlist] += count
}

func (o *recordingObserver) RecordAlbumSkipped(reason string) {
	o.albumsSkipped[reason]++
}

func (o *recordingObserver) RecordDuplicateTrack() {
	o.duplicateTracks++
}

func (o *recordingObserver) RecordResolutionFailure() {
	o.resolutionFailures++
}

func (o *recordingObserver) RecordSync(playlist, status string, _ time.Duration) {
	o.syncs = append(o.syncs, playlist+":"+status)
}

type recordingHistory struct {
	started  int
	batches  map[int][]string
	finished bool
	added    int
	runErr   error
	startErr error
	// finishCtxErr is the state of the context FinishRun received
	finishCtxErr error
}

func (h *recordingHistory) StartRun(_ context.Context, _, _ string) (string, error) {
	if h.startErr != nil {
		return "", h.startErr
	}
	h.started++
	h.batches = map[int][]string{}
	return fmt.Sprintf("run-%d", h.started), nil
}

func (h *recordingHistory) RecordBatch(_ context.Context, _ string, batch int, trackIDs []string) error {
	h.batches[batch] = slices.Clone(trackIDs)
	return nil
}

func (h *recordingHistory) FinishRun(ctx context.Context, _ string, added int, runErr error) error {
	h.finishCtxErr = ctx.Err()
	h.finished = true
	h.added = added
	h.runErr = runErr
	return nil
}

func trackList(ids ...string) []Track {
	tracks := make([]Track, len(ids))
	for i, id := range ids {
		tracks[i] = Track{ID: id, Name: "Track " + id}
	}
	return tracks
}

func numberedTracks(prefix string, n int) []Track {
	tracks := make([]Track, n)
	for i := range n {
		tracks[i] = Track{ID: fmt.Sprintf("%s%03d", prefix, i), Name: fmt.Sprintf("Track %d", i)}
	}
	return tracks
}
