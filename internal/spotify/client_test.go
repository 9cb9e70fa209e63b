package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"playlistfiller/internal/core"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewClient(&core.SpotifyConfig{
		ClientID:       "id",
		ClientSecret:   "secret",
		TokenPath:      filepath.Join(t.TempDir(), "token.json"),
		APITimeout:     5 * time.Second,
		AlbumCacheSize: 8,
	}, zap.NewNop())
	c.client = c.newAPI(server.Client(), spotify.WithBaseURL(server.URL+"/"))
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := io.WriteString(w, body); err != nil {
		t.Errorf("failed to write response: %v", err)
	}
}

func TestClient_PlaylistTracks(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/playlists/pl1/tracks" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("offset") != "100" || r.URL.Query().Get("limit") != "100" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		writeJSON(t, w, http.StatusOK, `{"items":[
			{"track":{"id":"t1","name":"One","type":"track"}},
			{"track":{"id":"e1","name":"Episode","type":"episode"}},
			{"track":{"id":"t2","name":"Two","type":"track"}}
		],"limit":100,"offset":100,"total":103}`)
	}))

	tracks, err := c.PlaylistTracks(context.Background(), "pl1", 100, 100)
	if err != nil {
		t.Fatalf("PlaylistTracks() error = %v", err)
	}

	if len(tracks) != 3 {
		t.Fatalf("PlaylistTracks() returned %d items, want 3", len(tracks))
	}
	if tracks[0].ID != "t1" || tracks[1].ID != "" || tracks[2].ID != "t2" {
		t.Errorf("tracks = %+v", tracks)
	}
}

func TestClient_ArtistAlbums(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/artists/a1/albums" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if groups := r.URL.Query().Get("include_groups"); groups != "album" {
			t.Errorf("include_groups = %q, want album", groups)
		}
		writeJSON(t, w, http.StatusOK, `{"items":[{"id":"al1","name":"First"},{"id":"al2","name":"Second"}],
			"next":"https://api.spotify.com/v1/artists/a1/albums?offset=2&limit=2","limit":2,"offset":0,"total":3}`)
	}))

	page, err := c.ArtistAlbums(context.Background(), "a1", core.AlbumTypeAlbum, 0, 2)
	if err != nil {
		t.Fatalf("ArtistAlbums() error = %v", err)
	}
	if !page.Next {
		t.Error("Expected a continuation page")
	}
	if len(page.Items) != 2 || page.Items[0].ID != "al1" || page.Items[1].Name != "Second" {
		t.Errorf("albums = %+v", page.Items)
	}

	if _, err := c.ArtistAlbums(context.Background(), "a1", "podcast", 0, 2); err == nil {
		t.Error("Expected an error for an unsupported album type")
	}
}

func TestClient_AlbumTracksCached(t *testing.T) {
	var requests atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		writeJSON(t, w, http.StatusOK, `{"items":[{"id":"t1","name":"One"},{"id":"t2","name":"Two"}],"limit":50,"offset":0,"total":2}`)
	}))

	for range 2 {
		page, err := c.AlbumTracks(context.Background(), "al1", 0, 50)
		if err != nil {
			t.Fatalf("AlbumTracks() error = %v", err)
		}
		if page.Next || len(page.Items) != 2 {
			t.Errorf("page = %+v", page)
		}
	}

	if got := requests.Load(); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

func TestClient_ResetCacheRefetchesAlbums(t *testing.T) {
	var requests atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		if n == 1 {
			writeJSON(t, w, http.StatusOK, `{"items":[{"id":"t1","name":"One"}],"limit":50,"offset":0,"total":1}`)
			return
		}
		writeJSON(t, w, http.StatusOK, `{"items":[{"id":"t1","name":"One"},{"id":"t2","name":"Bonus"}],"limit":50,"offset":0,"total":2}`)
	}))

	if _, err := c.AlbumTracks(context.Background(), "al1", 0, 50); err != nil {
		t.Fatalf("AlbumTracks() error = %v", err)
	}

	c.ResetCache()

	page, err := c.AlbumTracks(context.Background(), "al1", 0, 50)
	if err != nil {
		t.Fatalf("AlbumTracks() error = %v", err)
	}
	if len(page.Items) != 2 {
		t.Errorf("page = %+v, want the track added after the first run", page.Items)
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}

	NewClient(&core.SpotifyConfig{}, zap.NewNop()).ResetCache()
}

func TestToSpotifyAlbumType(t *testing.T) {
	got, err := toSpotifyAlbumType(core.AlbumTypeAlbum)
	if err != nil || got != spotify.AlbumTypeAlbum {
		t.Errorf("toSpotifyAlbumType(album) = %v, %v", got, err)
	}

	for _, albumType := range []core.AlbumType{"single", "compilation", ""} {
		if _, err := toSpotifyAlbumType(albumType); err == nil {
			t.Errorf("toSpotifyAlbumType(%q) should fail", albumType)
		}
	}
}

func TestClient_SearchArtists(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("type") != "artist" || query.Get("q") != "artist:Daft Punk" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		writeJSON(t, w, http.StatusOK, `{"artists":{"items":[{"id":"dp","name":"Daft Punk"},{"id":"dpt","name":"Daft Punk Tribute"}]}}`)
	}))

	artists, err := c.SearchArtists(context.Background(), "Daft Punk")
	if err != nil {
		t.Fatalf("SearchArtists() error = %v", err)
	}
	if len(artists) != 2 || artists[0].ID != "dp" {
		t.Errorf("artists = %+v", artists)
	}
}

func TestClient_AddTracks(t *testing.T) {
	var uris []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/playlists/pl1/tracks" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			URIs []string `json:"uris"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		uris = body.URIs
		writeJSON(t, w, http.StatusCreated, `{"snapshot_id":"snap1"}`)
	}))

	if err := c.AddTracks(context.Background(), "pl1", []string{"t1", "t2"}); err != nil {
		t.Fatalf("AddTracks() error = %v", err)
	}
	if !slices.Equal(uris, []string{"spotify:track:t1", "spotify:track:t2"}) {
		t.Errorf("uris = %v", uris)
	}

	tooMany := make([]string, core.MaxTracksPerAdd+1)
	if err := c.AddTracks(context.Background(), "pl1", tooMany); err == nil {
		t.Error("Expected an error above the per-call maximum")
	}
}

func TestClient_ServiceFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusServiceUnavailable, `{"error":{"status":503,"message":"unavailable"}}`)
	}))

	_, err := c.PlaylistTracks(context.Background(), "pl1", 0, 100)
	if err == nil || !strings.Contains(err.Error(), "unavailable") {
		t.Errorf("PlaylistTracks() error = %v, want the service message", err)
	}
}

func TestClient_NotAuthenticated(t *testing.T) {
	c := NewClient(&core.SpotifyConfig{}, zap.NewNop())

	if _, err := c.SearchArtists(context.Background(), "x"); err == nil {
		t.Error("Expected an error without authentication")
	}
	if err := c.PersistToken(); err == nil {
		t.Error("Expected PersistToken to fail without authentication")
	}
}

func TestClient_CancelledContext(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, `{}`)
	}))
	c.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	c.limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.SearchArtists(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("SearchArtists() error = %v, want context.Canceled", err)
	}
}

func TestNewClient_Pacing(t *testing.T) {
	unpaced := NewClient(&core.SpotifyConfig{}, zap.NewNop())
	if unpaced.limiter.Limit() != rate.Inf {
		t.Errorf("limit = %v, want Inf", unpaced.limiter.Limit())
	}
	if unpaced.albumPages != nil {
		t.Error("album cache should be disabled with a zero size")
	}

	paced := NewClient(&core.SpotifyConfig{RequestsPerSecond: 2}, zap.NewNop())
	if paced.limiter.Limit() != 2 {
		t.Errorf("limit = %v, want 2", paced.limiter.Limit())
	}
}

func TestClient_TokenRoundTrip(t *testing.T) {
	c := NewClient(&core.SpotifyConfig{TokenPath: filepath.Join(t.TempDir(), "token.json")}, zap.NewNop())

	if _, err := c.loadToken(); err == nil {
		t.Error("Expected an error for a missing token file")
	}

	token := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}
	if err := c.saveToken(token); err != nil {
		t.Fatalf("saveToken() error = %v", err)
	}

	loaded, err := c.loadToken()
	if err != nil {
		t.Fatalf("loadToken() error = %v", err)
	}
	if loaded.AccessToken != "access" || loaded.RefreshToken != "refresh" {
		t.Errorf("loaded token = %+v", loaded)
	}
}
