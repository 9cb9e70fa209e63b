// Package spotify provides the Spotify Web API catalog used to fill playlists.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"playlistfiller/internal/core"
)

const (
	// FilePermission is the permission for token files
	FilePermission = 0600
	// MaxArtistSearchResults limits artist search results; only the first one is used
	MaxArtistSearchResults = 5
)

// Client implements core.Catalog on top of the Spotify Web API.
type Client struct {
	config  *core.SpotifyConfig
	logger  *zap.Logger
	client  *spotify.Client
	auth    *spotifyauth.Authenticator
	limiter *rate.Limiter
	// albumPages caches album track pages across the playlists of one run
	albumPages *lru.Cache[string, core.Page[core.Track]]
}

// TokenData is the JSON layout of the token file.
type TokenData struct {
	Token *oauth2.Token `json:"token"`
}

// NewClient creates an unauthenticated client; call Authenticate before any request.
func NewClient(config *core.SpotifyConfig, logger *zap.Logger) *Client {
	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(config.RedirectURL),
		spotifyauth.WithScopes(
			spotifyauth.ScopeUserLibraryRead,
			spotifyauth.ScopePlaylistReadPrivate,
			spotifyauth.ScopePlaylistReadCollaborative,
			spotifyauth.ScopePlaylistModifyPublic,
			spotifyauth.ScopePlaylistModifyPrivate,
		),
		spotifyauth.WithClientID(config.ClientID),
		spotifyauth.WithClientSecret(config.ClientSecret),
	)

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	var albumPages *lru.Cache[string, core.Page[core.Track]]
	if config.AlbumCacheSize > 0 {
		albumPages, _ = lru.New[string, core.Page[core.Track]](config.AlbumCacheSize)
	}

	return &Client{
		config:     config,
		logger:     logger,
		auth:       auth,
		limiter:    rate.NewLimiter(limit, 1),
		albumPages: albumPages,
	}
}

func (c *Client) newAPI(httpClient *http.Client, opts ...spotify.ClientOption) *spotify.Client {
	opts = append([]spotify.ClientOption{spotify.WithRetry(c.config.RetryRateLimited)}, opts...)
	return spotify.New(httpClient, opts...)
}

// Authenticate reuses the saved token when it is still accepted and runs the OAuth flow otherwise.
func (c *Client) Authenticate(ctx context.Context) error {
	token, err := c.loadToken()
	if err != nil {
		c.logger.Info("No saved token found, starting OAuth flow")
		return c.startOAuthFlow(ctx)
	}

	client := c.newAPI(c.auth.Client(ctx, token))
	c.client = client

	user, err := client.CurrentUser(ctx)
	if err != nil {
		c.logger.Warn("Saved token invalid, starting OAuth flow", zap.Error(err))
		return c.startOAuthFlow(ctx)
	}

	c.logger.Info("Authenticated successfully", zap.String("user", user.DisplayName))
	return nil
}

// PersistToken writes the current, possibly refreshed, token back to the token file.
func (c *Client) PersistToken() error {
	if c.client == nil {
		return fmt.Errorf("client not authenticated")
	}

	token, err := c.client.Token()
	if err != nil {
		return fmt.Errorf("failed to read current token: %w", err)
	}
	return c.saveToken(token)
}

// call paces the request and bounds it with the configured timeout.
func (c *Client) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.client == nil {
		return fmt.Errorf("client not authenticated")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if c.config.APITimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.APITimeout)
		defer cancel()
	}

	return fn(ctx)
}

// PlaylistTracks returns one page of playlist items. Items that are not catalog tracks
// (episodes, local files) are returned with an empty ID so the page keeps its length.
func (c *Client) PlaylistTracks(ctx context.Context, playlistID string, offset, limit int) ([]core.Track, error) {
	var items *spotify.PlaylistItemPage
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		items, err = c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
			spotify.Limit(limit), spotify.Offset(offset))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist items: %w", err)
	}

	tracks := make([]core.Track, len(items.Items))
	for i := range items.Items {
		if track := items.Items[i].Track.Track; track != nil {
			tracks[i] = core.Track{ID: string(track.ID), Name: track.Name}
		}
	}

	c.logger.Debug("Retrieved playlist page",
		zap.String("playlistID", playlistID),
		zap.Int("offset", offset),
		zap.Int("count", len(tracks)))

	return tracks, nil
}

// ArtistAlbums returns one page of the artist's albums of the given type.
func (c *Client) ArtistAlbums(ctx context.Context, artistID string, albumType core.AlbumType, offset, limit int) (core.Page[core.Album], error) {
	spotifyType, err := toSpotifyAlbumType(albumType)
	if err != nil {
		return core.Page[core.Album]{}, err
	}

	var page *spotify.SimpleAlbumPage
	err = c.call(ctx, func(ctx context.Context) error {
		var err error
		page, err = c.client.GetArtistAlbums(ctx, spotify.ID(artistID), []spotify.AlbumType{spotifyType},
			spotify.Limit(limit), spotify.Offset(offset))
		return err
	})
	if err != nil {
		return core.Page[core.Album]{}, fmt.Errorf("failed to get artist albums: %w", err)
	}

	albums := make([]core.Album, 0, len(page.Albums))
	for i := range page.Albums {
		albums = append(albums, core.Album{ID: string(page.Albums[i].ID), Name: page.Albums[i].Name})
	}

	return core.Page[core.Album]{Items: albums, Next: page.Next != ""}, nil
}

// ResetCache drops every cached album page so the next run sees albums as they are now.
func (c *Client) ResetCache() {
	if c.albumPages != nil {
		c.albumPages.Purge()
	}
}

// AlbumTracks returns one page of an album's tracks, served from the album cache when possible.
func (c *Client) AlbumTracks(ctx context.Context, albumID string, offset, limit int) (core.Page[core.Track], error) {
	cacheKey := fmt.Sprintf("%s:%d:%d", albumID, offset, limit)
	if c.albumPages != nil {
		if cached, ok := c.albumPages.Get(cacheKey); ok {
			return cached, nil
		}
	}

	var page *spotify.SimpleTrackPage
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		page, err = c.client.GetAlbumTracks(ctx, spotify.ID(albumID), spotify.Limit(limit), spotify.Offset(offset))
		return err
	})
	if err != nil {
		return core.Page[core.Track]{}, fmt.Errorf("failed to get album tracks: %w", err)
	}

	tracks := make([]core.Track, 0, len(page.Tracks))
	for i := range page.Tracks {
		tracks = append(tracks, core.Track{ID: string(page.Tracks[i].ID), Name: page.Tracks[i].Name})
	}

	result := core.Page[core.Track]{Items: tracks, Next: page.Next != ""}
	if c.albumPages != nil {
		c.albumPages.Add(cacheKey, result)
	}
	return result, nil
}

// SearchArtists returns the best artist matches for name, most relevant first.
func (c *Client) SearchArtists(ctx context.Context, name string) ([]core.Artist, error) {
	var results *spotify.SearchResult
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		results, err = c.client.Search(ctx, "artist:"+name, spotify.SearchTypeArtist,
			spotify.Limit(MaxArtistSearchResults))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("artist search failed: %w", err)
	}

	if results.Artists == nil {
		return nil, nil
	}

	artists := make([]core.Artist, 0, len(results.Artists.Artists))
	for i := range results.Artists.Artists {
		artist := &results.Artists.Artists[i]
		artists = append(artists, core.Artist{ID: string(artist.ID), Name: artist.Name})
	}
	return artists, nil
}

// AddTracks appends at most core.MaxTracksPerAdd tracks to the end of the playlist.
func (c *Client) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) > core.MaxTracksPerAdd {
		return fmt.Errorf("cannot add %d tracks in one call (max %d)", len(trackIDs), core.MaxTracksPerAdd)
	}

	ids := make([]spotify.ID, len(trackIDs))
	for i, id := range trackIDs {
		ids[i] = spotify.ID(id)
	}

	var snapshotID string
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		snapshotID, err = c.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids...)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to add tracks to playlist: %w", err)
	}

	c.logger.Info("Tracks added to playlist",
		zap.String("playlistID", playlistID),
		zap.Int("count", len(trackIDs)),
		zap.String("snapshotID", snapshotID))

	return nil
}

func toSpotifyAlbumType(albumType core.AlbumType) (spotify.AlbumType, error) {
	switch albumType {
	case core.AlbumTypeAlbum:
		return spotify.AlbumTypeAlbum, nil
	default:
		return 0, fmt.Errorf("unsupported album type: %s", albumType)
	}
}

func (c *Client) startOAuthFlow(ctx context.Context) error {
	state := "playlistfiller-auth-state"
	authURL := c.auth.AuthURL(state)

	fmt.Printf("Please visit the following URL to authorize the application:\n%s\n", authURL)
	fmt.Print("Enter the authorization code: ")

	var code string
	if _, err := fmt.Scanln(&code); err != nil {
		return fmt.Errorf("failed to read authorization code: %w", err)
	}

	token, err := c.auth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code for token: %w", err)
	}

	if saveErr := c.saveToken(token); saveErr != nil {
		c.logger.Warn("Failed to save token", zap.Error(saveErr))
	}

	client := c.newAPI(c.auth.Client(ctx, token))
	c.client = client

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	c.logger.Info("OAuth flow completed successfully", zap.String("user", user.DisplayName))
	return nil
}

func (c *Client) loadToken() (*oauth2.Token, error) {
	file, err := os.Open(c.config.TokenPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	var tokenData TokenData
	if err := json.Unmarshal(data, &tokenData); err != nil {
		return nil, err
	}
	if tokenData.Token == nil {
		return nil, fmt.Errorf("token file %s holds no token", c.config.TokenPath)
	}

	return tokenData.Token, nil
}

func (c *Client) saveToken(token *oauth2.Token) error {
	tokenData := TokenData{Token: token}

	data, err := json.MarshalIndent(tokenData, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(c.config.TokenPath, data, FilePermission)
}
