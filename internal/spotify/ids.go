package spotify

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"playlistfiller/internal/core"
)

// Spotify resource kinds accepted by ExtractID
const (
	KindTrack    = "track"
	KindAlbum    = "album"
	KindArtist   = "artist"
	KindPlaylist = "playlist"
)

var (
	spotifyURIRegex = regexp.MustCompile(`^spotify:([a-z]+):([a-zA-Z0-9]+)$`)
	bareIDRegex     = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
)

// ExtractID returns the bare Spotify ID of a resource given as an ID, a spotify: URI
// or an open.spotify.com URL.
func ExtractID(kind, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty %s identifier", kind)
	}

	if matches := spotifyURIRegex.FindStringSubmatch(raw); len(matches) > 2 {
		if matches[1] != kind {
			return "", fmt.Errorf("expected a %s URI, got %q", kind, raw)
		}
		return matches[2], nil
	}

	if bareIDRegex.MatchString(raw) {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if !strings.EqualFold(u.Hostname(), "open.spotify.com") {
		return "", fmt.Errorf("unsupported %s identifier %q", kind, raw)
	}

	pathParts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, part := range pathParts {
		if part == kind && i+1 < len(pathParts) && bareIDRegex.MatchString(pathParts[i+1]) {
			return pathParts[i+1], nil
		}
	}

	return "", fmt.Errorf("no %s ID found in URL %q", kind, raw)
}

// NormalizePlaylists rewrites every identifier of the playlists to a bare Spotify ID.
func NormalizePlaylists(playlists []core.PlaylistSpec) error {
	for i := range playlists {
		playlist := &playlists[i]

		id, err := ExtractID(KindPlaylist, playlist.URI)
		if err != nil {
			return fmt.Errorf("playlist %q: %w", playlist.Name, err)
		}
		playlist.URI = id

		if err := normalizeAlbumRefs(playlist.IgnoredAlbums); err != nil {
			return fmt.Errorf("playlist %q: %w", playlist.Name, err)
		}

		for j := range playlist.Artists {
			artist := &playlist.Artists[j]
			if artist.ResolveByName {
				if artist.Name == "" {
					return fmt.Errorf("playlist %q: artist %d resolves by name but has no name", playlist.Name, j+1)
				}
			} else {
				id, err := ExtractID(KindArtist, artist.URI)
				if err != nil {
					return fmt.Errorf("playlist %q: artist %q: %w", playlist.Name, artist.DisplayName(), err)
				}
				artist.URI = id
			}

			if err := normalizeAlbumRefs(artist.IgnoredAlbums); err != nil {
				return fmt.Errorf("playlist %q: artist %q: %w", playlist.Name, artist.DisplayName(), err)
			}
		}
	}
	return nil
}

func normalizeAlbumRefs(refs []core.AlbumRef) error {
	for i := range refs {
		id, err := ExtractID(KindAlbum, refs[i].URI)
		if err != nil {
			return fmt.Errorf("ignored album %q: %w", refs[i].Name, err)
		}
		refs[i].URI = id
	}
	return nil
}
