package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"playlistfiller/internal/core"
)

const configExamplePath = "config.example.yaml"

func generateConfigExample(cmd *cobra.Command, path string) error {
	fmt.Println("Generating " + path + " from current configuration...")

	content, err := generateConfigExampleContent(cmd)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Println("✅ Successfully generated " + path)
	return nil
}

func generateConfigExampleContent(cmd *cobra.Command) (string, error) {
	var content strings.Builder

	content.WriteString("# =============================================================================\n")
	content.WriteString("# playlistfiller configuration\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#\n")
	content.WriteString("# Copy this file to config.yaml and update with your values.\n")
	content.WriteString("# Every top-level key can be replaced by an environment variable with the\n")
	content.WriteString("# same name in upper case holding YAML, e.g. PLAYLISTS_TO_FILL='[...]'.\n")
	content.WriteString("#\n")
	content.WriteString("# Settings (environment variable, CLI flag, default):\n")
	generateSettingsSection(&content, cmd)
	content.WriteString("#\n")
	content.WriteString("# Playlist, artist and album identifiers accept bare IDs, spotify: URIs\n")
	content.WriteString("# and open.spotify.com links.\n")
	content.WriteString("# =============================================================================\n\n")

	example := map[string]any{
		fileKeySpotifyID:     "your_spotify_client_id_here",
		fileKeySpotifySecret: "your_spotify_client_secret_here",
		fileKeyVerbose:       false,
		core.DefaultPlaylistsKey: []core.PlaylistSpec{
			{
				Name: "Complete discography",
				URI:  "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M",
				Artists: []core.ArtistSpec{
					{
						Name: "Daft Punk",
						URI:  "spotify:artist:4tZwfgrHOc3mvqYlEYSvVN",
						IgnoredAlbums: []core.AlbumRef{
							{Name: "Alive 2007", URI: "spotify:album:1A2GTWGtFfWp7KSQTwWOyo"},
						},
					},
					{
						Name:          "Justice",
						ResolveByName: true,
					},
				},
				IgnoredAlbums: []core.AlbumRef{
					{Name: "Some compilation", URI: "spotify:album:0000000000000000000000"},
				},
			},
		},
	}

	data, err := yaml.Marshal(example)
	if err != nil {
		return "", fmt.Errorf("failed to render example: %w", err)
	}
	content.Write(data)

	return content.String(), nil
}

func flagToEnvVar(flagName string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

func generateSettingsSection(content *strings.Builder, cmd *cobra.Command) {
	flags := []string{
		"spotify-client-id", "spotify-client-secret", "spotify-redirect-url", "spotify-token-path",
		"api-timeout", "requests-per-second", "retry-rate-limited", "album-cache-size",
		"dry-run", "interval", "history-path", "server-host", "server-port",
		"log-level", "log-file",
	}
	for _, name := range flags {
		f := cmd.Root().PersistentFlags().Lookup(name)
		if f == nil {
			continue
		}
		fmt.Fprintf(content, "#   %-42s --%-24s %q\n", flagToEnvVar(name), name, f.DefValue)
	}
}
