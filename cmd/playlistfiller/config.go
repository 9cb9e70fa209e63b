package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"playlistfiller/internal/core"
)

// fileConfig is what the YAML configuration file provides.
type fileConfig struct {
	Playlists     []core.PlaylistSpec
	SpotifyID     string
	SpotifySecret string
	Verbose       bool
}

// Optional keys of the YAML file that back the matching flags when those are unset
const (
	fileKeySpotifyID     = "spotify_id"
	fileKeySpotifySecret = "spotify_secret"
	fileKeyVerbose       = "verbose"
)

// fileSource reads the YAML configuration file. Every top-level key can be replaced by an
// environment variable named after the key in upper case, whose value is parsed as YAML.
type fileSource struct {
	v *viper.Viper
}

func newFileSource(path string, lookupEnv func(string) (string, bool), extraKeys ...string) (*fileSource, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	keys := topLevelKeys(v.AllSettings())
	keys = append(keys, extraKeys...)

	for _, key := range keys {
		raw, ok := lookupEnv(strings.ToUpper(key))
		if !ok {
			continue
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("failed to parse environment variable %s: %w", strings.ToUpper(key), err)
		}
		v.Set(key, value)
	}

	return &fileSource{v: v}, nil
}

func topLevelKeys(settings map[string]any) []string {
	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	return keys
}

// require returns ErrConfigurationMissing when key is absent.
func (s *fileSource) require(key string) error {
	if !s.v.IsSet(key) {
		return fmt.Errorf("%w: %s not defined, please correct your configuration",
			core.ErrConfigurationMissing, strings.ToUpper(key))
	}
	return nil
}

func (s *fileSource) playlists(key string) ([]core.PlaylistSpec, error) {
	if err := s.require(key); err != nil {
		return nil, err
	}

	var playlists []core.PlaylistSpec
	if err := s.v.UnmarshalKey(key, &playlists); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", strings.ToUpper(key), err)
	}
	return playlists, nil
}

// loadFileConfig reads the playlists and the optional credentials from the YAML file.
func loadFileConfig(path, playlistsKey string, lookupEnv func(string) (string, bool)) (*fileConfig, error) {
	src, err := newFileSource(path, lookupEnv,
		playlistsKey, fileKeySpotifyID, fileKeySpotifySecret, fileKeyVerbose)
	if err != nil {
		return nil, err
	}

	playlists, err := src.playlists(playlistsKey)
	if err != nil {
		return nil, err
	}

	return &fileConfig{
		Playlists:     playlists,
		SpotifyID:     src.v.GetString(fileKeySpotifyID),
		SpotifySecret: src.v.GetString(fileKeySpotifySecret),
		Verbose:       src.v.GetBool(fileKeyVerbose),
	}, nil
}

// applyFileConfig fills settings left empty by flags and environment from the file.
func applyFileConfig(cfg *core.Config, fc *fileConfig) {
	cfg.Playlists = fc.Playlists
	if cfg.Spotify.ClientID == "" {
		cfg.Spotify.ClientID = fc.SpotifyID
	}
	if cfg.Spotify.ClientSecret == "" {
		cfg.Spotify.ClientSecret = fc.SpotifySecret
	}
	if fc.Verbose && cfg.Log.Level == "info" {
		cfg.Log.Level = "debug"
	}
}
