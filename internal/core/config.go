package core

import (
	"time"
)

const (
	// DefaultServerPort is the default port of the metrics and health server
	DefaultServerPort = 8080
	// DefaultAPITimeout bounds each individual catalog call
	DefaultAPITimeout = 30 * time.Second
	// DefaultRequestsPerSecond paces catalog calls
	DefaultRequestsPerSecond = 5.0
	// DefaultAlbumCacheSize is the number of album track pages kept across playlists
	DefaultAlbumCacheSize = 512
	// DefaultPlaylistsKey is the configuration key holding the playlists to fill
	DefaultPlaylistsKey = "playlists_to_fill"
)

// Config holds every setting of a run, built once at startup.
type Config struct {
	Spotify   SpotifyConfig
	Server    ServerConfig
	Log       LogConfig
	App       AppConfig
	Playlists []PlaylistSpec
}

// SpotifyConfig holds the Spotify credentials and API call behavior.
type SpotifyConfig struct {
	ClientID          string
	ClientSecret      string
	RedirectURL       string
	TokenPath         string
	APITimeout        time.Duration
	RequestsPerSecond float64
	RetryRateLimited  bool
	AlbumCacheSize    int
}

// ServerConfig holds the health and metrics server settings used in watch mode.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LogConfig selects the log level and the optional rotating log file.
type LogConfig struct {
	Level string
	// File enables a rotating log file in addition to stderr when set
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// AppConfig holds the playlists source and the run mode.
type AppConfig struct {
	ConfigPath   string
	PlaylistsKey string
	DryRun       bool
	// Interval repeats the whole run; zero runs once and exits
	Interval    time.Duration
	HistoryPath string
}

// DefaultConfig returns the configuration used when no flag or variable overrides it.
func DefaultConfig() *Config {
	return &Config{
		Spotify: SpotifyConfig{
			RedirectURL:       "http://127.0.0.1:8080/callback",
			TokenPath:         "./spotify_token.json",
			APITimeout:        DefaultAPITimeout,
			RequestsPerSecond: DefaultRequestsPerSecond,
			RetryRateLimited:  true,
			AlbumCacheSize:    DefaultAlbumCacheSize,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         DefaultServerPort,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		App: AppConfig{
			ConfigPath:   "config.yaml",
			PlaylistsKey: DefaultPlaylistsKey,
		},
	}
}
