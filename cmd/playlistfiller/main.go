// Package main provides the playlistfiller CLI application entry point.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"playlistfiller/internal/core"
)

const (
	defaultServerHost = "0.0.0.0"
	envPrefix         = "PLAYLISTFILLER"
	// exitConfigurationMissing is the exit code when a required configuration key is absent
	exitConfigurationMissing = 2
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, core.ErrConfigurationMissing) {
			os.Exit(exitConfigurationMissing)
		}
		os.Exit(1)
	}
}

// app carries the configuration and logger built once at startup to every command.
type app struct {
	v      *viper.Viper
	config *core.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "playlistfiller",
		Short: "playlistfiller - fill Spotify playlists with artists' discographies",
		Long: `playlistfiller appends every track of the configured artists' albums to Spotify playlists.
Tracks already in a playlist and explicitly ignored albums are skipped; nothing is ever removed.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.init,
		RunE:              a.runSync,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", core.DefaultConfig().App.ConfigPath, "YAML file holding the playlists to fill")
	flags.String("env-file", ".env", "dotenv file loaded before reading the environment")
	flags.String("playlists-key", core.DefaultPlaylistsKey, "configuration key holding the playlists")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-file", "", "rotating log file written in addition to stderr")
	flags.String("spotify-client-id", "", "Spotify client ID")
	flags.String("spotify-client-secret", "", "Spotify client secret")
	flags.String("spotify-redirect-url", "", "Spotify OAuth redirect URL")
	flags.String("spotify-token-path", "", "Spotify token storage path")
	flags.Duration("api-timeout", core.DefaultAPITimeout, "deadline of each Spotify API call")
	flags.Float64("requests-per-second", core.DefaultRequestsPerSecond, "maximum Spotify API calls per second (0 disables pacing)")
	flags.Bool("retry-rate-limited", true, "retry Spotify calls rejected with 429 after the advertised delay")
	flags.Int("album-cache-size", core.DefaultAlbumCacheSize, "album track pages cached across playlists (0 disables)")
	flags.Bool("dry-run", false, "compute the tracks to add without modifying playlists")
	flags.Duration("interval", 0, "repeat the run at this interval and serve metrics (0 runs once)")
	flags.String("history-path", "", "SQLite database recording every run (empty disables)")
	flags.String("server-host", defaultServerHost, "HTTP server host (watch mode)")
	flags.Int("server-port", core.DefaultServerPort, "HTTP server port (watch mode)")
	flags.Bool("generate-config-example", false, "write config.example.yaml and exit")

	if err := a.v.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(a.newHistoryCmd())

	return rootCmd
}

func (a *app) init(_ *cobra.Command, _ []string) error {
	envFile := a.v.GetString("env-file")
	if err := gotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error loading %s file: %v\n", envFile, err)
	}

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	a.config = buildConfig(a.v)

	if a.v.GetBool("generate-config-example") {
		a.logger = zap.NewNop()
		return nil
	}

	fc, err := loadFileConfig(a.config.App.ConfigPath, a.config.App.PlaylistsKey, os.LookupEnv)
	if err != nil {
		return err
	}
	applyFileConfig(a.config, fc)

	logger, err := buildLogger(&a.config.Log)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

func buildConfig(v *viper.Viper) *core.Config {
	cfg := core.DefaultConfig()

	configureSpotify(v, cfg)
	configureServer(v, cfg)
	configureLog(v, cfg)
	configureApp(v, cfg)

	return cfg
}

func configureSpotify(v *viper.Viper, cfg *core.Config) {
	cfg.Spotify.ClientID = v.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = v.GetString("spotify-client-secret")
	if redirectURL := v.GetString("spotify-redirect-url"); redirectURL != "" {
		cfg.Spotify.RedirectURL = redirectURL
	}
	if tokenPath := v.GetString("spotify-token-path"); tokenPath != "" {
		cfg.Spotify.TokenPath = tokenPath
	}
	cfg.Spotify.APITimeout = v.GetDuration("api-timeout")
	cfg.Spotify.RequestsPerSecond = v.GetFloat64("requests-per-second")
	cfg.Spotify.RetryRateLimited = v.GetBool("retry-rate-limited")
	cfg.Spotify.AlbumCacheSize = v.GetInt("album-cache-size")

	// SPOTIFY_ID and SPOTIFY_SECRET are accepted as fallbacks
	if cfg.Spotify.ClientID == "" {
		cfg.Spotify.ClientID = os.Getenv("SPOTIFY_ID")
	}
	if cfg.Spotify.ClientSecret == "" {
		cfg.Spotify.ClientSecret = os.Getenv("SPOTIFY_SECRET")
	}
}

func configureServer(v *viper.Viper, cfg *core.Config) {
	cfg.Server.Host = v.GetString("server-host")
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaultServerHost
	}
	cfg.Server.Port = v.GetInt("server-port")
}

func configureLog(v *viper.Viper, cfg *core.Config) {
	cfg.Log.Level = v.GetString("log-level")
	cfg.Log.File = v.GetString("log-file")
}

func configureApp(v *viper.Viper, cfg *core.Config) {
	if path := v.GetString("config"); path != "" {
		cfg.App.ConfigPath = path
	}
	if key := v.GetString("playlists-key"); key != "" {
		cfg.App.PlaylistsKey = key
	}
	cfg.App.DryRun = v.GetBool("dry-run")
	cfg.App.Interval = v.GetDuration("interval")
	if cfg.App.Interval < 0 {
		fmt.Fprintf(os.Stderr, "Warning: Invalid interval (%s), running once\n", cfg.App.Interval)
		cfg.App.Interval = 0
	}
	cfg.App.HistoryPath = v.GetString("history-path")
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func buildLogger(logCfg *core.LogConfig) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(parseLevel(logCfg.Level))

	cfg := zap.NewProductionConfig()
	cfg.Level = level

	builtLogger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if logCfg.File == "" {
		return builtLogger, nil
	}

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg.EncoderConfig),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   logCfg.File,
			MaxSize:    logCfg.MaxSizeMB,
			MaxBackups: logCfg.MaxBackups,
			MaxAge:     logCfg.MaxAgeDays,
			Compress:   true,
		}),
		level,
	)

	return builtLogger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	})), nil
}

func validateConfig(cfg *core.Config) error {
	return validateSpotifyConfig(&cfg.Spotify)
}

func validateSpotifyConfig(cfg *core.SpotifyConfig) error {
	if cfg.ClientID == "" {
		return fmt.Errorf("spotify client ID is required")
	}

	if cfg.ClientSecret == "" {
		return fmt.Errorf("spotify client secret is required")
	}

	return nil
}
