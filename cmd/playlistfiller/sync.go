package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"playlistfiller/internal/core"
	httpserver "playlistfiller/internal/http"
	"playlistfiller/internal/spotify"
	"playlistfiller/internal/store"
)

type services struct {
	spotify  *spotify.Client
	runner   *core.Runner
	metrics  *httpserver.Metrics
	registry *prometheus.Registry
	history  *store.History
}

func (a *app) runSync(cmd *cobra.Command, _ []string) error {
	if a.v.GetBool("generate-config-example") {
		return generateConfigExample(cmd, configExamplePath)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := a.config
	logger := a.logger
	defer logger.Sync() //nolint:errcheck // stderr sync errors are not actionable

	logger.Info("Starting playlistfiller",
		zap.Int("playlists", len(cfg.Playlists)),
		zap.Bool("dry_run", cfg.App.DryRun),
		zap.Duration("interval", cfg.App.Interval))

	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := spotify.NormalizePlaylists(cfg.Playlists); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if len(cfg.Playlists) == 0 {
		logger.Warn("No playlists configured, nothing to do")
	}

	svcs, err := a.initializeServices(ctx)
	if err != nil {
		return err
	}
	if svcs.history != nil {
		defer svcs.history.Close()
	}
	defer func() {
		if err := svcs.spotify.PersistToken(); err != nil {
			logger.Warn("Failed to persist Spotify token", zap.Error(err))
		}
	}()

	if cfg.App.Interval == 0 {
		return a.runOnce(ctx, svcs)
	}
	return a.runWatch(ctx, svcs)
}

func (a *app) initializeServices(ctx context.Context) (*services, error) {
	cfg := a.config

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := httpserver.NewMetrics(registry)

	spotifyClient := spotify.NewClient(&cfg.Spotify, a.logger.Named("spotify"))
	if err := spotifyClient.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("failed to authenticate with Spotify: %w", err)
	}

	opts := []core.ReconcilerOption{
		core.WithObserver(metrics),
		core.WithDryRun(cfg.App.DryRun),
	}

	var history *store.History
	if cfg.App.HistoryPath != "" {
		var err error
		history, err = store.OpenHistory(cfg.App.HistoryPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, core.WithHistory(history))
	}

	reconciler := core.NewReconciler(spotifyClient, store.NewSetFactory(store.DefaultFalsePositiveRate),
		a.logger.Named("reconciler"), opts...)

	return &services{
		spotify:  spotifyClient,
		runner:   core.NewRunner(reconciler, a.logger.Named("runner")),
		metrics:  metrics,
		registry: registry,
		history:  history,
	}, nil
}

func (a *app) runOnce(ctx context.Context, svcs *services) error {
	start := time.Now()
	svcs.spotify.ResetCache()
	results, err := svcs.runner.Run(ctx, a.config.Playlists)

	status := core.SyncStatusSuccess
	if err != nil {
		status = core.SyncStatusError
	}
	svcs.metrics.RecordRun(status, time.Now())

	added, toAdd := summarize(results)

	if err != nil {
		a.logger.Error("Run failed",
			zap.Int("playlistsCompleted", len(results)),
			zap.Int("tracksToAdd", toAdd),
			zap.Int("tracksAdded", added),
			zap.Error(err))
		return err
	}

	a.logger.Info("Run completed",
		zap.Int("playlists", len(results)),
		zap.Int("tracksToAdd", toAdd),
		zap.Int("tracksAdded", added),
		zap.Bool("dryRun", a.config.App.DryRun),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// summarize counts the tracks appended to playlists and the tracks computed for addition.
// The two differ in dry-run mode, where nothing is appended.
func summarize(results []*core.Result) (added, toAdd int) {
	for _, result := range results {
		added += result.TracksAdded()
		toAdd += len(result.TracksToAdd)
	}
	return added, toAdd
}

// runWatch repeats the run every interval while serving health and metrics.
// A failed run is logged and retried on the next tick.
func (a *app) runWatch(ctx context.Context, svcs *services) error {
	server := httpserver.NewServer(&a.config.Server, a.logger.Named("http"), svcs.registry)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start(gCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(a.config.App.Interval)
		defer ticker.Stop()

		for {
			if err := a.runOnce(gCtx, svcs); err == nil {
				server.SetReady(true)
			} else if gCtx.Err() != nil {
				return nil
			}

			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	a.logger.Info("playlistfiller watching",
		zap.String("http_addr", fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port)),
		zap.Duration("interval", a.config.App.Interval))

	if err := g.Wait(); err != nil {
		a.logger.Error("playlistfiller stopped with error", zap.Error(err))
		return err
	}

	a.logger.Info("playlistfiller stopped gracefully")
	return nil
}
