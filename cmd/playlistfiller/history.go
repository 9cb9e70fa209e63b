package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"playlistfiller/internal/spotify"
	"playlistfiller/internal/store"
)

const defaultHistoryLimit = 10

func (a *app) newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the recorded runs of every configured playlist",
		RunE:  a.runHistory,
	}
	cmd.Flags().Int("limit", defaultHistoryLimit, "number of runs shown per playlist")
	cmd.Flags().Bool("tracks", false, "also list the tracks added by each run")
	return cmd
}

func (a *app) runHistory(cmd *cobra.Command, _ []string) error {
	if a.config.App.HistoryPath == "" {
		return fmt.Errorf("--history-path is required")
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	showTracks, err := cmd.Flags().GetBool("tracks")
	if err != nil {
		return err
	}

	if err := spotify.NormalizePlaylists(a.config.Playlists); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	history, err := store.OpenHistory(a.config.App.HistoryPath)
	if err != nil {
		return err
	}
	defer history.Close()

	out := cmd.OutOrStdout()
	for i := range a.config.Playlists {
		playlist := &a.config.Playlists[i]
		runs, err := history.Runs(cmd.Context(), playlist.URI, limit)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "%s (%s): %d runs\n", playlist.Name, playlist.URI, len(runs))
		for _, run := range runs {
			fmt.Fprintf(out, "  %s\n", run.Summary())
			if !showTracks {
				continue
			}
			trackIDs, err := history.AddedTracks(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			for _, trackID := range trackIDs {
				fmt.Fprintf(out, "    spotify:track:%s\n", trackID)
			}
		}
	}
	return nil
}
