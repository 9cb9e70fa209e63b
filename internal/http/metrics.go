package http

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"playlistfiller/internal/core"
)

// Metrics holds the Prometheus collectors of playlist runs. It implements core.Observer.
type Metrics struct {
	SyncsTotal              *prometheus.CounterVec
	TracksAddedTotal        *prometheus.CounterVec
	AlbumsSkippedTotal      *prometheus.CounterVec
	DuplicateTracksTotal    prometheus.Counter
	ResolutionFailuresTotal prometheus.Counter
	RunsTotal               *prometheus.CounterVec
	SyncDuration            *prometheus.HistogramVec
	LastSuccessfulRun       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		SyncsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playlistfiller_playlist_syncs_total",
				Help: "Total number of playlist reconciliations",
			},
			[]string{"playlist", "status"},
		),
		TracksAddedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playlistfiller_tracks_added_total",
				Help: "Total number of tracks appended to playlists",
			},
			[]string{"playlist"},
		),
		AlbumsSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playlistfiller_albums_skipped_total",
				Help: "Total number of albums contributing no tracks",
			},
			[]string{"reason"},
		),
		DuplicateTracksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "playlistfiller_duplicate_tracks_total",
				Help: "Total number of tracks skipped because the playlist already holds them",
			},
		),
		ResolutionFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "playlistfiller_artist_resolution_failures_total",
				Help: "Total number of artist names the search could not resolve",
			},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playlistfiller_runs_total",
				Help: "Total number of runs over all configured playlists",
			},
			[]string{"status"},
		),
		SyncDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "playlistfiller_playlist_sync_duration_seconds",
				Help:    "Time spent reconciling one playlist",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"playlist"},
		),
		LastSuccessfulRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "playlistfiller_last_successful_run_timestamp_seconds",
				Help: "Unix time of the last run that completed every playlist",
			},
		),
	}

	reg.MustRegister(
		metrics.SyncsTotal,
		metrics.TracksAddedTotal,
		metrics.AlbumsSkippedTotal,
		metrics.DuplicateTracksTotal,
		metrics.ResolutionFailuresTotal,
		metrics.RunsTotal,
		metrics.SyncDuration,
		metrics.LastSuccessfulRun,
	)

	return metrics
}

func (m *Metrics) RecordTracksAdded(playlist string, count int) {
	m.TracksAddedTotal.WithLabelValues(playlist).Add(float64(count))
}

func (m *Metrics) RecordAlbumSkipped(reason string) {
	m.AlbumsSkippedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordDuplicateTrack() {
	m.DuplicateTracksTotal.Inc()
}

func (m *Metrics) RecordResolutionFailure() {
	m.ResolutionFailuresTotal.Inc()
}

func (m *Metrics) RecordSync(playlist, status string, duration time.Duration) {
	m.SyncsTotal.WithLabelValues(playlist, status).Inc()
	m.SyncDuration.WithLabelValues(playlist).Observe(duration.Seconds())
}

// RecordRun counts a run over all playlists and stamps successful ones.
func (m *Metrics) RecordRun(status string, finishedAt time.Time) {
	m.RunsTotal.WithLabelValues(status).Inc()
	if status == core.SyncStatusSuccess {
		m.LastSuccessfulRun.Set(float64(finishedAt.Unix()))
	}
}
