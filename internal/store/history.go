package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

const historySchema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	playlist_id   TEXT NOT NULL,
	playlist_name TEXT NOT NULL,
	started_at    DATETIME NOT NULL,
	finished_at   DATETIME,
	tracks_added  INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL,
	error         TEXT
);
CREATE TABLE IF NOT EXISTS added_tracks (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	batch    INTEGER NOT NULL,
	position INTEGER NOT NULL,
	track_id TEXT NOT NULL,
	added_at DATETIME NOT NULL,
	PRIMARY KEY (run_id, batch, position)
);
CREATE INDEX IF NOT EXISTS idx_runs_playlist ON runs(playlist_id, started_at);
`

// Run statuses stored in the history
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is one recorded playlist reconciliation.
type Run struct {
	ID           string
	PlaylistID   string
	PlaylistName string
	StartedAt    time.Time
	FinishedAt   *time.Time
	TracksAdded  int
	Status       string
	Error        string
}

// History records submitted additions in a SQLite database.
type History struct {
	db  *sql.DB
	now func() time.Time
}

// OpenHistory opens (creating if needed) the history database at path.
// The path can be ":memory:" for an in-memory database.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// a single connection keeps ":memory:" databases consistent
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &History{db: db, now: time.Now}, nil
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}

// StartRun records the beginning of a reconciliation and returns its run ID.
func (h *History) StartRun(ctx context.Context, playlistID, playlistName string) (string, error) {
	runID := uuid.NewString()

	_, err := h.db.ExecContext(ctx,
		`INSERT INTO runs (id, playlist_id, playlist_name, started_at, status) VALUES (?, ?, ?, ?, ?)`,
		runID, playlistID, playlistName, h.now().UTC(), RunStatusRunning)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	return runID, nil
}

// RecordBatch stores the tracks of one submitted batch.
func (h *History) RecordBatch(ctx context.Context, runID string, batch int, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO added_tracks (run_id, batch, position, track_id, added_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	addedAt := h.now().UTC()
	for position, trackID := range trackIDs {
		if _, err := stmt.ExecContext(ctx, runID, batch, position, trackID, addedAt); err != nil {
			return fmt.Errorf("failed to insert added track: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// FinishRun marks the run completed, or failed when runErr is set.
func (h *History) FinishRun(ctx context.Context, runID string, added int, runErr error) error {
	status := RunStatusCompleted
	var errText sql.NullString
	if runErr != nil {
		status = RunStatusFailed
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}

	res, err := h.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, tracks_added = ?, status = ?, error = ? WHERE id = ?`,
		h.now().UTC(), added, status, errText, runID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// Runs returns the most recent runs of a playlist, newest first.
func (h *History) Runs(ctx context.Context, playlistID string, limit int) ([]Run, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, playlist_id, playlist_name, started_at, finished_at, tracks_added, status, error
		FROM runs
		WHERE playlist_id = ?
		ORDER BY started_at DESC
		LIMIT ?`, playlistID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			finishedAt sql.NullTime
			errText    sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.PlaylistID, &run.PlaylistName, &run.StartedAt,
			&finishedAt, &run.TracksAdded, &run.Status, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if finishedAt.Valid {
			run.FinishedAt = &finishedAt.Time
		}
		run.Error = errText.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// AddedTracks returns the tracks recorded for a run in submission order.
func (h *History) AddedTracks(ctx context.Context, runID string) ([]string, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT track_id FROM added_tracks WHERE run_id = ? ORDER BY batch, position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query added tracks: %w", err)
	}
	defer rows.Close()

	var trackIDs []string
	for rows.Next() {
		var trackID string
		if err := rows.Scan(&trackID); err != nil {
			return nil, fmt.Errorf("failed to scan added track: %w", err)
		}
		trackIDs = append(trackIDs, trackID)
	}
	return trackIDs, rows.Err()
}

// Summary renders a one-line description of a run for log output.
func (r Run) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %d tracks, %s", r.StartedAt.Format(time.RFC3339), r.PlaylistName, r.TracksAdded, r.Status)
	if r.Error != "" {
		fmt.Fprintf(&b, " (%s)", r.Error)
	}
	return b.String()
}
