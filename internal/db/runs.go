package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run and capture statuses.
const (
	RunRunning  = "running"
	RunFinished = "finished"
	RunFailed   = "failed"

	CaptureWritten = "written"
	CaptureSkipped = "skipped"
	CaptureFailed  = "failed"
)

// ErrRunNotFound is returned when no run has the given id.
var ErrRunNotFound = errors.New("conversion run not found")

// Run is one invocation of the converter.
type Run struct {
	ID         string
	Source     string
	OutputRoot string
	ConfigJSON string
	Status     string
	Written    int
	Skipped    int
	Failed     int
	StartedAt  time.Time
	FinishedAt *time.Time
}

// CaptureRecord describes what happened to one decoded capture.
type CaptureRecord struct {
	RunID           string
	SourceFile      string
	FrameNumber     int
	ContextName     string
	TimestampMicros int64
	Location        string
	// OutputIndex is nil for captures that were not written.
	OutputIndex *int
	OutputName  string
	NumPoints   int
	NumLabels   int
	Status      string
	Error       string
}

// CreateRun inserts a new running conversion run with a fresh id.
func (db *DB) CreateRun(ctx context.Context, source, outputRoot, configJSON string) (*Run, error) {
	run := &Run{
		ID:         uuid.NewString(),
		Source:     source,
		OutputRoot: outputRoot,
		ConfigJSON: configJSON,
		Status:     RunRunning,
		StartedAt:  db.clock.Now().UTC(),
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO conversion_runs (run_id, source, output_root, config_json, status, started_unix_ns)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.OutputRoot, run.ConfigJSON, run.Status, run.StartedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// RecordCapture appends a capture outcome to its run.
func (db *DB) RecordCapture(ctx context.Context, rec CaptureRecord) error {
	var outputIndex sql.NullInt64
	if rec.OutputIndex != nil {
		outputIndex = sql.NullInt64{Int64: int64(*rec.OutputIndex), Valid: true}
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO converted_captures (
			run_id, source_file, frame_number, context_name, timestamp_micros, location,
			output_index, output_name, num_points, num_labels, status, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.SourceFile, rec.FrameNumber, rec.ContextName, rec.TimestampMicros, rec.Location,
		outputIndex, rec.OutputName, rec.NumPoints, rec.NumLabels, rec.Status, rec.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record capture %s@%d: %w", rec.ContextName, rec.TimestampMicros, err)
	}
	return nil
}

// FinishRun closes a run, deriving its counters from the recorded captures.
func (db *DB) FinishRun(ctx context.Context, runID, status string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE conversion_runs
		SET
			status = ?,
			finished_unix_ns = ?,
			written = (SELECT COUNT(*) FROM converted_captures WHERE run_id = ? AND status = ?),
			skipped = (SELECT COUNT(*) FROM converted_captures WHERE run_id = ? AND status = ?),
			failed  = (SELECT COUNT(*) FROM converted_captures WHERE run_id = ? AND status = ?)
		WHERE run_id = ?`,
		status, db.clock.Now().UTC().UnixNano(),
		runID, CaptureWritten,
		runID, CaptureSkipped,
		runID, CaptureFailed,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// GetRun loads a run by id.
func (db *DB) GetRun(ctx context.Context, runID string) (*Run, error) {
	var (
		run      Run
		started  int64
		finished sql.NullInt64
	)
	err := db.QueryRowContext(ctx, `
		SELECT run_id, source, output_root, config_json, status, written, skipped, failed,
			started_unix_ns, finished_unix_ns
		FROM conversion_runs WHERE run_id = ?`, runID,
	).Scan(&run.ID, &run.Source, &run.OutputRoot, &run.ConfigJSON, &run.Status,
		&run.Written, &run.Skipped, &run.Failed, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	run.StartedAt = time.Unix(0, started).UTC()
	if finished.Valid {
		t := time.Unix(0, finished.Int64).UTC()
		run.FinishedAt = &t
	}
	return &run, nil
}

// ListCaptures returns a run's captures in source order.
func (db *DB) ListCaptures(ctx context.Context, runID string) ([]CaptureRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, source_file, frame_number, context_name, timestamp_micros, location,
			output_index, output_name, num_points, num_labels, status, error
		FROM converted_captures
		WHERE run_id = ?
		ORDER BY source_file, frame_number`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CaptureRecord
	for rows.Next() {
		var (
			rec CaptureRecord
			idx sql.NullInt64
		)
		if err := rows.Scan(&rec.RunID, &rec.SourceFile, &rec.FrameNumber, &rec.ContextName,
			&rec.TimestampMicros, &rec.Location, &idx, &rec.OutputName, &rec.NumPoints,
			&rec.NumLabels, &rec.Status, &rec.Error); err != nil {
			return nil, err
		}
		if idx.Valid {
			i := int(idx.Int64)
			rec.OutputIndex = &i
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
