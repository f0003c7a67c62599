package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/NaN-tic/csvimport/internal/core"
)

type RunRepo struct{ *Repo }

func NewRunRepo(db *sql.DB) *RunRepo { return &RunRepo{NewRepo(db)} }

// Save stores a finished run together with its log entries.
func (r *RunRepo) Save(ctx context.Context, run *core.Run) error {
	return WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		var finished any
		if !run.Finished.IsZero() {
			finished = run.Finished.UTC().Format(time.RFC3339)
		}
		q := r.SQ.Insert("runs").
			Columns("id", "profile_id", "profile_name", "filename", "state",
				"started_at", "finished_at", "created", "updated", "skipped", "failure").
			Values(run.ID.String(), run.ProfileID, run.Profile, run.Filename, string(run.State),
				run.Started.UTC().Format(time.RFC3339), finished,
				run.Created, run.Updated, run.Skipped, run.Failure)
		sqlStr, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for _, e := range run.Entries {
			q := r.SQ.Insert("run_logs").Columns("run_id", "at", "status", "message").
				Values(run.ID.String(), e.Time.UTC().Format(time.RFC3339), string(e.Status), e.Message)
			sqlStr, args, err := q.ToSql()
			if err != nil {
				return fmt.Errorf("build log insert: %w", err)
			}
			if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
				return fmt.Errorf("insert run log: %w", err)
			}
		}
		return nil
	})
}

// Get returns one run with its full log.
func (r *RunRepo) Get(ctx context.Context, id uuid.UUID) (*core.Run, error) {
	q := r.SQ.Select("id", "profile_id", "profile_name", "filename", "state",
		"started_at", "finished_at", "created", "updated", "skipped", "failure").
		From("runs").Where(sq.Eq{"id": id.String()})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	run, err := scanRun(r.DB.QueryRowContext(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	lq := r.SQ.Select("at", "status", "message").From("run_logs").
		Where(sq.Eq{"run_id": id.String()}).OrderBy("id")
	sqlStr, args, err = lq.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build log select: %w", err)
	}
	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list run logs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			at      string
			status  string
			message string
		)
		if err := rows.Scan(&at, &status, &message); err != nil {
			return nil, err
		}
		t, _ := time.Parse(time.RFC3339, at)
		run.Entries = append(run.Entries, core.LogEntry{
			Time:    t,
			Status:  core.LogStatus(status),
			Message: message,
		})
	}
	return run, rows.Err()
}

// List returns runs newest first, optionally filtered to one profile.
// Log entries are not loaded; Get fetches them per run.
func (r *RunRepo) List(ctx context.Context, profileID int64, limit int) ([]*core.Run, error) {
	q := r.SQ.Select("id", "profile_id", "profile_name", "filename", "state",
		"started_at", "finished_at", "created", "updated", "skipped", "failure").
		From("runs").OrderBy("started_at DESC")
	if profileID > 0 {
		q = q.Where(sq.Eq{"profile_id": profileID})
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*core.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func scanRun(row rowScanner) (*core.Run, error) {
	var (
		run      core.Run
		id       string
		state    string
		started  string
		finished sql.NullString
	)
	if err := row.Scan(&id, &run.ProfileID, &run.Profile, &run.Filename, &state,
		&started, &finished, &run.Created, &run.Updated, &run.Skipped, &run.Failure); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse run id %q: %w", id, err)
	}
	run.ID = parsed
	run.State = core.RunState(state)
	run.Started, _ = time.Parse(time.RFC3339, started)
	if finished.Valid {
		run.Finished, _ = time.Parse(time.RFC3339, finished.String)
	}
	return &run, nil
}
