package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"resumecron/internal/core"
)

var ErrRunNotFound = errors.New("run not found")

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RecordRun persists a run summary with its unit results and prunes runs
// beyond the retention limit.
func (s *Store) RecordRun(ctx context.Context, summary *core.Summary) error {
	if summary == nil {
		return errors.New("record run: nil summary")
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, trigger, success, started_at, duration_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, summary.ID, summary.Trigger, boolToInt(summary.Success),
		summary.StartedAt.UTC().Format(timeLayout), int64(summary.Duration),
		time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for i, r := range summary.Results {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO unit_results (run_id, position, name, success, attempts, finished_at, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, summary.ID, i, r.Name, boolToInt(r.Success), r.Attempts,
			r.Timestamp.UTC().Format(timeLayout), nullableString(r.Error))
		if err != nil {
			return fmt.Errorf("insert unit result %s: %w", r.Name, err)
		}
	}
	if err := s.prune(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record run: %w", err)
	}
	return nil
}

// GetRun loads one run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*core.Summary, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, trigger, success, started_at, duration_ns
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	if err := s.loadResults(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*core.Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, trigger, success, started_at, duration_ns
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var runs []*core.Summary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// The pool holds a single connection; release it before loading results.
	rows.Close()
	for _, run := range runs {
		if err := s.loadResults(ctx, run); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) loadResults(ctx context.Context, run *core.Summary) error {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT name, success, attempts, finished_at, error
		FROM unit_results
		WHERE run_id = ?
		ORDER BY position
	`, run.ID)
	if err != nil {
		return fmt.Errorf("load unit results: %w", err)
	}
	defer rows.Close()
	run.Results = []core.UnitResult{}
	for rows.Next() {
		var (
			r          core.UnitResult
			success    int
			finishedAt string
			errMsg     sql.NullString
		)
		if err := rows.Scan(&r.Name, &success, &r.Attempts, &finishedAt, &errMsg); err != nil {
			return fmt.Errorf("scan unit result: %w", err)
		}
		r.Success = success != 0
		r.Timestamp = mustParseTime(finishedAt)
		r.Error = errMsg.String
		run.Results = append(run.Results, r)
	}
	return rows.Err()
}

// prune removes runs beyond the retention limit.
func (s *Store) prune(ctx context.Context, tx *sql.Tx) error {
	const stale = `
		SELECT id FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT -1 OFFSET ?
	`
	if _, err := tx.ExecContext(ctx, `DELETE FROM unit_results WHERE run_id IN (`+stale+`)`, s.Keep); err != nil {
		return fmt.Errorf("prune unit results: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id IN (`+stale+`)`, s.Keep); err != nil {
		return fmt.Errorf("prune runs: %w", err)
	}
	return nil
}

func scanRun(scanner interface {
	Scan(dest ...any) error
}) (*core.Summary, error) {
	var (
		id         string
		trigger    string
		success    int
		startedAt  string
		durationNS int64
	)
	if err := scanner.Scan(&id, &trigger, &success, &startedAt, &durationNS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return &core.Summary{
		ID:        id,
		Trigger:   core.TriggerKind(trigger),
		Success:   success != 0,
		StartedAt: mustParseTime(startedAt),
		Duration:  time.Duration(durationNS),
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func mustParseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		panic(fmt.Sprintf("invalid stored time %q: %v", value, err))
	}
	return t
}
