package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumecron/internal/core"
)

func newMemoryStore(t *testing.T, keep int) *Store {
	t.Helper()
	s, err := Open(context.Background(), "", keep)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func summaryAt(id string, at time.Time, success bool) *core.Summary {
	return &core.Summary{
		ID:        id,
		Trigger:   core.TriggerScheduled,
		Success:   success,
		StartedAt: at,
		Duration:  90 * time.Second,
		Results: []core.UnitResult{
			{Name: "Naukri", Success: success, Attempts: 3, Timestamp: at.Add(time.Minute), Error: errFor(success)},
		},
	}
}

func errFor(success bool) string {
	if success {
		return ""
	}
	return "attempts exhausted"
}

func TestRecordAndGetRun(t *testing.T) {
	s := newMemoryStore(t, 10)
	ctx := context.Background()
	at := time.Date(2026, 10, 17, 1, 30, 0, 0, time.UTC)

	require.NoError(t, s.RecordRun(ctx, summaryAt("run-1", at, false)))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, core.TriggerScheduled, got.Trigger)
	assert.False(t, got.Success)
	assert.True(t, at.Equal(got.StartedAt))
	assert.Equal(t, 90*time.Second, got.Duration)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "Naukri", got.Results[0].Name)
	assert.Equal(t, 3, got.Results[0].Attempts)
	assert.Equal(t, "attempts exhausted", got.Results[0].Error)
}

func TestGetRunNotFound(t *testing.T) {
	s := newMemoryStore(t, 10)
	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRunsNewestFirstAndPruned(t *testing.T) {
	s := newMemoryStore(t, 3)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 1, 30, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordRun(ctx, summaryAt(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*24*time.Hour), i%2 == 0)))
	}

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-4", runs[0].ID)
	assert.Equal(t, "run-2", runs[2].ID)
	assert.Len(t, runs[0].Results, 1)

	_, err = s.GetRun(ctx, "run-0")
	assert.ErrorIs(t, err, ErrRunNotFound)

	var orphans int
	require.NoError(t, s.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM unit_results WHERE run_id IN ('run-0', 'run-1')`).Scan(&orphans))
	assert.Zero(t, orphans)
}

func TestListRunsLimit(t *testing.T) {
	s := newMemoryStore(t, 10)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 1, 30, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, s.RecordRun(ctx, summaryAt(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Hour), true)))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestOpenFileDatabaseIsReopenable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history", "runs.sqlite")

	s, err := Open(ctx, path, 5)
	require.NoError(t, err)
	require.NoError(t, s.RecordRun(ctx, summaryAt("persisted", time.Now(), true)))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, 5)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.GetRun(ctx, "persisted")
	require.NoError(t, err)
	assert.True(t, got.Success)
}

func TestRecordRunRejectsNil(t *testing.T) {
	s := newMemoryStore(t, 10)
	assert.Error(t, s.RecordRun(context.Background(), nil))
}
