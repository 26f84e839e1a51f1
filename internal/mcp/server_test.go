package mcp

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumecron/internal/core"
	"resumecron/internal/logging"
)

type fakeAutomation struct {
	running atomic.Bool
	runs    atomic.Int32
	result  *core.Summary
	err     error
}

func (f *fakeAutomation) RunOnce(ctx context.Context) (*core.Summary, error) {
	f.runs.Add(1)
	return f.result, f.err
}

func (f *fakeAutomation) Running() bool      { return f.running.Load() }
func (f *fakeAutomation) NextRun() time.Time { return time.Date(2026, 10, 18, 1, 30, 0, 0, time.UTC) }
func (f *fakeAutomation) Schedule() string   { return "0 7 * * *" }

type fakeHistory struct {
	runs []*core.Summary
	err  error
}

func (f *fakeHistory) ListRuns(ctx context.Context, limit int) ([]*core.Summary, error) {
	if len(f.runs) > limit {
		return f.runs[:limit], f.err
	}
	return f.runs, f.err
}

func failedSummary() *core.Summary {
	return &core.Summary{
		ID:        "run-9",
		Trigger:   core.TriggerScheduled,
		StartedAt: time.Date(2026, 10, 17, 1, 30, 0, 0, time.UTC),
		Duration:  95 * time.Second,
		Results:   []core.UnitResult{{Name: "Naukri", Attempts: 3, Error: "login verification failed"}},
	}
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func newTestServer(auto *fakeAutomation, hist *fakeHistory) *MCPServer {
	return NewMCPServer(context.Background(), auto, hist, logging.Discard(), time.UTC, "test")
}

func TestStatusTool(t *testing.T) {
	s := newTestServer(&fakeAutomation{}, &fakeHistory{runs: []*core.Summary{failedSummary()}})

	res, err := s.handleStatus(context.Background(), call(nil))
	require.NoError(t, err)

	out := text(t, res)
	assert.Contains(t, out, "State: idle")
	assert.Contains(t, out, "0 7 * * *")
	assert.Contains(t, out, "failed (scheduled, 0/1 units")
}

func TestStatusToolHistoryError(t *testing.T) {
	s := newTestServer(&fakeAutomation{}, &fakeHistory{err: errors.New("db closed")})

	res, err := s.handleStatus(context.Background(), call(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestRunNowRefusedWhileRunning(t *testing.T) {
	auto := &fakeAutomation{}
	auto.running.Store(true)
	s := newTestServer(auto, &fakeHistory{})

	res, err := s.handleRunNow(context.Background(), call(map[string]any{"wait": true}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, int32(0), auto.runs.Load())
}

func TestRunNowWaitReturnsSummary(t *testing.T) {
	auto := &fakeAutomation{result: failedSummary()}
	s := newTestServer(auto, &fakeHistory{})

	res, err := s.handleRunNow(context.Background(), call(map[string]any{"wait": true}))
	require.NoError(t, err)

	out := text(t, res)
	assert.Contains(t, out, "run-9")
	assert.Contains(t, out, "Naukri: FAILED after 3 attempt(s) (login verification failed)")
}

func TestRunNowBackground(t *testing.T) {
	auto := &fakeAutomation{result: failedSummary()}
	s := newTestServer(auto, &fakeHistory{})

	res, err := s.handleRunNow(context.Background(), call(nil))
	require.NoError(t, err)
	assert.Equal(t, "Run started", text(t, res))
	assert.Eventually(t, func() bool { return auto.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestListRunsTool(t *testing.T) {
	s := newTestServer(&fakeAutomation{}, &fakeHistory{})
	res, err := s.handleListRuns(context.Background(), call(map[string]any{"limit": float64(5)}))
	require.NoError(t, err)
	assert.Equal(t, "No runs recorded", text(t, res))

	s = newTestServer(&fakeAutomation{}, &fakeHistory{runs: []*core.Summary{failedSummary(), failedSummary()}})
	res, err = s.handleListRuns(context.Background(), call(map[string]any{"limit": float64(1)}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "Found 1 runs")
}

func TestCronPreviewTool(t *testing.T) {
	s := newTestServer(&fakeAutomation{}, &fakeHistory{})

	res, err := s.handleCronPreview(context.Background(), call(map[string]any{"cron": "*/30 * * * *", "count": float64(3)}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "Next 3 firings")
	assert.NotContains(t, text(t, res), "active schedule")

	res, err = s.handleCronPreview(context.Background(), call(nil))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), `"0 7 * * *" (active schedule)`)

	res, err = s.handleCronPreview(context.Background(), call(map[string]any{"cron": "nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
