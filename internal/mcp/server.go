package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"resumecron/internal/core"
)

// Automation is the trigger surface exposed as tools.
type Automation interface {
	RunOnce(ctx context.Context) (*core.Summary, error)
	Running() bool
	NextRun() time.Time
	Schedule() string
}

// History is the read side of the run store.
type History interface {
	ListRuns(ctx context.Context, limit int) ([]*core.Summary, error)
}

// MCPServer represents the MCP server that handles protocol communication.
type MCPServer struct {
	automation Automation
	history    History
	logger     *slog.Logger
	location   *time.Location
	version    string

	// runCtx parents runs started without waiting.
	runCtx context.Context
}

// NewMCPServer creates a new MCP server instance.
func NewMCPServer(runCtx context.Context, automation Automation, history History, logger *slog.Logger, location *time.Location, version string) *MCPServer {
	if location == nil {
		location = time.Local
	}
	return &MCPServer{
		automation: automation,
		history:    history,
		logger:     logger,
		location:   location,
		version:    version,
		runCtx:     runCtx,
	}
}

// Run serves MCP over in/out until ctx is cancelled or in is closed.
func (s *MCPServer) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	mcpServer := server.NewMCPServer(
		"resumecron",
		s.version,
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)

	stdio := server.NewStdioServer(mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	s.logger.Info("MCP server starting on stdio")
	if err := stdio.Listen(ctx, in, out); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// registerTools registers all available MCP tools.
func (s *MCPServer) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("automation_status",
		mcp.WithDescription("Show whether a resume refresh is running, the schedule and the last run"),
	), s.handleStatus)

	mcpServer.AddTool(mcp.NewTool("automation_run_now",
		mcp.WithDescription("Start a resume refresh immediately. Refused while another run is in progress"),
		mcp.WithBoolean("wait",
			mcp.Description("Block until the run finishes and return its summary (default false)"),
		),
	), s.handleRunNow)

	mcpServer.AddTool(mcp.NewTool("automation_list_runs",
		mcp.WithDescription("List recent resume refresh runs, newest first"),
		mcp.WithNumber("limit",
			mcp.Description("Number of runs to return, default 10"),
			mcp.Min(1),
			mcp.Max(100),
		),
	), s.handleListRuns)

	mcpServer.AddTool(mcp.NewTool("cron_preview",
		mcp.WithDescription("Preview upcoming firings of a cron expression in the schedule timezone"),
		mcp.WithString("cron",
			mcp.Description("Cron expression; defaults to the active schedule"),
		),
		mcp.WithNumber("count",
			mcp.Description("Number of firings to return, default 5"),
			mcp.Min(1),
			mcp.Max(10),
		),
	), s.handleCronPreview)

	s.logger.Info("MCP tools registered", "count", 4)
}

func (s *MCPServer) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var b strings.Builder
	if s.automation.Running() {
		b.WriteString("State: running\n")
	} else {
		b.WriteString("State: idle\n")
	}
	fmt.Fprintf(&b, "Schedule: %s (%s)\n", s.automation.Schedule(), s.location)
	if next := s.automation.NextRun(); !next.IsZero() {
		fmt.Fprintf(&b, "Next run: %s\n", formatTime(next, s.location))
	}

	runs, err := s.history.ListRuns(ctx, 1)
	if err != nil {
		s.logger.Error("list runs", "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to load history: %v", err)), nil
	}
	if len(runs) == 0 {
		b.WriteString("Last run: none\n")
	} else {
		fmt.Fprintf(&b, "Last run: %s\n", summaryLine(runs[0], s.location))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *MCPServer) handleRunNow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.automation.Running() {
		return mcp.NewToolResultError(core.ErrRunInProgress.Error()), nil
	}

	if !mcp.ParseBoolean(request, "wait", false) {
		go func() {
			if _, err := s.automation.RunOnce(s.backgroundContext()); err != nil {
				s.logger.Warn("manual run", "err", err)
			}
		}()
		return mcp.NewToolResultText("Run started"), nil
	}

	summary, err := s.automation.RunOnce(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatSummary(summary, s.location)), nil
}

func (s *MCPServer) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := int(mcp.ParseFloat64(request, "limit", 10))
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	runs, err := s.history.ListRuns(ctx, limit)
	if err != nil {
		s.logger.Error("list runs", "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to load history: %v", err)), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("No runs recorded"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d runs:\n\n", len(runs))
	for _, run := range runs {
		b.WriteString(formatSummary(run, s.location))
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *MCPServer) handleCronPreview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	preview, err := core.PreviewSchedule(
		mcp.ParseString(request, "cron", ""),
		s.automation.Schedule(),
		time.Now().In(s.location),
		int(mcp.ParseFloat64(request, "count", 5)),
	)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Next %d firings of %q", len(preview.Next), preview.Expr)
	if preview.Active {
		b.WriteString(" (active schedule)")
	}
	b.WriteString(":\n")
	for i, t := range preview.Next {
		fmt.Fprintf(&b, "%d. %s\n", i+1, formatTime(t, s.location))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *MCPServer) backgroundContext() context.Context {
	if s.runCtx != nil {
		return s.runCtx
	}
	return context.Background()
}

func formatTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02 15:04:05 MST")
}

func summaryLine(run *core.Summary, loc *time.Location) string {
	status := "failed"
	if run.Success {
		status = "succeeded"
	}
	return fmt.Sprintf("%s %s (%s, %d/%d units, %s)", formatTime(run.StartedAt, loc), status,
		run.Trigger, run.SuccessCount(), len(run.Results), run.Duration.Round(time.Second))
}

func formatSummary(run *core.Summary, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n  %s\n", run.ID, summaryLine(run, loc))
	for _, r := range run.Results {
		mark := "ok"
		if !r.Success {
			mark = "FAILED"
		}
		fmt.Fprintf(&b, "  - %s: %s after %d attempt(s)", r.Name, mark, r.Attempts)
		if r.Error != "" {
			fmt.Fprintf(&b, " (%s)", r.Error)
		}
		b.WriteString("\n")
	}
	return b.String()
}
