package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resumecron/internal/api"
	"resumecron/internal/browser"
	"resumecron/internal/config"
	"resumecron/internal/core"
	"resumecron/internal/health"
	"resumecron/internal/logging"
	resumecronmcp "resumecron/internal/mcp"
	"resumecron/internal/notify"
	"resumecron/internal/site"
	"resumecron/internal/store"
)

var version = "dev"

const (
	shutdownGrace  = 10 * time.Second
	healthInterval = 5 * time.Minute
)

func main() {
	os.Exit(run())
}

func run() (code int) {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse config: %v\n", err)
		return 1
	}

	// MCP owns stdout when enabled.
	var out io.Writer = os.Stdout
	if cfg.MCPEnabled {
		out = os.Stderr
	}
	logger, closer, err := logging.New(cfg.Log.Level, out, cfg.Log.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		return 1
	}
	defer closer.Close()

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("unrecovered panic", "panic", rec)
			code = 1
		}
	}()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		return 1
	}
	if err := os.MkdirAll(cfg.Automation.ScreenshotDir, 0o755); err != nil {
		logger.Warn("create screenshot dir", "dir", cfg.Automation.ScreenshotDir, "err", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	history, err := store.Open(ctx, cfg.History.DSN, cfg.History.Keep)
	if err != nil {
		logger.Error("open history", "err", err)
		return 1
	}
	defer history.Close()

	location := cfg.Location()
	trigger := buildTrigger(cfg, history, logger, location)

	if cfg.RunOnce {
		return runOnce(ctx, trigger, logger)
	}
	return runDaemon(ctx, cancel, cfg, trigger, history, logger, location)
}

func buildTrigger(cfg *config.Config, history *store.Store, logger *slog.Logger, location *time.Location) *core.Trigger {
	launch := browser.NewSeleniumLauncher(cfg.Automation.WebDriverURL)
	naukri := site.NaukriOptions{
		Email:      cfg.Credentials.Identifier,
		Password:   cfg.Credentials.Secret,
		ResumePath: cfg.ResumePath,
		Launch:     browser.DefaultLaunchOptions(cfg.Automation.Headless, cfg.Automation.BrowserBinary, cfg.Automation.Timeout),
		Actions: browser.Options{
			Timeout:           cfg.Automation.Timeout,
			WaitTime:          cfg.Automation.WaitTime,
			ScreenshotOnError: cfg.Automation.ScreenshotOnError,
			ScreenshotDir:     cfg.Automation.ScreenshotDir,
		},
	}
	unitLogger := logger.With("unit", "Naukri")
	factory := func() core.Unit {
		return site.NewNaukriUnit(naukri, launch, unitLogger)
	}

	retrier := core.NewRetrier(cfg.Automation.RetryBaseDelay, logger)
	orchestrator := core.NewOrchestrator(retrier, cfg.Automation.MaxRetries, logger,
		core.Registration{Name: "Naukri", Factory: factory},
	).WithRecorder(history)
	if cfg.Bark.Enabled {
		bark, err := notify.NewBarkNotifier(cfg.Bark.URL)
		if err != nil {
			logger.Warn("bark disabled", "err", err)
		} else {
			orchestrator.WithNotifier(notify.NewMultiNotifier(bark))
		}
	}

	return core.NewTrigger(orchestrator, &core.RunGuard{}, cfg.Automation.Schedule, location, cfg.Automation.RunCeiling, logger)
}

// runOnce performs a single pass and exits 0 whatever the outcome.
func runOnce(ctx context.Context, trigger *core.Trigger, logger *slog.Logger) int {
	logger.Info("running automation once")
	summary, err := trigger.RunOnce(ctx)
	if err != nil {
		logger.Error("automation failed", "err", err)
		return 0
	}
	logger.Info("automation finished",
		"success", summary.Success,
		"succeeded", summary.SuccessCount(),
		"total", len(summary.Results),
		"duration", summary.Duration.Round(time.Second),
	)
	return 0
}

func runDaemon(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, trigger *core.Trigger, history *store.Store, logger *slog.Logger, location *time.Location) int {
	logger.Info("resume automation starting",
		"version", version,
		"schedule", cfg.Automation.Schedule,
		"timezone", location.String(),
		"headless", cfg.Automation.Headless,
		"max_retries", cfg.Automation.MaxRetries,
	)
	if err := trigger.Start(ctx); err != nil {
		logger.Error("start scheduler", "err", err)
		return 1
	}

	go health.LogMemory(ctx, logger, healthInterval)

	var server *api.Server
	serverErr := make(chan error, 1)
	if cfg.Server.Production {
		server = api.NewServer(ctx, cfg.Server.Addr, cfg.Server.AuthToken, trigger, history, logger, location)
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	mcpErr := make(chan error, 1)
	if cfg.MCPEnabled {
		mcpServer := resumecronmcp.NewMCPServer(ctx, trigger, history, logger, location, version)
		go func() {
			mcpErr <- mcpServer.Run(ctx, os.Stdin, os.Stdout)
		}()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	code := 0
	select {
	case sig := <-sigs:
		logger.Info("received signal, shutting down gracefully", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
		code = 1
	case err := <-mcpErr:
		if err != nil {
			logger.Error("mcp server error", "err", err)
			code = 1
		} else {
			logger.Info("mcp client disconnected")
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", "err", err)
		}
	}

	stopCtx := trigger.Stop()
	select {
	case <-stopCtx.Done():
	case <-shutdownCtx.Done():
		logger.Warn("scheduler stop timed out")
	}
	logger.Info("shutdown complete")
	return code
}
