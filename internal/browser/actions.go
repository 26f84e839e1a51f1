package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Options tunes the action primitives.
type Options struct {
	// Timeout bounds element waits when no explicit timeout is given.
	Timeout time.Duration
	// WaitTime is the settle pause after each interaction. It is a heuristic
	// for UI readiness, not a guarantee.
	WaitTime          time.Duration
	ScreenshotOnError bool
	ScreenshotDir     string
}

// Actions performs fault-tolerant browser interactions. Every primitive
// reports success as a bool, logs the cause of a failure and captures a
// diagnostic screenshot when enabled.
type Actions struct {
	driver Driver
	opts   Options
	logger *slog.Logger
	sleep  SleepFunc
	now    func() time.Time
}

// NewActions binds the primitives to a driver session.
func NewActions(driver Driver, opts Options, logger *slog.Logger) *Actions {
	if opts.ScreenshotDir == "" {
		opts.ScreenshotDir = "screenshots"
	}
	return &Actions{
		driver: driver,
		opts:   opts,
		logger: logger,
		sleep:  Sleep,
		now:    time.Now,
	}
}

// WithSleep replaces the pause implementation.
func (a *Actions) WithSleep(fn SleepFunc) *Actions {
	if fn != nil {
		a.sleep = fn
	}
	return a
}

// WithClock replaces the time source used for screenshot names.
func (a *Actions) WithClock(now func() time.Time) *Actions {
	if now != nil {
		a.now = now
	}
	return a
}

// Navigate opens url in the current session.
func (a *Actions) Navigate(ctx context.Context, url string) error {
	a.logger.Debug("navigating", "url", url)
	if err := a.driver.Navigate(ctx, url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// Pause waits a fixed duration.
func (a *Actions) Pause(ctx context.Context, d time.Duration) error {
	return a.sleep(ctx, d)
}

// Click waits for selector to be visible, clicks it and lets the page settle.
func (a *Actions) Click(ctx context.Context, selector, description string) bool {
	label := labelFor(selector, description)
	err := a.click(ctx, selector)
	if err != nil {
		a.logger.Error("click failed", "target", label, "err", err)
		a.TakeScreenshot("click-error")
		return false
	}
	a.logger.Info("clicked", "target", label)
	return true
}

func (a *Actions) click(ctx context.Context, selector string) error {
	if err := a.driver.WaitFor(ctx, selector, true, a.opts.Timeout); err != nil {
		return err
	}
	if err := a.driver.Click(selector); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return a.sleep(ctx, a.opts.WaitTime)
}

// Type focuses selector, replaces its content with text and lets the page settle.
func (a *Actions) Type(ctx context.Context, selector, text, description string) bool {
	label := labelFor(selector, description)
	err := a.typeText(ctx, selector, text)
	if err != nil {
		a.logger.Error("type failed", "target", label, "err", err)
		a.TakeScreenshot("type-error")
		return false
	}
	a.logger.Info("typed", "target", label)
	return true
}

func (a *Actions) typeText(ctx context.Context, selector, text string) error {
	if err := a.driver.WaitFor(ctx, selector, true, a.opts.Timeout); err != nil {
		return err
	}
	if err := a.driver.Click(selector); err != nil {
		return fmt.Errorf("focus %q: %w", selector, err)
	}
	if err := a.driver.Clear(selector); err != nil {
		return fmt.Errorf("clear %q: %w", selector, err)
	}
	if err := a.driver.SendKeys(selector, text); err != nil {
		return fmt.Errorf("type into %q: %w", selector, err)
	}
	return a.sleep(ctx, a.opts.WaitTime)
}

// UploadFile resolves the resume location, attaches it to the file input at
// selector and waits twice the settle time. Resolution failure skips the DOM.
func (a *Actions) UploadFile(ctx context.Context, selector, path, description string) bool {
	label := labelFor(selector, description)
	err := a.upload(ctx, selector, path)
	if err != nil {
		a.logger.Error("upload failed", "target", label, "err", err)
		a.TakeScreenshot("upload-error")
		return false
	}
	a.logger.Info("file uploaded", "target", label)
	return true
}

func (a *Actions) upload(ctx context.Context, selector, path string) error {
	resolved, err := ResolveResource(ResourceCandidates(path))
	if err != nil {
		return fmt.Errorf("resume file access: %w", err)
	}
	if abs, err := filepath.Abs(resolved); err == nil {
		resolved = abs
	}
	a.logger.Info("resume file found", "path", resolved)

	if err := a.driver.WaitFor(ctx, selector, false, a.opts.Timeout); err != nil {
		return err
	}
	if err := a.driver.Attach(selector, resolved); err != nil {
		return fmt.Errorf("attach %s: %w", resolved, err)
	}
	return a.sleep(ctx, 2*a.opts.WaitTime)
}

// WaitForElement reports whether selector appears within timeout.
// A zero timeout uses the default.
func (a *Actions) WaitForElement(ctx context.Context, selector string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = a.opts.Timeout
	}
	if err := a.driver.WaitFor(ctx, selector, false, timeout); err != nil {
		a.logger.Warn("element not found", "selector", selector, "err", err)
		return false
	}
	return true
}

// Exists probes the DOM without waiting.
func (a *Actions) Exists(selector string) bool {
	ok, err := a.driver.Exists(selector)
	if err != nil {
		a.logger.Debug("probe failed", "selector", selector, "err", err)
		return false
	}
	return ok
}

// ClickFirst clicks, inside the page, the first element matching any of the
// selectors in order. It returns the selector that matched.
func (a *Actions) ClickFirst(ctx context.Context, selectors []string) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	res, err := a.driver.Execute(ScriptClickFirst, selectors)
	if err != nil {
		a.logger.Error("page click failed", "selectors", selectors, "err", err)
		return "", false
	}
	matched, _ := res.(string)
	if matched == "" {
		return "", false
	}
	a.logger.Info("clicked", "target", matched)
	return matched, true
}

// PageState snapshots the page text and markup for predicates.
func (a *Actions) PageState(ctx context.Context) (PageState, error) {
	if err := ctx.Err(); err != nil {
		return PageState{}, err
	}
	text, err := a.evalString(ScriptPageText)
	if err != nil {
		return PageState{}, fmt.Errorf("read page text: %w", err)
	}
	html, err := a.evalString(ScriptPageHTML)
	if err != nil {
		return PageState{}, fmt.Errorf("read page html: %w", err)
	}
	return PageState{Text: text, HTML: html, Present: a.Exists}, nil
}

func (a *Actions) evalString(script string) (string, error) {
	res, err := a.driver.Execute(script)
	if err != nil {
		return "", err
	}
	s, _ := res.(string)
	return s, nil
}

// TakeScreenshot saves a capture named after tag when screenshots are
// enabled. Failures are logged only. It returns the written path or "".
func (a *Actions) TakeScreenshot(tag string) string {
	if !a.opts.ScreenshotOnError {
		return ""
	}
	if err := os.MkdirAll(a.opts.ScreenshotDir, 0o755); err != nil {
		a.logger.Error("screenshot dir", "dir", a.opts.ScreenshotDir, "err", err)
		return ""
	}
	data, err := a.driver.Screenshot()
	if err != nil {
		a.logger.Error("capture screenshot", "tag", tag, "err", err)
		return ""
	}
	path := filepath.Join(a.opts.ScreenshotDir, ScreenshotName(tag, a.now()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		a.logger.Error("write screenshot", "path", path, "err", err)
		return ""
	}
	a.logger.Info("screenshot saved", "path", path)
	return path
}

var timestampReplacer = strings.NewReplacer(":", "-", ".", "-")

// ScreenshotName builds "<tag>-<ISO timestamp>.png" with ':' and '.' replaced.
func ScreenshotName(tag string, at time.Time) string {
	ts := at.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	return fmt.Sprintf("%s-%s.png", tag, timestampReplacer.Replace(ts))
}

func labelFor(selector, description string) string {
	if description != "" {
		return description
	}
	return selector
}
