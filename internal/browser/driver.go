// Package browser wraps a WebDriver session behind a small capability
// interface and builds the fault-tolerant action primitives on top of it.
package browser

import (
	"context"
	"time"
)

// Driver is the browser capability the automation needs. Selectors are CSS.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until selector is present (and displayed when visible is set)
	// or timeout elapses.
	WaitFor(ctx context.Context, selector string, visible bool, timeout time.Duration) error
	Click(selector string) error
	Clear(selector string) error
	SendKeys(selector, text string) error
	// Attach sets a local file on a file input.
	Attach(selector, path string) error
	Exists(selector string) (bool, error)
	Execute(script string, args ...any) (any, error)
	Screenshot() ([]byte, error)
	Close() error
}

// Launcher starts a new browser session.
type Launcher func(ctx context.Context, opts LaunchOptions) (Driver, error)

// LaunchOptions configures a browser session.
type LaunchOptions struct {
	Headless   bool
	BinaryPath string
	UserAgent  string
	Width      int
	Height     int
	Args       []string
	Timeout    time.Duration
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var defaultArgs = []string{
	"--no-sandbox",
	"--disable-setuid-sandbox",
	"--disable-dev-shm-usage",
	"--disable-accelerated-2d-canvas",
	"--no-first-run",
	"--no-zygote",
	"--disable-gpu",
	"--disable-blink-features=AutomationControlled",
	"--disable-web-security",
	"--disable-features=IsolateOrigins,site-per-process",
	"--ignore-certificate-errors",
}

// DefaultLaunchOptions returns the anti-detection launch profile.
func DefaultLaunchOptions(headless bool, binary string, timeout time.Duration) LaunchOptions {
	return LaunchOptions{
		Headless:   headless,
		BinaryPath: binary,
		UserAgent:  defaultUserAgent,
		Width:      1366,
		Height:     768,
		Args:       append([]string(nil), defaultArgs...),
		Timeout:    timeout,
	}
}

// Scripts evaluated inside the page.
const (
	ScriptPageText = `return document.body ? document.body.textContent : "";`
	ScriptPageHTML = `return document.body ? document.body.innerHTML : "";`
	// ScriptClickFirst clicks the first element matching any selector in
	// arguments[0] and returns that selector, or "" when nothing matched.
	ScriptClickFirst = `var sels = arguments[0];
for (var i = 0; i < sels.length; i++) {
  var el = document.querySelector(sels[i]);
  if (el) { el.click(); return sels[i]; }
}
return "";`
)
