// Package browsertest provides an in-memory browser.Driver for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"resumecron/internal/browser"
)

// ErrNotFound is returned when an operation targets an absent element.
var ErrNotFound = errors.New("element not found")

// Driver fakes a page as a set of present selectors plus body text/markup.
// Click hooks let tests model navigation between pages.
type Driver struct {
	mu sync.Mutex

	present  map[string]bool
	onClick  map[string]func(d *Driver)
	failures map[string]error

	Text string
	HTML string

	URL      string
	Typed    map[string]string
	Attached map[string]string
	Calls    []string
	Shots    int
	Closed   bool
}

// New returns a driver with the given selectors present.
func New(selectors ...string) *Driver {
	d := &Driver{
		present:  make(map[string]bool),
		onClick:  make(map[string]func(d *Driver)),
		failures: make(map[string]error),
		Typed:    make(map[string]string),
		Attached: make(map[string]string),
	}
	d.Show(selectors...)
	return d
}

// Launcher returns a browser.Launcher handing out d.
func (d *Driver) Launcher() browser.Launcher {
	return func(ctx context.Context, opts browser.LaunchOptions) (browser.Driver, error) {
		return d, nil
	}
}

// Show makes selectors present.
func (d *Driver) Show(selectors ...string) {
	for _, s := range selectors {
		d.present[s] = true
	}
}

// Hide removes selectors from the page.
func (d *Driver) Hide(selectors ...string) {
	for _, s := range selectors {
		delete(d.present, s)
	}
}

// OnClick registers fn to run after selector is clicked.
func (d *Driver) OnClick(selector string, fn func(d *Driver)) {
	d.onClick[selector] = fn
}

// FailOn makes op ("navigate", "click", "clear", "type", "attach",
// "execute", "screenshot", "close") fail with err.
func (d *Driver) FailOn(op string, err error) {
	d.failures[op] = err
}

// Called reports whether the call log contains entry.
func (d *Driver) Called(entry string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.Calls {
		if c == entry {
			return true
		}
	}
	return false
}

func (d *Driver) record(op, arg string) error {
	d.mu.Lock()
	d.Calls = append(d.Calls, op+":"+arg)
	d.mu.Unlock()
	return d.failures[op]
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := d.record("navigate", url); err != nil {
		return err
	}
	d.URL = url
	return ctx.Err()
}

func (d *Driver) WaitFor(ctx context.Context, selector string, visible bool, timeout time.Duration) error {
	_ = d.record("wait", selector)
	if d.present[selector] {
		return nil
	}
	return fmt.Errorf("waiting for %q: %w", selector, ErrNotFound)
}

func (d *Driver) Click(selector string) error {
	if err := d.record("click", selector); err != nil {
		return err
	}
	if !d.present[selector] {
		return ErrNotFound
	}
	if fn := d.onClick[selector]; fn != nil {
		fn(d)
	}
	return nil
}

func (d *Driver) Clear(selector string) error {
	if err := d.record("clear", selector); err != nil {
		return err
	}
	delete(d.Typed, selector)
	return nil
}

func (d *Driver) SendKeys(selector, text string) error {
	if err := d.record("type", selector); err != nil {
		return err
	}
	d.Typed[selector] += text
	return nil
}

func (d *Driver) Attach(selector, path string) error {
	if err := d.record("attach", selector); err != nil {
		return err
	}
	if !d.present[selector] {
		return ErrNotFound
	}
	d.Attached[selector] = path
	return nil
}

func (d *Driver) Exists(selector string) (bool, error) {
	return d.present[selector], nil
}

func (d *Driver) Execute(script string, args ...any) (any, error) {
	if err := d.record("execute", scriptName(script)); err != nil {
		return nil, err
	}
	switch script {
	case browser.ScriptPageText:
		return d.Text, nil
	case browser.ScriptPageHTML:
		return d.HTML, nil
	case browser.ScriptClickFirst:
		if len(args) == 0 {
			return "", nil
		}
		sels, _ := args[0].([]string)
		for _, s := range sels {
			if d.present[s] {
				if fn := d.onClick[s]; fn != nil {
					fn(d)
				}
				return s, nil
			}
		}
		return "", nil
	}
	return nil, fmt.Errorf("unsupported script")
}

func (d *Driver) Screenshot() ([]byte, error) {
	if err := d.record("screenshot", ""); err != nil {
		return nil, err
	}
	d.Shots++
	return []byte("\x89PNG fake"), nil
}

func (d *Driver) Close() error {
	err := d.record("close", "")
	d.Closed = true
	return err
}

func scriptName(script string) string {
	switch script {
	case browser.ScriptPageText:
		return "text"
	case browser.ScriptPageHTML:
		return "html"
	case browser.ScriptClickFirst:
		return "click-first"
	}
	return "custom"
}
