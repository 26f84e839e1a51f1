package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
)

const pollInterval = 250 * time.Millisecond

// NewSeleniumLauncher returns a Launcher that opens Chrome sessions on the
// WebDriver server at urlPrefix (chromedriver, selenium grid).
func NewSeleniumLauncher(urlPrefix string) Launcher {
	return func(ctx context.Context, opts LaunchOptions) (Driver, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		args := append([]string(nil), opts.Args...)
		if opts.Headless {
			args = append(args, "--headless=new")
		}
		if opts.Width > 0 && opts.Height > 0 {
			args = append(args, fmt.Sprintf("--window-size=%d,%d", opts.Width, opts.Height))
		}
		if opts.UserAgent != "" {
			args = append(args, "--user-agent="+opts.UserAgent)
		}

		caps := selenium.Capabilities{"browserName": "chrome"}
		caps.AddChrome(chrome.Capabilities{
			Path:            opts.BinaryPath,
			Args:            args,
			ExcludeSwitches: []string{"enable-automation"},
		})

		wd, err := selenium.NewRemote(caps, urlPrefix)
		if err != nil {
			return nil, fmt.Errorf("start webdriver session: %w", err)
		}
		if opts.Timeout > 0 {
			if err := wd.SetPageLoadTimeout(opts.Timeout); err != nil {
				_ = wd.Quit()
				return nil, fmt.Errorf("set page load timeout: %w", err)
			}
			if err := wd.SetAsyncScriptTimeout(opts.Timeout); err != nil {
				_ = wd.Quit()
				return nil, fmt.Errorf("set script timeout: %w", err)
			}
		}
		return &seleniumDriver{wd: wd}, nil
	}
}

type seleniumDriver struct {
	wd selenium.WebDriver
}

func (d *seleniumDriver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.wd.Get(url)
}

func (d *seleniumDriver) WaitFor(ctx context.Context, selector string, visible bool, timeout time.Duration) error {
	cond := func(wd selenium.WebDriver) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		el, err := wd.FindElement(selenium.ByCSSSelector, selector)
		if err != nil {
			return false, nil
		}
		if !visible {
			return true, nil
		}
		shown, err := el.IsDisplayed()
		if err != nil {
			return false, nil
		}
		return shown, nil
	}
	if err := d.wd.WaitWithTimeoutAndInterval(cond, timeout, pollInterval); err != nil {
		return fmt.Errorf("waiting for %q: %w", selector, err)
	}
	return nil
}

func (d *seleniumDriver) find(selector string) (selenium.WebElement, error) {
	el, err := d.wd.FindElement(selenium.ByCSSSelector, selector)
	if err != nil {
		return nil, fmt.Errorf("find %q: %w", selector, err)
	}
	return el, nil
}

func (d *seleniumDriver) Click(selector string) error {
	el, err := d.find(selector)
	if err != nil {
		return err
	}
	return el.Click()
}

func (d *seleniumDriver) Clear(selector string) error {
	el, err := d.find(selector)
	if err != nil {
		return err
	}
	return el.Clear()
}

func (d *seleniumDriver) SendKeys(selector, text string) error {
	el, err := d.find(selector)
	if err != nil {
		return err
	}
	return el.SendKeys(text)
}

// Attach relies on WebDriver accepting a local path as keys for file inputs.
func (d *seleniumDriver) Attach(selector, path string) error {
	return d.SendKeys(selector, path)
}

func (d *seleniumDriver) Exists(selector string) (bool, error) {
	els, err := d.wd.FindElements(selenium.ByCSSSelector, selector)
	if err != nil {
		return false, err
	}
	return len(els) > 0, nil
}

func (d *seleniumDriver) Execute(script string, args ...any) (any, error) {
	if args == nil {
		args = []any{}
	}
	return d.wd.ExecuteScript(script, args)
}

// Screenshot captures the viewport; WebDriver has no portable full-page capture.
func (d *seleniumDriver) Screenshot() ([]byte, error) {
	return d.wd.Screenshot()
}

func (d *seleniumDriver) Close() error {
	return d.wd.Quit()
}
