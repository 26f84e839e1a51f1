// Package site holds the per-portal automation scripts.
package site

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"resumecron/internal/browser"
)

// State is a step of the unit's lifecycle.
type State string

const (
	StateUninitialized   State = "uninitialized"
	StateInitialized     State = "initialized"
	StateLoggedIn        State = "logged_in"
	StateResourceUpdated State = "resource_updated"
	StateLoggedOut       State = "logged_out"
	StateClosed          State = "closed"
	StateFailed          State = "failed"
)

// DefaultNaukriURL is the portal root.
const DefaultNaukriURL = "https://www.naukri.com"

// Selectors for naukri.com elements.
const (
	selEmail           = "#usernameField"
	selPassword        = `input[type="password"], input[name="password"], #passwordField`
	selSubmit          = `button[type="submit"]`
	selProfileIcon     = "img.nI-gNb-icon-img"
	selUserImg         = "img.nI-gNb-user-img"
	selResumeContainer = ".resume-upload-container"
	selUploadInput     = `.resume-upload-container input[type="file"].upload-input`
	selUpdateButton    = "button.btn.upload-button"
	selUploadError     = ".upload-error"
)

var logoutSelectors = []string{
	`a[href*="logout"]`,
	"a.logout-link",
	`a[title*="Logout"]`,
	"a.nI-gNb-logout",
	`div[title="Logout"]`,
}

// Fixed settle pauses; the site renders asynchronously after each step.
const (
	captchaSettle       = 2 * time.Second
	loginSettle         = 8 * time.Second
	menuSettle          = 3 * time.Second
	pageSettle          = 5 * time.Second
	logoutSettle        = 10 * time.Second
	logoutVerifyTimeout = 10 * time.Second
)

var (
	ErrCaptchaDetected      = errors.New("captcha detected - manual intervention required")
	ErrLoginNotVerified     = errors.New("login verification failed")
	ErrUploadSectionMissing = errors.New("could not find resume upload section")
	ErrUploadRejected       = errors.New("resume upload failed - error message detected")
	ErrLogoutNotFound       = errors.New("could not find logout button")
)

// NaukriOptions configures the naukri.com unit.
type NaukriOptions struct {
	BaseURL    string
	Email      string
	Password   string
	ResumePath string
	Launch     browser.LaunchOptions
	Actions    browser.Options
}

// Option customizes a NaukriUnit.
type Option func(*NaukriUnit)

// WithSleep replaces every pause, including those inside the action primitives.
func WithSleep(fn browser.SleepFunc) Option {
	return func(u *NaukriUnit) { u.sleep = fn }
}

// WithCaptchaCheck replaces the CAPTCHA detector.
func WithCaptchaCheck(p browser.Predicate) Option {
	return func(u *NaukriUnit) { u.captcha = p }
}

// WithUploadErrorCheck replaces the upload failure detector.
func WithUploadErrorCheck(p browser.Predicate) Option {
	return func(u *NaukriUnit) { u.uploadFailed = p }
}

// NaukriUnit logs in to naukri.com, re-uploads the resume and logs out.
// A unit is single use: create a fresh one per attempt.
type NaukriUnit struct {
	opts   NaukriOptions
	launch browser.Launcher
	logger *slog.Logger
	sleep  browser.SleepFunc

	captcha      browser.Predicate
	loggedIn     browser.Predicate
	uploadFailed browser.Predicate

	state   State
	failure error
	driver  browser.Driver
	actions *browser.Actions
}

// NewNaukriUnit creates a unit that opens its browser through launch.
func NewNaukriUnit(opts NaukriOptions, launch browser.Launcher, logger *slog.Logger, options ...Option) *NaukriUnit {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultNaukriURL
	}
	u := &NaukriUnit{
		opts:         opts,
		launch:       launch,
		logger:       logger,
		sleep:        browser.Sleep,
		captcha:      browser.CaptchaChallenge,
		loggedIn:     browser.AnyPresent(selProfileIcon, selUserImg),
		uploadFailed: browser.AnyPresent(selUploadError),
		state:        StateUninitialized,
	}
	for _, opt := range options {
		opt(u)
	}
	return u
}

// State reports where the unit is in its lifecycle.
func (u *NaukriUnit) State() State {
	return u.state
}

// FailureCause returns the step error behind the last failed Run, or nil.
func (u *NaukriUnit) FailureCause() error {
	return u.failure
}

// Run executes initialize, login and resume update; logout is attempted but
// does not affect the result. The browser is always closed.
func (u *NaukriUnit) Run(ctx context.Context) (bool, error) {
	defer u.close()

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"initialize", u.initialize},
		{"login", u.login},
		{"update resume", u.updateResume},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			u.logger.Error("naukri automation failed", "step", step.name, "err", err)
			u.state = StateFailed
			u.failure = fmt.Errorf("%s: %w", step.name, err)
			return false, nil
		}
	}

	if err := u.logout(ctx); err != nil {
		u.logger.Warn("logout failed", "err", err)
	}
	u.logger.Info("naukri automation completed successfully")
	return true, nil
}

func (u *NaukriUnit) initialize(ctx context.Context) error {
	driver, err := u.launch(ctx, u.opts.Launch)
	if err != nil {
		return fmt.Errorf("initialize browser: %w", err)
	}
	u.driver = driver
	u.actions = browser.NewActions(driver, u.opts.Actions, u.logger).WithSleep(u.sleep)
	u.state = StateInitialized
	u.logger.Info("browser initialized")
	return nil
}

func (u *NaukriUnit) login(ctx context.Context) error {
	u.logger.Info("starting naukri login")
	if err := u.doLogin(ctx); err != nil {
		u.actions.TakeScreenshot("naukri-login-error")
		return err
	}
	u.state = StateLoggedIn
	u.logger.Info("naukri login successful")
	return nil
}

func (u *NaukriUnit) doLogin(ctx context.Context) error {
	a := u.actions
	if err := a.Navigate(ctx, u.opts.BaseURL+"/nlogin/login"); err != nil {
		return err
	}
	if !a.Type(ctx, selEmail, u.opts.Email, "Email field") {
		return errors.New("failed to enter email")
	}
	if !a.Type(ctx, selPassword, u.opts.Password, "Password field") {
		return errors.New("failed to enter password")
	}
	if !a.Click(ctx, selSubmit, "Login button") {
		return errors.New("failed to click login button")
	}

	if err := a.Pause(ctx, captchaSettle); err != nil {
		return err
	}
	page, err := a.PageState(ctx)
	if err != nil {
		return err
	}
	if u.captcha(page) {
		return ErrCaptchaDetected
	}

	if err := a.Pause(ctx, loginSettle); err != nil {
		return err
	}
	page, err = a.PageState(ctx)
	if err != nil {
		return err
	}
	if !u.loggedIn(page) {
		a.TakeScreenshot("login-verification-failed")
		return ErrLoginNotVerified
	}
	return nil
}

func (u *NaukriUnit) updateResume(ctx context.Context) error {
	u.logger.Info("starting naukri resume update")
	if err := u.doUpdateResume(ctx); err != nil {
		u.actions.TakeScreenshot("naukri-resume-error")
		return err
	}
	u.state = StateResourceUpdated
	u.logger.Info("naukri resume updated successfully")
	return nil
}

func (u *NaukriUnit) doUpdateResume(ctx context.Context) error {
	a := u.actions
	a.WaitForElement(ctx, selProfileIcon, 0)
	a.Click(ctx, selProfileIcon, "Profile icon")
	if err := a.Pause(ctx, menuSettle); err != nil {
		return err
	}
	a.Click(ctx, selUserImg, "Profile section")
	if err := a.Pause(ctx, pageSettle); err != nil {
		return err
	}

	if !a.WaitForElement(ctx, selResumeContainer, 0) {
		a.TakeScreenshot("resume-container-not-found")
		return ErrUploadSectionMissing
	}
	if !a.UploadFile(ctx, selUploadInput, u.opts.ResumePath, "Resume upload") {
		return errors.New("failed to upload resume file")
	}
	if err := a.Pause(ctx, pageSettle); err != nil {
		return err
	}
	if !a.Click(ctx, selUpdateButton, "Update resume button") {
		a.TakeScreenshot("update-button-click-failed")
		return errors.New("failed to click update button")
	}
	if err := a.Pause(ctx, pageSettle); err != nil {
		return err
	}

	page, err := a.PageState(ctx)
	if err != nil {
		return err
	}
	if u.uploadFailed(page) {
		return ErrUploadRejected
	}
	return nil
}

func (u *NaukriUnit) logout(ctx context.Context) error {
	u.logger.Info("logging out from naukri")
	if err := u.doLogout(ctx); err != nil {
		u.actions.TakeScreenshot("logout-error")
		return err
	}
	u.state = StateLoggedOut
	u.logger.Info("logged out successfully - login page detected")
	return nil
}

func (u *NaukriUnit) doLogout(ctx context.Context) error {
	a := u.actions
	a.WaitForElement(ctx, selProfileIcon, 0)
	a.Click(ctx, selProfileIcon, "Profile menu")
	if err := a.Pause(ctx, menuSettle); err != nil {
		return err
	}

	if _, ok := a.ClickFirst(ctx, logoutSelectors); !ok {
		a.TakeScreenshot("logout-button-not-found")
		return ErrLogoutNotFound
	}
	if err := a.Pause(ctx, logoutSettle); err != nil {
		return err
	}
	if !a.WaitForElement(ctx, selEmail, logoutVerifyTimeout) {
		return errors.New("logout verification failed - login page not found")
	}
	return nil
}

func (u *NaukriUnit) close() {
	if u.driver == nil {
		return
	}
	if err := u.driver.Close(); err != nil {
		u.logger.Warn("close browser", "err", err)
	} else {
		u.logger.Info("browser closed")
	}
	u.driver = nil
	if u.state != StateFailed {
		u.state = StateClosed
	}
}
