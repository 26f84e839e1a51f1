package site

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumecron/internal/browser"
	"resumecron/internal/browser/browsertest"
	"resumecron/internal/core"
	"resumecron/internal/logging"
)

const testBaseURL = "https://portal.test"

func noSleep(ctx context.Context, d time.Duration) error { return nil }

// newPortal models the login page, the post-login profile and the upload widget.
func newPortal() *browsertest.Driver {
	d := browsertest.New(selEmail, selPassword, selSubmit)
	d.Text = "Login to Naukri"
	d.OnClick(selSubmit, func(d *browsertest.Driver) {
		d.Hide(selEmail, selPassword, selSubmit)
		d.Show(selProfileIcon, selUserImg)
		d.Text = "My Naukri"
	})
	d.OnClick(selUserImg, func(d *browsertest.Driver) {
		d.Show(selResumeContainer, selUploadInput, selUpdateButton)
	})
	d.OnClick("a.nI-gNb-logout", func(d *browsertest.Driver) {
		d.Hide(selProfileIcon, selUserImg)
		d.Show(selEmail)
	})
	d.Show("a.nI-gNb-logout")
	return d
}

func newUnit(t *testing.T, d *browsertest.Driver, opts ...Option) *NaukriUnit {
	t.Helper()
	resume := filepath.Join(t.TempDir(), "resume.pdf")
	require.NoError(t, os.WriteFile(resume, []byte("%PDF-1.4"), 0o644))
	return newUnitWithResume(d, resume, opts...)
}

func newUnitWithResume(d *browsertest.Driver, resume string, opts ...Option) *NaukriUnit {
	o := NaukriOptions{
		BaseURL:    testBaseURL,
		Email:      "me@example.com",
		Password:   "hunter2",
		ResumePath: resume,
		Launch:     browser.DefaultLaunchOptions(true, "", time.Second),
		Actions:    browser.Options{Timeout: time.Second, WaitTime: time.Millisecond},
	}
	return NewNaukriUnit(o, d.Launcher(), logging.Discard(), append([]Option{WithSleep(noSleep)}, opts...)...)
}

func TestNaukriRunHappyPath(t *testing.T) {
	d := newPortal()
	u := newUnit(t, d)

	ok, err := u.Run(context.Background())

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, StateClosed, u.State())
	assert.True(t, d.Closed)
	assert.Equal(t, testBaseURL+"/nlogin/login", d.URL)
	assert.Equal(t, "me@example.com", d.Typed[selEmail])
	assert.Equal(t, "hunter2", d.Typed[selPassword])
	assert.NotEmpty(t, d.Attached[selUploadInput])
	assert.True(t, d.Called("click:"+selUpdateButton))
	assert.True(t, d.Called("execute:click-first"))
	assert.NoError(t, u.FailureCause())
}

func TestNaukriCaptchaFailsAttempt(t *testing.T) {
	d := newPortal()
	d.OnClick(selSubmit, func(d *browsertest.Driver) {
		d.Text = "Please complete the CAPTCHA"
	})
	u := newUnit(t, d)

	ok, err := u.Run(context.Background())

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, StateFailed, u.State())
	assert.True(t, d.Closed)
	assert.False(t, d.Called("click:"+selProfileIcon))
	assert.ErrorIs(t, u.FailureCause(), ErrCaptchaDetected)
	assert.ErrorContains(t, u.FailureCause(), "login: ")
}

func TestNaukriInjectedCaptchaPredicate(t *testing.T) {
	d := newPortal()
	u := newUnit(t, d, WithCaptchaCheck(func(p browser.PageState) bool {
		return p.Text == "My Naukri"
	}))

	ok, _ := u.Run(context.Background())

	assert.False(t, ok)
}

func TestNaukriLoginMarkerMissing(t *testing.T) {
	d := newPortal()
	d.OnClick(selSubmit, func(d *browsertest.Driver) {})
	u := newUnit(t, d)

	ok, _ := u.Run(context.Background())

	assert.False(t, ok)
	assert.Equal(t, StateFailed, u.State())
	assert.False(t, d.Called("attach:"+selUploadInput))
}

func TestNaukriUploadErrorMarker(t *testing.T) {
	d := newPortal()
	d.OnClick(selUpdateButton, func(d *browsertest.Driver) {
		d.Show(selUploadError)
	})
	u := newUnit(t, d)

	ok, _ := u.Run(context.Background())

	assert.False(t, ok)
	assert.False(t, d.Called("execute:click-first"))
	assert.True(t, d.Closed)
}

func TestNaukriUploadSectionMissing(t *testing.T) {
	d := newPortal()
	d.OnClick(selUserImg, func(d *browsertest.Driver) {})
	u := newUnit(t, d)

	ok, _ := u.Run(context.Background())

	assert.False(t, ok)
	assert.False(t, d.Called("attach:"+selUploadInput))
}

func TestNaukriMissingResumeSkipsUpload(t *testing.T) {
	d := newPortal()
	u := newUnitWithResume(d, "/nonexistent/zz-naukri-missing.pdf")

	ok, _ := u.Run(context.Background())

	assert.False(t, ok)
	assert.Empty(t, d.Attached)
	assert.False(t, d.Called("click:"+selUpdateButton))
}

func TestNaukriLogoutFailureDoesNotGateSuccess(t *testing.T) {
	d := newPortal()
	d.Hide("a.nI-gNb-logout")
	u := newUnit(t, d)

	ok, err := u.Run(context.Background())

	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, d.Closed)
	assert.Equal(t, StateClosed, u.State())
}

func TestNaukriLaunchFailure(t *testing.T) {
	launch := func(ctx context.Context, opts browser.LaunchOptions) (browser.Driver, error) {
		return nil, errors.New("chromedriver unreachable")
	}
	u := NewNaukriUnit(NaukriOptions{}, launch, logging.Discard(), WithSleep(noSleep))

	ok, err := u.Run(context.Background())

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, StateFailed, u.State())
	assert.ErrorContains(t, u.FailureCause(), "initialize: initialize browser: chromedriver unreachable")
}

func TestNaukriFailureCauseReachesRetrier(t *testing.T) {
	resume := filepath.Join(t.TempDir(), "resume.pdf")
	require.NoError(t, os.WriteFile(resume, []byte("%PDF-1.4"), 0o644))
	factory := func() core.Unit {
		d := newPortal()
		d.OnClick(selSubmit, func(d *browsertest.Driver) {
			d.Text = "captcha required"
		})
		return newUnitWithResume(d, resume)
	}
	r := core.NewRetrier(0, logging.Discard()).WithSleep(noSleep)

	out := r.RunDetailed(context.Background(), factory, "Naukri", 2)

	assert.False(t, out.Success)
	assert.ErrorIs(t, out.LastErr, ErrCaptchaDetected)
	assert.ErrorContains(t, out.LastErr, "attempt 2 failed: login: ")
}

func TestNaukriLogoutReachesLoggedOutState(t *testing.T) {
	d := newPortal()
	u := newUnit(t, d)
	require.NoError(t, u.initialize(context.Background()))
	require.NoError(t, u.login(context.Background()))
	require.NoError(t, u.updateResume(context.Background()))
	require.NoError(t, u.logout(context.Background()))
	assert.Equal(t, StateLoggedOut, u.State())
	u.close()
	assert.Equal(t, StateClosed, u.State())
}
