package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupEnv points the binary at an unreachable WebDriver and returns the log
// file path.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	resume := filepath.Join(dir, "resume.pdf")
	require.NoError(t, os.WriteFile(resume, []byte("%PDF-1.4"), 0o644))
	logFile := filepath.Join(dir, "logs", "automation.log")

	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("NAUKRI_EMAIL", "user@example.com")
	t.Setenv("NAUKRI_PASSWORD", "hunter2")
	t.Setenv("RESUME_PATH", resume)
	t.Setenv("SCHEDULE_TIME", "0 7 * * *")
	t.Setenv("SCHEDULE_TIMEZONE", "UTC")
	t.Setenv("WEBDRIVER_URL", "http://127.0.0.1:1")
	t.Setenv("HEADLESS_MODE", "true")
	t.Setenv("MAX_RETRIES", "2")
	t.Setenv("RETRY_BASE_DELAY", "1ms")
	t.Setenv("RUN_TIMEOUT", "1m")
	t.Setenv("SCREENSHOT_ON_ERROR", "false")
	t.Setenv("SCREENSHOT_DIR", filepath.Join(dir, "screenshots"))
	t.Setenv("LOG_FILE", logFile)
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("HISTORY_DB", "")
	t.Setenv("BARK_URL", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("MCP_ENABLED", "")
	return logFile
}

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	saved := os.Args
	os.Args = append([]string{"resumecrond"}, args...)
	t.Cleanup(func() { os.Args = saved })
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRunOnceExitsZeroAfterFailedPass(t *testing.T) {
	for _, flag := range []string{"--run-once", "-o"} {
		t.Run(flag, func(t *testing.T) {
			logFile := setupEnv(t)
			withArgs(t, flag)

			assert.Equal(t, 0, run())

			out := readLog(t, logFile)
			assert.Equal(t, 1, strings.Count(out, "starting job automation process"))
			assert.Equal(t, 2, strings.Count(out, "attempt starting"))
			assert.Contains(t, out, "automation finished")
			assert.Contains(t, out, "success=false")
			assert.Contains(t, out, "start webdriver session")
			assert.NotContains(t, out, "resume automation starting")
		})
	}
}

func TestRunExitsOneOnInvalidSchedule(t *testing.T) {
	logFile := setupEnv(t)
	t.Setenv("SCHEDULE_TIME", "bogus")
	withArgs(t, "--run-once")

	assert.Equal(t, 1, run())

	out := readLog(t, logFile)
	assert.Contains(t, out, "invalid configuration")
	assert.NotContains(t, out, "starting job automation process")
}

func TestRunExitsOneWithoutCredentials(t *testing.T) {
	logFile := setupEnv(t)
	t.Setenv("NAUKRI_EMAIL", "")
	withArgs(t, "-o")

	assert.Equal(t, 1, run())

	out := readLog(t, logFile)
	assert.Contains(t, out, "NAUKRI_EMAIL is required")
	assert.NotContains(t, out, "starting job automation process")
}

func TestRunExitsOneOnUnknownFlag(t *testing.T) {
	setupEnv(t)
	withArgs(t, "--no-such-flag")

	assert.Equal(t, 1, run())
}
