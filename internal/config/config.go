package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "time/tzdata"

	"github.com/joho/godotenv"

	"resumecron/internal/core"
)

// Credentials holds the job-portal login.
type Credentials struct {
	Identifier string
	Secret     string
}

// AutomationConfig holds browser and retry settings.
type AutomationConfig struct {
	Schedule          string
	Timezone          string
	Headless          bool
	ScreenshotOnError bool
	ScreenshotDir     string
	MaxRetries        int
	RetryBaseDelay    time.Duration
	Timeout           time.Duration
	WaitTime          time.Duration
	RunCeiling        time.Duration
	WebDriverURL      string
	BrowserBinary     string
}

// ServerConfig holds liveness/API server settings.
type ServerConfig struct {
	Addr       string
	Production bool
	AuthToken  string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
	File  string
}

// HistoryConfig holds run history settings.
type HistoryConfig struct {
	DSN  string
	Keep int
}

// BarkConfig holds Bark notification settings.
type BarkConfig struct {
	URL     string
	Enabled bool
}

// Config holds all runtime configuration options for the daemon.
type Config struct {
	Credentials Credentials
	ResumePath  string
	Automation  AutomationConfig
	Server      ServerConfig
	Log         LogConfig
	History     HistoryConfig
	Bark        BarkConfig

	RunOnce    bool
	MCPEnabled bool
}

const (
	defaultSchedule       = "0 7 * * *"
	defaultTimezone       = "Asia/Kolkata"
	defaultScreenshotDir  = "screenshots"
	defaultMaxRetries     = 3
	defaultRetryBaseDelay = 5 * time.Second
	defaultTimeout        = 30 * time.Second
	defaultWaitTime       = 2 * time.Second
	defaultRunCeiling     = 30 * time.Minute
	defaultWebDriverURL   = "http://localhost:9515"
	defaultPort           = "3000"
	defaultLogLevel       = "info"
	defaultLogFile        = "logs/automation.log"
	defaultHistoryKeep    = 50
)

// getEnvString returns the environment variable value or default
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the environment variable as int or default
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvBool returns the environment variable as bool or default
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		lower := strings.ToLower(val)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultVal
}

// getEnvDuration returns the environment variable as duration or default
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// Load parses command line arguments and environment variables into Config.
// Priority: CLI flags > Environment variables > .env file > defaults
func Load(args []string) (*Config, error) {
	// Load .env file if exists (silent fail if not present)
	envFiles := []string{".env"}
	if configDir, err := os.UserConfigDir(); err == nil {
		envFiles = append(envFiles, filepath.Join(configDir, "resumecron", ".env"))
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	cfg := &Config{
		Credentials: Credentials{
			Identifier: getEnvString("NAUKRI_EMAIL", ""),
			Secret:     getEnvString("NAUKRI_PASSWORD", ""),
		},
		ResumePath: getEnvString("RESUME_PATH", ""),
		Automation: AutomationConfig{
			Schedule:          getEnvString("SCHEDULE_TIME", defaultSchedule),
			Timezone:          getEnvString("SCHEDULE_TIMEZONE", defaultTimezone),
			Headless:          getEnvBool("HEADLESS_MODE", false),
			ScreenshotOnError: getEnvBool("SCREENSHOT_ON_ERROR", false),
			ScreenshotDir:     getEnvString("SCREENSHOT_DIR", defaultScreenshotDir),
			MaxRetries:        getEnvInt("MAX_RETRIES", defaultMaxRetries),
			RetryBaseDelay:    getEnvDuration("RETRY_BASE_DELAY", defaultRetryBaseDelay),
			Timeout:           defaultTimeout,
			WaitTime:          defaultWaitTime,
			RunCeiling:        getEnvDuration("RUN_TIMEOUT", defaultRunCeiling),
			WebDriverURL:      getEnvString("WEBDRIVER_URL", defaultWebDriverURL),
			BrowserBinary:     getEnvString("CHROME_BIN", ""),
		},
		Server: ServerConfig{
			Addr:       ":" + getEnvString("PORT", defaultPort),
			Production: strings.EqualFold(getEnvString("APP_ENV", ""), "production"),
			AuthToken:  getEnvString("API_TOKEN", ""),
		},
		Log: LogConfig{
			Level: getEnvString("LOG_LEVEL", defaultLogLevel),
			File:  getEnvString("LOG_FILE", defaultLogFile),
		},
		History: HistoryConfig{
			DSN:  getEnvString("HISTORY_DB", ""),
			Keep: getEnvInt("HISTORY_KEEP", defaultHistoryKeep),
		},
		Bark: BarkConfig{
			URL: getEnvString("BARK_URL", ""),
		},
		MCPEnabled: getEnvBool("MCP_ENABLED", false),
	}
	cfg.Bark.Enabled = cfg.Bark.URL != ""

	fs := flag.NewFlagSet("resumecrond", flag.ContinueOnError)
	var runOnce, mcpEnabled bool
	var addr, logLevel string
	fs.BoolVar(&runOnce, "run-once", false, "Run the automation once and exit")
	fs.BoolVar(&runOnce, "o", false, "Shorthand for --run-once")
	fs.BoolVar(&mcpEnabled, "mcp", false, "Serve MCP tools on stdio")
	fs.StringVar(&addr, "addr", "", "HTTP listen address (overrides env)")
	fs.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	cfg.RunOnce = runOnce
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "mcp" {
			cfg.MCPEnabled = mcpEnabled
		}
	})

	if cfg.Automation.MaxRetries < 1 {
		cfg.Automation.MaxRetries = defaultMaxRetries
	}
	if cfg.History.Keep < 1 {
		cfg.History.Keep = defaultHistoryKeep
	}
	return cfg, nil
}

// Validate reports every missing required field and an invalid schedule or timezone.
func (c *Config) Validate() error {
	var errs []error
	if c.Credentials.Identifier == "" {
		errs = append(errs, errors.New("NAUKRI_EMAIL is required"))
	}
	if c.Credentials.Secret == "" {
		errs = append(errs, errors.New("NAUKRI_PASSWORD is required"))
	}
	if c.ResumePath == "" {
		errs = append(errs, errors.New("RESUME_PATH is required"))
	}
	if _, err := core.ParseCron(c.Automation.Schedule); err != nil {
		errs = append(errs, err)
	}
	if _, err := time.LoadLocation(c.Automation.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone %q: %w", c.Automation.Timezone, err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// Location returns the schedule timezone, falling back to local time.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Automation.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
