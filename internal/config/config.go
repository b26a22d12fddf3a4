package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

const DefaultBaseURL = "http://localhost:3000/api"

type Config struct {
	BaseURL        string
	HealthURL      string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration // zero means no client-side timeout
	Settle         time.Duration // pause after the connectivity gate
	Pace           time.Duration // pause between the remaining checks
	FixturesPath   string
	ArtifactsDir   string
	PushgatewayURL string
	WebhookURL     string
	WebhookSecret  string
	Schedule       string // cron spec; empty means a single run
	Strict         bool
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// LoadEnvFiles loads SMOKE_ENV_FILE, or .env.local and .env when present.
// Variables already set in the environment win.
func LoadEnvFiles() error {
	files := []string{".env.local", ".env"}
	if f := os.Getenv("SMOKE_ENV_FILE"); f != "" {
		files = []string{f}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func Parse() (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}
	cfg := &Config{}
	cfg.BaseURL = strings.TrimRight(getenv("SMOKE_BASE_URL", DefaultBaseURL), "/")
	cfg.HealthURL = getenv("HEALTH_URL", cfg.BaseURL+"/health")
	cfg.FixturesPath = getenv("SMOKE_FIXTURES", "")
	cfg.ArtifactsDir = getenv("ARTIFACTS_DIR", "")
	cfg.PushgatewayURL = getenv("SMOKE_PUSHGATEWAY_URL", "")
	cfg.WebhookURL = getenv("SMOKE_WEBHOOK_URL", "")
	cfg.WebhookSecret = getenv("SMOKE_WEBHOOK_SECRET", "")
	cfg.Schedule = getenv("SMOKE_SCHEDULE", "")
	cfg.Strict = getenv("SMOKE_STRICT", "false") == "true"

	var err error
	if cfg.ConnectTimeout, err = millis("SMOKE_CONNECT_TIMEOUT_MS", "5000"); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = millis("SMOKE_REQUEST_TIMEOUT_MS", "0"); err != nil {
		return nil, err
	}
	if cfg.Settle, err = millis("SMOKE_SETTLE_MS", "1000"); err != nil {
		return nil, err
	}
	if cfg.Pace, err = millis("SMOKE_PACE_MS", "500"); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := absoluteHTTP(c.BaseURL); err != nil {
		return fmt.Errorf("SMOKE_BASE_URL: %w", err)
	}
	if err := absoluteHTTP(c.HealthURL); err != nil {
		return fmt.Errorf("HEALTH_URL: %w", err)
	}
	if c.ConnectTimeout <= 0 {
		return errors.New("SMOKE_CONNECT_TIMEOUT_MS must be positive")
	}
	if c.RequestTimeout < 0 || c.Settle < 0 || c.Pace < 0 {
		return errors.New("durations must not be negative")
	}
	if c.PushgatewayURL != "" {
		if err := absoluteHTTP(c.PushgatewayURL); err != nil {
			return fmt.Errorf("SMOKE_PUSHGATEWAY_URL: %w", err)
		}
	}
	if c.WebhookURL != "" {
		if err := absoluteHTTP(c.WebhookURL); err != nil {
			return fmt.Errorf("SMOKE_WEBHOOK_URL: %w", err)
		}
		if c.WebhookSecret == "" {
			return errors.New("SMOKE_WEBHOOK_SECRET is required when SMOKE_WEBHOOK_URL is set")
		}
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("SMOKE_SCHEDULE: %w", err)
		}
	}
	return nil
}

func absoluteHTTP(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func millis(key, def string) (time.Duration, error) {
	n, err := strconv.Atoi(getenv(key, def))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return time.Duration(n) * time.Millisecond, nil
}
