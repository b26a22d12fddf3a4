package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolate(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SMOKE_BASE_URL", "HEALTH_URL", "SMOKE_CONNECT_TIMEOUT_MS", "SMOKE_REQUEST_TIMEOUT_MS",
		"SMOKE_SETTLE_MS", "SMOKE_PACE_MS", "SMOKE_FIXTURES", "ARTIFACTS_DIR",
		"SMOKE_PUSHGATEWAY_URL", "SMOKE_STRICT", "SMOKE_WEBHOOK_URL", "SMOKE_WEBHOOK_SECRET", "SMOKE_SCHEDULE",
	} {
		t.Setenv(k, "")
	}
	// keep stray .env files in the package dir out of the picture
	t.Setenv("SMOKE_ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
}

func TestParseDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Fatalf("base url %q", cfg.BaseURL)
	}
	if cfg.HealthURL != DefaultBaseURL+"/health" {
		t.Fatalf("health url %q", cfg.HealthURL)
	}
	if cfg.ConnectTimeout != 5*time.Second {
		t.Fatalf("connect timeout %v", cfg.ConnectTimeout)
	}
	if cfg.RequestTimeout != 0 {
		t.Fatalf("request timeout should default to none, got %v", cfg.RequestTimeout)
	}
	if cfg.Settle != time.Second || cfg.Pace != 500*time.Millisecond {
		t.Fatalf("pacing %v/%v", cfg.Settle, cfg.Pace)
	}
	if cfg.Strict {
		t.Fatalf("strict should default off")
	}
}

func TestParseOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("SMOKE_BASE_URL", "https://waste.example.com/api/")
	t.Setenv("SMOKE_PACE_MS", "0")
	t.Setenv("SMOKE_STRICT", "true")
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.BaseURL != "https://waste.example.com/api" {
		t.Fatalf("trailing slash not trimmed: %q", cfg.BaseURL)
	}
	if cfg.Pace != 0 || !cfg.Strict {
		t.Fatalf("unexpected cfg %+v", cfg)
	}
}

func TestParseLoadsEnvFileWithoutOverriding(t *testing.T) {
	isolate(t)
	f := filepath.Join(t.TempDir(), "smoke.env")
	if err := os.WriteFile(f, []byte("SMOKE_BASE_URL=http://from-file:4000/api\nSMOKE_PACE_MS=25\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SMOKE_ENV_FILE", f)
	t.Setenv("SMOKE_PACE_MS", "10")
	// godotenv sets values into the process env; reset them after the test
	t.Cleanup(func() { os.Unsetenv("SMOKE_BASE_URL") })

	os.Unsetenv("SMOKE_BASE_URL")
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.BaseURL != "http://from-file:4000/api" {
		t.Fatalf("env file not loaded: %q", cfg.BaseURL)
	}
	if cfg.Pace != 10*time.Millisecond {
		t.Fatalf("env file overrode real env: %v", cfg.Pace)
	}
}

func TestValidateRejects(t *testing.T) {
	base := Config{BaseURL: DefaultBaseURL, HealthURL: DefaultBaseURL + "/health", ConnectTimeout: time.Second}
	cases := map[string]func(c *Config){
		"scheme":       func(c *Config) { c.BaseURL = "ftp://x/api" },
		"host":         func(c *Config) { c.BaseURL = "http:///api" },
		"connect zero": func(c *Config) { c.ConnectTimeout = 0 },
		"negative":     func(c *Config) { c.Pace = -time.Millisecond },
		"pushgateway":  func(c *Config) { c.PushgatewayURL = "localhost:9091" },
	}
	for name, mut := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			mut(&c)
			if err := c.Validate(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config invalid: %v", err)
	}
}

func TestParseBadNumber(t *testing.T) {
	isolate(t)
	t.Setenv("SMOKE_SETTLE_MS", "soon")
	if _, err := Parse(); err == nil {
		t.Fatalf("expected error for non-numeric duration")
	}
}

func TestWebhookNeedsSecret(t *testing.T) {
	isolate(t)
	t.Setenv("SMOKE_WEBHOOK_URL", "https://hooks.example.com/smoke")
	if _, err := Parse(); err == nil {
		t.Fatalf("expected error without SMOKE_WEBHOOK_SECRET")
	}
	t.Setenv("SMOKE_WEBHOOK_SECRET", "s3cret")
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.WebhookURL != "https://hooks.example.com/smoke" || cfg.WebhookSecret != "s3cret" {
		t.Fatalf("unexpected webhook cfg %+v", cfg)
	}
}

func TestScheduleIsValidated(t *testing.T) {
	isolate(t)
	t.Setenv("SMOKE_SCHEDULE", "every tuesday")
	if _, err := Parse(); err == nil {
		t.Fatalf("expected invalid schedule error")
	}
	for _, spec := range []string{"*/5 * * * *", "@every 30s", "@hourly"} {
		t.Setenv("SMOKE_SCHEDULE", spec)
		cfg, err := Parse()
		if err != nil {
			t.Fatalf("%q: %v", spec, err)
		}
		if cfg.Schedule != spec {
			t.Fatalf("schedule %q", cfg.Schedule)
		}
	}
}
