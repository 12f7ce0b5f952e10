package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadIncludesParserDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("LLAMAPARSE_POLL_INTERVAL_MS", "")
	t.Setenv("LLAMAPARSE_POLL_TIMEOUT_SECONDS", "")
	t.Setenv("INSPECT_MAX_PAGES", "")
	t.Setenv("NATS_SUBJECT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LlamaParsePollIntervalMS != 1000 {
		t.Fatalf("expected default poll interval 1000ms, got %d", cfg.LlamaParsePollIntervalMS)
	}
	if cfg.LlamaParsePollTimeoutSec != 0 {
		t.Fatalf("expected unbounded poll timeout by default, got %d", cfg.LlamaParsePollTimeoutSec)
	}
	if cfg.InspectMaxPages != 500 {
		t.Fatalf("expected default max pages 500, got %d", cfg.InspectMaxPages)
	}
	if cfg.NATSSubject != "documents.parse" {
		t.Fatalf("expected default subject documents.parse, got %q", cfg.NATSSubject)
	}
}

func TestLoadParsesEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("LLAMAPARSE_API_KEY", "llx-test")
	t.Setenv("LLAMAPARSE_POLL_INTERVAL_MS", "250")
	t.Setenv("LLAMAPARSE_RATE_LIMIT_RPS", "5")
	t.Setenv("RESILIENCE_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LlamaParseAPIKey != "llx-test" {
		t.Fatalf("expected api key override, got %q", cfg.LlamaParseAPIKey)
	}
	if cfg.LlamaParsePollIntervalMS != 250 {
		t.Fatalf("expected poll interval 250ms, got %d", cfg.LlamaParsePollIntervalMS)
	}
	if cfg.LlamaParseRateLimitRPS != 5 {
		t.Fatalf("expected rate limit 5 rps, got %d", cfg.LlamaParseRateLimitRPS)
	}
	if cfg.ResilienceEnabled {
		t.Fatal("expected resilience disabled")
	}
}

func TestLoadAppliesConfigFileOverEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docparse.yaml")
	body := "llamaparse_base_url: https://parse.internal/api\njob_timeout_seconds: 120\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LLAMAPARSE_BASE_URL", "https://env.example/api")
	t.Setenv("API_PORT", "9999")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LlamaParseBaseURL != "https://parse.internal/api" {
		t.Fatalf("expected file to override env base url, got %q", cfg.LlamaParseBaseURL)
	}
	if cfg.JobTimeoutSec != 120 {
		t.Fatalf("expected job timeout 120s from file, got %d", cfg.JobTimeoutSec)
	}
	if cfg.APIPort != "9999" {
		t.Fatalf("expected env port kept when file is silent, got %q", cfg.APIPort)
	}
}

func TestLoadRejectsMalformedConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed config file")
	}
}
