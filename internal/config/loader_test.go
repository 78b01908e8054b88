package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var allKeys = []string{
	"CRMBRIDGE_DB_PATH",
	"CRMBRIDGE_HTTP_PORT",
	"ESPO_API_URL",
	"ESPO_API_KEY",
	"ESPO_TIMEOUT",
	"CRMBRIDGE_ORG_EMAIL_DOMAIN",
	"CRMBRIDGE_SEARCH_CACHE_TTL",
	"CRMBRIDGE_SWEEP_INTERVAL",
	"CRMBRIDGE_SYNC_PAGE_SIZE",
	"CRMBRIDGE_LOG_LEVEL",
	"CRMBRIDGE_LOG_FORMAT",
}

// clearEnv unsets every configuration key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ESPO_API_URL", "https://crm.example.com/api/v1/")
		t.Setenv("ESPO_API_KEY", "key-123")

		cfg, err := Load(noEnvFile(t))
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.DBPath != "data/service_data.db" {
			t.Fatalf("unexpected default DB path: %q", cfg.DBPath)
		}
		if cfg.EspoAPIURL != "https://crm.example.com/api/v1" {
			t.Fatalf("expected trailing slash to be trimmed, got %q", cfg.EspoAPIURL)
		}
		if cfg.EspoTimeout != 10*time.Second || cfg.SearchCacheTTL != 5*time.Minute || cfg.SweepInterval != 10*time.Minute {
			t.Fatalf("unexpected default durations: %+v", cfg)
		}
		if cfg.OrgEmailDomain != "508.dev" || cfg.SyncPageSize != 200 || cfg.LogLevel != "info" || cfg.LogFormat != "json" {
			t.Fatalf("unexpected defaults: %+v", cfg)
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnv(t)

		_, err := Load(noEnvFile(t))
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "required environment variables are not set: ESPO_API_URL, ESPO_API_KEY"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ESPO_API_URL", "crm.example.com")
		t.Setenv("ESPO_API_KEY", "key")
		t.Setenv("CRMBRIDGE_HTTP_PORT", "eighty")
		t.Setenv("CRMBRIDGE_SEARCH_CACHE_TTL", "0s")
		t.Setenv("CRMBRIDGE_LOG_LEVEL", "verbose")

		_, err := Load(noEnvFile(t))
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "invalid environment variable values: CRMBRIDGE_HTTP_PORT, ESPO_API_URL, CRMBRIDGE_SEARCH_CACHE_TTL, CRMBRIDGE_LOG_LEVEL"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ESPO_API_URL", "http://localhost:8081/api/v1")
		t.Setenv("ESPO_API_KEY", "key")
		t.Setenv("CRMBRIDGE_HTTP_PORT", "9090")
		t.Setenv("CRMBRIDGE_DB_PATH", "/tmp/crm.db")
		t.Setenv("ESPO_TIMEOUT", "3s")
		t.Setenv("CRMBRIDGE_SWEEP_INTERVAL", "0")
		t.Setenv("CRMBRIDGE_SYNC_PAGE_SIZE", "50")
		t.Setenv("CRMBRIDGE_ORG_EMAIL_DOMAIN", "@example.org")
		t.Setenv("CRMBRIDGE_LOG_LEVEL", "DEBUG")

		cfg, err := Load(noEnvFile(t))
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 9090 {
			t.Fatalf("expected HTTP port 9090, got %d", cfg.HTTPPort)
		}
		if cfg.DBPath != "/tmp/crm.db" {
			t.Fatalf("unexpected DB path: %q", cfg.DBPath)
		}
		if cfg.EspoTimeout != 3*time.Second {
			t.Fatalf("expected timeout 3s, got %s", cfg.EspoTimeout)
		}
		if cfg.SweepInterval != 0 {
			t.Fatalf("expected sweeping disabled, got %s", cfg.SweepInterval)
		}
		if cfg.SyncPageSize != 50 {
			t.Fatalf("expected page size 50, got %d", cfg.SyncPageSize)
		}
		if cfg.OrgEmailDomain != "example.org" {
			t.Fatalf("expected org domain without @, got %q", cfg.OrgEmailDomain)
		}
		if cfg.LogLevel != "debug" {
			t.Fatalf("expected lower-cased log level, got %q", cfg.LogLevel)
		}
	})

	t.Run("reads values from an env file without overriding the environment", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "test.env")
		content := "ESPO_API_URL=https://file.example.com\nESPO_API_KEY=file-key\nCRMBRIDGE_HTTP_PORT=7070\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Setenv("CRMBRIDGE_HTTP_PORT", "6060")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.EspoAPIKey != "file-key" || cfg.EspoAPIURL != "https://file.example.com" {
			t.Fatalf("expected CRM settings from file, got %+v", cfg)
		}
		if cfg.HTTPPort != 6060 {
			t.Fatalf("expected environment to win over file, got %d", cfg.HTTPPort)
		}
		if _, ok := os.LookupEnv("ESPO_API_KEY"); ok {
			t.Fatalf("env file values must not leak into the process environment")
		}
	})
}
