package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestLoadArgsDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := LoadArgs([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DBPath != "./data/newshub.db" {
		t.Errorf("Expected default DB path, got '%s'", cfg.DBPath)
	}
	if cfg.RunBudget() != 25*time.Second {
		t.Errorf("Expected run budget 25s, got %v", cfg.RunBudget())
	}
	if cfg.LockTTLDuration() != 300*time.Second {
		t.Errorf("Expected lock TTL 300s, got %v", cfg.LockTTLDuration())
	}
	if cfg.SummaryTargetMin != 400 || cfg.SummaryTargetMax != 700 {
		t.Errorf("Expected summary range 400..700, got %d..%d", cfg.SummaryTargetMin, cfg.SummaryTargetMax)
	}
	if cfg.SummaryProviders != "gemini,claude,google_translate,rule_based" {
		t.Errorf("Unexpected provider order '%s'", cfg.SummaryProviders)
	}
	if cfg.CrosspostConfigured() {
		t.Error("Crosspost should not be configured by default")
	}
}

func TestLoadArgsFlagsAndEnv(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("FB_POSTING_ENABLED", "true")
	t.Setenv("FB_PAGE_ID", "page-1")
	t.Setenv("FB_PAGE_ACCESS_TOKEN", "token")

	cfg, err := LoadArgs([]string{"--once", "--run-budget-ms", "5000", "--sources-dir", "/tmp/sources"})
	if err != nil {
		t.Fatal(err)
	}

	if !cfg.RunOnce {
		t.Error("Expected --once to be set")
	}
	if cfg.RunBudget() != 5*time.Second {
		t.Errorf("Expected run budget 5s, got %v", cfg.RunBudget())
	}
	if cfg.SourcesDir != "/tmp/sources" {
		t.Errorf("Expected sources dir '/tmp/sources', got '%s'", cfg.SourcesDir)
	}
	if !cfg.CrosspostConfigured() {
		t.Error("Expected crosspost to be configured from environment")
	}
}

func TestLoadArgsDotEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(envFile, []byte("GEMINI_MODEL=gemini-test\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENV_FILE", envFile)
	t.Setenv("GEMINI_MODEL", "")
	os.Unsetenv("GEMINI_MODEL")

	cfg, err := LoadArgs([]string{})
	if err != nil {
		t.Fatal(err)
	}
	defer os.Unsetenv("GEMINI_MODEL")

	if cfg.GeminiModel != "gemini-test" {
		t.Errorf("Expected model from .env file, got '%s'", cfg.GeminiModel)
	}
}

func TestLoadArgsRejectsInvertedSummaryRange(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	_, err := LoadArgs([]string{"--summary-target-min", "800", "--summary-target-max", "100"})
	if err == nil {
		t.Error("Expected error for inverted summary range")
	}
}

func TestLoadArgsRejectsZeroSchedulerInterval(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	_, err := LoadArgs([]string{"--scheduler-interval", "0"})
	if err == nil {
		t.Error("Expected error for zero scheduler interval")
	}
}
