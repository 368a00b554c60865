package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	base := t.TempDir()
	cfg := Default()
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.TempDir = filepath.Join(base, "temp")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Integrity.SigningSecret = "test-secret"
	return cfg
}

func TestValidateDefaults(t *testing.T) {
	cfg := testConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRequiresSigningSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.Integrity.SigningSecret = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "signing_secret") {
		t.Fatalf("expected signing secret error, got %v", err)
	}
}

func TestValidateObjectStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.ObjectStore.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for enabled object store without endpoint")
	}
	cfg.ObjectStore.Endpoint = "https://store.example.com"
	cfg.ObjectStore.Bucket = "clips"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate with object store: %v", err)
	}
}

func TestValidateQuality(t *testing.T) {
	cfg := testConfig(t)
	cfg.Quality.Video = "ultra"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown quality value")
	}
}

func TestLoadParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
output_dir = "` + filepath.Join(dir, "out") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[integrity]
signing_secret = "file-secret"

[workflow]
queue_poll_interval = 1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected config to resolve, got exists=%v path=%q", exists, resolved)
	}
	if cfg.Workflow.QueuePollInterval != 1 {
		t.Fatalf("poll interval = %d, want 1", cfg.Workflow.QueuePollInterval)
	}
	if cfg.Integrity.SigningSecret != "file-secret" {
		t.Fatalf("signing secret = %q", cfg.Integrity.SigningSecret)
	}
	// Defaults survive partial files.
	if cfg.Workflow.ErrorRetryInterval != defaultErrorRetryInterval {
		t.Fatalf("error retry interval = %d", cfg.Workflow.ErrorRetryInterval)
	}
}

func TestEnvSecretOverridesFile(t *testing.T) {
	t.Setenv("CLIPFORGE_SIGNING_SECRET", "env-secret")
	cfg := testConfig(t)
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Integrity.SigningSecret != "env-secret" {
		t.Fatalf("signing secret = %q, want env-secret", cfg.Integrity.SigningSecret)
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := testConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.TempDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("directory %q not created: %v", dir, err)
		}
	}
}

func TestSampleConfigParses(t *testing.T) {
	if !strings.Contains(SampleConfig(), "[integrity]") {
		t.Fatal("sample config missing integrity section")
	}
}
