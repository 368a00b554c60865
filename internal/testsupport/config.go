package testsupport

import (
	"path/filepath"
	"testing"

	"clipforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.TempDir = filepath.Join(base, "temp")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Integrity.SigningSecret = "test-signing-secret"
	cfg.Workflow.PublishStepDelay = 0

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithSigningSecret overrides the integrity signing secret.
func WithSigningSecret(secret string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Integrity.SigningSecret = secret
	}
}

// WithAPIToken enables bearer authentication on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.APIToken = token
	}
}

// WithObjectStore points uploads at the given endpoint and bucket.
func WithObjectStore(endpoint, bucket, token string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.ObjectStore.Enabled = true
		cfg.ObjectStore.Endpoint = endpoint
		cfg.ObjectStore.Bucket = bucket
		cfg.ObjectStore.AccessToken = token
	}
}
