package testsupport

import (
	"path/filepath"
	"testing"

	"fieldcap/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The memory blob driver is the default so tests touch no real storage.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Blob.Driver = "memory"
	cfgVal.Blob.Dir = filepath.Join(base, "blobs")
	cfgVal.Blob.SigningSecret = "test-secret"
	cfgVal.Testers = []config.Tester{
		{Name: "Test Runner", Email: "runner@example.com"},
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithBlobDriver selects the blob driver for the test config.
func WithBlobDriver(driver string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Blob.Driver = driver
	}
}

// WithBackend points the client config at a test daemon address.
func WithBackend(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Backend.BaseURL = baseURL
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
