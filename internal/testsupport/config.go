package testsupport

import (
	"path/filepath"
	"testing"

	"articlesync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Remote.BaseURL = "http://127.0.0.1:1"
	cfgVal.Remote.APIToken = "test-token"
	cfgVal.Sync.PollInterval = 1
	cfgVal.Sync.ErrorRetryInterval = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRemote points the test config at the provided sync endpoint.
func WithRemote(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Remote.BaseURL = baseURL
	}
}

// WithSyncDisabled turns off the background engine.
func WithSyncDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sync.Enabled = false
	}
}

// WithMaxBatchSize overrides the per-request article limit.
func WithMaxBatchSize(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sync.MaxBatchSize = size
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
