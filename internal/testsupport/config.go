package testsupport

import (
	"path/filepath"
	"testing"

	"caseflow/internal/config"
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
	cfgVal.DataDir = filepath.Join(base, "data")
	cfgVal.LogDir = filepath.Join(base, "logs")
	cfgVal.DocumentsDir = filepath.Join(base, "documents")
	cfgVal.APIBind = "127.0.0.1:0"
	cfgVal.Workflow.BackoffBaseSeconds = 0
	cfgVal.Workflow.SweepIntervalSeconds = 3600

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

// WithMaxAttempts sets the default per-stage retry budget on the test config.
func WithMaxAttempts(attempts int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.MaxAttempts = attempts
	}
}

// WithStageAttempts overrides the retry budget for a single stage.
func WithStageAttempts(stage string, attempts int) ConfigOption {
	return func(b *configBuilder) {
		if b.cfg.Workflow.StageAttemptOverrides == nil {
			b.cfg.Workflow.StageAttemptOverrides = make(map[string]int)
		}
		b.cfg.Workflow.StageAttemptOverrides[stage] = attempts
	}
}

// WithTTLDays sets the instance time-to-live on the test config.
func WithTTLDays(days int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.TTLDays = days
	}
}

// WithAPIToken sets the bearer token required by the HTTP API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.DataDir)
}
