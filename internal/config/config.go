package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	LogDir       string `toml:"log_dir"`
	DocumentsDir string `toml:"documents_dir"`
	APIBind      string `toml:"api_bind"`
	APIToken     string `toml:"api_token"`
}

// Workflow contains orchestration, retry, and expiry settings.
type Workflow struct {
	// Workers is the size of the stage dispatch worker pool.
	Workers int `toml:"workers"`
	// QueueDepth bounds the number of dispatches waiting for a free worker.
	QueueDepth int `toml:"queue_depth"`
	// MaxAttempts is the default retry budget per stage.
	MaxAttempts int `toml:"max_attempts"`
	// StageAttemptOverrides overrides the retry budget for individual stages,
	// keyed by stage name (e.g. "scanning_documents").
	StageAttemptOverrides map[string]int `toml:"stage_attempt_overrides"`
	BackoffBaseSeconds    int            `toml:"backoff_base_seconds"`
	BackoffCapSeconds     int            `toml:"backoff_cap_seconds"`
	// StageTimeoutSeconds is a hard ceiling on a single stage attempt; the
	// executor's context is cancelled when it elapses and the attempt counts
	// as a retryable failure.
	StageTimeoutSeconds int `toml:"stage_timeout_seconds"`
	// TTLDays is how long an instance may stay non-terminal before the sweep
	// marks it expired.
	TTLDays              int `toml:"ttl_days"`
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"`
	// StaleAttemptTimeoutSeconds is how long a stage attempt may stay open
	// without finishing before the sweeper treats it as interrupted.
	StaleAttemptTimeoutSeconds int `toml:"stale_attempt_timeout_seconds"`
	// DefaultStageSeconds seeds the remaining-time estimate before any stage
	// of an instance has completed.
	DefaultStageSeconds int `toml:"default_stage_seconds"`
}

// OCR contains configuration for the text extraction service.
type OCR struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LLM contains connection settings for the content analysis model.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Decision contains the eligibility rule thresholds.
type Decision struct {
	// MonthlyIncomeLimit is the base income ceiling for a single applicant.
	MonthlyIncomeLimit float64 `toml:"monthly_income_limit"`
	// DependentAllowance raises the ceiling per additional household member.
	DependentAllowance float64 `toml:"dependent_allowance"`
	// MinConfidence is the analysis confidence below which the decision is
	// routed to manual review instead of an automated outcome.
	MinConfidence float64 `toml:"min_confidence"`
}

// Logging contains configuration for log output.
type Logging struct {
	LogFormat string `toml:"format"`
	LogLevel  string `toml:"level"`
}

// Config encapsulates all configuration values for caseflow.
//
// Configuration sections by subsystem:
//   - Paths: directories, API bind address, and API token
//   - Workflow: worker pool size, retry budget, backoff, TTL, sweep timing
//   - OCR: text extraction service connection
//   - LLM: content analysis model connection
//   - Decision: eligibility rule thresholds
//   - Logging: log format and level
type Config struct {
	Paths    `toml:"paths"`
	Workflow `toml:"workflow"`
	OCR      OCR `toml:"ocr"`
	LLM      LLM `toml:"llm"`
	Decision `toml:"decision"`
	Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/caseflow/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. The second return value is the
// resolved path, the third whether a file existed there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	projectPath, err := filepath.Abs("caseflow.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories caseflow writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.DocumentsDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Sample returns the embedded sample configuration text.
func Sample() string {
	return sampleConfig
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", trimmed, err)
	}
	return abs, nil
}
