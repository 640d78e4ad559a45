package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeServices()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DocumentsDir) == "" {
		c.Paths.DocumentsDir = defaultDocumentsDir
	}
	if c.Paths.DocumentsDir, err = expandPath(c.Paths.DocumentsDir); err != nil {
		return fmt.Errorf("paths.documents_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
	if c.Workflow.QueueDepth <= 0 {
		c.Workflow.QueueDepth = defaultQueueDepth
	}
	if c.Workflow.MaxAttempts <= 0 {
		c.Workflow.MaxAttempts = defaultMaxAttempts
	}
	if c.Workflow.BackoffBaseSeconds <= 0 {
		c.Workflow.BackoffBaseSeconds = defaultBackoffBaseSeconds
	}
	if c.Workflow.BackoffCapSeconds <= 0 {
		c.Workflow.BackoffCapSeconds = defaultBackoffCapSeconds
	}
	if c.Workflow.StageTimeoutSeconds <= 0 {
		c.Workflow.StageTimeoutSeconds = defaultStageTimeout
	}
	if c.Workflow.TTLDays <= 0 {
		c.Workflow.TTLDays = defaultTTLDays
	}
	if c.Workflow.SweepIntervalSeconds <= 0 {
		c.Workflow.SweepIntervalSeconds = defaultSweepInterval
	}
	if c.Workflow.StaleAttemptTimeoutSeconds <= 0 {
		c.Workflow.StaleAttemptTimeoutSeconds = defaultStaleAttemptTimeout
	}
	if c.Workflow.DefaultStageSeconds <= 0 {
		c.Workflow.DefaultStageSeconds = defaultStageSeconds
	}
}

func (c *Config) normalizeServices() {
	c.OCR.BaseURL = strings.TrimRight(strings.TrimSpace(c.OCR.BaseURL), "/")
	if c.OCR.BaseURL == "" {
		c.OCR.BaseURL = defaultOCRBaseURL
	}
	if c.OCR.TimeoutSeconds <= 0 {
		c.OCR.TimeoutSeconds = defaultOCRTimeoutSeconds
	}
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.LogFormat = strings.ToLower(strings.TrimSpace(c.Logging.LogFormat))
	if c.Logging.LogFormat == "" {
		c.Logging.LogFormat = defaultLogFormat
	}
	c.Logging.LogLevel = strings.ToLower(strings.TrimSpace(c.Logging.LogLevel))
	if c.Logging.LogLevel == "" {
		c.Logging.LogLevel = defaultLogLevel
	}
}
