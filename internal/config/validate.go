package config

import (
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateDecision(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.BackoffCapSeconds < c.Workflow.BackoffBaseSeconds {
		return fmt.Errorf("workflow.backoff_cap_seconds (%d) must be at least workflow.backoff_base_seconds (%d)",
			c.Workflow.BackoffCapSeconds, c.Workflow.BackoffBaseSeconds)
	}
	for stage, attempts := range c.Workflow.StageAttemptOverrides {
		if attempts <= 0 {
			return fmt.Errorf("workflow.stage_attempt_overrides.%s must be positive, got %d", stage, attempts)
		}
	}
	return nil
}

func (c *Config) validateDecision() error {
	if c.Decision.MonthlyIncomeLimit <= 0 {
		return fmt.Errorf("decision.monthly_income_limit must be positive, got %v", c.Decision.MonthlyIncomeLimit)
	}
	if c.Decision.DependentAllowance < 0 {
		return fmt.Errorf("decision.dependent_allowance must not be negative, got %v", c.Decision.DependentAllowance)
	}
	if c.Decision.MinConfidence < 0 || c.Decision.MinConfidence > 1 {
		return fmt.Errorf("decision.min_confidence must be between 0 and 1, got %v", c.Decision.MinConfidence)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.LogFormat {
	case "console", "json", "auto":
	default:
		return fmt.Errorf("logging.format must be console, json, or auto, got %q", c.Logging.LogFormat)
	}
	switch c.Logging.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.LogLevel)
	}
	return nil
}
