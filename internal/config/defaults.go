package config

const (
	defaultDataDir             = "~/.local/share/caseflow/data"
	defaultLogDir              = "~/.local/share/caseflow/logs"
	defaultDocumentsDir        = "~/.local/share/caseflow/documents"
	defaultAPIBind             = "127.0.0.1:7391"
	defaultWorkers             = 4
	defaultQueueDepth          = 64
	defaultMaxAttempts         = 3
	defaultBackoffBaseSeconds  = 2
	defaultBackoffCapSeconds   = 60
	defaultStageTimeout        = 300
	defaultTTLDays             = 7
	defaultSweepInterval       = 60
	defaultStaleAttemptTimeout = 300
	defaultStageSeconds        = 20
	defaultOCRBaseURL          = "http://127.0.0.1:8884"
	defaultOCRTimeoutSeconds   = 120
	defaultLLMBaseURL          = "https://openrouter.ai/api/v1"
	defaultLLMModel            = "google/gemini-3-flash-preview"
	defaultLLMTimeoutSeconds   = 60
	defaultMonthlyIncomeLimit  = 4000
	defaultDependentAllowance  = 650
	defaultMinConfidence       = 0.6
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:      defaultDataDir,
			LogDir:       defaultLogDir,
			DocumentsDir: defaultDocumentsDir,
			APIBind:      defaultAPIBind,
		},
		Workflow: Workflow{
			Workers:                    defaultWorkers,
			QueueDepth:                 defaultQueueDepth,
			MaxAttempts:                defaultMaxAttempts,
			BackoffBaseSeconds:         defaultBackoffBaseSeconds,
			BackoffCapSeconds:          defaultBackoffCapSeconds,
			StageTimeoutSeconds:        defaultStageTimeout,
			TTLDays:                    defaultTTLDays,
			SweepIntervalSeconds:       defaultSweepInterval,
			StaleAttemptTimeoutSeconds: defaultStaleAttemptTimeout,
			DefaultStageSeconds:        defaultStageSeconds,
		},
		OCR: OCR{
			BaseURL:        defaultOCRBaseURL,
			TimeoutSeconds: defaultOCRTimeoutSeconds,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Decision: Decision{
			MonthlyIncomeLimit: defaultMonthlyIncomeLimit,
			DependentAllowance: defaultDependentAllowance,
			MinConfidence:      defaultMinConfidence,
		},
		Logging: Logging{
			LogFormat: defaultLogFormat,
			LogLevel:  defaultLogLevel,
		},
	}
}
