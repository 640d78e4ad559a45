package api

import "encoding/json"

// InstanceView is the transport representation of a workflow instance.
type InstanceView struct {
	ID                        string                     `json:"id"`
	ApplicationID             string                     `json:"applicationId"`
	Status                    string                     `json:"status"`
	CurrentStage              string                     `json:"currentStage"`
	CurrentStageLabel         string                     `json:"currentStageLabel"`
	ProgressPercent           int                        `json:"progressPercent"`
	CancelRequested           bool                       `json:"cancelRequested"`
	CreatedAt                 string                     `json:"createdAt"`
	UpdatedAt                 string                     `json:"updatedAt"`
	ExpiresAt                 string                     `json:"expiresAt"`
	EstimatedSecondsRemaining int64                      `json:"estimatedSecondsRemaining"`
	Steps                     []StepView                 `json:"steps"`
	Errors                    []FailureView              `json:"errors,omitempty"`
	Outputs                   map[string]json.RawMessage `json:"outputs,omitempty"`
}

// StepView is one stage attempt in an instance's history.
type StepView struct {
	Stage           string  `json:"stage"`
	Label           string  `json:"label"`
	Attempt         int     `json:"attempt"`
	Outcome         string  `json:"outcome,omitempty"`
	Message         string  `json:"message,omitempty"`
	StartedAt       string  `json:"startedAt"`
	FinishedAt      string  `json:"finishedAt,omitempty"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// FailureView is one recorded terminal stage failure.
type FailureView struct {
	Stage      string `json:"stage"`
	Attempt    int    `json:"attempt"`
	Reason     string `json:"reason"`
	OccurredAt string `json:"occurredAt"`
}

// StageHealthView reports executor readiness for one pipeline stage.
type StageHealthView struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// EngineStatus aggregates daemon runtime information for status endpoints.
type EngineStatus struct {
	Running     bool                `json:"running"`
	Total       int                 `json:"total"`
	ByStatus    map[string]int      `json:"byStatus"`
	StageHealth []StageHealthView   `json:"stageHealth,omitempty"`
	Database    *DatabaseHealthView `json:"database,omitempty"`
}

// DatabaseHealthView reports workflow database diagnostics.
type DatabaseHealthView struct {
	Path           string `json:"path"`
	Exists         bool   `json:"exists"`
	Readable       bool   `json:"readable"`
	IntegrityOK    bool   `json:"integrityOk"`
	TotalInstances int    `json:"totalInstances"`
	OpenAttempts   int    `json:"openAttempts"`
	Error          string `json:"error,omitempty"`
}

// SubmitApplicationRequest is the payload accepted when starting a workflow
// for a benefit application.
type SubmitApplicationRequest struct {
	ApplicationID string          `json:"applicationId"`
	Form          json.RawMessage `json:"form"`
}

// ApplicationResponse wraps a single instance view.
type ApplicationResponse struct {
	Instance InstanceView `json:"instance"`
}

// ApplicationListResponse wraps a list of instance views.
type ApplicationListResponse struct {
	Instances []InstanceView `json:"instances"`
}

// SweepResponse reports the work done by one maintenance pass.
type SweepResponse struct {
	Expired   int `json:"expired"`
	Reclaimed int `json:"reclaimed"`
}
