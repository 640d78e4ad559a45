package workflow

import (
	"encoding/json"
	"strings"
	"time"
)

// Stage identifies one step of the fixed processing pipeline.
type Stage string

const (
	StageFormSubmitted     Stage = "form_submitted"
	StageDocumentsUploaded Stage = "documents_uploaded"
	StageScanningDocuments Stage = "scanning_documents"
	StageAnalyzingContent  Stage = "analyzing_content"
	StageMakingDecision    Stage = "making_decision"
	StageCompleted         Stage = "completed"
)

// pipeline is the executable stage order. StageCompleted is the terminal
// marker reached after the last entry succeeds, not an executable stage.
var pipeline = []Stage{
	StageFormSubmitted,
	StageDocumentsUploaded,
	StageScanningDocuments,
	StageAnalyzingContent,
	StageMakingDecision,
}

// Status represents the lifecycle of a workflow instance.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
)

// CancelledReason is the failure reason recorded when a cancellation request
// takes effect at a stage boundary.
const CancelledReason = "cancelled"

// InterruptedReason is the message recorded when a mid-flight attempt is
// reclaimed after a restart or stall.
const InterruptedReason = "attempt interrupted"

// Outcome classifies the result of one stage attempt.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeRetryable Outcome = "retryable_failure"
	OutcomeFatal     Outcome = "fatal_failure"
)

// Stages returns the executable pipeline order.
func Stages() []Stage {
	cp := make([]Stage, len(pipeline))
	copy(cp, pipeline)
	return cp
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	for _, stage := range pipeline {
		if stage == normalized {
			return stage, true
		}
	}
	if normalized == StageCompleted {
		return StageCompleted, true
	}
	return "", false
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusExpired:
		return normalized, true
	}
	return "", false
}

// IsTerminal reports whether a status permits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// StageRecord captures one attempt at one stage. Records are immutable once
// their outcome is set; a record with an empty outcome is still in flight.
type StageRecord struct {
	ID         int64
	Stage      Stage
	Attempt    int
	StartedAt  time.Time
	FinishedAt *time.Time
	Outcome    Outcome
	Message    string
}

// Open reports whether the attempt has not finished yet.
func (r StageRecord) Open() bool {
	return r.Outcome == ""
}

// Duration returns the observed attempt duration, or zero while in flight.
func (r StageRecord) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailureRecord is an audit entry appended when a workflow terminates a stage.
type FailureRecord struct {
	Stage      Stage     `json:"stage"`
	Attempt    int       `json:"attempt"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Instance is the per-application record of progress through the pipeline.
type Instance struct {
	ID              string
	ApplicationID   string
	CurrentStage    Stage
	Status          Status
	ProgressPercent int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time
	CancelRequested bool

	// Context accumulates each stage's structured output, keyed by stage.
	// Entries are written on stage success only; a stage overwrites its own
	// entry and never another stage's.
	Context map[Stage]json.RawMessage

	// RetryCounts tracks attempts made per stage, including the one in flight.
	RetryCounts map[Stage]int

	// Errors records terminal stage failures in order. Never cleared.
	Errors []FailureRecord

	// History holds every stage attempt in execution order.
	History []StageRecord
}

// ContextEntry returns the stored output of a stage, if any.
func (i *Instance) ContextEntry(stage Stage) (json.RawMessage, bool) {
	raw, ok := i.Context[stage]
	return raw, ok
}

// Clone returns a deep copy safe to hand to concurrent readers.
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	cp := *i
	if i.Context != nil {
		cp.Context = make(map[Stage]json.RawMessage, len(i.Context))
		for stage, raw := range i.Context {
			cp.Context[stage] = append(json.RawMessage(nil), raw...)
		}
	}
	if i.RetryCounts != nil {
		cp.RetryCounts = make(map[Stage]int, len(i.RetryCounts))
		for stage, count := range i.RetryCounts {
			cp.RetryCounts[stage] = count
		}
	}
	cp.Errors = append([]FailureRecord(nil), i.Errors...)
	cp.History = make([]StageRecord, len(i.History))
	for idx, rec := range i.History {
		cp.History[idx] = rec
		if rec.FinishedAt != nil {
			finished := *rec.FinishedAt
			cp.History[idx].FinishedAt = &finished
		}
	}
	return &cp
}

// OpenRecord returns the in-flight stage record, if one exists.
func (i *Instance) OpenRecord() (StageRecord, bool) {
	for idx := len(i.History) - 1; idx >= 0; idx-- {
		if i.History[idx].Open() {
			return i.History[idx], true
		}
	}
	return StageRecord{}, false
}

// HealthSummary describes aggregated instance counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	InProgress int
	Completed  int
	Failed     int
	Expired    int
}

// DatabaseHealth captures diagnostic information about the workflow database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	IntegrityCheck   bool
	TotalInstances   int
	OpenAttempts     int
	Error            string
}
